package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditReferenceType string

const (
	AuditReferenceTypeRun            AuditReferenceType = "DEBIT_RUN"
	AuditReferenceTypeTransaction    AuditReferenceType = "DEBIT_TRANSACTION"
	AuditReferenceTypeEscalation     AuditReferenceType = "ESCALATION"
	AuditReferenceTypeReconciliation AuditReferenceType = "RECONCILIATION"
	AuditReferenceTypeDiscrepancy    AuditReferenceType = "DISCREPANCY"
	AuditReferenceTypeWebhook        AuditReferenceType = "WEBHOOK"
)

// AuditEventRecord is the transactional outbox for the platform's audit sink:
// the row is written inside the caller's DB transaction, and the dispatcher
// publishes it to Pub/Sub after commit. At-least-once, ordered per record id.
type AuditEventRecord struct {
	ID            int                `gorm:"primary_key" json:"id"`
	EventTime     time.Time          `gorm:"not null;index" json:"event_time"`
	ReferenceType AuditReferenceType `gorm:"size:50;not null;index" json:"reference_type"`
	ReferenceId   int                `gorm:"not null;index" json:"reference_id"`
	Action        string             `gorm:"size:50;not null" json:"action"`
	Payload       []byte             `gorm:"type:mediumblob" json:"payload"`
	CorrelationId string             `gorm:"size:64;index" json:"correlation_id"`

	PublishStatus    OutboxPublishStatus `gorm:"size:20;not null;index;default:'PENDING'" json:"publish_status"`
	PublishAttempts  int                 `gorm:"not null;default:0" json:"publish_attempts"`
	LastPublishError *string             `gorm:"type:text" json:"last_publish_error"`
	NextAttemptAt    *time.Time          `gorm:"index" json:"next_attempt_at"`
	LockedAt         *time.Time          `json:"locked_at"`
	LockedBy         *string             `gorm:"size:64" json:"locked_by"`
	PublishedAt      *time.Time          `json:"published_at"`
	PubsubMessageId  *string             `gorm:"size:64" json:"pubsub_message_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishAudit writes the audit record inside the caller's DB transaction but
// does NOT publish to Pub/Sub. Publishing is performed asynchronously by the
// outbox dispatcher after commit.
func PublishAudit(ctx context.Context, tx *gorm.DB, refType AuditReferenceType, refId int, action string, obj interface{}) error {
	var payload []byte
	var err error
	if obj != nil {
		payload, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}

	record := AuditEventRecord{
		EventTime:     time.Now().UTC(),
		ReferenceType: refType,
		ReferenceId:   refId,
		Action:        action,
		Payload:       payload,
		CorrelationId: correlationIdFromContextOrNew(ctx),
		PublishStatus: OutboxPublishStatusPending,
	}
	return tx.Create(&record).Error
}

// ConvertToAuditMessage maps an outbox row to the published envelope.
func ConvertToAuditMessage(rec AuditEventRecord) config.AuditMessage {
	return config.AuditMessage{
		ID:            rec.ID,
		EventTime:     rec.EventTime,
		ReferenceId:   rec.ReferenceId,
		ReferenceType: string(rec.ReferenceType),
		Action:        rec.Action,
		Payload:       rec.Payload,
		CorrelationId: rec.CorrelationId,
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
