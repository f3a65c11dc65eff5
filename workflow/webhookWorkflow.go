package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"bitbucket.org/mmdatafocus/debitorders_backend/netcash"
	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
	"gorm.io/gorm"
)

const webhookHandlerName = "netcash-webhook"

// verifyWebhookSignature enforces authenticity whenever the processor signed
// the delivery. An absent signature is accepted: the processor signs
// optionally, and a delivery that carries one must match or nothing is
// dispatched.
func verifyWebhookSignature(secret string, body []byte, signature string) error {
	if signature == "" {
		return nil
	}
	if !netcash.VerifySignature(secret, body, signature) {
		return utils.ErrInvalidSignature
	}
	return nil
}

// IngestWebhook is the full intake pipeline for a processor callback:
// log first, then verify, then dispatch. The raw payload is persisted before
// anything else so a bad signature or unknown shape is still replayable once
// diagnosed. Returns the log row and the verification/processing error.
func IngestWebhook(ctx context.Context, secret string, body []byte, signature string) (*models.WebhookLog, error) {
	db := config.GetDB()

	logRow := &models.WebhookLog{
		Payload:   body,
		Signature: signature,
	}
	if err := db.WithContext(ctx).Create(logRow).Error; err != nil {
		return nil, err
	}

	if verr := verifyWebhookSignature(secret, body, signature); verr != nil {
		markWebhookFailed(ctx, db, logRow, verr)
		return logRow, verr
	}

	if err := processWebhook(ctx, body); err != nil {
		markWebhookFailed(ctx, db, logRow, err)
		return logRow, err
	}

	now := time.Now()
	err := db.WithContext(ctx).Model(&models.WebhookLog{}).Where("id = ?", logRow.ID).
		Updates(map[string]interface{}{
			"processed":     true,
			"processed_at":  now,
			"error_message": nil,
		}).Error
	if err != nil {
		return logRow, err
	}
	logRow.Processed = true
	logRow.ProcessedAt = &now
	logRow.ErrorMessage = nil
	return logRow, nil
}

// processWebhook parses the payload and routes it by shape. Duplicate events
// are absorbed by the idempotency key; the underlying status update is itself
// idempotent, so the key is belt and braces against replays with side effects
// mid-flight.
func processWebhook(ctx context.Context, body []byte) error {
	var payload netcash.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("unparseable webhook payload: %w", err)
	}
	if payload.TransactionReference == "" && payload.BatchReference == "" {
		return utils.ErrUnknownWebhookType
	}

	messageId := payload.EventId
	if messageId == "" {
		sum := sha256.Sum256(body)
		messageId = hex.EncodeToString(sum[:])
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx, webhookHandlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		if err := dispatchWebhook(ctx, payload); err != nil {
			if merr := MarkIdempotencyFailed(tx, webhookHandlerName, messageId, err); merr != nil {
				config.LogError(config.GetLogger(), "webhookWorkflow.go", "processWebhook", "marking idempotency failed", messageId, merr)
			}
			return err
		}
		return MarkIdempotencySucceeded(tx, webhookHandlerName, messageId)
	})
}

func dispatchWebhook(ctx context.Context, payload netcash.WebhookPayload) error {
	if payload.TransactionReference != "" {
		_, err := UpdateTransactionStatusByReference(ctx,
			payload.TransactionReference, payload.Status,
			payload.ProcessorReference, payload.ResponseMessage)
		return err
	}

	db := config.GetDB()
	var run models.DebitRun
	if err := db.WithContext(ctx).Where("external_reference = ?", payload.BatchReference).
		First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	return ApplyRunStatus(ctx, &run, payload.Status)
}

func markWebhookFailed(ctx context.Context, db *gorm.DB, logRow *models.WebhookLog, cause error) {
	msg := cause.Error()
	logRow.ErrorMessage = &msg
	if err := db.WithContext(ctx).Model(&models.WebhookLog{}).Where("id = ?", logRow.ID).
		Update("error_message", msg).Error; err != nil {
		config.LogError(config.GetLogger(), "webhookWorkflow.go", "markWebhookFailed", "recording webhook failure", logRow.ID, err)
	}
}

// ReplayWebhook re-runs the full pipeline for a stored event, starting from
// signature verification. An event logged with a bad signature stays rejected
// on replay; it never reaches processing through the back door.
func ReplayWebhook(ctx context.Context, secret string, webhookLogID int) (*models.WebhookLog, error) {
	db := config.GetDB()

	var logRow models.WebhookLog
	if err := db.WithContext(ctx).First(&logRow, webhookLogID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if verr := verifyWebhookSignature(secret, logRow.Payload, logRow.Signature); verr != nil {
		markWebhookFailed(ctx, db, &logRow, verr)
		return &logRow, verr
	}

	if err := processWebhook(ctx, logRow.Payload); err != nil {
		markWebhookFailed(ctx, db, &logRow, err)
		return &logRow, err
	}

	now := time.Now()
	err := db.WithContext(ctx).Model(&models.WebhookLog{}).Where("id = ?", logRow.ID).
		Updates(map[string]interface{}{
			"processed":     true,
			"processed_at":  now,
			"error_message": nil,
		}).Error
	if err != nil {
		return &logRow, err
	}
	logRow.Processed = true
	logRow.ProcessedAt = &now
	logRow.ErrorMessage = nil
	return &logRow, nil
}

const webhookStatsCacheKey = "webhook:stats"

// GetWebhookStats aggregates the webhook log, cached briefly in Redis since
// the dashboard polls it.
func GetWebhookStats(ctx context.Context) (*models.WebhookStats, error) {
	var stats models.WebhookStats
	if found, err := config.GetRedisObject(webhookStatsCacheKey, &stats); err == nil && found {
		return &stats, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&models.WebhookLog{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("processed = ?", true).Count(&stats.Processed).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("processed = ? AND error_message IS NOT NULL", false).Count(&stats.Failed).Error; err != nil {
		return nil, err
	}

	var last models.WebhookLog
	err := db.WithContext(ctx).Order("received_at DESC").First(&last).Error
	if err == nil {
		stats.LastReceived = &last.ReceivedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := config.SetRedisObject(webhookStatsCacheKey, &stats, 30*time.Second); err != nil {
		config.LogError(config.GetLogger(), "webhookWorkflow.go", "GetWebhookStats", "caching stats", nil, err)
	}
	return &stats, nil
}
