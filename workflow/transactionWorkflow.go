package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxRetryReason = "maximum retry attempts reached"

// UpdateTransactionStatus is the single entry point through which both the
// webhook channel and the status poll move a transaction. It maps the
// processor vocabulary, enforces the forward-only state machine under a row
// lock, and applies side effects (processed_at, arrears, escalation) exactly
// once. Re-applying the same terminal status is a no-op.
func UpdateTransactionStatus(ctx context.Context, transactionID int, externalStatus, externalReference, externalResponse string) (*models.DebitTransaction, error) {
	db := config.GetDB()

	var updated *models.DebitTransaction
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.DebitTransaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		newStatus := models.MapProcessorStatus(externalStatus)
		appendResponseLog(&t, externalStatus, externalResponse)

		updates := map[string]interface{}{"response_log": t.ResponseLog}
		if externalReference != "" && t.ExternalReference == nil {
			t.ExternalReference = &externalReference
			updates["external_reference"] = externalReference
		}

		switch {
		case newStatus == t.Status:
			// Duplicate delivery of the same outcome.
			updated = &t
			return tx.Model(&models.DebitTransaction{}).Where("id = ?", t.ID).Updates(updates).Error
		case newStatus == models.TransactionStatusPending:
			// Unrecognized processor token: record it, never move the state.
			updated = &t
			return tx.Model(&models.DebitTransaction{}).Where("id = ?", t.ID).Updates(updates).Error
		case !models.AllowedTransition(t.Status, newStatus):
			return transitionError(t.Status, newStatus)
		}

		previous := t.Status
		t.Status = newStatus
		updates["status"] = newStatus

		if externalResponse != "" && newStatus == models.TransactionStatusFailed {
			t.FailureReason = &externalResponse
			updates["failure_reason"] = externalResponse
		}
		if newStatus == models.TransactionStatusSuccessful || newStatus == models.TransactionStatusFailed {
			now := time.Now()
			t.ProcessedAt = &now
			updates["processed_at"] = now
		}

		if err := tx.Model(&models.DebitTransaction{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := applyOutcomeSideEffects(ctx, tx, &t, previous); err != nil {
			return err
		}

		updated = &t
		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeTransaction, t.ID, "status_changed", &t)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateTransactionStatusByReference resolves the processor's transaction
// reference and applies the update. Used by webhooks and polls.
func UpdateTransactionStatusByReference(ctx context.Context, externalReference, externalStatus, processorReference, responseMessage string) (*models.DebitTransaction, error) {
	db := config.GetDB()

	var t models.DebitTransaction
	err := db.WithContext(ctx).Where("external_reference = ?", externalReference).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return UpdateTransactionStatus(ctx, t.ID, externalStatus, processorReference, responseMessage)
}

// applyOutcomeSideEffects runs only on a real state change, so a duplicated
// terminal delivery can never double-adjust arrears or double-escalate.
func applyOutcomeSideEffects(ctx context.Context, tx *gorm.DB, t *models.DebitTransaction, previous models.TransactionStatus) error {
	switch t.Status {
	case models.TransactionStatusFailed:
		// The premium goes into arrears on the first failure only; a retry
		// that fails again is the same missed debit, not a new one.
		if t.RetryCount == 0 {
			if err := tx.Model(&models.Member{}).Where("id = ?", t.MemberID).
				Update("arrears", gorm.Expr("arrears + ?", t.Amount)).Error; err != nil {
				return err
			}
		}
		if t.RetryCount >= models.MaxRetryCount {
			return ensureEscalation(ctx, tx, t, maxRetryReason, nil)
		}
	case models.TransactionStatusSuccessful:
		// A recovered retry settles the arrears its first failure booked.
		if t.RetryCount > 0 {
			if err := tx.Model(&models.Member{}).Where("id = ?", t.MemberID).
				Update("arrears", gorm.Expr("GREATEST(arrears - ?, 0)", t.Amount)).Error; err != nil {
				return err
			}
		}
		// Collection landed; roll the member's schedule forward a month.
		if err := tx.Model(&models.Member{}).Where("id = ?", t.MemberID).
			Update("next_debit_date", gorm.Expr("DATE_ADD(COALESCE(next_debit_date, CURDATE()), INTERVAL 1 MONTH)")).Error; err != nil {
			return err
		}
	case models.TransactionStatusReversed:
		if previous == models.TransactionStatusSuccessful {
			if err := tx.Model(&models.Member{}).Where("id = ?", t.MemberID).
				Update("arrears", gorm.Expr("arrears + ?", t.Amount)).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureEscalation creates the manual-review case once. If the escalations
// store rejects the write, the reason is appended to the transaction's
// response log instead of failing the caller.
func ensureEscalation(ctx context.Context, tx *gorm.DB, t *models.DebitTransaction, reason string, assignedTo *string) error {
	var count int64
	if err := tx.Model(&models.Escalation{}).
		Where("transaction_id = ? AND status = ?", t.ID, models.EscalationStatusPending).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	esc := models.Escalation{
		TransactionID: t.ID,
		MemberID:      t.MemberID,
		Reason:        reason,
		AssignedTo:    assignedTo,
		Status:        models.EscalationStatusPending,
	}
	if err := tx.Create(&esc).Error; err != nil {
		config.LogError(config.GetLogger(), "transactionWorkflow.go", "ensureEscalation", "creating escalation", t.ID, err)
		t.ResponseLog += fmt.Sprintf("%s\tescalation-fallback\t%s\r\n", time.Now().Format(time.RFC3339), reason)
		return tx.Model(&models.DebitTransaction{}).Where("id = ?", t.ID).
			Update("response_log", t.ResponseLog).Error
	}

	if err := tx.Model(&models.Member{}).Where("id = ?", t.MemberID).
		Update("debit_order_status", models.DebitOrderStatusFailed).Error; err != nil {
		return err
	}
	return models.PublishAudit(ctx, tx, models.AuditReferenceTypeEscalation, esc.ID, "created", &esc)
}

// transitionError reports a rejected state-machine move with both ends named,
// distinct from the retry-eligibility rejection.
func transitionError(from, to models.TransactionStatus) error {
	return fmt.Errorf("%w: %s -> %s", utils.ErrInvalidStatusTransition, from, to)
}

func appendResponseLog(t *models.DebitTransaction, externalStatus, response string) {
	line := fmt.Sprintf("%s\t%s", time.Now().Format(time.RFC3339), externalStatus)
	if response != "" {
		line += "\t" + response
	}
	t.ResponseLog += line + "\r\n"
}

// RetryTransaction re-queues a failed collection. Permitted only from failed
// with retry budget left; the optimistic status check in the UPDATE keeps a
// scheduled retry and a manual retry from both moving the same transaction.
// A non-empty reason is appended to the response log, so the operator's
// motivation travels with the transaction.
func RetryTransaction(ctx context.Context, transactionID int, reason string) (*models.DebitTransaction, error) {
	db := config.GetDB()

	var t models.DebitTransaction
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		if err := t.CanRetry(); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":          models.TransactionStatusProcessing,
			"retry_count":     gorm.Expr("retry_count + 1"),
			"last_retried_at": now,
		}
		if reason != "" {
			appendResponseLog(&t, "manual_retry", reason)
			updates["response_log"] = t.ResponseLog
		}
		res := tx.Model(&models.DebitTransaction{}).
			Where("id = ? AND status = ? AND retry_count = ?", t.ID, models.TransactionStatusFailed, t.RetryCount).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrInvalidStateForRetry
		}

		t.Status = models.TransactionStatusProcessing
		t.RetryCount++
		t.LastRetriedAt = &now
		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeTransaction, t.ID, "retried", &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// EscalateTransaction opens a manual-review case on operator request.
func EscalateTransaction(ctx context.Context, transactionID int, reason string, assignedTo *string) (*models.Escalation, error) {
	db := config.GetDB()

	var esc models.Escalation
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.DebitTransaction
		if err := tx.First(&t, transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.Escalation{}).
			Where("transaction_id = ? AND status = ?", t.ID, models.EscalationStatusPending).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.ErrAlreadyEscalated
		}

		esc = models.Escalation{
			TransactionID: t.ID,
			MemberID:      t.MemberID,
			Reason:        reason,
			AssignedTo:    assignedTo,
			Status:        models.EscalationStatusPending,
		}
		if err := tx.Create(&esc).Error; err != nil {
			return err
		}
		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeEscalation, esc.ID, "created", &esc)
	})
	if err != nil {
		return nil, err
	}
	return &esc, nil
}

// AutoRetryResult aggregates one scheduled retry pass.
type AutoRetryResult struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Escalated int      `json:"escalated"`
	Errors    []string `json:"errors,omitempty"`
}

// AutoRetryAll retries every failed transaction that still has retry budget,
// and escalates the ones that are out of budget. A single bad transaction
// never aborts the pass.
func AutoRetryAll(ctx context.Context) (*AutoRetryResult, error) {
	db := config.GetDB()
	result := &AutoRetryResult{}

	var candidates []models.DebitTransaction
	if err := db.WithContext(ctx).
		Where("status = ?", models.TransactionStatusFailed).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	for _, t := range candidates {
		if t.RetryCount >= models.MaxRetryCount {
			if err := escalateMaxedOut(ctx, t.ID); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("transaction %d: %v", t.ID, err))
			} else {
				result.Escalated++
			}
			continue
		}

		result.Attempted++
		if _, err := RetryTransaction(ctx, t.ID, ""); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("transaction %d: %v", t.ID, err))
			continue
		}
		result.Succeeded++
	}

	return result, nil
}

func escalateMaxedOut(ctx context.Context, transactionID int) error {
	_, err := EscalateTransaction(ctx, transactionID, maxRetryReason, nil)
	if errors.Is(err, utils.ErrAlreadyEscalated) {
		return nil
	}
	return err
}
