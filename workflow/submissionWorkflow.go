package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"bitbucket.org/mmdatafocus/debitorders_backend/netcash"
	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
	"gorm.io/gorm"
)

// SubmitRun validates the run's batch file and transmits it to Netcash.
// Structural problems fail before any network call. Transport and processor
// failures mark the run failed with the processor's message; the run is never
// left pending after a failed attempt, and a failed run may be resubmitted.
func SubmitRun(ctx context.Context, client *netcash.Client, runID int) (*models.DebitRun, error) {
	db := config.GetDB()

	var run models.DebitRun
	if err := db.WithContext(ctx).First(&run, runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if run.Status != models.RunStatusPending && run.Status != models.RunStatusFailed {
		return nil, fmt.Errorf("run %d is %s and cannot be submitted", run.ID, run.Status)
	}

	contents, err := os.ReadFile(run.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read batch file %s: %w", run.FilePath, err)
	}

	if verr := netcash.ValidateBatchFile(string(contents)); verr != nil {
		markRunFailed(ctx, db, &run, verr)
		return nil, verr
	}

	token, err := client.SubmitBatch(ctx, string(contents), run.BatchName)
	if err != nil {
		markRunFailed(ctx, db, &run, err)
		return nil, err
	}

	now := time.Now()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run.Status = models.RunStatusSubmitted
		run.ExternalReference = &token
		run.SubmittedAt = &now
		run.ErrorMessage = nil
		if err := tx.Model(&models.DebitRun{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
			"status":             run.Status,
			"external_reference": token,
			"submitted_at":       now,
			"error_message":      nil,
		}).Error; err != nil {
			return err
		}

		// Netcash addresses individual debits as fileToken/accountReference;
		// stamp each transaction so webhooks and polls can find it.
		var transactions []models.DebitTransaction
		if err := tx.Where("run_id = ?", run.ID).Find(&transactions).Error; err != nil {
			return err
		}
		memberNumbers, err := memberNumbersByID(tx, transactions)
		if err != nil {
			return err
		}
		for _, t := range transactions {
			ref := fmt.Sprintf("%s/%s", token, memberNumbers[t.MemberID])
			updates := map[string]interface{}{"external_reference": ref}
			if t.Status == models.TransactionStatusPending {
				updates["status"] = models.TransactionStatusProcessing
			}
			if err := tx.Model(&models.DebitTransaction{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
				return err
			}
		}

		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeRun, run.ID, "submitted", run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func memberNumbersByID(tx *gorm.DB, transactions []models.DebitTransaction) (map[int]string, error) {
	ids := make([]int, 0, len(transactions))
	for _, t := range transactions {
		ids = append(ids, t.MemberID)
	}
	var members []models.Member
	if err := tx.Select("id", "member_number").Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	out := make(map[int]string, len(members))
	for _, m := range members {
		out[m.ID] = m.MemberNumber
	}
	return out, nil
}

func markRunFailed(ctx context.Context, db *gorm.DB, run *models.DebitRun, cause error) {
	msg := cause.Error()
	run.Status = models.RunStatusFailed
	run.ErrorMessage = &msg
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DebitRun{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
			"status":        models.RunStatusFailed,
			"error_message": msg,
		}).Error; err != nil {
			return err
		}
		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeRun, run.ID, "submission_failed", run)
	})
	if err != nil {
		config.LogError(config.GetLogger(), "submissionWorkflow.go", "markRunFailed", "marking run failed", run.ID, err)
	}
}

// PollRunStatus asks Netcash for the batch outcome and funnels every
// per-transaction result through the same idempotent status update the
// webhook channel uses.
func PollRunStatus(ctx context.Context, client *netcash.Client, runID int) (*models.DebitRun, *netcash.BatchStatusResult, error) {
	db := config.GetDB()

	var run models.DebitRun
	if err := db.WithContext(ctx).First(&run, runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.ErrorRecordNotFound
		}
		return nil, nil, err
	}
	if run.ExternalReference == nil {
		return nil, nil, fmt.Errorf("run %d has not been submitted", run.ID)
	}

	result, err := client.BatchStatus(ctx, *run.ExternalReference)
	if err != nil {
		return nil, nil, err
	}

	if err := ApplyRunStatus(ctx, &run, result.BatchStatus); err != nil {
		return nil, nil, err
	}

	logger := config.GetLogger()
	for _, tr := range result.Transactions {
		if _, uerr := UpdateTransactionStatusByReference(ctx, tr.Reference, tr.Status, "", tr.Reason); uerr != nil {
			config.LogError(logger, "submissionWorkflow.go", "PollRunStatus", "applying polled status", tr, uerr)
		}
	}

	return &run, &result, nil
}

// ApplyRunStatus maps a processor batch status onto the run, moving forward
// only. Re-delivery of the same terminal status is a no-op.
func ApplyRunStatus(ctx context.Context, run *models.DebitRun, externalStatus string) error {
	mapped := models.MapProcessorBatchStatus(externalStatus)
	if mapped == models.RunStatusPending || mapped == run.Status {
		return nil
	}
	if run.Status == models.RunStatusCompleted || run.Status == models.RunStatusFailed {
		return nil
	}
	if mapped == models.RunStatusSubmitted {
		return nil
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DebitRun{}).
			Where("id = ? AND status = ?", run.ID, run.Status).
			Update("status", mapped)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race against another channel; their update stands.
			return nil
		}
		run.Status = mapped
		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeRun, run.ID, "status_changed", run)
	})
}
