package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// reconciliationWindow is the half-open [midnight, next midnight) range that
// selects the transactions created on a calendar date.
func reconciliationWindow(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

// RunReconciliation performs the daily expected-vs-received pass over the
// transactions created on that calendar date. At most one transactions-sourced
// reconciliation exists per date.
func RunReconciliation(ctx context.Context, date time.Time, performedBy int) (*models.Reconciliation, error) {
	db := config.GetDB()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	var existing models.Reconciliation
	err := db.WithContext(ctx).
		Where("date = ? AND source = ?", day, models.ReconciliationSourceTransactions).
		First(&existing).Error
	if err == nil {
		return nil, utils.ErrReconciliationExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	start, end := reconciliationWindow(day)
	var transactions []models.DebitTransaction
	err = db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, end).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}

	recon := &models.Reconciliation{
		Date:          day,
		Source:        models.ReconciliationSourceTransactions,
		TotalExpected: decimal.Zero,
		TotalReceived: decimal.Zero,
		Status:        models.ReconciliationStatusInProgress,
		PerformedBy:   performedBy,
	}

	var discrepancies []models.Discrepancy
	for _, t := range transactions {
		if t.Status != models.TransactionStatusReversed {
			recon.TotalExpected = recon.TotalExpected.Add(t.Amount)
		}
		switch t.Status {
		case models.TransactionStatusSuccessful:
			recon.TotalReceived = recon.TotalReceived.Add(t.Amount)
			recon.MatchedCount++
		case models.TransactionStatusFailed:
			recon.UnmatchedCount++
			txID := t.ID
			discrepancies = append(discrepancies, models.Discrepancy{
				MemberID:       t.MemberID,
				TransactionID:  &txID,
				ExpectedAmount: t.Amount,
				ReceivedAmount: decimal.Zero,
				Difference:     t.Amount,
				Reason:         failureReasonOr(t, "collection failed"),
			})
		}
	}
	recon.DiscrepancyAmount = recon.TotalExpected.Sub(recon.TotalReceived)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(recon).Error; err != nil {
			return err
		}
		for i := range discrepancies {
			discrepancies[i].ReconciliationID = recon.ID
		}
		if len(discrepancies) > 0 {
			if err := tx.Create(&discrepancies).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		recon.Status = models.ReconciliationStatusCompleted
		recon.CompletedAt = &now
		if err := tx.Model(&models.Reconciliation{}).Where("id = ?", recon.ID).Updates(map[string]interface{}{
			"status":       recon.Status,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}
		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeReconciliation, recon.ID, "completed", recon)
	})
	if err != nil {
		return nil, err
	}

	recon.Discrepancies = discrepancies
	return recon, nil
}

func failureReasonOr(t models.DebitTransaction, fallback string) string {
	if t.FailureReason != nil && *t.FailureReason != "" {
		return *t.FailureReason
	}
	return fallback
}

// ResolveDiscrepancy records the operator's decision. A resolved discrepancy
// stays resolved.
func ResolveDiscrepancy(ctx context.Context, discrepancyID int, resolution, notes string, resolvedBy int) (*models.Discrepancy, error) {
	db := config.GetDB()

	var d models.Discrepancy
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&d, discrepancyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if d.Resolved {
			return utils.ErrAlreadyResolved
		}

		now := time.Now()
		d.Resolved = true
		d.Resolution = &resolution
		d.ResolvedBy = &resolvedBy
		d.ResolvedAt = &now
		updates := map[string]interface{}{
			"resolved":    true,
			"resolution":  resolution,
			"resolved_by": resolvedBy,
			"resolved_at": now,
		}
		if notes != "" {
			d.ResolutionNotes = &notes
			updates["resolution_notes"] = notes
		}
		if err := tx.Model(&models.Discrepancy{}).Where("id = ?", d.ID).Updates(updates).Error; err != nil {
			return err
		}
		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeDiscrepancy, d.ID, "resolved", &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AutoReconcile is the scheduled pass: reconcile yesterday's transactions if
// that date has not been done yet. Already-done is not an error for the
// scheduler.
func AutoReconcile(ctx context.Context) (*models.Reconciliation, error) {
	yesterday := time.Now().AddDate(0, 0, -1)
	recon, err := RunReconciliation(ctx, yesterday, 0)
	if errors.Is(err, utils.ErrReconciliationExists) {
		return nil, nil
	}
	return recon, err
}

// MatchStatementLines matches bank statement lines against the successful
// collections of the date. Pure function over its inputs so the tiering is
// testable without a database.
//
// Tiers: reference plus amount is exact; reference alone is probable; amount
// plus date with a single candidate is probable, with several candidates
// possible; anything else is none. Each payment is consumed by at most one
// line.
func MatchStatementLines(lines []models.BankStatementLine, payments []models.DebitTransaction, refsByID map[int]string) []models.StatementMatch {
	used := make(map[int]bool)
	matches := make([]models.StatementMatch, 0, len(lines))

	for _, line := range lines {
		m := models.StatementMatch{Line: line, Confidence: models.MatchConfidenceNone}

		if line.Type == models.StatementLineTypeDebit {
			m.Reason = "not a payment"
			matches = append(matches, m)
			continue
		}

		// Reference-led matching first.
		var refHit *models.DebitTransaction
		if line.Reference != "" {
			for i := range payments {
				p := &payments[i]
				if used[p.ID] {
					continue
				}
				if refsByID[p.ID] == line.Reference {
					refHit = p
					break
				}
			}
		}
		if refHit != nil {
			used[refHit.ID] = true
			id := refHit.ID
			m.TransactionID = &id
			if refHit.Amount.Equal(line.Amount) {
				m.Confidence = models.MatchConfidenceExact
				m.Reason = "reference and amount match"
			} else {
				m.Confidence = models.MatchConfidenceProbable
				m.Reason = fmt.Sprintf("reference matches, amount differs by %s", refHit.Amount.Sub(line.Amount).Abs())
			}
			matches = append(matches, m)
			continue
		}

		// Fall back to amount and date.
		var candidates []*models.DebitTransaction
		for i := range payments {
			p := &payments[i]
			if used[p.ID] {
				continue
			}
			if p.Amount.Equal(line.Amount) && p.ProcessedAt != nil && sameDay(*p.ProcessedAt, line.Date) {
				candidates = append(candidates, p)
			}
		}
		switch len(candidates) {
		case 0:
			m.Reason = "no candidate found"
		case 1:
			used[candidates[0].ID] = true
			id := candidates[0].ID
			m.TransactionID = &id
			m.Confidence = models.MatchConfidenceProbable
			m.Reason = "amount and date match"
		default:
			id := candidates[0].ID
			m.TransactionID = &id
			m.Confidence = models.MatchConfidencePossible
			m.Reason = fmt.Sprintf("ambiguous: %d candidates share amount and date", len(candidates))
		}
		matches = append(matches, m)
	}

	return matches
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ReconcileStatement cross-checks a bank statement against the successful
// collections of the date and persists a statement-sourced reconciliation.
// Successful payments with no statement line become discrepancies: the book
// says collected, the bank says otherwise.
func ReconcileStatement(ctx context.Context, date time.Time, lines []models.BankStatementLine, performedBy int) (*models.Reconciliation, []models.StatementMatch, error) {
	db := config.GetDB()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	var existing models.Reconciliation
	err := db.WithContext(ctx).
		Where("date = ? AND source = ?", day, models.ReconciliationSourceStatement).
		First(&existing).Error
	if err == nil {
		return nil, nil, utils.ErrReconciliationExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	start, end := reconciliationWindow(day)
	var payments []models.DebitTransaction
	err = db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ? AND status = ?", start, end, models.TransactionStatusSuccessful).
		Find(&payments).Error
	if err != nil {
		return nil, nil, err
	}

	refsByID := make(map[int]string, len(payments))
	for _, p := range payments {
		if p.ExternalReference != nil {
			refsByID[p.ID] = *p.ExternalReference
		}
	}

	matches := MatchStatementLines(lines, payments, refsByID)

	recon := &models.Reconciliation{
		Date:          day,
		Source:        models.ReconciliationSourceStatement,
		TotalExpected: decimal.Zero,
		TotalReceived: decimal.Zero,
		Status:        models.ReconciliationStatusInProgress,
		PerformedBy:   performedBy,
	}

	matched := make(map[int]decimal.Decimal)
	for _, m := range matches {
		if m.Line.Type != models.StatementLineTypeCredit {
			continue
		}
		recon.TotalReceived = recon.TotalReceived.Add(m.Line.Amount)
		if m.TransactionID != nil && m.Confidence != models.MatchConfidenceNone {
			recon.MatchedCount++
			matched[*m.TransactionID] = m.Line.Amount
		} else {
			recon.UnmatchedCount++
		}
	}

	var discrepancies []models.Discrepancy
	for _, p := range payments {
		recon.TotalExpected = recon.TotalExpected.Add(p.Amount)
		if _, ok := matched[p.ID]; ok {
			continue
		}
		recon.UnmatchedCount++
		txID := p.ID
		discrepancies = append(discrepancies, models.Discrepancy{
			MemberID:       p.MemberID,
			TransactionID:  &txID,
			ExpectedAmount: p.Amount,
			ReceivedAmount: decimal.Zero,
			Difference:     p.Amount,
			Reason:         "successful collection missing from bank statement",
		})
	}
	recon.DiscrepancyAmount = recon.TotalExpected.Sub(recon.TotalReceived)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(recon).Error; err != nil {
			return err
		}
		for i := range discrepancies {
			discrepancies[i].ReconciliationID = recon.ID
		}
		if len(discrepancies) > 0 {
			if err := tx.Create(&discrepancies).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		recon.Status = models.ReconciliationStatusCompleted
		recon.CompletedAt = &now
		if err := tx.Model(&models.Reconciliation{}).Where("id = ?", recon.ID).Updates(map[string]interface{}{
			"status":       recon.Status,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}
		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeReconciliation, recon.ID, "completed", recon)
	})
	if err != nil {
		return nil, nil, err
	}

	recon.Discrepancies = discrepancies
	return recon, matches, nil
}
