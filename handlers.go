package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"bitbucket.org/mmdatafocus/debitorders_backend/netcash"
	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
	"bitbucket.org/mmdatafocus/debitorders_backend/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const signatureHeader = "X-Netcash-Signature"

// writeWorkflowError maps workflow errors onto HTTP statuses: missing rows
// are 404, state-machine and duplicate-work rejections are 409, bad input is
// 400, anything else is 500 with the message withheld.
func writeWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, utils.ErrInvalidStateForRetry),
		errors.Is(err, utils.ErrInvalidStatusTransition),
		errors.Is(err, utils.ErrMaxRetriesExceeded),
		errors.Is(err, utils.ErrAlreadyResolved),
		errors.Is(err, utils.ErrAlreadyEscalated),
		errors.Is(err, utils.ErrReconciliationExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrNoValidMembers),
		errors.Is(err, utils.ErrUnknownWebhookType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		config.LogError(config.GetLogger(), "handlers.go", "writeWorkflowError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func generateBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req netcash.GenerateBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		summary, err := workflow.GenerateBatch(c.Request.Context(), netcashCfg, netcashClient, req)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, summary)
	}
}

func submitBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		run, err := workflow.SubmitRun(c.Request.Context(), netcashClient, id)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func batchStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		run, result, err := workflow.PollRunStatus(c.Request.Context(), netcashClient, id)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "processor": result})
	}
}

func listBatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context()).Model(&models.DebitRun{})
		if v := c.Query("status"); v != "" {
			db = db.Where("status = ?", v)
		}
		if v := c.Query("from"); v != "" {
			db = db.Where("run_date >= ?", v)
		}
		if v := c.Query("to"); v != "" {
			db = db.Where("run_date <= ?", v)
		}
		var runs []models.DebitRun
		if err := db.Order("id DESC").Limit(config.SearchLimit).Find(&runs).Error; err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, runs)
	}
}

func getBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var run models.DebitRun
		err := config.GetDB().WithContext(c.Request.Context()).
			Preload("Transactions").First(&run, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = utils.ErrorRecordNotFound
			}
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func listTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context()).Model(&models.DebitTransaction{})
		if v := c.Query("runId"); v != "" {
			db = db.Where("run_id = ?", v)
		}
		if v := c.Query("memberId"); v != "" {
			db = db.Where("member_id = ?", v)
		}
		if v := c.Query("status"); v != "" {
			db = db.Where("status = ?", v)
		}
		if v := c.Query("from"); v != "" {
			db = db.Where("created_at >= ?", v)
		}
		if v := c.Query("to"); v != "" {
			db = db.Where("created_at < ?", v)
		}
		var transactions []models.DebitTransaction
		if err := db.Order("id DESC").Limit(config.SearchLimit).Find(&transactions).Error; err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, transactions)
	}
}

func retryTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req netcash.RetryRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
				return
			}
		}
		t, err := workflow.RetryTransaction(c.Request.Context(), id, req.Reason)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func escalateTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req netcash.EscalateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
			return
		}
		esc, err := workflow.EscalateTransaction(c.Request.Context(), id, req.Reason, req.AssignedTo)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, esc)
	}
}

func webhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		signature := c.GetHeader(signatureHeader)

		logRow, err := workflow.IngestWebhook(c.Request.Context(), netcashCfg.WebhookSecret, body, signature)
		if err != nil {
			if errors.Is(err, utils.ErrInvalidSignature) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
				return
			}
			if logRow != nil {
				// Logged but not processed; the processor may redeliver, and the
				// stored payload can be replayed once the cause is fixed.
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "webhookLogId": logRow.ID})
				return
			}
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"webhookLogId": logRow.ID, "processed": logRow.Processed})
	}
}

func listWebhooksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context()).Model(&models.WebhookLog{})
		if v := c.Query("processed"); v != "" {
			db = db.Where("processed = ?", v == "true")
		}
		var logs []models.WebhookLog
		if err := db.Order("id DESC").Limit(config.SearchLimit).Find(&logs).Error; err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

func webhookStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := workflow.GetWebhookStats(c.Request.Context())
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func replayWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		logRow, err := workflow.ReplayWebhook(c.Request.Context(), netcashCfg.WebhookSecret, id)
		if err != nil && logRow == nil {
			writeWorkflowError(c, err)
			return
		}
		if err != nil {
			if errors.Is(err, utils.ErrInvalidSignature) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature", "webhookLogId": logRow.ID})
				return
			}
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "webhookLogId": logRow.ID})
			return
		}
		c.JSON(http.StatusOK, logRow)
	}
}

func runReconciliationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req netcash.RunReconciliationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		userID, _ := utils.GetUserIdFromContext(c.Request.Context())
		recon, err := workflow.RunReconciliation(c.Request.Context(), date, userID)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, recon)
	}
}

func statementReconciliationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req netcash.StatementReconciliationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date and lines are required"})
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		userID, _ := utils.GetUserIdFromContext(c.Request.Context())
		recon, matches, err := workflow.ReconcileStatement(c.Request.Context(), date, req.Lines, userID)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"reconciliation": recon, "matches": matches})
	}
}

func listReconciliationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context()).Model(&models.Reconciliation{})
		if v := c.Query("source"); v != "" {
			db = db.Where("source = ?", v)
		}
		var recons []models.Reconciliation
		if err := db.Preload("Discrepancies").Order("date DESC").Limit(config.SearchLimit).Find(&recons).Error; err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, recons)
	}
}

func listDiscrepanciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context()).Model(&models.Discrepancy{})
		if v := c.Query("resolved"); v != "" {
			db = db.Where("resolved = ?", v == "true")
		}
		var discrepancies []models.Discrepancy
		if err := db.Order("id DESC").Limit(config.SearchLimit).Find(&discrepancies).Error; err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, discrepancies)
	}
}

func resolveDiscrepancyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req netcash.ResolveDiscrepancyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "resolution is required"})
			return
		}
		userID, _ := utils.GetUserIdFromContext(c.Request.Context())
		d, err := workflow.ResolveDiscrepancy(c.Request.Context(), id, req.Resolution, req.Notes, userID)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func scheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("strikeDate")
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "strikeDate is required"})
			return
		}
		strike, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strikeDate"})
			return
		}
		adjusted := netcash.AdjustForWeekend(strike)
		submission := netcash.SubmissionDate(strike)
		c.JSON(http.StatusOK, netcash.ScheduleResponse{
			StrikeDate:         raw,
			AdjustedStrikeDate: adjusted.Format("2006-01-02"),
			SubmissionDate:     submission.Format("2006-01-02"),
			SubmitToday:        netcash.IsSubmissionDay(time.Now(), strike),
		})
	}
}
