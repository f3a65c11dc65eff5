package netcash

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/debitorders_backend/models"
)

// GenerateBatchRequest is the collaborator-facing input for batch generation.
type GenerateBatchRequest struct {
	ActionDate   string   `json:"actionDate" binding:"required"` // CCYY-MM-DD
	BatchType    string   `json:"batchType"`                     // same_day | two_day (default)
	BrokerGroups []string `json:"brokerGroups"`
	AutoSubmit   bool     `json:"autoSubmit"`
}

// MemberValidationError reports one excluded member. Non-fatal: the batch
// proceeds with the remaining members.
type MemberValidationError struct {
	MemberID     int    `json:"memberId"`
	MemberNumber string `json:"memberNumber"`
	Reason       string `json:"reason"`
}

// RunSummary is the output of batch generation.
type RunSummary struct {
	RunID            int                     `json:"runId"`
	BatchName        string                  `json:"batchName"`
	FilePath         string                  `json:"filePath"`
	MemberCount      int                     `json:"memberCount"`
	TotalAmount      decimal.Decimal         `json:"totalAmount"`
	Status           models.RunStatus        `json:"status"`
	ValidationErrors []MemberValidationError `json:"validationErrors"`
}

// WebhookPayload is the inbound callback body. Exactly one of
// TransactionReference / BatchReference identifies the target; everything
// else is optional.
type WebhookPayload struct {
	EventId              string      `json:"eventId"`
	TransactionReference string      `json:"transactionReference"`
	BatchReference       string      `json:"batchReference"`
	Status               string      `json:"status"`
	Amount               json.Number `json:"amount"`
	ProcessorReference   string      `json:"processorReference"`
	ResponseCode         string      `json:"responseCode"`
	ResponseMessage      string      `json:"responseMessage"`
	Timestamp            string      `json:"timestamp"`
}

// BatchStatusResult is the parsed outcome of a status poll.
type BatchStatusResult struct {
	BatchStatus  string                    `json:"batchStatus"`
	Transactions []TransactionStatusResult `json:"transactions"`
}

type TransactionStatusResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

type RetryRequest struct {
	Reason string `json:"reason"`
}

type EscalateRequest struct {
	Reason     string  `json:"reason" binding:"required"`
	AssignedTo *string `json:"assignedTo"`
}

type ResolveDiscrepancyRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	Notes      string `json:"notes"`
}

type RunReconciliationRequest struct {
	Date string `json:"date" binding:"required"` // CCYY-MM-DD
}

type StatementReconciliationRequest struct {
	Date  string                     `json:"date" binding:"required"`
	Lines []models.BankStatementLine `json:"lines" binding:"required"`
}

// ScheduleResponse answers "when must a batch for this strike date go out".
type ScheduleResponse struct {
	StrikeDate         string `json:"strikeDate"`
	AdjustedStrikeDate string `json:"adjustedStrikeDate"`
	SubmissionDate     string `json:"submissionDate"`
	SubmitToday        bool   `json:"submitToday"`
}
