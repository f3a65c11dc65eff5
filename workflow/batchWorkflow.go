package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"bitbucket.org/mmdatafocus/debitorders_backend/netcash"
	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = validator.New()

// memberPaymentData is what a member must carry to be included in a batch.
// Branch codes are exactly 6 digits and Netcash caps account numbers at 15
// characters.
type memberPaymentData struct {
	MemberNumber  string `validate:"required"`
	Name          string `validate:"required"`
	BankName      string `validate:"required"`
	AccountNumber string `validate:"required,max=15"`
	BranchCode    string `validate:"required,len=6,numeric"`
}

func validateMemberForBatch(m *models.Member) error {
	data := memberPaymentData{
		MemberNumber:  m.MemberNumber,
		Name:          m.Name,
		BankName:      m.BankName,
		AccountNumber: m.AccountNumber,
		BranchCode:    m.BranchCode,
	}
	if err := validate.Struct(data); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s is invalid (%s)", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	if !m.Premium.IsPositive() {
		return fmt.Errorf("premium must be positive")
	}
	return nil
}

// GenerateBatch selects eligible members for the strike date, validates their
// payment data, encodes the batch file and persists the run with one pending
// transaction per included member. Validation failures exclude the member and
// are reported back; they never fail the batch unless nobody is left.
func GenerateBatch(ctx context.Context, cfg config.NetcashConfig, client *netcash.Client, req netcash.GenerateBatchRequest) (*netcash.RunSummary, error) {
	logger := config.GetLogger()

	actionDate, err := time.Parse("2006-01-02", req.ActionDate)
	if err != nil {
		return nil, fmt.Errorf("invalid action date %q: %w", req.ActionDate, err)
	}
	strikeDate := netcash.AdjustForWeekend(actionDate)

	batchType := models.BatchTypeTwoDay
	if strings.EqualFold(req.BatchType, string(models.BatchTypeSameDay)) {
		batchType = models.BatchTypeSameDay
	}

	members, err := models.EligibleMembers(ctx, strikeDate, req.BrokerGroups)
	if err != nil {
		return nil, err
	}

	var (
		lines            []netcash.BatchLine
		included         []*models.Member
		validationErrors []netcash.MemberValidationError
	)
	for _, m := range members {
		if verr := validateMemberForBatch(m); verr != nil {
			validationErrors = append(validationErrors, netcash.MemberValidationError{
				MemberID:     m.ID,
				MemberNumber: m.MemberNumber,
				Reason:       verr.Error(),
			})
			continue
		}
		accountHolder := m.AccountHolder
		if accountHolder == "" {
			accountHolder = m.Name
		}
		nextDebit := strikeDate
		if m.NextDebitDate != nil {
			nextDebit = *m.NextDebitDate
		}
		lines = append(lines, netcash.BatchLine{
			AccountReference: m.MemberNumber,
			AccountName:      m.Name,
			AccountHolder:    accountHolder,
			BankName:         m.BankName,
			BranchCode:       m.BranchCode,
			AccountNumber:    m.AccountNumber,
			Amount:           m.Premium,
			Email:            m.Email,
			BrokerGroup:      m.BrokerGroup,
			MemberNumber:     m.MemberNumber,
			NextDebitDate:    nextDebit,
		})
		included = append(included, m)
	}

	if len(lines) == 0 {
		return nil, utils.ErrNoValidMembers
	}

	batchName := fmt.Sprintf("DEBIT-%s-%s", strikeDate.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
	contents := netcash.EncodeBatchFile(cfg.ServiceKey, cfg.VendorKey, batchName, batchType, strikeDate, lines)

	filePath, err := utils.SaveBatchFile(ctx, cfg.BatchFileDir, cfg.GCSBucket, batchName+".txt", contents)
	if err != nil {
		if filePath == "" {
			return nil, err
		}
		// Local write succeeded; the GCS archive is retried out of band.
		config.LogError(logger, "batchWorkflow.go", "GenerateBatch", "archiving batch file", batchName, err)
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}

	run := &models.DebitRun{
		RunDate:     strikeDate,
		BatchName:   batchName,
		BatchType:   batchType,
		MemberCount: len(lines),
		TotalAmount: total,
		FilePath:    filePath,
		Status:      models.RunStatusPending,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		transactions := make([]models.DebitTransaction, 0, len(included))
		for _, m := range included {
			transactions = append(transactions, models.DebitTransaction{
				RunID:    run.ID,
				MemberID: m.ID,
				Amount:   m.Premium,
				Status:   models.TransactionStatusPending,
			})
		}
		if err := tx.Create(&transactions).Error; err != nil {
			return err
		}
		return models.PublishAudit(ctx, tx, models.AuditReferenceTypeRun, run.ID, "created", run)
	})
	if err != nil {
		return nil, err
	}

	if req.AutoSubmit {
		if submitted, serr := SubmitRun(ctx, client, run.ID); serr != nil {
			config.LogError(logger, "batchWorkflow.go", "GenerateBatch", "auto-submitting run", run.ID, serr)
			run.Status = models.RunStatusFailed
		} else {
			run = submitted
		}
	}

	return &netcash.RunSummary{
		RunID:            run.ID,
		BatchName:        run.BatchName,
		FilePath:         run.FilePath,
		MemberCount:      run.MemberCount,
		TotalAmount:      run.TotalAmount,
		Status:           run.Status,
		ValidationErrors: validationErrors,
	}, nil
}
