package handler

import (
	dctx "context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trustbond/api/internal/chain"
	"github.com/trustbond/api/internal/context"
	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/helper"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/realtime"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/request"
	"github.com/trustbond/api/internal/response"
	"github.com/trustbond/api/internal/stream"
	"github.com/trustbond/api/internal/validator"
)

const (
	LoanActivityLogAppliedDescription = "Loan application submitted"
	LoanActivityLogRepaidDescription  = "Loan repayment recorded"

	maxLoanTermMonths = 360
	maxAmountDecimals = 2
)

var (
	ErrKYCRequired  = errors.New("KYC must be verified before applying for a loan")
	maxInterestRate = decimal.NewFromInt(100)
)

type LoanResponseData struct {
	ID                string     `json:"id"`
	BorrowerID        string     `json:"borrower_id"`
	Amount            string     `json:"amount"`
	InterestRate      string     `json:"interest_rate"`
	TermMonths        int        `json:"term_months"`
	Status            string     `json:"status"`
	AppliedDate       time.Time  `json:"applied_date"`
	ApprovalDate      *time.Time `json:"approval_date,omitempty"`
	FundingDate       *time.Time `json:"funding_date,omitempty"`
	RepaymentDeadline *time.Time `json:"repayment_deadline,omitempty"`
	AmountRepaid      string     `json:"amount_repaid"`
	TotalDue          string     `json:"total_due"`
	Outstanding       string     `json:"outstanding"`
	ReviewedBy        string     `json:"reviewed_by,omitempty"`
}

func newLoanResponseData(loan *models.Loan) LoanResponseData {
	data := LoanResponseData{
		ID:           loan.ID,
		BorrowerID:   loan.BorrowerID,
		Amount:       loan.Amount.StringFixed(2),
		InterestRate: loan.InterestRate.StringFixed(2),
		TermMonths:   loan.TermMonths,
		Status:       loan.Status,
		AppliedDate:  loan.AppliedDate,
		AmountRepaid: loan.AmountRepaid.StringFixed(2),
		TotalDue:     loan.TotalDue().StringFixed(2),
		Outstanding:  loan.Outstanding().StringFixed(2),
		ReviewedBy:   nullStringValue(loan.ReviewedBy),
	}

	if loan.ApprovalDate.Valid {
		data.ApprovalDate = &loan.ApprovalDate.Time
	}
	if loan.FundingDate.Valid {
		data.FundingDate = &loan.FundingDate.Time
	}
	if loan.RepaymentDeadline.Valid {
		data.RepaymentDeadline = &loan.RepaymentDeadline.Time
	}

	return data
}

// LoanStatusReader reads a loan's status from the loan manager contract.
type LoanStatusReader interface {
	LoanStatus(ctx dctx.Context, loanID *big.Int) (string, error)
}

type LoanHandler struct {
	LoanRepo     repository.LoanRepository
	ActivityRepo repository.ActivityRepository
	LoanManager  LoanStatusReader
	Publisher    EventPublisher
	Hub          *realtime.Hub
	Helper       *helper.HelperRepository
	ErrHandler   *errHandler.ErrorHandler
}

func NewLoanHandler(handler *LoanHandler) *LoanHandler {
	return &LoanHandler{
		LoanRepo:     handler.LoanRepo,
		ActivityRepo: handler.ActivityRepo,
		LoanManager:  handler.LoanManager,
		Publisher:    handler.Publisher,
		Hub:          handler.Hub,
		Helper:       handler.Helper,
		ErrHandler:   handler.ErrHandler,
	}
}

func (h *LoanHandler) HandleApplyLoan(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Amount       decimal.Decimal     `json:"amount"`
		InterestRate decimal.Decimal     `json:"interest_rate"`
		TermMonths   int                 `json:"term_months"`
		Validator    validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	if !user.IsKYCVerified() {
		h.ErrHandler.UnprocessableEntity(w, r, ErrKYCRequired)
		return
	}

	input.Validator.Check(input.Amount.IsPositive(), "Amount must be greater than zero")
	input.Validator.Check(validator.MaxDecimalPlaces(input.Amount, maxAmountDecimals), "Amount must not have more than 2 decimal places")
	input.Validator.Check(!input.InterestRate.IsNegative() && input.InterestRate.LessThanOrEqual(maxInterestRate), "Interest rate must be between 0 and 100")
	input.Validator.Check(validator.Between(input.TermMonths, 1, maxLoanTermMonths), "Term must be between 1 and 360 months")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	loan, err := h.LoanRepo.Insert(&models.Loan{
		BorrowerID:   user.ID,
		Amount:       input.Amount,
		InterestRate: input.InterestRate,
		TermMonths:   input.TermMonths,
	})
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.logActivity(r, user.ID, loan.ID, LoanActivityLogAppliedDescription)
	h.publish(r, *loan, user.ID)

	err = response.JSONCreatedResponse(w, newLoanResponseData(loan), "Loan application submitted")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleListLoans returns the borrower's own loans. Banks and admins see every
// loan and may filter by ?status.
func (h *LoanHandler) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)
	query := retrieveUrlQueryValues(r)

	var (
		loans []models.Loan
		err   error
	)

	if user.HasRole(models.RoleBank, models.RoleAdmin) {
		if query.Status != "" && !validator.PermittedValue(query.Status, models.LoanStatuses...) {
			h.ErrHandler.FailedValidation(w, r, []string{"Status is not a loan status"})
			return
		}
		loans, err = h.LoanRepo.GetAll(query.Status, query.Limit, query.Offset)
	} else {
		loans, err = h.LoanRepo.GetAllByBorrower(user.ID, query.Limit, query.Offset)
	}
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	items := make([]LoanResponseData, len(loans))
	for i := range loans {
		items[i] = newLoanResponseData(&loans[i])
	}

	data := response.Paginated[LoanResponseData]{
		Items: items,
		Page:  query.Page,
		Limit: query.Limit,
	}

	err = response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *LoanHandler) HandleGetLoan(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.visibleLoan(w, r)
	if !ok {
		return
	}

	err := response.JSONOkResponse(w, newLoanResponseData(loan), "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *LoanHandler) HandleApproveLoan(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.LoanStatusApproved)
}

func (h *LoanHandler) HandleRejectLoan(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.LoanStatusRejected)
}

func (h *LoanHandler) HandleFundLoan(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.LoanStatusFunded)
}

func (h *LoanHandler) HandleDefaultLoan(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.LoanStatusDefaulted)
}

// transition moves a loan on behalf of a bank or admin. The update only lands
// when the loan still holds the status it was read with.
func (h *LoanHandler) transition(w http.ResponseWriter, r *http.Request, to string) {
	reviewer := context.ContextGetAuthenticatedUser(r)

	loan, found, err := h.LoanRepo.GetOne(r.PathValue("id"))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	previous := loan.Status

	err = loan.Transition(to, time.Now().UTC())
	if err != nil {
		h.ErrHandler.UnprocessableEntity(w, r, err)
		return
	}

	if to == models.LoanStatusApproved || to == models.LoanStatusRejected {
		loan.ReviewedBy.String, loan.ReviewedBy.Valid = reviewer.ID, true
	}

	updated, err := h.LoanRepo.Update(loan, previous)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !updated {
		h.ErrHandler.EditConflict(w, r)
		return
	}

	h.logActivity(r, loan.BorrowerID, loan.ID, "Loan "+to)
	h.publish(r, *loan, reviewer.ID)

	err = response.JSONOkResponse(w, newLoanResponseData(loan), "Loan "+to, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleRepayLoan records a repayment by the borrower. Covering the total due
// closes the loan as repaid; paying more than is outstanding is refused.
func (h *LoanHandler) HandleRepayLoan(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Amount decimal.Decimal `json:"amount"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	loan, found, err := h.LoanRepo.GetOne(r.PathValue("id"))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found || loan.BorrowerID != user.ID {
		h.ErrHandler.NotFound(w, r)
		return
	}

	// checked against the loaded copy; the stored total is only changed by Repay
	preview := *loan
	if _, err := preview.ApplyRepayment(input.Amount, time.Now().UTC()); err != nil {
		h.ErrHandler.UnprocessableEntity(w, r, err)
		return
	}

	loan, applied, err := h.LoanRepo.Repay(loan.ID, user.ID, input.Amount)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !applied {
		h.ErrHandler.EditConflict(w, r)
		return
	}

	closed := loan.Status == models.LoanStatusRepaid

	h.logActivity(r, user.ID, loan.ID, LoanActivityLogRepaidDescription)

	message := "Repayment recorded"
	if closed {
		message = "Loan fully repaid"
		h.publish(r, *loan, user.ID)
	}

	err = response.JSONOkResponse(w, newLoanResponseData(loan), message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleOnChainLoanStatus reads a loan's status from the loan manager contract
// by its on-chain id.
func (h *LoanHandler) HandleOnChainLoanStatus(w http.ResponseWriter, r *http.Request) {
	loanID, ok := new(big.Int).SetString(r.PathValue("loanId"), 10)
	if !ok || loanID.Sign() < 0 {
		h.ErrHandler.NotFound(w, r)
		return
	}

	status, err := h.LoanManager.LoanStatus(r.Context(), loanID)
	if err != nil {
		if errors.Is(err, chain.ErrContractNotConfigured) {
			h.ErrHandler.UnprocessableEntity(w, r, err)
			return
		}
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"loan_id": loanID.String(),
		"status":  status,
	}

	err = response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// visibleLoan loads the loan named in the path if the caller may see it.
// Loans of other borrowers look missing to users.
func (h *LoanHandler) visibleLoan(w http.ResponseWriter, r *http.Request) (*models.Loan, bool) {
	user := context.ContextGetAuthenticatedUser(r)

	loan, found, err := h.LoanRepo.GetOne(r.PathValue("id"))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return nil, false
	}

	if !found || (loan.BorrowerID != user.ID && !user.HasRole(models.RoleBank, models.RoleAdmin)) {
		h.ErrHandler.NotFound(w, r)
		return nil, false
	}

	return loan, true
}

func (h *LoanHandler) publish(r *http.Request, loan models.Loan, actorID string) {
	event := stream.NewLoanStatusEvent(loan, actorID)

	h.Hub.Publish(realtime.Event{
		Type:    realtime.EventLoanUpdated,
		Topic:   realtime.UserTopic(loan.BorrowerID),
		Payload: event,
	})

	h.Helper.BackgroundTask(r, func() error {
		return h.Publisher.PublishJSON(stream.LoanStatusTopic, loan.ID, event)
	})
}

func (h *LoanHandler) logActivity(r *http.Request, userID, loanID, description string) {
	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(&models.ActivityLog{
			UserID:      userID,
			Entity:      repository.ActivityLogLoanEntity,
			EntityId:    loanID,
			Description: description,
		})
		return err
	})
}
