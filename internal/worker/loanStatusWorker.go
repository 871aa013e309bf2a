package worker

import (
	"encoding/json"
	"fmt"

	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/stream"
)

func (wk *Worker) LoanStatusWorker() {
	wk.consume("LoanStatusWorker", loanStatusGroupID, stream.LoanStatusTopic, wk.handleLoanStatus)
}

func (wk *Worker) handleLoanStatus(payload []byte) error {
	var event stream.LoanStatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode loan status: %w", err)
	}

	_, err := wk.ActivityRepo.Insert(&models.ActivityLog{
		UserID:      event.BorrowerID,
		Entity:      repository.ActivityLogLoanEntity,
		EntityId:    event.LoanID,
		Description: "Loan " + event.Status,
	})
	if err != nil {
		return fmt.Errorf("log loan status: %w", err)
	}

	// the borrower already sees their own application in the response
	if event.Status == models.LoanStatusApplied {
		return nil
	}

	user, found, err := wk.UserRepo.GetOne(event.BorrowerID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["Name"] = user.Name
		emailData["Status"] = event.Status
		emailData["Amount"] = event.Amount
		emailData["InterestRate"] = event.InterestRate
		emailData["TermMonths"] = event.TermMonths
		if event.RepaymentDeadline != nil {
			emailData["RepaymentDeadline"] = event.RepaymentDeadline.Format("2 Jan 2006")
		}

		return wk.Mailer.Send(user.Email, emailData, "loan-status.tmpl")
	})

	return nil
}
