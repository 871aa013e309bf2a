package worker

import (
	"encoding/json"
	"fmt"

	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/stream"
)

const (
	KYCActivityLogVerifiedDescription = "KYC submission verified"
	KYCActivityLogRejectedDescription = "KYC submission rejected"
)

func (wk *Worker) KYCReviewWorker() {
	wk.consume("KYCReviewWorker", kycReviewGroupID, stream.KYCReviewedTopic, wk.handleKYCReviewed)
}

func (wk *Worker) handleKYCReviewed(payload []byte) error {
	var event stream.KYCReviewedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode kyc review: %w", err)
	}

	description := KYCActivityLogVerifiedDescription
	if event.Status == models.VerificationStatusRejected {
		description = KYCActivityLogRejectedDescription
	}

	_, err := wk.ActivityRepo.Insert(&models.ActivityLog{
		UserID:      event.UserID,
		Entity:      repository.ActivityLogKYCEntity,
		EntityId:    event.SubmissionID,
		Description: description,
	})
	if err != nil {
		return fmt.Errorf("log kyc review: %w", err)
	}

	user, found, err := wk.UserRepo.GetOne(event.UserID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["Name"] = user.Name
		emailData["DocumentType"] = event.DocumentType
		emailData["DocumentHash"] = event.DocumentHash
		emailData["Status"] = event.Status
		emailData["Notes"] = event.Notes

		return wk.Mailer.Send(user.Email, emailData, "kyc-reviewed.tmpl")
	})

	return nil
}
