// A tracked transaction is settled by the receipt poller, which publishes it
// on the settled topic. Here we record the outcome against the owner's
// activity log and email them.
package worker

import (
	"encoding/json"
	"fmt"

	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/stream"
)

const (
	TransactionActivityLogConfirmedDescription = "Blockchain transaction confirmed"
	TransactionActivityLogFailedDescription    = "Blockchain transaction failed"
)

func (wk *Worker) SettledTransactionWorker() {
	wk.consume("SettledTransactionWorker", settledNotificationGroupID, stream.TransactionSettledTopic, wk.handleTransactionSettled)
}

func (wk *Worker) handleTransactionSettled(payload []byte) error {
	var event stream.TransactionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode settled transaction: %w", err)
	}

	// transactions submitted without a signed-in user have nobody to notify
	if event.UserID == "" {
		return nil
	}

	description := TransactionActivityLogConfirmedDescription
	if event.Status == models.TransactionStatusFailed {
		description = TransactionActivityLogFailedDescription
	}

	_, err := wk.ActivityRepo.Insert(&models.ActivityLog{
		UserID:      event.UserID,
		Entity:      repository.ActivityLogTransactionEntity,
		EntityId:    event.ID,
		Description: description,
	})
	if err != nil {
		return fmt.Errorf("log settled transaction: %w", err)
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
		emailData["Hash"] = event.Hash
		emailData["Type"] = event.Type
		emailData["Network"] = event.Network
		emailData["Status"] = event.Status
		emailData["BlockNumber"] = event.BlockNumber
		emailData["Description"] = event.Description

		return wk.Mailer.Send(user.Email, emailData, "transaction-settled.tmpl")
	})

	return nil
}
