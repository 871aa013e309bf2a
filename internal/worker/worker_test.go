package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trustbond/api/internal/helper"
	"github.com/trustbond/api/internal/mocks"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/stream"
)

type testDeps struct {
	worker   *Worker
	users    *mocks.MockUserRepo
	activity *mocks.MockActivityRepo
	mailer   *mocks.MockMailer
	wg       *sync.WaitGroup
}

func newTestWorker() testDeps {
	baseURL := "http://localhost"
	wg := &sync.WaitGroup{}

	deps := testDeps{
		users:    new(mocks.MockUserRepo),
		activity: new(mocks.MockActivityRepo),
		mailer:   new(mocks.MockMailer),
		wg:       wg,
	}
	deps.mailer.Sent()

	deps.worker = New(&Worker{
		UserRepo:     deps.users,
		ActivityRepo: deps.activity,
		Mailer:       deps.mailer,
		Ctx:          context.Background(),
		Helper:       helper.New(&baseURL, wg, nil),
	})

	return deps
}

func waitForMail(t *testing.T, mailer *mocks.MockMailer) string {
	t.Helper()

	select {
	case recipient := <-mailer.Sent():
		return recipient
	case <-time.After(time.Second):
		t.Fatal("no mail was sent")
		return ""
	}
}

func TestHandleTransactionSettled(t *testing.T) {
	deps := newTestWorker()

	deps.activity.On("Insert", mock.MatchedBy(func(l *models.ActivityLog) bool {
		return l.Entity == repository.ActivityLogTransactionEntity &&
			l.Description == TransactionActivityLogFailedDescription
	})).Return(&models.ActivityLog{ID: "log-1"}, nil)
	deps.users.On("GetOne", "user-1").Return(&models.User{ID: "user-1", Email: "ada@example.com", Name: "ada"}, true, nil)
	deps.mailer.On("Send", "ada@example.com", mock.Anything, []string{"transaction-settled.tmpl"}).Return(nil)

	payload, err := json.Marshal(stream.TransactionEvent{
		ID:     "tx-1",
		Hash:   "0xabc",
		UserID: "user-1",
		Status: models.TransactionStatusFailed,
	})
	require.NoError(t, err)

	require.NoError(t, deps.worker.handleTransactionSettled(payload))
	assert.Equal(t, "ada@example.com", waitForMail(t, deps.mailer))

	deps.wg.Wait()
	deps.activity.AssertExpectations(t)
}

func TestHandleTransactionSettled_Anonymous(t *testing.T) {
	deps := newTestWorker()

	payload, err := json.Marshal(stream.TransactionEvent{ID: "tx-1", Status: models.TransactionStatusConfirmed})
	require.NoError(t, err)

	require.NoError(t, deps.worker.handleTransactionSettled(payload))
	deps.activity.AssertNotCalled(t, "Insert", mock.Anything)
}

func TestHandleTransactionSettled_BadPayload(t *testing.T) {
	deps := newTestWorker()
	assert.Error(t, deps.worker.handleTransactionSettled([]byte("{")))
}

func TestHandleKYCReviewed(t *testing.T) {
	deps := newTestWorker()

	deps.activity.On("Insert", mock.MatchedBy(func(l *models.ActivityLog) bool {
		return l.EntityId == "sub-1" && l.Description == KYCActivityLogVerifiedDescription
	})).Return(&models.ActivityLog{}, nil)
	deps.users.On("GetOne", "user-1").Return(&models.User{ID: "user-1", Email: "ada@example.com", Name: "ada"}, true, nil)
	deps.mailer.On("Send", "ada@example.com", mock.Anything, []string{"kyc-reviewed.tmpl"}).Return(nil)

	payload, err := json.Marshal(stream.KYCReviewedEvent{
		SubmissionID: "sub-1",
		UserID:       "user-1",
		Status:       models.VerificationStatusVerified,
	})
	require.NoError(t, err)

	require.NoError(t, deps.worker.handleKYCReviewed(payload))
	waitForMail(t, deps.mailer)
	deps.wg.Wait()
}

func TestHandleLoanStatus(t *testing.T) {
	deps := newTestWorker()

	deps.activity.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)
	deps.users.On("GetOne", "user-1").Return(&models.User{ID: "user-1", Email: "ada@example.com", Name: "ada"}, true, nil)
	deps.mailer.On("Send", "ada@example.com", mock.Anything, []string{"loan-status.tmpl"}).Return(nil)

	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(stream.LoanStatusEvent{
		LoanID:            "loan-1",
		BorrowerID:        "user-1",
		Status:            models.LoanStatusFunded,
		RepaymentDeadline: &deadline,
	})
	require.NoError(t, err)

	require.NoError(t, deps.worker.handleLoanStatus(payload))
	waitForMail(t, deps.mailer)
	deps.wg.Wait()
}

func TestHandleLoanStatus_AppliedIsNotMailed(t *testing.T) {
	deps := newTestWorker()

	deps.activity.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)

	payload, err := json.Marshal(stream.LoanStatusEvent{LoanID: "loan-1", BorrowerID: "user-1", Status: models.LoanStatusApplied})
	require.NoError(t, err)

	require.NoError(t, deps.worker.handleLoanStatus(payload))
	deps.users.AssertNotCalled(t, "GetOne", mock.Anything)
	deps.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}
