package handler

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trustbond/api/internal/chain"
	"github.com/trustbond/api/internal/mocks"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/realtime"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/stream"
	"github.com/trustbond/api/internal/tracker"
)

const (
	testAccount = "0x52908400098527886e0f7030069857d2e4169ee7"
	testHash    = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"
)

type transactionFixture struct {
	deps      *testDeps
	handler   *TransactionHandler
	repo      *mocks.MockTransactionRepo
	tracker   *tracker.Tracker
	publisher *mocks.MockPublisher
	hub       *realtime.Hub
}

func newTransactionFixture(t *testing.T) *transactionFixture {
	deps := newTestDeps()
	repo := new(mocks.MockTransactionRepo)

	// receipts never arrive within a test
	client := chain.NewSimulatedClient(1337, time.Hour)
	trk := tracker.New(repo, client, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(trk.Shutdown)

	f := &transactionFixture{
		deps:      deps,
		repo:      repo,
		tracker:   trk,
		publisher: &mocks.MockPublisher{},
		hub:       realtime.NewHub(4),
	}

	f.handler = NewTransactionHandler(&TransactionHandler{
		Tracker:         trk,
		TransactionRepo: repo,
		Publisher:       f.publisher,
		Hub:             f.hub,
		DefaultChainID:  11155111,
		Helper:          deps.helper,
		ErrHandler:      deps.errHandler,
	})

	return f
}

func walletUser() *models.User {
	return &models.User{
		ID:            "user-123",
		Role:          models.RoleUser,
		WalletAddress: sql.NullString{String: testAccount, Valid: true},
	}
}

func TestHandleSubmitTransaction_Created(t *testing.T) {
	f := newTransactionFixture(t)
	user := walletUser()

	sub := f.hub.Subscribe(realtime.UserTopic(user.ID))
	defer sub.Close()

	f.repo.On("Insert", mock.MatchedBy(func(tx *models.BlockchainTransaction) bool {
		return tx.Hash == testHash && tx.Account == testAccount && tx.Network == "Sepolia" && tx.Type == "loan_repayment"
	})).Return(&models.BlockchainTransaction{
		ID:          "tx-1",
		Hash:        testHash,
		Account:     testAccount,
		UserID:      sql.NullString{String: user.ID, Valid: true},
		Type:        "loan_repayment",
		Description: "Repay loan",
		Network:     "Sepolia",
		Status:      models.TransactionStatusPending,
		Timestamp:   time.Now(),
	}, nil)

	rr := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/transactions", map[string]any{
		"hash":        strings.ToUpper(testHash[:2]) + testHash[2:],
		"type":        "loan_repayment",
		"description": "Repay loan",
		"metadata":    map[string]any{"loan_id": "loan-1"},
	})
	f.handler.HandleSubmitTransaction(rr, withUser(req, user))
	waitGroupTimeout(t, f.deps.wg)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var data TransactionResponseData
	decodeData(t, rr, &data)
	assert.Equal(t, models.TransactionStatusPending, data.Status)
	assert.Equal(t, "https://sepolia.etherscan.io/tx/"+testHash, data.ExplorerURL)
	assert.True(t, f.tracker.IsWatching(testHash, testAccount))

	select {
	case event := <-sub.C:
		assert.Equal(t, realtime.EventTransactionSubmitted, event.Type)
	default:
		t.Fatal("expected a realtime event")
	}

	published := f.publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, stream.TransactionSubmittedTopic, published[0].Topic)
}

func TestHandleSubmitTransaction_Rejections(t *testing.T) {
	t.Run("no wallet", func(t *testing.T) {
		f := newTransactionFixture(t)

		rr := httptest.NewRecorder()
		req := newJSONRequest(t, http.MethodPost, "/transactions", map[string]any{"hash": testHash})
		f.handler.HandleSubmitTransaction(rr, withUser(req, &models.User{ID: "user-1"}))

		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), ErrWalletRequired.Error())
	})

	t.Run("malformed hash", func(t *testing.T) {
		f := newTransactionFixture(t)

		rr := httptest.NewRecorder()
		req := newJSONRequest(t, http.MethodPost, "/transactions", map[string]any{"hash": "0x1234"})
		f.handler.HandleSubmitTransaction(rr, withUser(req, walletUser()))

		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		f.repo.AssertNotCalled(t, "Insert", mock.Anything)
	})

	t.Run("unknown type", func(t *testing.T) {
		f := newTransactionFixture(t)

		rr := httptest.NewRecorder()
		req := newJSONRequest(t, http.MethodPost, "/transactions", map[string]any{"hash": testHash, "type": "mint"})
		f.handler.HandleSubmitTransaction(rr, withUser(req, walletUser()))

		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("already tracked", func(t *testing.T) {
		f := newTransactionFixture(t)
		f.repo.On("Insert", mock.Anything).Return(nil, repository.ErrDuplicateRecord)

		rr := httptest.NewRecorder()
		req := newJSONRequest(t, http.MethodPost, "/transactions", map[string]any{"hash": testHash})
		f.handler.HandleSubmitTransaction(rr, withUser(req, walletUser()))

		require.Equal(t, http.StatusConflict, rr.Code)
		assert.Empty(t, f.publisher.Published())
	})
}

func TestHandleGetTransaction(t *testing.T) {
	f := newTransactionFixture(t)
	user := walletUser()

	settled := &models.BlockchainTransaction{
		ID:          "tx-1",
		Hash:        testHash,
		Account:     testAccount,
		Status:      models.TransactionStatusConfirmed,
		BlockNumber: sql.NullInt64{Int64: 42, Valid: true},
		Timestamp:   time.Now(),
	}
	f.repo.On("GetByHash", testHash, testAccount, "user-123").Return(settled, true, nil)

	req := httptest.NewRequest(http.MethodGet, "/transactions/"+testHash, nil)
	req.SetPathValue("hash", testHash)

	rr := httptest.NewRecorder()
	f.handler.HandleGetTransaction(rr, withUser(req, user))

	require.Equal(t, http.StatusOK, rr.Code)

	var data TransactionResponseData
	decodeData(t, rr, &data)
	require.NotNil(t, data.BlockNumber)
	assert.EqualValues(t, 42, *data.BlockNumber)
	assert.Empty(t, data.ExplorerURL)
	assert.Equal(t, models.TransactionStatusConfirmed, data.Status)
}

func TestHandleListTransactions_WithoutWalletIsEmpty(t *testing.T) {
	f := newTransactionFixture(t)

	rr := httptest.NewRecorder()
	f.handler.HandleListTransactions(rr, withUser(httptest.NewRequest(http.MethodGet, "/transactions", nil), &models.User{ID: "user-1"}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"items":[]`)
	f.repo.AssertNotCalled(t, "GetAllByAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleClearTransactions(t *testing.T) {
	f := newTransactionFixture(t)
	f.repo.On("DeleteAllByAccount", testAccount, "user-123").Return(int64(3), nil)

	rr := httptest.NewRecorder()
	f.handler.HandleClearTransactions(rr, withUser(httptest.NewRequest(http.MethodDelete, "/transactions", nil), walletUser()))

	require.Equal(t, http.StatusOK, rr.Code)

	var data map[string]int
	decodeData(t, rr, &data)
	assert.Equal(t, 3, data["deleted"])
}

func TestTransactionHistory_ScopedToProfile(t *testing.T) {
	f := newTransactionFixture(t)

	// a later profile holding the same address sees none of the earlier owner's rows
	other := &models.User{
		ID:            "user-456",
		Role:          models.RoleUser,
		WalletAddress: sql.NullString{String: testAccount, Valid: true},
	}
	f.repo.On("GetAllByAccount", testAccount, other.ID, 10, 0).Return([]models.BlockchainTransaction{}, nil)
	f.repo.On("GetByHash", testHash, testAccount, other.ID).Return(nil, false, nil)
	f.repo.On("DeleteAllByAccount", testAccount, other.ID).Return(int64(0), nil)

	rr := httptest.NewRecorder()
	f.handler.HandleListTransactions(rr, withUser(httptest.NewRequest(http.MethodGet, "/transactions", nil), other))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"items":[]`)

	req := httptest.NewRequest(http.MethodGet, "/transactions/"+testHash, nil)
	req.SetPathValue("hash", testHash)
	rr = httptest.NewRecorder()
	f.handler.HandleGetTransaction(rr, withUser(req, other))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	f.handler.HandleClearTransactions(rr, withUser(httptest.NewRequest(http.MethodDelete, "/transactions", nil), other))
	require.Equal(t, http.StatusOK, rr.Code)

	var data map[string]int
	decodeData(t, rr, &data)
	assert.Equal(t, 0, data["deleted"])

	f.repo.AssertNotCalled(t, "DeleteAllByAccount", testAccount, "user-123")
	f.repo.AssertExpectations(t)
}

func TestHandleTransactionEvents_StreamsUserEvents(t *testing.T) {
	f := newTransactionFixture(t)
	user := walletUser()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.handler.HandleTransactionEvents(w, withUser(r, user))
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return f.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	// events for other users are not delivered
	f.hub.Publish(realtime.Event{Type: realtime.EventKYCReviewed, Topic: realtime.UserTopic("someone-else")})
	f.hub.Publish(realtime.Event{
		Type:    realtime.EventTransactionSettled,
		Topic:   realtime.UserTopic(user.ID),
		Payload: map[string]string{"hash": testHash, "status": "confirmed"},
	})

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)

		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}

	assert.Equal(t, realtime.EventTransactionSettled, eventLine)

	var event struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(dataLine), &event))
	assert.Equal(t, "confirmed", event.Payload["status"])
}
