package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
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
	"github.com/trustbond/api/internal/tracker"
	"github.com/trustbond/api/internal/validator"
)

var ErrWalletRequired = errors.New("connect a wallet to your profile first")

const eventStreamKeepAlive = 15 * time.Second

type TransactionResponseData struct {
	ID          string          `json:"id"`
	Hash        string          `json:"hash"`
	Account     string          `json:"account"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Network     string          `json:"network"`
	ExplorerURL string          `json:"explorer_url,omitempty"`
	Status      string          `json:"status"`
	BlockNumber *int64          `json:"block_number,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	SettledAt   *time.Time      `json:"settled_at,omitempty"`
}

func newTransactionResponseData(transaction *models.BlockchainTransaction) TransactionResponseData {
	data := TransactionResponseData{
		ID:          transaction.ID,
		Hash:        transaction.Hash,
		Account:     transaction.Account,
		Type:        transaction.Type,
		Description: transaction.Description,
		Network:     transaction.Network,
		Status:      transaction.Status,
		Timestamp:   transaction.Timestamp,
	}

	if network, ok := chain.NetworkByName(transaction.Network); ok {
		data.ExplorerURL = network.TransactionURL(transaction.Hash)
	}
	if transaction.BlockNumber.Valid {
		blockNumber := transaction.BlockNumber.Int64
		data.BlockNumber = &blockNumber
	}
	if len(transaction.Metadata) > 0 {
		data.Metadata = json.RawMessage(transaction.Metadata)
	}
	if transaction.SettledAt.Valid {
		settledAt := transaction.SettledAt.Time
		data.SettledAt = &settledAt
	}

	return data
}

// trackedAccount is the profile wallet in the lowercase form transactions are
// keyed by.
func trackedAccount(user *models.User) (string, bool) {
	if !user.WalletAddress.Valid || user.WalletAddress.String == "" {
		return "", false
	}
	return strings.ToLower(user.WalletAddress.String), true
}

// TransactionSubmitter hands a broadcast transaction to the receipt tracker.
type TransactionSubmitter interface {
	Submit(transaction *models.BlockchainTransaction) (*models.BlockchainTransaction, error)
}

type TransactionHandler struct {
	Tracker         TransactionSubmitter
	TransactionRepo repository.TransactionRepository
	Publisher       EventPublisher
	Hub             *realtime.Hub
	DefaultChainID  int64
	Helper          *helper.HelperRepository
	ErrHandler      *errHandler.ErrorHandler
}

func NewTransactionHandler(handler *TransactionHandler) *TransactionHandler {
	return &TransactionHandler{
		Tracker:         handler.Tracker,
		TransactionRepo: handler.TransactionRepo,
		Publisher:       handler.Publisher,
		Hub:             handler.Hub,
		DefaultChainID:  handler.DefaultChainID,
		Helper:          handler.Helper,
		ErrHandler:      handler.ErrHandler,
	}
}

// HandleSubmitTransaction records a transaction the client already signed and
// broadcast from its wallet. The row starts pending and the tracker settles it
// from the receipt.
func (h *TransactionHandler) HandleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Hash        string              `json:"hash"`
		Type        string              `json:"type"`
		Description string              `json:"description"`
		ChainID     int64               `json:"chain_id"`
		Metadata    json.RawMessage     `json:"metadata"`
		Validator   validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	account, ok := trackedAccount(user)
	if !ok {
		h.ErrHandler.UnprocessableEntity(w, r, ErrWalletRequired)
		return
	}

	if input.Type == "" {
		input.Type = "other"
	}
	if input.ChainID == 0 {
		input.ChainID = h.DefaultChainID
	}

	input.Validator.Check(validator.IsTxHash(input.Hash), "Hash must be 0x followed by 64 hex characters")
	input.Validator.Check(validator.PermittedValue(input.Type, models.TransactionTypes...), "Type is not a supported transaction type")
	input.Validator.Check(validator.MaxRunes(input.Description, 500), "Description is too long")
	input.Validator.Check(len(input.Metadata) == 0 || json.Valid(input.Metadata), "Metadata must be valid JSON")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	transaction := &models.BlockchainTransaction{
		Hash:        strings.ToLower(input.Hash),
		Account:     account,
		UserID:      sql.NullString{String: user.ID, Valid: true},
		Type:        input.Type,
		Description: input.Description,
		Network:     chain.NetworkName(input.ChainID),
		Metadata:    types.JSONText(input.Metadata),
	}

	created, err := h.Tracker.Submit(transaction)
	if err != nil {
		switch {
		case errors.Is(err, tracker.ErrAlreadyTracked):
			h.ErrHandler.Conflict(w, r, err)
		case errors.Is(err, tracker.ErrInvalidHash), errors.Is(err, tracker.ErrInvalidAccount):
			h.ErrHandler.UnprocessableEntity(w, r, err)
		default:
			h.ErrHandler.ServerError(w, r, err)
		}
		return
	}

	event := stream.NewTransactionEvent(*created)

	h.Hub.Publish(realtime.Event{
		Type:    realtime.EventTransactionSubmitted,
		Topic:   realtime.UserTopic(user.ID),
		Payload: event,
	})

	h.Helper.BackgroundTask(r, func() error {
		return h.Publisher.PublishJSON(stream.TransactionSubmittedTopic, created.Hash, event)
	})

	err = response.JSONCreatedResponse(w, newTransactionResponseData(created), "Transaction submitted")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)
	query := retrieveUrlQueryValues(r)

	items := []TransactionResponseData{}

	if account, ok := trackedAccount(user); ok {
		transactions, err := h.TransactionRepo.GetAllByAccount(account, user.ID, query.Limit, query.Offset)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}

		for i := range transactions {
			items = append(items, newTransactionResponseData(&transactions[i]))
		}
	}

	data := response.Paginated[TransactionResponseData]{
		Items: items,
		Page:  query.Page,
		Limit: query.Limit,
	}

	err := response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)
	hash := strings.ToLower(r.PathValue("hash"))

	account, ok := trackedAccount(user)
	if !ok || !validator.IsTxHash(hash) {
		h.ErrHandler.NotFound(w, r)
		return
	}

	transaction, found, err := h.TransactionRepo.GetByHash(hash, account, user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	err = response.JSONOkResponse(w, newTransactionResponseData(transaction), "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleClearTransactions deletes the tracked history of the user's wallet.
// Pollers for pending rows keep running; their settle update no longer
// matches a row and they stop.
func (h *TransactionHandler) HandleClearTransactions(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	var deleted int64

	if account, ok := trackedAccount(user); ok {
		var err error
		deleted, err = h.TransactionRepo.DeleteAllByAccount(account, user.ID)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}
	}

	err := response.JSONOkResponse(w, map[string]any{"deleted": deleted}, "Transaction history cleared", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleTransactionEvents streams the user's realtime events as server-sent
// events until the client goes away.
func (h *TransactionHandler) HandleTransactionEvents(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	controller := http.NewResponseController(w)

	// the server write timeout would otherwise cut the stream
	if err := controller.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	sub := h.Hub.Subscribe(realtime.UserTopic(user.ID))
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	controller.Flush()

	keepAlive := time.NewTicker(eventStreamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			if err := controller.Flush(); err != nil {
				return
			}
		case event, ok := <-sub.C:
			if !ok {
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				h.ErrHandler.ReportServerError(r, err)
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			if err := controller.Flush(); err != nil {
				return
			}
		}
	}
}
