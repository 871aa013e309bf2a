package handler

import (
	dctx "context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/trustbond/api/internal/chain"
	"github.com/trustbond/api/internal/context"
	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/helper"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/request"
	"github.com/trustbond/api/internal/response"
	"github.com/trustbond/api/internal/validator"
	"github.com/trustbond/api/internal/wallet"
)

const (
	WalletActivityLogConnectedDescription    = "Wallet connected"
	WalletActivityLogDisconnectedDescription = "Wallet disconnected"
)

type WalletHandler struct {
	Wallets      *wallet.Manager
	UserRepo     repository.UserRepository
	ActivityRepo repository.ActivityRepository
	Helper       *helper.HelperRepository
	ErrHandler   *errHandler.ErrorHandler
}

func NewWalletHandler(handler *WalletHandler) *WalletHandler {
	return &WalletHandler{
		Wallets:      handler.Wallets,
		UserRepo:     handler.UserRepo,
		ActivityRepo: handler.ActivityRepo,
		Helper:       handler.Helper,
		ErrHandler:   handler.ErrHandler,
	}
}

func (h *WalletHandler) HandleNetworks(w http.ResponseWriter, r *http.Request) {
	err := response.JSONOkResponse(w, chain.SupportedNetworks(), "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WalletHandler) HandleGetWallet(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	session, err := h.Wallets.Get(r.Context(), user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.respond(w, r, session, "")
}

func (h *WalletHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Address   string              `json:"address"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.IsEthAddress(input.Address), "Address must be a valid ethereum address")
	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	owner, found, err := h.UserRepo.GetByWalletAddress(input.Address)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if found && owner.ID != user.ID {
		h.ErrHandler.Conflict(w, r, ErrWalletInUse)
		return
	}

	session, err := h.Wallets.Connect(r.Context(), user.ID, input.Address)
	if err != nil {
		h.walletError(w, r, err)
		return
	}

	h.respond(w, r, session, "Sign the message with your wallet to finish connecting")
}

func (h *WalletHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Signature string              `json:"signature"`
		ChainID   int64               `json:"chain_id"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Signature), "Signature is required")
	input.Validator.Check(input.ChainID > 0, "Chain id is required")
	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	session, err := h.Wallets.Approve(r.Context(), user.ID, input.Signature, input.ChainID)
	if err != nil {
		h.walletError(w, r, err)
		return
	}

	// the connected address becomes the profile's wallet
	if !user.WalletAddress.Valid || !chain.SameAddress(user.WalletAddress.String, session.Address) {
		updated := *user
		updated.WalletAddress = sql.NullString{String: session.Address, Valid: true}

		err = h.UserRepo.UpdateProfile(&updated)
		if err != nil {
			if _, disconnectErr := h.Wallets.Disconnect(r.Context(), user.ID); disconnectErr != nil {
				h.ErrHandler.ReportServerError(r, disconnectErr)
			}

			if errors.Is(err, repository.ErrDuplicateRecord) {
				h.ErrHandler.Conflict(w, r, ErrWalletInUse)
				return
			}
			h.ErrHandler.ServerError(w, r, err)
			return
		}
	}

	h.logActivity(r, user.ID, WalletActivityLogConnectedDescription)
	h.respond(w, r, session, "Wallet connected")
}

func (h *WalletHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Reason string `json:"reason"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	session, err := h.Wallets.Reject(r.Context(), user.ID, input.Reason)
	if err != nil {
		h.walletError(w, r, err)
		return
	}

	h.respond(w, r, session, "")
}

// HandleNetworkChanged records a chainChanged event from the wallet provider.
func (h *WalletHandler) HandleNetworkChanged(w http.ResponseWriter, r *http.Request) {
	h.handleNetwork(w, r, h.Wallets.ChangeNetwork)
}

func (h *WalletHandler) HandleSwitchNetwork(w http.ResponseWriter, r *http.Request) {
	h.handleNetwork(w, r, h.Wallets.SwitchNetwork)
}

func (h *WalletHandler) handleNetwork(w http.ResponseWriter, r *http.Request, update func(ctx dctx.Context, userID string, chainID int64) (*wallet.Session, error)) {
	var input struct {
		ChainID   int64               `json:"chain_id"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(input.ChainID > 0, "Chain id is required")
	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	session, err := update(r.Context(), user.ID, input.ChainID)
	if err != nil {
		h.walletError(w, r, err)
		return
	}

	h.respond(w, r, session, "")
}

func (h *WalletHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	session, err := h.Wallets.Disconnect(r.Context(), user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.logActivity(r, user.ID, WalletActivityLogDisconnectedDescription)
	h.respond(w, r, session, "Wallet disconnected")
}

func (h *WalletHandler) respond(w http.ResponseWriter, r *http.Request, session *wallet.Session, message string) {
	err := response.JSONOkResponse(w, session, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WalletHandler) walletError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wallet.ErrInvalidTransition),
		errors.Is(err, wallet.ErrNonceUsed):
		h.ErrHandler.Conflict(w, r, err)
	case errors.Is(err, wallet.ErrSignatureMismatch),
		errors.Is(err, wallet.ErrUnsupportedNetwork),
		errors.Is(err, wallet.ErrInvalidAddress):
		h.ErrHandler.UnprocessableEntity(w, r, err)
	default:
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WalletHandler) logActivity(r *http.Request, userID, description string) {
	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(&models.ActivityLog{
			UserID:      userID,
			Entity:      repository.ActivityLogWalletEntity,
			EntityId:    userID,
			Description: description,
		})
		return err
	})
}
