package handler

import (
	dctx "context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/trustbond/api/internal/context"
	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/helper"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/request"
	"github.com/trustbond/api/internal/response"
	"github.com/trustbond/api/internal/trust"
	"github.com/trustbond/api/internal/validator"
)

const UserActivityLogProfileUpdateDescription = "Profile updated"

var ErrWalletInUse = errors.New("wallet address is already linked to another account")

type UserResponseData struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	MFAEnabled    bool      `json:"mfa_enabled"`
	KYCStatus     string    `json:"kyc_status"`
	Status        string    `json:"status"`
	DashboardPath string    `json:"dashboard_path"`
	CreatedAt     time.Time `json:"created_at"`
}

func newUserResponseData(user *models.User) UserResponseData {
	return UserResponseData{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		WalletAddress: nullStringValue(user.WalletAddress),
		MFAEnabled:    user.MFAEnabled,
		KYCStatus:     user.KYCStatus,
		Status:        user.Status,
		DashboardPath: models.DashboardPath(user.Role),
		CreatedAt:     user.CreatedAt,
	}
}

// TrustScorer resolves a user's trust score.
type TrustScorer interface {
	Score(ctx dctx.Context, user *models.User) (trust.Score, error)
}

type UserHandler struct {
	UserRepo     repository.UserRepository
	ActivityRepo repository.ActivityRepository
	Trust        TrustScorer
	Helper       *helper.HelperRepository
	ErrHandler   *errHandler.ErrorHandler
}

func NewUserHandler(handler *UserHandler) *UserHandler {
	return &UserHandler{
		UserRepo:     handler.UserRepo,
		ActivityRepo: handler.ActivityRepo,
		Trust:        handler.Trust,
		Helper:       handler.Helper,
		ErrHandler:   handler.ErrHandler,
	}
}

func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	err := response.JSONOkResponse(w, newUserResponseData(user), "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleUpdateMe changes the editable profile fields. Fields left out of the
// body keep their value; role and KYC status are never editable here.
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name          *string             `json:"name"`
		WalletAddress *string             `json:"wallet_address"`
		MFAEnabled    *bool               `json:"mfa_enabled"`
		Validator     validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	user := *context.ContextGetAuthenticatedUser(r)

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		input.Validator.Check(validator.MinRunes(name, 2), "Name is too short")
		input.Validator.Check(validator.MaxRunes(name, 100), "Name is too long")
		user.Name = name
	}

	// an address is only bound through a signed wallet approval; here it can be unlinked
	if input.WalletAddress != nil {
		input.Validator.Check(strings.TrimSpace(*input.WalletAddress) == "", "Wallet address can only be linked by connecting the wallet")
		user.WalletAddress = sql.NullString{}
	}

	if input.MFAEnabled != nil {
		user.MFAEnabled = *input.MFAEnabled
	}

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	err = h.UserRepo.UpdateProfile(&user)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(&models.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogUserEntity,
			EntityId:    user.ID,
			Description: UserActivityLogProfileUpdateDescription,
		})
		return err
	})

	err = response.JSONOkResponse(w, newUserResponseData(&user), "Profile updated successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleListActivity pages through the user's audit trail, newest first.
func (h *UserHandler) HandleListActivity(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)
	query := retrieveUrlQueryValues(r)

	logs, err := h.ActivityRepo.GetAllByUser(user.ID, query.Limit, query.Offset)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := response.Paginated[models.ActivityLog]{
		Items: logs,
		Page:  query.Page,
		Limit: query.Limit,
	}

	err = response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *UserHandler) HandleTrustScore(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	score, err := h.Trust.Score(r.Context(), user)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, score, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
