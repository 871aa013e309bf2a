package handler

import (
	"net/http"
	"time"

	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/response"
	"github.com/trustbond/api/internal/validator"
)

type RoleAssignmentResponseData struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type AdminHandler struct {
	UserRepo   repository.UserRepository
	RoleRepo   repository.RoleAssignmentRepository
	ErrHandler *errHandler.ErrorHandler
}

func NewAdminHandler(handler *AdminHandler) *AdminHandler {
	return &AdminHandler{
		UserRepo:   handler.UserRepo,
		RoleRepo:   handler.RoleRepo,
		ErrHandler: handler.ErrHandler,
	}
}

// HandleListUsers lists profiles, optionally narrowed with ?role.
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	query := retrieveUrlQueryValues(r)

	if query.Role != "" && !validator.PermittedValue(query.Role, models.RoleUser, models.RoleBank, models.RoleAdmin) {
		h.ErrHandler.FailedValidation(w, r, []string{"Role must be one of user, bank or admin"})
		return
	}

	users, err := h.UserRepo.GetAll(query.Role, query.Limit, query.Offset)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	items := make([]UserResponseData, len(users))
	for i := range users {
		items[i] = newUserResponseData(&users[i])
	}

	data := response.Paginated[UserResponseData]{
		Items: items,
		Page:  query.Page,
		Limit: query.Limit,
	}

	err = response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *AdminHandler) HandleListRoleAssignments(w http.ResponseWriter, r *http.Request) {
	query := retrieveUrlQueryValues(r)

	assignments, err := h.RoleRepo.GetAll(query.Limit, query.Offset)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	items := make([]RoleAssignmentResponseData, len(assignments))
	for i, assignment := range assignments {
		items[i] = RoleAssignmentResponseData{
			ID:         assignment.ID,
			UserID:     assignment.UserID,
			Email:      assignment.Email,
			Role:       assignment.Role,
			AssignedBy: nullStringValue(assignment.AssignedBy),
			CreatedAt:  assignment.CreatedAt,
		}
	}

	data := response.Paginated[RoleAssignmentResponseData]{
		Items: items,
		Page:  query.Page,
		Limit: query.Limit,
	}

	err = response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
