package handler

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/trustbond/api/internal/config"
	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/helper"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/request"
	"github.com/trustbond/api/internal/response"
	"github.com/trustbond/api/internal/smtp"
	"github.com/trustbond/api/internal/validator"

	"github.com/cradoe/gopass"
	"github.com/pascaldekloe/jwt"
)

const (
	UserActivityLogRegistrationDescription  = "User registration"
	UserActivityLogLoginDescription         = "Login successful"
	UserActivityLogFailedLoginDescription   = "Failed login attempt"
	UserActivityLogLockedAccountDescription = "Account locked after consecutive failed logins"

	tokenLifetime = 24 * time.Hour

	// the account locks on this many consecutive failures
	maxFailedLoginAttempts = 3
)

type AuthHandler struct {
	DB           TxBeginner
	UserRepo     repository.UserRepository
	RoleRepo     repository.RoleAssignmentRepository
	ActivityRepo repository.ActivityRepository
	Helper       *helper.HelperRepository
	Mailer       smtp.MailerInterface
	Config       *config.Config
	ErrHandler   *errHandler.ErrorHandler
}

func NewAuthHandler(handler *AuthHandler) *AuthHandler {
	return &AuthHandler{
		DB:           handler.DB,
		UserRepo:     handler.UserRepo,
		RoleRepo:     handler.RoleRepo,
		ActivityRepo: handler.ActivityRepo,
		Helper:       handler.Helper,
		Mailer:       handler.Mailer,
		Config:       handler.Config,
		ErrHandler:   handler.ErrHandler,
	}
}

// New profile registration involves:
// Input validations and checking that the email has not been used before.
// We then start a database transaction to insert the profile and its role assignment together,
// so a failure at any point rolls both back.
func (h *AuthHandler) HandleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email     string              `json:"email"`
		Password  string              `json:"password"`
		Name      string              `json:"name"`
		Role      string              `json:"role"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if input.Role == "" {
		input.Role = models.RoleUser
	}

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")

	input.Validator.Check(validator.NotBlank(input.Name), "Name is required")
	input.Validator.Check(validator.MinRunes(input.Name, 2), "Name is too short")
	input.Validator.Check(validator.MaxRunes(input.Name, 100), "Name is too long")

	input.Validator.Check(validator.PermittedValue(input.Role, models.SelfRegistrableRoles...), "Role must be either user or bank")

	input.Validator.Check(validator.MinRunes(input.Password, validator.MinPasswordLength), "Password must be at least 8 characters")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	// the Validate function returns a slice of errors if the password does not meet the requirements
	_, errs := gopass.Validate(input.Password)
	if errs != nil {
		h.ErrHandler.FailedValidation(w, r, errs)
		return
	}

	_, found, err := h.UserRepo.GetByEmail(input.Email)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if found {
		input.Validator.AddError("Email is already in use")
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	hashedPassword, err := gopass.Hash(input.Password)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	tx, err := h.DB.BeginTx(r.Context(), nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	defer func() {
		// always make sure it rollback, if there is an error
		// ...and the transaction is not committed
		if err != nil {
			tx.Rollback()
		}
	}()

	createdUser := &models.User{
		Email:          input.Email,
		Name:           input.Name,
		Role:           input.Role,
		HashedPassword: hashedPassword,
	}

	userID, err := h.UserRepo.Insert(createdUser, tx)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRecord) {
			input.Validator.AddError("Email is already in use")
			h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
			return
		}
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = h.RoleRepo.Insert(userID, input.Role, sql.NullString{}, tx)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if err = tx.Commit(); err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(&models.ActivityLog{
			UserID:      userID,
			Entity:      repository.ActivityLogUserEntity,
			EntityId:    userID,
			Description: UserActivityLogRegistrationDescription,
		})

		if err != nil {
			log.Printf("Error logging user registration action: %v", err)
			return err
		}

		return nil
	})

	h.Helper.BackgroundTask(r, func() error {
		emailData := h.Helper.NewEmailData()
		emailData["Name"] = createdUser.Name
		emailData["Role"] = createdUser.Role

		return h.Mailer.Send(createdUser.Email, emailData, "welcome.tmpl")
	})

	data := map[string]any{
		"id":          userID,
		"email":       createdUser.Email,
		"role":        createdUser.Role,
		"redirect_to": models.DashboardPath(createdUser.Role),
	}

	err = response.JSONCreatedResponse(w, data, "Account created successfully")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *AuthHandler) HandleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email     string              `json:"email"`
		Password  string              `json:"password"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")
	input.Validator.Check(validator.NotBlank(input.Password), "Password is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	user, found, err := h.UserRepo.GetByEmail(input.Email)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		input.Validator.AddError("Incorrect email/password")
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	if user.Status != repository.UserAccountActiveStatus {
		h.ErrHandler.AccountLocked(w, r)
		return
	}

	passwordMatches, err := gopass.ComparePasswordAndHash(input.Password, user.HashedPassword)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !passwordMatches {
		// count before logging this attempt; the insert runs in the background
		count := h.ActivityRepo.CountConsecutiveFailedLoginAttempts(user.ID, UserActivityLogFailedLoginDescription)

		h.Helper.BackgroundTask(r, func() error {
			_, err := h.ActivityRepo.Insert(&models.ActivityLog{
				UserID:      user.ID,
				Entity:      repository.ActivityLogUserEntity,
				EntityId:    user.ID,
				Description: UserActivityLogFailedLoginDescription,
			})
			return err
		})

		if count >= maxFailedLoginAttempts-1 {
			h.Helper.BackgroundTask(r, func() error {
				if err := h.UserRepo.Lock(user.ID); err != nil {
					log.Printf("Error locking account due to failed login action: %v", err)
					return err
				}

				_, err := h.ActivityRepo.Insert(&models.ActivityLog{
					UserID:      user.ID,
					Entity:      repository.ActivityLogUserEntity,
					EntityId:    user.ID,
					Description: UserActivityLogLockedAccountDescription,
				})
				return err
			})

			h.ErrHandler.AccountLocked(w, r)
			return
		}

		input.Validator.AddError("Incorrect email/password")
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.ActivityRepo.Insert(&models.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogUserEntity,
			EntityId:    user.ID,
			Description: UserActivityLogLoginDescription,
		})

		if err != nil {
			log.Printf("Error logging successful login action: %v", err)
			return err
		}

		return nil
	})

	token, expiry, err := h.issueToken(user)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]string{
		"auth_token":   token,
		"token_expiry": expiry.Format(time.RFC3339),
		"role":         user.Role,
		"redirect_to":  models.DashboardPath(user.Role),
	}

	err = response.JSONOkResponse(w, data, "Login successful", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *AuthHandler) issueToken(user *models.User) (string, time.Time, error) {
	var claims jwt.Claims
	claims.Subject = user.ID

	now := time.Now()
	expiry := now.Add(tokenLifetime)
	claims.Issued = jwt.NewNumericTime(now)
	claims.NotBefore = jwt.NewNumericTime(now)
	claims.Expires = jwt.NewNumericTime(expiry)

	claims.Issuer = h.Config.BaseURL
	claims.Audiences = []string{h.Config.BaseURL}
	claims.Set = map[string]any{"role": user.Role}

	jwtBytes, err := claims.HMACSign(jwt.HS256, []byte(h.Config.Jwt.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}

	return string(jwtBytes), expiry, nil
}
