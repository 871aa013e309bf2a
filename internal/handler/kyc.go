package handler

import (
	dctx "context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/trustbond/api/internal/context"
	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/file"
	"github.com/trustbond/api/internal/helper"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/realtime"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/request"
	"github.com/trustbond/api/internal/response"
	"github.com/trustbond/api/internal/stream"
	"github.com/trustbond/api/internal/validator"
)

const (
	KYCActivityLogSubmittedDescription = "KYC document submitted"

	kycUploadFolder   = "kyc"
	kycMaxUploadBytes = 10 << 20 // 10 MB
)

var ErrOpenKYCSubmission = errors.New("a KYC submission is already awaiting review")

type KYCResponseData struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	DocumentType       string     `json:"document_type"`
	DocumentNumber     string     `json:"document_number"`
	DocumentHash       string     `json:"document_hash"`
	DocumentURL        string     `json:"document_url,omitempty"`
	VerificationStatus string     `json:"verification_status"`
	Notes              string     `json:"notes,omitempty"`
	VerifiedBy         string     `json:"verified_by,omitempty"`
	SubmittedAt        time.Time  `json:"submitted_at"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
}

func newKYCResponseData(submission *models.KYCSubmission) KYCResponseData {
	data := KYCResponseData{
		ID:                 submission.ID,
		UserID:             submission.UserID,
		DocumentType:       submission.DocumentType,
		DocumentNumber:     submission.DocumentNumber,
		DocumentHash:       submission.DocumentHash,
		DocumentURL:        nullStringValue(submission.DocumentURL),
		VerificationStatus: submission.VerificationStatus,
		Notes:              nullStringValue(submission.Notes),
		VerifiedBy:         nullStringValue(submission.VerifiedBy),
		SubmittedAt:        submission.SubmittedAt,
	}

	if submission.VerifiedAt.Valid {
		verifiedAt := submission.VerifiedAt.Time
		data.VerifiedAt = &verifiedAt
	}

	return data
}

// KYCVerifier answers whether an address passed KYC on chain.
type KYCVerifier interface {
	IsKYCVerified(ctx dctx.Context, account string) (bool, error)
}

type KYCHandler struct {
	DB           TxBeginner
	KYCRepo      repository.KYCSubmissionRepository
	UserRepo     repository.UserRepository
	ActivityRepo repository.ActivityRepository
	Uploader     file.Uploader
	Verifier     KYCVerifier
	Publisher    EventPublisher
	Hub          *realtime.Hub
	Helper       *helper.HelperRepository
	ErrHandler   *errHandler.ErrorHandler
	Logger       *slog.Logger
}

func NewKYCHandler(handler *KYCHandler) *KYCHandler {
	return &KYCHandler{
		DB:           handler.DB,
		KYCRepo:      handler.KYCRepo,
		UserRepo:     handler.UserRepo,
		ActivityRepo: handler.ActivityRepo,
		Uploader:     handler.Uploader,
		Verifier:     handler.Verifier,
		Publisher:    handler.Publisher,
		Hub:          handler.Hub,
		Helper:       handler.Helper,
		ErrHandler:   handler.ErrHandler,
		Logger:       handler.Logger,
	}
}

// HandleSubmitKYC accepts a multipart KYC upload, fingerprints the document
// and queues it for a bank verifier.
func (h *KYCHandler) HandleSubmitKYC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, kycMaxUploadBytes+1<<20)

	err := r.ParseMultipartForm(kycMaxUploadBytes)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, errors.New("invalid request data"))
		return
	}

	user := context.ContextGetAuthenticatedUser(r)

	var v validator.Validator

	documentType := strings.TrimSpace(r.FormValue("document_type"))
	documentNumber := strings.TrimSpace(r.FormValue("document_number"))

	v.Check(validator.PermittedValue(documentType, models.DocumentTypes...), "Document type is not supported")
	v.Check(validator.MinRunes(documentNumber, 4), "Document number must be at least 4 characters")
	v.Check(validator.MaxRunes(documentNumber, 64), "Document number must not be more than 64 characters")
	v.Check(user.KYCStatus != models.KYCStatusVerified, "KYC is already verified")

	upload, header, err := r.FormFile("file")
	if err != nil {
		v.AddError("Document file is required")
	} else {
		defer upload.Close()
	}

	if v.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, v.Errors)
		return
	}

	open, err := h.KYCRepo.HasOpenSubmission(user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if open {
		h.ErrHandler.Conflict(w, r, ErrOpenKYCSubmission)
		return
	}

	// Save the file temporarily so it can be hashed and handed to the uploader
	tempFile, err := os.CreateTemp("", fmt.Sprintf("kyc-*%s", filepath.Ext(header.Filename)))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	content, err := io.ReadAll(upload)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, errors.New("error retrieving the file"))
		return
	}

	if _, err = tempFile.Write(content); err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	submission := &models.KYCSubmission{
		UserID:         user.ID,
		DocumentType:   documentType,
		DocumentNumber: documentNumber,
		DocumentHash:   models.DocumentHash(documentType, documentNumber, content),
	}

	documentURL, err := h.Uploader.UploadFile(r.Context(), tempFile.Name(), kycUploadFolder)
	switch {
	case errors.Is(err, file.ErrUploaderNotConfigured):
		h.Logger.Warn("kyc document kept without storage", "user_id", user.ID, "document_hash", submission.DocumentHash)
	case err != nil:
		h.ErrHandler.ServerError(w, r, err)
		return
	default:
		submission.DocumentURL = sql.NullString{String: documentURL, Valid: true}
	}

	tx, err := h.DB.BeginTx(r.Context(), nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	created, err := h.KYCRepo.Insert(submission, tx)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	err = h.UserRepo.UpdateKYCStatus(user.ID, models.KYCStatusPending, tx)
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
			UserID:      user.ID,
			Entity:      repository.ActivityLogKYCEntity,
			EntityId:    created.ID,
			Description: KYCActivityLogSubmittedDescription,
		})
		return err
	})

	err = response.JSONCreatedResponse(w, newKYCResponseData(created), "KYC document submitted for review")
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *KYCHandler) HandleListOwnKYC(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	submissions, err := h.KYCRepo.GetAllByUser(user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := make([]KYCResponseData, len(submissions))
	for i := range submissions {
		data[i] = newKYCResponseData(&submissions[i])
	}

	err = response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleListPendingKYC is the verifier queue, oldest first.
func (h *KYCHandler) HandleListPendingKYC(w http.ResponseWriter, r *http.Request) {
	query := retrieveUrlQueryValues(r)

	submissions, err := h.KYCRepo.GetPending(query.Limit, query.Offset)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	items := make([]KYCResponseData, len(submissions))
	for i := range submissions {
		items[i] = newKYCResponseData(&submissions[i])
	}

	data := response.Paginated[KYCResponseData]{
		Items: items,
		Page:  query.Page,
		Limit: query.Limit,
	}

	err = response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *KYCHandler) HandleVerifyKYC(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.VerificationStatusVerified)
}

func (h *KYCHandler) HandleRejectKYC(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.VerificationStatusRejected)
}

// review settles a pending submission and mirrors the outcome on the profile.
// A submission already reviewed by someone else yields an edit conflict.
func (h *KYCHandler) review(w http.ResponseWriter, r *http.Request, status string) {
	var input struct {
		Notes string `json:"notes"`
	}

	// the body is optional for verify
	if r.ContentLength > 0 {
		if err := request.DecodeJSON(w, r, &input); err != nil {
			h.ErrHandler.BadRequest(w, r, err)
			return
		}
	}

	var v validator.Validator
	v.Check(validator.MaxRunes(input.Notes, 1000), "Notes must not be more than 1000 characters")
	v.Check(status != models.VerificationStatusRejected || validator.NotBlank(input.Notes), "Notes are required when rejecting a submission")

	if v.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, v.Errors)
		return
	}

	reviewer := context.ContextGetAuthenticatedUser(r)

	submission, found, err := h.KYCRepo.GetOne(r.PathValue("id"))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.NotFound(w, r)
		return
	}

	if submission.VerificationStatus != models.VerificationStatusPending {
		h.ErrHandler.EditConflict(w, r)
		return
	}

	notes := sql.NullString{String: input.Notes, Valid: input.Notes != ""}

	tx, err := h.DB.BeginTx(r.Context(), nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	var reviewed bool

	defer func() {
		if err != nil || !reviewed {
			tx.Rollback()
		}
	}()

	reviewed, err = h.KYCRepo.Review(submission.ID, status, reviewer.ID, notes, tx)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !reviewed {
		h.ErrHandler.EditConflict(w, r)
		return
	}

	err = h.UserRepo.UpdateKYCStatus(submission.UserID, models.ProfileKYCStatus(status), tx)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if err = tx.Commit(); err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	submission.VerificationStatus = status
	submission.Notes = notes
	submission.VerifiedBy = sql.NullString{String: reviewer.ID, Valid: true}
	submission.VerifiedAt = sql.NullTime{Time: time.Now(), Valid: true}

	event := stream.KYCReviewedEvent{
		SubmissionID: submission.ID,
		UserID:       submission.UserID,
		ReviewerID:   reviewer.ID,
		DocumentType: submission.DocumentType,
		DocumentHash: submission.DocumentHash,
		Status:       status,
		Notes:        input.Notes,
	}

	h.Hub.Publish(realtime.Event{
		Type:    realtime.EventKYCReviewed,
		Topic:   realtime.UserTopic(submission.UserID),
		Payload: event,
	})

	h.Helper.BackgroundTask(r, func() error {
		return h.Publisher.PublishJSON(stream.KYCReviewedTopic, submission.UserID, event)
	})

	err = response.JSONOkResponse(w, newKYCResponseData(submission), "KYC submission "+status, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleKYCStatus reports whether an address is KYC verified. The verifier
// contract is authoritative; without one the linked profile is used.
func (h *KYCHandler) HandleKYCStatus(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	if !validator.IsEthAddress(address) {
		h.ErrHandler.UnprocessableEntity(w, r, errors.New("address must be 0x followed by 40 hex characters"))
		return
	}

	data := map[string]any{
		"address": address,
		"source":  "contract",
	}

	verified, err := h.Verifier.IsKYCVerified(r.Context(), address)
	if err != nil {
		h.Logger.Warn("kyc verifier read failed, using profile", "address", address, "error", err.Error())

		user, found, err := h.UserRepo.GetByWalletAddress(address)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}

		verified = found && user.IsKYCVerified()
		data["source"] = "profile"
	}

	data["verified"] = verified

	err = response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
