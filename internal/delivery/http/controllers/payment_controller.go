package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	h "communityevents/internal/delivery/http/helpers"
	"communityevents/internal/delivery/http/middleware"
	"communityevents/internal/domain"
)

// RecordPaymentRequest is the request body for POST /payments.
type RecordPaymentRequest struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
	Month  string  `json:"month"`
	Method string  `json:"method"`
	Notes  string  `json:"notes"`
}

// Validate implements Validator.
func (p RecordPaymentRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(p.UserID) == "" {
		errs = append(errs, "user_id is required")
	}
	if p.Amount < 0 {
		errs = append(errs, "amount must not be negative")
	}
	if strings.TrimSpace(p.Month) == "" {
		errs = append(errs, "month is required")
	}
	return errs
}

type PaymentController struct {
	Logger  *slog.Logger
	Service domain.PaymentService
}

func NewPaymentController(logger *slog.Logger, svc domain.PaymentService) *PaymentController {
	return &PaymentController{
		Logger:  logger,
		Service: svc,
	}
}

// RecordPayment godoc
// @Summary Record a member contribution
// @Description Record a payment for a member. Admins and leaders only. A receipt number is generated server-side.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RecordPaymentRequest true "Payment data"
// @Success 201 {object} helpers.APIResponse "data contains the created payment"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /payments [post]
func (c *PaymentController) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	payment, err := c.Service.RecordPayment(r.Context(), userID, &domain.PaymentInput{
		UserID: req.UserID,
		Amount: req.Amount,
		Month:  req.Month,
		Method: req.Method,
		Notes:  req.Notes,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, payment)
}

// MyPayments godoc
// @Summary List the authenticated user's payments
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains the payment list, newest first"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /payments/me [get]
func (c *PaymentController) MyPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	payments, err := c.Service.ListUserPayments(r.Context(), userID, userID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, payments)
}

// UserPayments godoc
// @Summary List a user's payments
// @Description Members may read their own ledger; admins and leaders any ledger.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {object} helpers.APIResponse "data contains the payment list, newest first"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /users/{userID}/payments [get]
func (c *PaymentController) UserPayments(w http.ResponseWriter, r *http.Request) {
	targetID := r.PathValue("userID")
	if targetID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing userID")
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	payments, err := c.Service.ListUserPayments(r.Context(), userID, targetID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, payments)
}

// UserPaymentSummary godoc
// @Summary Get a user's contribution summary
// @Description Totals, per-month breakdown, and the most recent payments.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {object} helpers.APIResponse "data contains the summary"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /users/{userID}/payments/summary [get]
func (c *PaymentController) UserPaymentSummary(w http.ResponseWriter, r *http.Request) {
	targetID := r.PathValue("userID")
	if targetID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing userID")
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	summary, err := c.Service.GetSummary(r.Context(), userID, targetID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, summary)
}

func (c *PaymentController) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "user not found")
	case errors.Is(err, domain.ErrForbidden):
		h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidInput):
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
	}
}
