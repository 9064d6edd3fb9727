package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"course-billing/internal/domain"
	"course-billing/internal/infra/metrics"
	"course-billing/internal/infra/payment"
	"course-billing/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

type checkoutRequest struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	CodeID        string `json:"code_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

type checkoutResponse struct {
	PaymentID string `json:"payment_id"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}

	p, payURL, err := s.checkoutUC.Initiate(r.Context(), usecase.InitiateInput{
		CustomerID:    req.CustomerID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		CodeID:        req.CodeID,
		Amount:        req.Amount,
		Currency:      req.Currency,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		PaymentID: p.ID,
		SessionID: p.TxRef.ID,
		URL:       payURL,
	})
}

// handleWebhook is the single entry point for provider push notifications.
// The acknowledgement is written before reconciliation is attempted: the
// provider's retry policy keys off this response, not off reconciliation
// success. Reconciliation errors in the detached task are logged only.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		metrics.IncWebhookEvent("unknown", "rejected")
		writeError(w, http.StatusBadRequest, "missing payload", "missing_payload")
		return
	}

	if s.webhookSecret != "" {
		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			metrics.IncWebhookEvent("unknown", "rejected")
			writeError(w, http.StatusBadRequest, "missing signature header", "missing_signature")
			return
		}
		if !payment.VerifyWebhookSignature(s.webhookSecret, body, sig, time.Now()) {
			metrics.IncWebhookEvent("unknown", "rejected")
			writeError(w, http.StatusBadRequest, "signature verification failed", "invalid_signature")
			return
		}
	} else {
		s.log.Warn().Msg("webhook secret not configured, accepting unverified delivery")
	}

	ev, err := payment.ParseWebhookEvent(body)
	if err != nil {
		metrics.IncWebhookEvent("unknown", "rejected")
		writeError(w, http.StatusBadRequest, "malformed event payload", "bad_payload")
		return
	}

	metrics.IncWebhookEvent(string(ev.Kind), "accepted")

	switch ev.Kind {
	case payment.EventCheckoutCompleted:
		s.dispatchReconcile(ev)
	case payment.EventCheckoutExpired:
		s.log.Info().Str("event", ev.RawType).Msg("checkout session expired")
	case payment.EventPaymentSucceeded, payment.EventPaymentFailed:
		// Informational only; the session-completed event drives the ledger.
		s.log.Info().Str("event", ev.RawType).Msg("payment intent event received")
	default:
		s.log.Info().Str("event", ev.RawType).Msg("ignoring unrecognized webhook event")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"received":  true,
		"eventType": ev.RawType,
	})
}

// dispatchReconcile hands the event to the worker pool. Errors here must not
// surface: the acknowledgement contract is already satisfied.
func (s *Server) dispatchReconcile(ev *payment.WebhookEvent) {
	snap := ev.Session
	meta := usecase.ReconcileMeta{
		CustomerID: ev.CustomerID,
		CodeID:     ev.CodeID,
		PaymentRef: ev.PaymentRef,
	}
	err := s.pool.Submit(func(ctx context.Context) error {
		start := time.Now()
		_, err := s.reconcileUC.Reconcile(ctx, snap, meta)
		metrics.ObserveReconcileDuration(time.Since(start).Seconds())
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("session_id", snap.ID).
			Msg("could not dispatch reconciliation, relying on provider retry or sweeper")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")
	report, err := s.statusUC.GetStatus(r.Context(), paymentID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := map[string]interface{}{
		"payment_id":      report.PaymentID,
		"status":          report.Status,
		"amount":          report.Amount,
		"currency":        report.Currency,
		"provider_status": report.ProviderStatus,
	}
	if report.SessionStatus != "" {
		resp["session_status"] = report.SessionStatus
	}
	if report.RegistrationID != nil {
		resp["registration_id"] = *report.RegistrationID
	}
	if report.RegistrationStatus != nil {
		resp["registration_status"] = *report.RegistrationStatus
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegistrationCheck(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	codeID := r.URL.Query().Get("code_id")

	check, err := s.statusUC.CheckRegistration(r.Context(), customerID, codeID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"paid":       check.Paid,
		"registered": check.Registered,
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrMissingReference),
		errors.Is(err, domain.ErrMissingCustomer),
		errors.Is(err, domain.ErrMissingCode):
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
	case errors.Is(err, domain.ErrCodeInactive),
		errors.Is(err, domain.ErrCodeExpired),
		errors.Is(err, domain.ErrCodeExhausted):
		writeError(w, http.StatusConflict, err.Error(), "code_not_redeemable")
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, err.Error(), "provider_unavailable")
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
