//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"course-billing/internal/domain"
	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/adapter"
	"course-billing/internal/infra/api"
	"course-billing/internal/infra/payment"
	"course-billing/internal/infra/worker"
	"course-billing/internal/usecase"
)

const testWebhookSecret = "whsec_test"

// ---- usecase doubles ----

type fakeCheckoutUC struct {
	InitiateFunc func(ctx context.Context, in usecase.InitiateInput) (*model.Payment, string, error)
}

func (f *fakeCheckoutUC) Initiate(ctx context.Context, in usecase.InitiateInput) (*model.Payment, string, error) {
	return f.InitiateFunc(ctx, in)
}

type fakeStatusUC struct {
	GetStatusFunc         func(ctx context.Context, paymentID string) (*usecase.StatusReport, error)
	CheckRegistrationFunc func(ctx context.Context, customerID, codeID string) (*usecase.RegistrationCheck, error)
}

func (f *fakeStatusUC) GetStatus(ctx context.Context, paymentID string) (*usecase.StatusReport, error) {
	return f.GetStatusFunc(ctx, paymentID)
}

func (f *fakeStatusUC) CheckRegistration(ctx context.Context, customerID, codeID string) (*usecase.RegistrationCheck, error) {
	return f.CheckRegistrationFunc(ctx, customerID, codeID)
}

type fakeReconcileUC struct {
	calls chan usecase.ReconcileMeta
}

func newFakeReconcileUC() *fakeReconcileUC {
	return &fakeReconcileUC{calls: make(chan usecase.ReconcileMeta, 8)}
}

func (f *fakeReconcileUC) Reconcile(ctx context.Context, snap *adapter.SessionSnapshot, meta usecase.ReconcileMeta) (*model.Payment, error) {
	f.calls <- meta
	return &model.Payment{ID: meta.PaymentRef, Status: model.PaymentStatusCompleted}, nil
}

// ---- harness ----

type serverDeps struct {
	checkout  *fakeCheckoutUC
	status    *fakeStatusUC
	reconcile *fakeReconcileUC
	srv       *httptest.Server
	cancel    context.CancelFunc
}

func newTestServer(t *testing.T, webhookSecret string) *serverDeps {
	t.Helper()
	logger := zerolog.Nop()

	d := &serverDeps{
		checkout:  &fakeCheckoutUC{},
		status:    &fakeStatusUC{},
		reconcile: newFakeReconcileUC(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	pool := worker.NewPool(2, &logger)
	pool.Start(ctx)

	s := api.NewServer(d.checkout, d.status, d.reconcile, pool, nil, webhookSecret, 60, &logger)
	d.srv = httptest.NewServer(s.Router())
	t.Cleanup(func() {
		d.srv.Close()
		cancel()
		pool.Stop()
	})
	return d
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

// ---- checkout ----

func TestServer_Checkout(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		d := newTestServer(t, testWebhookSecret)
		d.checkout.InitiateFunc = func(ctx context.Context, in usecase.InitiateInput) (*model.Payment, string, error) {
			return &model.Payment{
				ID:    "pay-1",
				TxRef: model.SessionRef("cs_1"),
			}, "https://pay.example/cs_1", nil
		}

		resp := postJSON(t, d.srv.URL+"/api/v1/checkout", map[string]interface{}{
			"customer_id": "cust-1", "code_id": "code-1", "amount": 25000,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["payment_id"] != "pay-1" || body["session_id"] != "cs_1" {
			t.Errorf("unexpected body: %v", body)
		}
		if !strings.HasPrefix(body["url"].(string), "https://pay.example/") {
			t.Errorf("unexpected url: %v", body["url"])
		}
	})

	t.Run("domain errors map to status codes", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{domain.ErrMissingCustomer, http.StatusBadRequest},
			{domain.ErrInvalidAmount, http.StatusBadRequest},
			{domain.ErrNotFound, http.StatusNotFound},
			{domain.ErrCodeExhausted, http.StatusConflict},
			{domain.ErrCodeExpired, http.StatusConflict},
			{domain.ErrProviderUnavailable, http.StatusBadGateway},
		}
		for _, c := range cases {
			d := newTestServer(t, testWebhookSecret)
			d.checkout.InitiateFunc = func(ctx context.Context, in usecase.InitiateInput) (*model.Payment, string, error) {
				return nil, "", c.err
			}
			resp := postJSON(t, d.srv.URL+"/api/v1/checkout", map[string]interface{}{
				"customer_id": "cust-1", "code_id": "code-1", "amount": 25000,
			})
			if resp.StatusCode != c.want {
				t.Errorf("%v: expected %d, got %d", c.err, c.want, resp.StatusCode)
			}
			body := decodeBody(t, resp)
			if body["success"] != false {
				t.Errorf("%v: error body must set success=false", c.err)
			}
		}
	})
}

// ---- webhook ----

func signedWebhook(t *testing.T, d *serverDeps, payload []byte, header string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, d.srv.URL+"/api/v1/payments/webhook", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	return resp
}

func completedSessionPayload() []byte {
	return []byte(`{
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1", "status": "complete", "payment_status": "paid",
			"metadata": {"payment_ref": "pay-1", "customer_id": "cust-1", "code_id": "code-1"}
		}}
	}`)
}

func TestServer_Webhook(t *testing.T) {
	t.Run("acknowledges and dispatches reconciliation", func(t *testing.T) {
		d := newTestServer(t, testWebhookSecret)
		payload := completedSessionPayload()
		header := payment.SignWebhookPayload(testWebhookSecret, payload, time.Now())

		resp := signedWebhook(t, d, payload, header)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["received"] != true {
			t.Error("ack body must carry received=true")
		}
		if body["eventType"] != "checkout.session.completed" {
			t.Errorf("unexpected eventType: %v", body["eventType"])
		}

		select {
		case meta := <-d.reconcile.calls:
			if meta.PaymentRef != "pay-1" || meta.CustomerID != "cust-1" || meta.CodeID != "code-1" {
				t.Errorf("wrong meta dispatched: %+v", meta)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("reconciliation was never dispatched")
		}
	})

	t.Run("missing signature is rejected before any work", func(t *testing.T) {
		d := newTestServer(t, testWebhookSecret)

		resp := signedWebhook(t, d, completedSessionPayload(), "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["success"] != false || body["code"] != "missing_signature" {
			t.Errorf("unexpected error body: %v", body)
		}

		select {
		case <-d.reconcile.calls:
			t.Fatal("rejected delivery must not dispatch reconciliation")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("invalid signature is rejected", func(t *testing.T) {
		d := newTestServer(t, testWebhookSecret)
		payload := completedSessionPayload()
		header := payment.SignWebhookPayload("whsec_wrong", payload, time.Now())

		resp := signedWebhook(t, d, payload, header)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		select {
		case <-d.reconcile.calls:
			t.Fatal("rejected delivery must not dispatch reconciliation")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("unsigned delivery accepted when no secret configured", func(t *testing.T) {
		d := newTestServer(t, "")

		resp := signedWebhook(t, d, completedSessionPayload(), "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		select {
		case <-d.reconcile.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("reconciliation was never dispatched")
		}
	})

	t.Run("expired session is acknowledged without dispatch", func(t *testing.T) {
		d := newTestServer(t, testWebhookSecret)
		payload := []byte(`{
			"type": "checkout.session.expired",
			"data": {"object": {"id": "cs_1", "status": "expired", "payment_status": "unpaid", "metadata": {}}}
		}`)
		header := payment.SignWebhookPayload(testWebhookSecret, payload, time.Now())

		resp := signedWebhook(t, d, payload, header)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		select {
		case <-d.reconcile.calls:
			t.Fatal("expired sessions must not be reconciled")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("unknown event type is acknowledged", func(t *testing.T) {
		d := newTestServer(t, testWebhookSecret)
		payload := []byte(`{"type": "customer.created", "data": {"object": {}}}`)
		header := payment.SignWebhookPayload(testWebhookSecret, payload, time.Now())

		resp := signedWebhook(t, d, payload, header)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("malformed payload is rejected", func(t *testing.T) {
		d := newTestServer(t, testWebhookSecret)
		payload := []byte(`{"type":`)
		header := payment.SignWebhookPayload(testWebhookSecret, payload, time.Now())

		resp := signedWebhook(t, d, payload, header)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

// ---- status / registration check ----

func TestServer_Status(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		d := newTestServer(t, testWebhookSecret)
		regID := "reg-1"
		active := model.RegistrationStatusActive
		d.status.GetStatusFunc = func(ctx context.Context, paymentID string) (*usecase.StatusReport, error) {
			if paymentID != "pay-1" {
				t.Errorf("wrong payment id: %q", paymentID)
			}
			return &usecase.StatusReport{
				PaymentID:          "pay-1",
				Status:             model.PaymentStatusCompleted,
				Amount:             25000,
				Currency:           "usd",
				ProviderStatus:     "paid",
				SessionStatus:      "complete",
				RegistrationID:     &regID,
				RegistrationStatus: &active,
			}, nil
		}

		resp, err := http.Get(d.srv.URL + "/api/v1/payments/pay-1/status")
		if err != nil {
			t.Fatalf("get status: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["status"] != "completed" || body["provider_status"] != "paid" {
			t.Errorf("unexpected body: %v", body)
		}
		if body["registration_id"] != "reg-1" {
			t.Errorf("registration id missing: %v", body)
		}
	})

	t.Run("not found", func(t *testing.T) {
		d := newTestServer(t, testWebhookSecret)
		d.status.GetStatusFunc = func(ctx context.Context, paymentID string) (*usecase.StatusReport, error) {
			return nil, domain.ErrNotFound
		}
		resp, err := http.Get(d.srv.URL + "/api/v1/payments/ghost/status")
		if err != nil {
			t.Fatalf("get status: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestServer_RegistrationCheck(t *testing.T) {
	d := newTestServer(t, testWebhookSecret)
	d.status.CheckRegistrationFunc = func(ctx context.Context, customerID, codeID string) (*usecase.RegistrationCheck, error) {
		if customerID != "cust-1" || codeID != "code-1" {
			t.Errorf("wrong query params: %q %q", customerID, codeID)
		}
		return &usecase.RegistrationCheck{Paid: true, Registered: true}, nil
	}

	resp, err := http.Get(d.srv.URL + "/api/v1/registrations/check?customer_id=cust-1&code_id=code-1")
	if err != nil {
		t.Fatalf("get check: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["paid"] != true || body["registered"] != true {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestServer_TraceHeader(t *testing.T) {
	d := newTestServer(t, testWebhookSecret)
	resp, err := http.Get(d.srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Trace-Id") == "" {
		t.Error("every response must carry a trace id")
	}
}
