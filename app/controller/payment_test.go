package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-event-payments/app/entity"
	"github.com/vibast-solutions/ms-go-event-payments/app/provider"
	"github.com/vibast-solutions/ms-go-event-payments/app/repository"
	"github.com/vibast-solutions/ms-go-event-payments/app/service"
	"github.com/vibast-solutions/ms-go-event-payments/app/types"
	"github.com/vibast-solutions/ms-go-event-payments/config"
)

type stubTx struct {
	nextID    uint64
	createErr error
}

func (t *stubTx) Create(_ context.Context, payment *entity.Payment) error {
	if t.createErr != nil {
		return t.createErr
	}
	t.nextID++
	payment.ID = t.nextID
	return nil
}

func (t *stubTx) Update(_ context.Context, _ *entity.Payment) error { return nil }
func (t *stubTx) Commit() error                                     { return nil }
func (t *stubTx) Rollback() error                                   { return nil }

type stubStore struct {
	tx     *stubTx
	begins int

	byID    map[uint64]*entity.Payment
	byTxID  map[string]*entity.Payment
	byUser  []*entity.Payment
	upserts int
}

func (s *stubStore) Begin(_ context.Context) (repository.Tx, error) {
	s.begins++
	return s.tx, nil
}

func (s *stubStore) FindByID(_ context.Context, id uint64) (*entity.Payment, error) {
	return s.byID[id], nil
}

func (s *stubStore) FindByTransactionID(_ context.Context, transactionID string) (*entity.Payment, error) {
	return s.byTxID[transactionID], nil
}

func (s *stubStore) ListByUser(_ context.Context, _ string) ([]*entity.Payment, error) {
	return s.byUser, nil
}

func (s *stubStore) UpsertFailed(_ context.Context, _ *entity.Payment) error {
	s.upserts++
	return nil
}

func (s *stubStore) ListRecentFailed(_ context.Context, _ time.Time, _ int32) ([]*entity.Payment, error) {
	return nil, nil
}

type stubGateway struct {
	out *provider.AuthorizeOutput
	err error
}

func (g *stubGateway) Name() string { return "stripe" }

func (g *stubGateway) Authorize(_ context.Context, _ *provider.AuthorizeInput) (*provider.AuthorizeOutput, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.out, nil
}

func (g *stubGateway) FindAuthorization(_ context.Context, _ string) (*provider.AuthorizeOutput, error) {
	return nil, nil
}

type stubEvents struct{}

func (stubEvents) Create(_ context.Context, _ *entity.PaymentEvent) error { return nil }

func newTestController(env string, store *stubStore, gateway *stubGateway) *PaymentController {
	svc := service.NewPaymentService(store, stubEvents{}, gateway, config.PaymentsConfig{HomeCurrency: "MXN"})
	return NewPaymentController(svc, env)
}

func doRequest(t *testing.T, handler echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	for i := 0; i+1 < len(params); i += 2 {
		ctx.SetParamNames(params[i])
		ctx.SetParamValues(params[i+1])
	}

	if err := handler(ctx); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *types.PaymentEnvelopeResponse {
	t.Helper()
	var body types.PaymentEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return &body
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *types.ErrorResponse {
	t.Helper()
	var body types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return &body
}

const createBody = `{"userId":"user-1","eventId":"event-1","amount":150,"currency":"MXN","paymentMethod":"credit_card","source":"tok_visa"}`

func TestHealth(t *testing.T) {
	c := newTestController("production", &stubStore{tx: &stubTx{}}, &stubGateway{})
	rec := doRequest(t, c.Health, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCreatePaymentSuccess(t *testing.T) {
	store := &stubStore{tx: &stubTx{}}
	gateway := &stubGateway{out: &provider.AuthorizeOutput{
		ProviderPaymentID: "pi_123",
		Status:            provider.StatusSucceeded,
	}}
	c := newTestController("production", store, gateway)

	rec := doRequest(t, c.CreatePayment, http.MethodPost, "/payments", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body := decodeEnvelope(t, rec)
	if !body.Success || body.Data == nil {
		t.Fatalf("body = %+v", body)
	}
	if body.Data.Status != entity.StatusCompleted {
		t.Errorf("data.status = %q, want completed", body.Data.Status)
	}
	if !strings.HasPrefix(body.Data.TransactionID, "PAY-") {
		t.Errorf("transactionId = %q", body.Data.TransactionID)
	}
	if body.Data.PaymentDetails.ProviderPaymentID != "pi_123" {
		t.Errorf("providerPaymentId = %q", body.Data.PaymentDetails.ProviderPaymentID)
	}
	if strings.Contains(rec.Body.String(), "tok_visa") {
		t.Error("response leaks the card token")
	}
}

func TestCreatePaymentMalformedBody(t *testing.T) {
	store := &stubStore{tx: &stubTx{}}
	c := newTestController("production", store, &stubGateway{})

	rec := doRequest(t, c.CreatePayment, http.MethodPost, "/payments", `{"amount":"NaN"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.begins != 0 {
		t.Errorf("store touched %d times for a malformed body", store.begins)
	}
}

func TestCreatePaymentInvalidToken(t *testing.T) {
	store := &stubStore{tx: &stubTx{}}
	c := newTestController("production", store, &stubGateway{})

	body := strings.Replace(createBody, "tok_visa", "4242424242424242", 1)
	rec := doRequest(t, c.CreatePayment, http.MethodPost, "/payments", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Success || !strings.Contains(resp.Message, "single-use card token") {
		t.Errorf("body = %+v", resp)
	}
	if store.begins != 0 || store.upserts != 0 {
		t.Errorf("rejected request reached the store: begins=%d upserts=%d", store.begins, store.upserts)
	}
}

func TestCreatePaymentGatewayFailure(t *testing.T) {
	cause := &provider.Error{Code: "card_declined", Message: "Your card was declined."}

	t.Run("production hides the cause", func(t *testing.T) {
		c := newTestController("production", &stubStore{tx: &stubTx{}}, &stubGateway{err: cause})
		rec := doRequest(t, c.CreatePayment, http.MethodPost, "/payments", createBody)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		resp := decodeError(t, rec)
		if resp.Message != "payment processing failed" || resp.Error != "" {
			t.Errorf("body = %+v", resp)
		}
	})

	t.Run("development attaches the cause", func(t *testing.T) {
		c := newTestController("development", &stubStore{tx: &stubTx{}}, &stubGateway{err: cause})
		rec := doRequest(t, c.CreatePayment, http.MethodPost, "/payments", createBody)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		resp := decodeError(t, rec)
		if !strings.Contains(resp.Error, "card_declined") {
			t.Errorf("body = %+v", resp)
		}
	})
}

func TestCreatePaymentDuplicateTransaction(t *testing.T) {
	store := &stubStore{tx: &stubTx{createErr: repository.ErrDuplicateTransactionID}}
	c := newTestController("production", store, &stubGateway{})

	rec := doRequest(t, c.CreatePayment, http.MethodPost, "/payments", createBody)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCreateBatchPayments(t *testing.T) {
	store := &stubStore{tx: &stubTx{}}
	c := newTestController("production", store, &stubGateway{})

	body := `{"payments":[
		{"userId":"u1","eventId":"e1","amount":10,"paymentMethod":"credit_card","paymentDetails":{"provider":"stripe","providerPaymentId":"pi_1","providerStatus":"succeeded"}},
		{"userId":"u2","eventId":"e1","amount":20,"paymentMethod":"debit_card","paymentDetails":{"provider":"stripe","providerPaymentId":"pi_2","providerStatus":"succeeded"}}
	]}`

	rec := doRequest(t, c.CreateBatchPayments, http.MethodPost, "/payments/batch", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp types.PaymentListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Count != 2 || len(resp.Data) != 2 {
		t.Fatalf("body = %+v", resp)
	}
}

func TestCreateBatchPaymentsValidation(t *testing.T) {
	store := &stubStore{tx: &stubTx{}}
	c := newTestController("production", store, &stubGateway{})

	rec := doRequest(t, c.CreateBatchPayments, http.MethodPost, "/payments/batch", `{"payments":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.begins != 0 {
		t.Errorf("empty batch reached the store")
	}
}

func TestGetPayment(t *testing.T) {
	payment := &entity.Payment{
		ID:            7,
		TransactionID: "PAY-AAA-BBB",
		UserID:        "user-1",
		Status:        entity.StatusCompleted,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	store := &stubStore{
		tx:     &stubTx{},
		byID:   map[uint64]*entity.Payment{7: payment},
		byTxID: map[string]*entity.Payment{"PAY-AAA-BBB": payment},
	}
	c := newTestController("production", store, &stubGateway{})

	rec := doRequest(t, c.GetPayment, http.MethodGet, "/payments/7", "", "id", "7")
	if rec.Code != http.StatusOK {
		t.Fatalf("by id: status = %d", rec.Code)
	}
	if decodeEnvelope(t, rec).Data.ID != 7 {
		t.Error("by id: wrong payment returned")
	}

	rec = doRequest(t, c.GetPayment, http.MethodGet, "/payments/PAY-AAA-BBB", "", "id", "PAY-AAA-BBB")
	if rec.Code != http.StatusOK {
		t.Fatalf("by transaction id: status = %d", rec.Code)
	}

	rec = doRequest(t, c.GetPayment, http.MethodGet, "/payments/99", "", "id", "99")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing: status = %d, want 404", rec.Code)
	}
}

func TestListUserPayments(t *testing.T) {
	store := &stubStore{
		tx: &stubTx{},
		byUser: []*entity.Payment{
			{ID: 2, TransactionID: "PAY-2", UserID: "user-1", Status: entity.StatusCompleted},
			{ID: 1, TransactionID: "PAY-1", UserID: "user-1", Status: entity.StatusFailed},
		},
	}
	c := newTestController("production", store, &stubGateway{})

	rec := doRequest(t, c.ListUserPayments, http.MethodGet, "/payments/user/user-1", "", "userId", "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp types.PaymentListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Data) != 2 {
		t.Fatalf("body = %+v", resp)
	}

	rec = doRequest(t, c.ListUserPayments, http.MethodGet, "/payments/user/%20", "", "userId", "  ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank user: status = %d", rec.Code)
	}
}
