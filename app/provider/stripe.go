package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultStripeBaseURL = "https://api.stripe.com"

type StripeConfig struct {
	SecretKey   string
	APIVersion  string
	BaseURL     string
	HTTPTimeout time.Duration
}

// StripeProvider authorizes single-use card tokens: the token is exchanged
// for a payment method, which is then confirmed through a payment intent.
type StripeProvider struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultStripeBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &StripeProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *StripeProvider) Name() string {
	return "stripe"
}

func (p *StripeProvider) Authorize(ctx context.Context, input *AuthorizeInput) (*AuthorizeOutput, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}

	methodValues := url.Values{}
	methodValues.Set("type", "card")
	methodValues.Set("card[token]", input.Token)

	methodResp, err := p.postForm(ctx, "/v1/payment_methods", methodValues, input.IdempotencyKey+"-pm")
	if err != nil {
		return nil, err
	}
	var method struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(methodResp, &method); err != nil {
		return nil, err
	}
	methodID := strings.TrimSpace(method.ID)
	if methodID == "" {
		return nil, &Error{Code: "invalid_response", Message: "stripe payment method id missing"}
	}

	intentValues := url.Values{}
	intentValues.Set("amount", strconv.FormatInt(input.AmountCents, 10))
	intentValues.Set("currency", strings.ToLower(input.Currency))
	intentValues.Set("payment_method", methodID)
	intentValues.Set("confirm", "true")
	intentValues.Set("description", input.Description)
	intentValues.Set("capture_method", "automatic")
	intentValues.Set("payment_method_types[0]", "card")
	for k, v := range input.Metadata {
		intentValues.Set("metadata["+k+"]", v)
	}

	intentResp, err := p.postForm(ctx, "/v1/payment_intents", intentValues, input.IdempotencyKey+"-pi")
	if err != nil {
		return nil, err
	}
	var intent struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(intentResp, &intent); err != nil {
		return nil, err
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, &Error{Code: "invalid_response", Message: "stripe payment intent id missing"}
	}

	return &AuthorizeOutput{
		ProviderPaymentID: strings.TrimSpace(intent.ID),
		Status:            strings.TrimSpace(intent.Status),
	}, nil
}

func (p *StripeProvider) FindAuthorization(ctx context.Context, transactionID string) (*AuthorizeOutput, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, nil
	}

	query := "metadata['transaction_id']:'" + transactionID + "'"
	path := "/v1/payment_intents/search?query=" + url.QueryEscape(query) + "&limit=1"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	p.setHeaders(req, "")

	body, err := p.do(req)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}

	return &AuthorizeOutput{
		ProviderPaymentID: strings.TrimSpace(payload.Data[0].ID),
		Status:            strings.TrimSpace(payload.Data[0].Status),
	}, nil
}

func (p *StripeProvider) postForm(ctx context.Context, path string, values url.Values, idempotencyKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	p.setHeaders(req, idempotencyKey)

	return p.do(req)
}

func (p *StripeProvider) setHeaders(req *http.Request, idempotencyKey string) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	if p.cfg.APIVersion != "" {
		req.Header.Set("Stripe-Version", p.cfg.APIVersion)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
}

func (p *StripeProvider) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseStripeError(resp.StatusCode, body)
	}

	return body, nil
}

func transportError(err error) *Error {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}

	code := "transport_error"
	if timeout {
		code = "transport_timeout"
	}
	return &Error{Code: code, Message: err.Error(), Timeout: timeout}
}

func parseStripeError(statusCode int, body []byte) *Error {
	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && (payload.Error.Code != "" || payload.Error.Type != "") {
		code := payload.Error.Code
		if code == "" {
			code = payload.Error.Type
		}
		return &Error{Code: code, Message: payload.Error.Message}
	}

	return &Error{
		Code:    "http_" + strconv.Itoa(statusCode),
		Message: fmt.Sprintf("stripe request failed: status=%d body=%s", statusCode, string(body)),
	}
}
