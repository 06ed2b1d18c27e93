package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "prod"
)

var (
	ErrUnknownEnvironment = errors.New("unknown asaas environment")
	ErrMissingToken       = errors.New("asaas access token is required")
)

const (
	transfersPath = "/transfers"
	balancePath   = "/finance/balance"

	maxResponseBytes = 1 << 20
)

func BaseURL(env Environment) (string, error) {
	switch env {
	case Sandbox:
		return "https://sandbox.asaas.com/api/v3", nil
	case Production:
		return "https://api.asaas.com/v3", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
}

type Config struct {
	Environment Environment
	// BaseURL overrides the URL derived from Environment.
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Hook        Hook
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	hook    Hook
	tracer  trace.Tracer
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, ErrMissingToken
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		u, err := BaseURL(cfg.Environment)
		if err != nil {
			return nil, err
		}
		baseURL = u
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			Timeout: timeout,
		}
	}
	hook := cfg.Hook
	if hook == nil {
		hook = func(context.Context, Exchange) {}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   cfg.AccessToken,
		http:    hc,
		hook:    hook,
		tracer:  otel.Tracer("asaas-client"),
	}, nil
}

// Send creates one PIX transfer. Failures are returned as *domain.GatewayError
// and never retried.
func (c *Client) Send(ctx context.Context, t domain.Transfer) (domain.Receipt, error) {
	if !t.Amount.IsPositive() {
		return domain.Receipt{}, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, t.Amount)
	}
	var receipt domain.Receipt
	if err := c.do(ctx, http.MethodPost, transfersPath, t.Body(), &receipt); err != nil {
		return domain.Receipt{}, err
	}
	if receipt.TransactionID == "" {
		return domain.Receipt{}, &domain.GatewayError{
			Kind:       domain.KindMalformed,
			Op:         http.MethodPost + " " + transfersPath,
			StatusCode: http.StatusOK,
			Message:    "transfer response has no id",
		}
	}
	return receipt, nil
}

func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		Balance decimal.NullDecimal `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, balancePath, nil, &out); err != nil {
		return decimal.Zero, err
	}
	if !out.Balance.Valid {
		return decimal.Zero, &domain.GatewayError{
			Kind:       domain.KindMalformed,
			Op:         http.MethodGet + " " + balancePath,
			StatusCode: http.StatusOK,
			Message:    "balance response has no balance",
		}
	}
	return out.Balance.Decimal, nil
}

// errorEnvelope covers both error shapes the API returns.
type errorEnvelope struct {
	Errors  []domain.ProviderError `json:"errors"`
	Message string                 `json:"message"`
	Msg     string                 `json:"msg"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	op := method + " " + path
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	ex := Exchange{Method: method, Path: path}
	start := time.Now()
	defer func() {
		ex.Duration = time.Since(start)
		ex.Err = err
		c.hook(ctx, ex)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", op, err)
		}
		ex.RequestBody = payload
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("access_token", c.token)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.GatewayError{Kind: domain.KindTransport, Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	ex.StatusCode = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &domain.GatewayError{Kind: domain.KindTransport, Op: op, StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}
	ex.ResponseBody = raw

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &domain.GatewayError{
			Kind:       domain.KindMalformed,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s: unreadable response (%s): %v", op, resp.Status, err),
			Err:        err,
		}
	}
	if len(env.Errors) > 0 {
		return &domain.GatewayError{
			Kind:       domain.KindRejection,
			Op:         op,
			StatusCode: resp.StatusCode,
			Codes:      env.Errors,
			Message:    domain.JoinProviderErrors(env.Errors),
		}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := firstNonEmpty(env.Message, env.Msg, fmt.Sprintf("%s: %s", op, resp.Status))
		return &domain.GatewayError{Kind: domain.KindRejection, Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.GatewayError{
			Kind:       domain.KindMalformed,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s: decode response: %v", op, err),
			Err:        err,
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
