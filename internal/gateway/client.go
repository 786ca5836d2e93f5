package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"vistream/billing-service/internal/config"
)

// ErrUnavailable marks network-level gateway failures. Callers on the return
// path degrade rather than surface it to the end user.
var ErrUnavailable = errors.New("gateway unavailable")

// Client talks to the payment gateway's create and query endpoints. It signs
// outbound requests with the create secret; each inbound channel is verified
// elsewhere with its own secret.
type Client struct {
	cfg  config.GatewayConfig
	http *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// BuildCreate populates and signs an order-creation request. Building is
// separate from sending so the caller can persist the exact signed payload
// before the network call.
func (c *Client) BuildCreate(orderID, requestID, orderInfo string, amount int64) CreateRequest {
	req := CreateRequest{
		PartnerCode: c.cfg.PartnerCode,
		RequestID:   requestID,
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   orderInfo,
		RedirectURL: c.cfg.RedirectURL,
		IPNURL:      c.cfg.IPNURL,
		Lang:        c.cfg.Lang,
		RequestType: c.cfg.RequestType,
		AutoCapture: true,
	}
	req.Signature = Sign(c.cfg.CreateSecret, req.SignatureFields(), CreateFields)
	return req
}

// Create registers a payment intent and returns the URL the user is
// redirected to.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	var resp CreateResponse
	raw, err := c.post(ctx, "/create", req, &resp)
	if err != nil {
		return nil, err
	}
	resp.Raw = raw
	return &resp, nil
}

// Query pulls the current status of an order directly from the gateway.
func (c *Client) Query(ctx context.Context, orderID, requestID string) (*QueryResponse, error) {
	req := QueryRequest{
		PartnerCode: c.cfg.PartnerCode,
		RequestID:   requestID,
		OrderID:     orderID,
		Lang:        c.cfg.Lang,
	}
	req.Signature = Sign(c.cfg.CreateSecret, req.SignatureFields(), QueryFields)

	var resp QueryResponse
	raw, err := c.post(ctx, "/query", req, &resp)
	if err != nil {
		return nil, err
	}
	resp.Raw = raw
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gateway status %d", ErrUnavailable, httpResp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return raw, nil
}
