package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"masterpay/internal/models"
)

// RESTClient talks to the external payment processor over its JSON API. The
// processor itself (card, bank transfer, mono, privat24 rails) is a black box
// behind three endpoints.
type RESTClient struct {
	baseURL string
	client  *http.Client
}

func NewRESTClient(baseURL string) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type captureRequest struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	ClientID  string `json:"clientId"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
}

type captureResponse struct {
	Reference string `json:"reference"`
}

type settleRequest struct {
	PaymentID  string `json:"paymentId"`
	CaptureRef string `json:"captureRef"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

func (c *RESTClient) Capture(ctx context.Context, p *models.EscrowPayment) (string, error) {
	req := captureRequest{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		ClientID:  p.ClientID,
		Amount:    p.Amount.String(),
		Currency:  string(p.Currency),
		Method:    string(p.PaymentMethod),
	}
	var resp captureResponse
	if err := c.postJSON(ctx, "/v1/capture", req, &resp); err != nil {
		return "", err
	}
	if resp.Reference == "" {
		return "", fmt.Errorf("gateway returned empty capture reference")
	}
	return resp.Reference, nil
}

func (c *RESTClient) Release(ctx context.Context, p *models.EscrowPayment) error {
	req := settleRequest{
		PaymentID:  p.ID,
		CaptureRef: p.CaptureRef,
		Amount:     p.MasterReceiveAmount.String(),
		Currency:   string(p.Currency),
	}
	return c.postJSON(ctx, "/v1/release", req, nil)
}

func (c *RESTClient) Refund(ctx context.Context, p *models.EscrowPayment) error {
	req := settleRequest{
		PaymentID:  p.ID,
		CaptureRef: p.CaptureRef,
		Amount:     p.Amount.String(),
		Currency:   string(p.Currency),
	}
	return c.postJSON(ctx, "/v1/refund", req, nil)
}

func (c *RESTClient) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
