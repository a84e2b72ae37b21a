package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider talks to the store's payment bridge over JSON HTTP. The
// bridge fronts the wallet provider and normalizes its trade states to
// the three the adapter understands.
type HTTPProvider struct {
	baseURL string
	appID   string
	key     string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, appID string, key string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		key:     key,
		client:  client,
	}
}

type tradeResponse struct {
	Status  string `json:"status"`
	TradeNo string `json:"trade_no"`
	Message string `json:"message"`
}

func (p *HTTPProvider) Pay(ctx context.Context, req PayRequest) (TradeState, error) {
	return p.post(ctx, "/trade/pay", map[string]any{
		"out_trade_no": req.OrderRef,
		"auth_code":    req.AuthCode,
		"total_amount": req.Amount,
		"subject":      req.Subject,
	})
}

func (p *HTTPProvider) Query(ctx context.Context, orderRef string) (TradeState, error) {
	return p.post(ctx, "/trade/query", map[string]any{
		"out_trade_no": orderRef,
	})
}

func (p *HTTPProvider) Cancel(ctx context.Context, orderRef string) error {
	_, err := p.post(ctx, "/trade/cancel", map[string]any{
		"out_trade_no": orderRef,
	})
	return err
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload map[string]any) (TradeState, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return TradeState{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return TradeState{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Id", p.appID)
	req.Header.Set("X-App-Key", p.key)

	res, err := p.client.Do(req)
	if err != nil {
		return TradeState{}, err
	}
	defer res.Body.Close()

	var parsed tradeResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return TradeState{}, fmt.Errorf("decode bridge response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		if parsed.Message != "" {
			return TradeState{}, fmt.Errorf("bridge returned %d: %s", res.StatusCode, parsed.Message)
		}
		return TradeState{}, fmt.Errorf("bridge returned %d", res.StatusCode)
	}

	switch Status(parsed.Status) {
	case StatusSuccess, StatusAwaiting, StatusClosed:
		return TradeState{Status: Status(parsed.Status), TradeNo: parsed.TradeNo}, nil
	default:
		return TradeState{}, fmt.Errorf("unknown trade status %q", parsed.Status)
	}
}
