package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	MainnetBaseURL = "https://api.bybit.com"
	TestnetBaseURL = "https://api-testnet.bybit.com"

	statusTrading = "Trading"
)

// Client - публичный REST Bybit V5, подпись не нужна
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(isTestnet bool, timeout time.Duration) *Client {
	base := MainnetBaseURL
	if isTestnet {
		base = TestnetBaseURL
	}
	return NewClientWithBaseURL(base, timeout)
}

func NewClientWithBaseURL(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// TradingSymbols возвращает множество linear-символов в статусе Trading.
// Проходит по всем страницам через nextPageCursor.
func (c *Client) TradingSymbols(ctx context.Context) (map[string]bool, error) {
	symbols := make(map[string]bool)
	cursor := ""

	for {
		params := url.Values{}
		params.Set("category", "linear")
		params.Set("limit", "1000")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp BaseResponse[InstrumentInfoResponse]
		if err := c.sendPublicRequest(ctx, "/v5/market/instruments-info", params, &resp); err != nil {
			return nil, fmt.Errorf("failed to get instruments: %w", err)
		}

		for _, item := range resp.Result.List {
			if item.Status == statusTrading {
				symbols[item.Symbol] = true
			}
		}

		if resp.Result.NextPageCursor == "" || resp.Result.NextPageCursor == cursor {
			return symbols, nil
		}
		cursor = resp.Result.NextPageCursor
	}
}

// ValidateSymbols делит список на торгуемые и неизвестные/делистнутые, порядок сохраняется
func (c *Client) ValidateSymbols(ctx context.Context, symbols []string) (valid, unknown []string, err error) {
	trading, err := c.TradingSymbols(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, sym := range symbols {
		if trading[sym] {
			valid = append(valid, sym)
		} else {
			unknown = append(unknown, sym)
		}
	}
	return valid, unknown, nil
}

// --- Private Helpers ---

func (c *Client) sendPublicRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bybit http status: %d", resp.StatusCode)
	}

	return c.decodeResponse(resp.Body, result)
}

func (c *Client) decodeResponse(body io.Reader, result interface{}) error {
	respBytes, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	var base BaseResponse[json.RawMessage]
	if err := json.Unmarshal(respBytes, &base); err != nil {
		return fmt.Errorf("failed to parse response: %v | Body: %s", err, string(respBytes))
	}

	if base.RetCode != 0 {
		return fmt.Errorf("bybit api error: [%d] %s", base.RetCode, base.RetMsg)
	}

	return json.Unmarshal(respBytes, result)
}
