package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Bullnettraders/levelcast/internal/domain/options"
)

const defaultUserAgent = "Mozilla/5.0"

// ChainClient fetches delayed option chains from an exchange CDN endpoint
// serving one JSON document per ticker.
type ChainClient struct {
	baseURL string
	client  *http.Client
}

// NewChainClient creates a chain client. baseURL is the directory holding
// the per-ticker JSON documents.
func NewChainClient(baseURL string, client *http.Client) *ChainClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ChainClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type chainDocument struct {
	Data struct {
		CurrentPrice   float64             `json:"current_price"`
		Close          float64             `json:"close"`
		LastTradePrice float64             `json:"last_trade_price"`
		PrevDayClose   float64             `json:"prev_day_close"`
		Bid            float64             `json:"bid"`
		Ask            float64             `json:"ask"`
		Options        []options.RawOption `json:"options"`
	} `json:"data"`
}

// Fetch retrieves the chain for ticker. A document without any usable spot
// price is an error: nothing downstream is meaningful without it.
func (c *ChainClient) Fetch(ctx context.Context, ticker string) (*ChainSnapshot, error) {
	url := fmt.Sprintf("%s/%s.json", c.baseURL, strings.ToUpper(ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build chain request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chain for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch chain for %s: status %d", ticker, resp.StatusCode)
	}

	var doc chainDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode chain for %s: %w", ticker, err)
	}

	spot := firstPositive(
		doc.Data.CurrentPrice,
		doc.Data.Close,
		doc.Data.LastTradePrice,
		doc.Data.PrevDayClose,
		doc.Data.Bid,
		doc.Data.Ask,
	)
	if spot <= 0 {
		return nil, fmt.Errorf("chain for %s carries no spot price", ticker)
	}

	return &ChainSnapshot{
		Ticker:    strings.ToUpper(ticker),
		Spot:      spot,
		Options:   doc.Data.Options,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
