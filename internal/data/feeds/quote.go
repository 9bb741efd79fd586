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

// QuoteClient is the secondary chain source: a quote vendor API serving
// per-contract rows with explicit strike/type/expiry fields instead of OCC
// symbols. Rows are mapped back onto the normalizer's raw shape.
type QuoteClient struct {
	baseURL string
	client  *http.Client
}

// NewQuoteClient creates a quote API client.
func NewQuoteClient(baseURL string, client *http.Client) *QuoteClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &QuoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type quoteRow struct {
	Strike       float64 `json:"strikePrice"`
	Type         string  `json:"optionType"` // "Call" or "Put"
	Expiration   string  `json:"expirationDate"`
	OpenInterest float64 `json:"openInterest"`
	Volume       float64 `json:"volume"`
	Volatility   float64 `json:"volatility"` // percent
	Gamma        float64 `json:"gamma"`
	Bid          float64 `json:"bidPrice"`
	Ask          float64 `json:"askPrice"`
}

type quoteDocument struct {
	Data []quoteRow `json:"data"`
	Meta struct {
		LastPrice float64 `json:"lastPrice"`
	} `json:"meta"`
}

// Fetch retrieves the chain for ticker from the quote vendor.
func (c *QuoteClient) Fetch(ctx context.Context, ticker string) (*ChainSnapshot, error) {
	ticker = strings.ToUpper(ticker)
	url := fmt.Sprintf("%s/options/get?symbol=%s", c.baseURL, ticker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quotes for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch quotes for %s: status %d", ticker, resp.StatusCode)
	}

	var doc quoteDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode quotes for %s: %w", ticker, err)
	}
	if doc.Meta.LastPrice <= 0 {
		return nil, fmt.Errorf("quotes for %s carry no spot price", ticker)
	}

	raws := make([]options.RawOption, 0, len(doc.Data))
	for _, row := range doc.Data {
		symbol, ok := occSymbolFrom(ticker, row)
		if !ok {
			continue
		}
		iv := row.Volatility
		if iv > 1 {
			// Vendor reports percent, the normalizer wants a fraction.
			iv /= 100
		}
		raws = append(raws, options.RawOption{
			Symbol:       symbol,
			OpenInterest: row.OpenInterest,
			Volume:       row.Volume,
			IV:           iv,
			Gamma:        row.Gamma,
			Bid:          row.Bid,
			Ask:          row.Ask,
		})
	}

	return &ChainSnapshot{
		Ticker:    ticker,
		Spot:      doc.Meta.LastPrice,
		Options:   raws,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// occSymbolFrom rebuilds an OCC-style symbol from the vendor's explicit
// fields so both chain sources feed the same normalizer.
func occSymbolFrom(ticker string, row quoteRow) (string, bool) {
	if row.Strike <= 0 {
		return "", false
	}
	expiry, err := time.Parse("2006-01-02", row.Expiration)
	if err != nil {
		return "", false
	}

	var cp string
	switch strings.ToLower(row.Type) {
	case "call":
		cp = "C"
	case "put":
		cp = "P"
	default:
		return "", false
	}

	return fmt.Sprintf("%s%s%s%08d", ticker, expiry.Format("060102"), cp, int(row.Strike*1000)), true
}
