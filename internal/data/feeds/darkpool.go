package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Bullnettraders/levelcast/internal/domain/darkpool"
)

// tickerAliases maps common names onto the canonical vendor ticker.
var tickerAliases = map[string]string{
	"GOLD":   "GLD",
	"SILVER": "SLV",
	"NASDAQ": "QQQ",
}

// exchangePrefixes lists, per ticker, the vendor exchange path prefixes to
// try in order. The vendor 404s on the wrong listing venue, and ETFs in
// particular live under inconsistent prefixes.
var exchangePrefixes = map[string][]string{
	"QQQ": {"nasdaq"},
	"SPY": {"nyse_arca", "nyse"},
	"IWM": {"nyse_arca", "nyse"},
	"GLD": {"amex", "nyse_arca", "nyse"},
	"SLV": {"amex", "nyse_arca", "nyse"},
}

// NormalizeTicker resolves aliases to the canonical ticker.
func NormalizeTicker(ticker string) string {
	up := strings.ToUpper(ticker)
	if canon, ok := tickerAliases[up]; ok {
		return canon
	}
	return up
}

func prefixesFor(ticker string) []string {
	if p, ok := exchangePrefixes[ticker]; ok {
		return p
	}
	return []string{"nasdaq", "nyse"}
}

// DarkPoolClient fetches aggregated dark-pool levels and individual prints
// from a scan vendor, walking the per-ticker exchange prefix list until a
// venue answers.
type DarkPoolClient struct {
	baseURL string
	client  *http.Client
	// MinPrintSize drops small prints at ingestion.
	MinPrintSize int64
	// MaxRows caps what one fetch returns.
	MaxRows int
}

// NewDarkPoolClient creates a dark-pool scan client.
func NewDarkPoolClient(baseURL string, client *http.Client) *DarkPoolClient {
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	return &DarkPoolClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		MinPrintSize: 100000,
		MaxRows:      15,
	}
}

type levelRow struct {
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
	Trades int     `json:"trades"`
}

type printRow struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
	Side  string  `json:"side"`
	Time  string  `json:"time"`
	Venue string  `json:"exchange"`
}

// FetchLevels retrieves aggregated dark-pool levels for ticker.
func (c *DarkPoolClient) FetchLevels(ctx context.Context, ticker string) (*ScanSnapshot, error) {
	ticker = NormalizeTicker(ticker)

	var rows []levelRow
	err := c.walkPrefixes(ctx, ticker, "dark-pool-levels", &rows)
	if err != nil {
		return nil, err
	}

	obs := make([]darkpool.Observation, 0, len(rows))
	for _, r := range rows {
		if r.Price <= 0 || r.Volume <= 0 {
			continue
		}
		obs = append(obs, darkpool.Observation{Price: r.Price, Volume: r.Volume, Trades: r.Trades})
	}

	// Heaviest levels first, then cap. The vendor order is arbitrary and a
	// late large row must not fall off the truncation.
	sort.Slice(obs, func(i, j int) bool { return obs[i].Volume > obs[j].Volume })
	if c.MaxRows > 0 && len(obs) > c.MaxRows {
		obs = obs[:c.MaxRows]
	}

	return &ScanSnapshot{Ticker: ticker, Observations: obs, FetchedAt: time.Now().UTC()}, nil
}

// FetchPrints retrieves individual dark-pool prints for ticker, keeping only
// block-sized trades.
func (c *DarkPoolClient) FetchPrints(ctx context.Context, ticker string) (*PrintsSnapshot, error) {
	ticker = NormalizeTicker(ticker)

	var rows []printRow
	err := c.walkPrefixes(ctx, ticker, "dark-pool-prints", &rows)
	if err != nil {
		return nil, err
	}

	prints := make([]darkpool.Print, 0, len(rows))
	for _, r := range rows {
		if r.Price <= 0 || r.Size < c.MinPrintSize {
			continue
		}
		prints = append(prints, darkpool.Print{
			Price:  r.Price,
			Size:   r.Size,
			Side:   r.Side,
			Time:   r.Time,
			Venue:  r.Venue,
			Dollar: r.Price * float64(r.Size),
		})
		if c.MaxRows > 0 && len(prints) >= c.MaxRows {
			break
		}
	}

	return &PrintsSnapshot{Ticker: ticker, Prints: prints, FetchedAt: time.Now().UTC()}, nil
}

// walkPrefixes tries each exchange prefix until one answers with a decodable
// body. A 404 moves on to the next prefix; other failures abort.
func (c *DarkPoolClient) walkPrefixes(ctx context.Context, ticker, page string, out interface{}) error {
	prefixes := prefixesFor(ticker)
	var lastErr error

	for _, prefix := range prefixes {
		url := fmt.Sprintf("%s/%s-%s/%s.json", c.baseURL, prefix, strings.ToLower(ticker), page)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build scan request: %w", err)
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			log.Debug().Str("ticker", ticker).Str("prefix", prefix).Str("page", page).
				Msg("scan venue 404, trying next prefix")
			lastErr = fmt.Errorf("%s: status 404", url)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("fetch %s for %s: status %d", page, ticker, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode %s for %s: %w", page, ticker, err)
		}
		return nil
	}

	return fmt.Errorf("all %d venues failed for %s %s: %w", len(prefixes), ticker, page, lastErr)
}
