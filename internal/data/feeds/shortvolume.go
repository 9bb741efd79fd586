package feeds

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ShortVolumeClient fetches the regulator's daily consolidated short volume
// file, a pipe-delimited text document published per trading day.
type ShortVolumeClient struct {
	baseURL string
	client  *http.Client
	// DaysBack bounds how far the client walks back looking for the most
	// recent published file.
	DaysBack int
}

// NewShortVolumeClient creates a short volume client.
func NewShortVolumeClient(baseURL string, client *http.Client) *ShortVolumeClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ShortVolumeClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		DaysBack: 4,
	}
}

// Fetch finds the newest daily file mentioning ticker, walking back over
// recent weekdays. Returns nil without error when nothing was published in
// the window; the datum is supplemental and its absence is not a failure.
func (c *ShortVolumeClient) Fetch(ctx context.Context, ticker string, now time.Time) (*ShortVolume, error) {
	ticker = strings.ToUpper(ticker)

	for back := 1; back <= c.DaysBack; back++ {
		date := now.AddDate(0, 0, -back)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		sv, err := c.fetchDay(ctx, ticker, date)
		if err != nil {
			continue
		}
		if sv != nil {
			return sv, nil
		}
	}
	return nil, nil
}

func (c *ShortVolumeClient) fetchDay(ctx context.Context, ticker string, date time.Time) (*ShortVolume, error) {
	url := fmt.Sprintf("%s/CNMSshvol%s.txt", c.baseURL, date.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "|")
		if len(parts) < 5 || !strings.EqualFold(parts[1], ticker) {
			continue
		}
		shortVol, _ := strconv.ParseInt(parts[2], 10, 64)
		totalVol, _ := strconv.ParseInt(parts[4], 10, 64)

		pct := 0.0
		if totalVol > 0 {
			pct = float64(shortVol) / float64(totalVol) * 100
		}
		return &ShortVolume{
			Date:         date.Format("2006-01-02"),
			ShortVolume:  shortVol,
			TotalVolume:  totalVol,
			ShortPercent: roundTo(pct, 1),
		}, nil
	}
	return nil, scanner.Err()
}

func roundTo(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
