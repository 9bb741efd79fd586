// Package seeds publishes derived levels as CSV seed files in a GitHub
// repository through the contents API. Each ticker gets one rolling file in
// OHLCV column layout so downstream charting tools can ingest it unchanged:
// time, open, high, low, close, volume carry timestamp, gamma flip, call
// wall, put wall, HVL and the regime sign.
package seeds

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Bullnettraders/levelcast/internal/application/pipeline"
	"github.com/Bullnettraders/levelcast/internal/config"
	"github.com/Bullnettraders/levelcast/internal/domain/gex"
)

const csvHeader = "time,open,high,low,close,volume"

// Publisher writes seed CSVs through the GitHub contents API.
type Publisher struct {
	cfg    config.SeedsConfig
	apiURL string
	client *http.Client
}

// NewPublisher creates a publisher. client may be nil.
func NewPublisher(cfg config.SeedsConfig, client *http.Client) *Publisher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Publisher{
		cfg:    cfg,
		apiURL: "https://api.github.com",
		client: client,
	}
}

// WithAPIURL points the publisher at a different API host, used by tests.
func (p *Publisher) WithAPIURL(url string) *Publisher {
	p.apiURL = strings.TrimRight(url, "/")
	return p
}

// Publish appends one row per report to its ticker's seed file, keeping at
// most MaxRows rows.
func (p *Publisher) Publish(ctx context.Context, reports []*pipeline.Report) error {
	var failed []string
	for _, report := range reports {
		if err := p.publishOne(ctx, report); err != nil {
			log.Error().Str("ticker", report.Ticker).Err(err).Msg("seed publish failed")
			failed = append(failed, report.Ticker)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("seed publish failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func (p *Publisher) publishOne(ctx context.Context, report *pipeline.Report) error {
	path := fmt.Sprintf("%s/%s.csv", p.cfg.Path, strings.ToLower(report.Ticker))

	existing, sha, err := p.fetchFile(ctx, path)
	if err != nil {
		return err
	}

	updated := appendRow(existing, Row(report), p.cfg.MaxRows)
	if err := p.putFile(ctx, path, updated, sha, report.Ticker); err != nil {
		return err
	}

	log.Info().Str("ticker", report.Ticker).Str("path", path).Msg("seed file updated")
	return nil
}

// Row renders one report as a CSV line. CFD tickers carry ETF-scale levels,
// derived from the underlying ETF chain, so the contract ratio multiplies them
// up to CFD prices. Missing levels render as 0.
func Row(report *pipeline.Report) string {
	ratio := report.CFDRatio
	scale := func(v *float64) float64 {
		if v == nil {
			return 0
		}
		if ratio > 0 {
			return *v * ratio
		}
		return *v
	}

	regime := 0
	switch report.Levels.Regime {
	case gex.RegimePositive:
		regime = 1
	case gex.RegimeNegative:
		regime = -1
	}

	return fmt.Sprintf("%d,%.2f,%.2f,%.2f,%.2f,%d",
		report.GeneratedAt.Unix(),
		scale(report.Levels.GammaFlip),
		scale(report.Levels.CallWall),
		scale(report.Levels.PutWall),
		scale(report.Levels.HVL),
		regime)
}

// appendRow adds row to the CSV body, trimming the oldest rows beyond max.
func appendRow(body string, row string, max int) string {
	lines := []string{}
	for _, l := range strings.Split(strings.TrimSpace(body), "\n") {
		l = strings.TrimSpace(l)
		if l == "" || l == csvHeader {
			continue
		}
		lines = append(lines, l)
	}
	lines = append(lines, row)
	if max > 0 && len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return csvHeader + "\n" + strings.Join(lines, "\n") + "\n"
}

type contentsResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// fetchFile returns the decoded file body and its blob SHA. A missing file
// returns empty values, meaning the first put creates it.
func (p *Publisher) fetchFile(ctx context.Context, path string) (string, string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		p.apiURL, p.cfg.Owner, p.cfg.Repo, path, p.cfg.Branch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build contents request: %w", err)
	}
	p.auth(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("contents fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("contents fetch returned %d for %s", resp.StatusCode, path)
	}

	var body contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("failed to decode contents response: %w", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body.Content, "\n", ""))
	if err != nil {
		return "", "", fmt.Errorf("failed to decode file content: %w", err)
	}
	return string(decoded), body.SHA, nil
}

func (p *Publisher) putFile(ctx context.Context, path, content, sha, ticker string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", p.apiURL, p.cfg.Owner, p.cfg.Repo, path)

	payload := map[string]string{
		"message": fmt.Sprintf("Update %s levels", ticker),
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  p.cfg.Branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal contents payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build contents update: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.auth(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("contents update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("contents update returned %d for %s", resp.StatusCode, path)
	}
	return nil
}

func (p *Publisher) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
}
