package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
)

// HTTP provider adapters. Each maps one public JSON endpoint onto a Signal.
// Scores are clamped to [-1, +1] before returning.

func clampScore(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NewsProvider scores recent headline sentiment for a subject. The endpoint
// is expected to return per-headline sentiment votes which are averaged.
type NewsProvider struct {
	BaseURL string
	Client  *http.Client
}

type newsResponse struct {
	Articles []struct {
		Title     string  `json:"title"`
		Sentiment float64 `json:"sentiment"` // [-1, +1] per article
	} `json:"articles"`
}

func (p *NewsProvider) Name() string { return "news" }

func (p *NewsProvider) Fetch(ctx context.Context, subject string) (Signal, error) {
	var body newsResponse
	endpoint := fmt.Sprintf("%s/v1/news?q=%s", p.BaseURL, url.QueryEscape(subject))
	if err := getJSON(ctx, p.Client, endpoint, &body); err != nil {
		return Signal{}, fmt.Errorf("news fetch: %w", err)
	}
	if len(body.Articles) == 0 {
		return Signal{}, fmt.Errorf("news fetch: no articles for %q", subject)
	}

	var sum float64
	for _, a := range body.Articles {
		sum += a.Sentiment
	}
	score := clampScore(sum / float64(len(body.Articles)))

	// Confidence grows with coverage, saturating at 10 articles.
	confidence := math.Min(1, float64(len(body.Articles))/10)
	return Signal{
		Source:     p.Name(),
		Score:      score,
		Confidence: confidence,
		Details:    map[string]any{"articles": len(body.Articles)},
	}, nil
}

// IndexProvider maps a 0-100 market sentiment index (fear & greed style)
// onto [-1, +1].
type IndexProvider struct {
	BaseURL string
	Client  *http.Client
}

type indexResponse struct {
	Data []struct {
		Value          string `json:"value"` // "0".."100"
		Classification string `json:"value_classification"`
	} `json:"data"`
}

func (p *IndexProvider) Name() string { return "index" }

func (p *IndexProvider) Fetch(ctx context.Context, _ string) (Signal, error) {
	var body indexResponse
	if err := getJSON(ctx, p.Client, p.BaseURL+"/fng/", &body); err != nil {
		return Signal{}, fmt.Errorf("index fetch: %w", err)
	}
	if len(body.Data) == 0 {
		return Signal{}, fmt.Errorf("index fetch: empty data")
	}

	raw, err := strconv.ParseFloat(body.Data[0].Value, 64)
	if err != nil {
		return Signal{}, fmt.Errorf("index fetch: bad value %q: %w", body.Data[0].Value, err)
	}

	// 50 is neutral; the index is a broad-market gauge so confidence is fixed.
	score := clampScore((raw - 50) / 50)
	return Signal{
		Source:     p.Name(),
		Score:      score,
		Confidence: 0.7,
		Label:      body.Data[0].Classification,
		Details:    map[string]any{"index": raw},
	}, nil
}

// ChainProvider scores on-chain momentum from 24h price change and
// buy/sell transaction balance.
type ChainProvider struct {
	BaseURL string
	Client  *http.Client
}

type chainResponse struct {
	PriceChangeH24 float64 `json:"price_change_h24"` // percent
	BuysH24        int     `json:"buys_h24"`
	SellsH24       int     `json:"sells_h24"`
	LiquidityUSD   float64 `json:"liquidity_usd"`
}

func (p *ChainProvider) Name() string { return "on-chain" }

func (p *ChainProvider) Fetch(ctx context.Context, subject string) (Signal, error) {
	var body chainResponse
	endpoint := fmt.Sprintf("%s/v1/tokens/%s/stats", p.BaseURL, url.PathEscape(subject))
	if err := getJSON(ctx, p.Client, endpoint, &body); err != nil {
		return Signal{}, fmt.Errorf("on-chain fetch: %w", err)
	}

	// ±10% daily move saturates the momentum component.
	momentum := clampScore(body.PriceChangeH24 / 10)

	flow := 0.0
	if total := body.BuysH24 + body.SellsH24; total > 0 {
		flow = float64(body.BuysH24-body.SellsH24) / float64(total)
	}

	score := clampScore(0.6*momentum + 0.4*flow)

	// Thin liquidity makes on-chain reads noisy.
	confidence := 0.8
	if body.LiquidityUSD < 50_000 {
		confidence = 0.4
	}
	return Signal{
		Source:     p.Name(),
		Score:      score,
		Confidence: confidence,
		Details: map[string]any{
			"price_change_h24": body.PriceChangeH24,
			"buys_h24":         body.BuysH24,
			"sells_h24":        body.SellsH24,
		},
	}, nil
}
