package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/momentum-health/vitalsync/internal/core/storage"
	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

// Client implements storage.HistoryRepository against the wearable
// vendor's cloud API. The vendor exposes one composite query endpoint;
// window slicing and translation remain the polling adapter's job.
type Client struct {
	httpClient *resty.Client
	appID      string
	secretKey  string

	mu          sync.Mutex
	initialized bool
}

// queryRequest is the vendor query envelope. Credentials ride in the body
// rather than headers, per the vendor's API convention.
type queryRequest struct {
	AppID     string   `json:"app_id"`
	SecretKey string   `json:"secret_key"`
	UserID    string   `json:"user_id"`
	Types     []string `json:"types"`
	StartMs   int64    `json:"start_ms"`
	EndMs     int64    `json:"end_ms"`
}

// queryResponse is the vendor response envelope. Status 0 means success;
// any other status carries a vendor error message.
type queryResponse struct {
	Status  int         `json:"status"`
	Msg     string      `json:"msg"`
	Samples []rawSample `json:"samples"`
}

type rawSample struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Value       float64 `json:"value"`
	TimestampMs int64   `json:"timestamp_ms"`
	Source      string  `json:"source"`
}

// NewClient creates a vendor API client. Requests retry transient
// failures; a cycle-level failure is still surfaced to the caller so the
// polling adapter can abandon the tick.
func NewClient(baseURL, appID, secretKey string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		appID:      appID,
		secretKey:  secretKey,
	}
}

// IsInitialized reports whether the client has verified vendor reachability.
func (c *Client) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Initialize probes the vendor status endpoint. Safe to call repeatedly.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}

	resp, err := c.httpClient.R().SetContext(ctx).Get("/v1/status")
	if err != nil {
		return fmt.Errorf("failed to reach vendor API: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("vendor API status check returned HTTP %d", resp.StatusCode())
	}

	c.initialized = true
	slog.Info("[Cloud] Vendor history client initialized")
	return nil
}

// GetHealthData queries the vendor for samples of the given kinds in
// [start, end).
func (c *Client) GetHealthData(
	ctx context.Context,
	userID string,
	types []vitals.MetricKind,
	start, end time.Time,
) ([]storage.Sample, error) {
	if !c.IsInitialized() {
		return nil, storage.ErrNotInitialized
	}

	kinds := make([]string, len(types))
	for i, t := range types {
		kinds[i] = string(t)
	}

	request := &queryRequest{
		AppID:     c.appID,
		SecretKey: c.secretKey,
		UserID:    userID,
		Types:     kinds,
		StartMs:   start.UnixMilli(),
		EndMs:     end.UnixMilli(),
	}

	var response queryResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/v1/health-data/query")
	if err != nil {
		return nil, fmt.Errorf("failed to call vendor API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("vendor API returned HTTP %d", resp.StatusCode())
	}
	if response.Status != 0 {
		return nil, fmt.Errorf("vendor API error: %s (status: %d)", response.Msg, response.Status)
	}

	samples := make([]storage.Sample, 0, len(response.Samples))
	for _, raw := range response.Samples {
		id := raw.ID
		if id == "" {
			// Some vendor exports omit sample IDs; synthesize one so
			// provenance metadata stays usable downstream.
			id = uuid.NewString()
		}
		samples = append(samples, storage.Sample{
			ID:        id,
			Type:      vitals.MetricKind(raw.Type),
			Value:     raw.Value,
			Timestamp: time.UnixMilli(raw.TimestampMs).UTC(),
			Source:    raw.Source,
		})
	}

	slog.Debug("[Cloud] Retrieved samples from vendor API",
		"user_id", userID,
		"kinds", len(kinds),
		"sample_count", len(samples),
	)

	return samples, nil
}
