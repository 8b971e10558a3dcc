// Package resolve implements the client for the external resolution
// endpoint: lookup ids in, authoritative title/status records out.
package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
)

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultBatchSize    = 50
	DefaultMaxRetries   = 3
	DefaultConcurrency  = 4
	DefaultBatchTimeout = 30 * time.Second
)

// Progress is reported after every batch completes, successfully or not.
type Progress struct {
	CompletedBatches int
	TotalBatches     int
	ProcessedItems   int
	TotalItems       int
}

// Result carries the merged mapping plus per-batch accounting. Ids absent
// from every successful batch are simply missing from the mapping; callers
// treat a missing id as "not found", not as an error.
type Result struct {
	Mapping          map[string]hyperlink.Resolved
	TotalBatches     int
	SucceededBatches int
	Errors           []error // one entry per failed batch
}

// Config configures a Client.
type Config struct {
	Endpoint     string
	BatchSize    int
	MaxRetries   int           // retries per batch after the first attempt
	RetryDelay   time.Duration // base backoff delay, doubled per attempt
	BatchTimeout time.Duration // timeout for a single batch call
	Concurrency  int           // batches in flight at once
	HTTPClient   *http.Client
	Logger       *slog.Logger

	// OnProgress, when set, receives a report after every batch.
	OnProgress func(Progress)
}

// Client batches lookup ids and resolves them against the external
// endpoint, retrying transient failures with exponential backoff.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a resolution client.
func New(cfg Config) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	} else if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0 // negative disables retries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, httpClient: httpClient, logger: logger}
}

// request is the JSON body POSTed to the endpoint.
type request struct {
	LookupIDs []string `json:"lookupIds"`
	Timestamp string   `json:"timestamp"`
}

// Resolve deduplicates ids, splits them into batches, and resolves each
// batch. A batch that still fails after retries is recorded in
// Result.Errors; the remaining batches continue. Each batch accumulates
// into its own map and is merged under a lock, so interleaved success and
// failure across concurrent batches cannot corrupt the merged mapping.
func (c *Client) Resolve(ctx context.Context, lookupIDs []string) *Result {
	ids := dedupe(lookupIDs)
	batches := splitBatches(ids, c.cfg.BatchSize)

	result := &Result{
		Mapping:      make(map[string]hyperlink.Resolved, len(ids)),
		TotalBatches: len(batches),
	}
	if len(batches) == 0 {
		return result
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		sem        = make(chan struct{}, c.cfg.Concurrency)
		completed  int
		processed  int
		totalItems = len(ids)
	)

	for i, batch := range batches {
		select {
		case <-ctx.Done():
			mu.Lock()
			result.Errors = append(result.Errors, ctx.Err())
			mu.Unlock()
			wg.Wait()
			return result
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(num int, batchIDs []string) {
			defer wg.Done()
			defer func() { <-sem }()

			mapping, err := c.resolveBatch(ctx, num, batchIDs)

			mu.Lock()
			defer mu.Unlock()
			completed++
			processed += len(batchIDs)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("batch %d/%d: %w", num+1, len(batches), err))
				c.logger.Warn("resolution batch failed",
					"batch", num+1, "total", len(batches), "ids", len(batchIDs), "error", err)
			} else {
				result.SucceededBatches++
				for k, v := range mapping {
					result.Mapping[k] = v
				}
			}
			if c.cfg.OnProgress != nil {
				c.cfg.OnProgress(Progress{
					CompletedBatches: completed,
					TotalBatches:     len(batches),
					ProcessedItems:   processed,
					TotalItems:       totalItems,
				})
			}
		}(i, batch)
	}

	wg.Wait()
	return result
}

// resolveBatch POSTs one batch, retrying transient failures with
// exponential backoff (2^attempt seconds).
func (c *Client) resolveBatch(ctx context.Context, num int, ids []string) (map[string]hyperlink.Resolved, error) {
	var mapping map[string]hyperlink.Resolved
	err := retry.Do(
		func() error {
			m, err := c.callOnce(ctx, ids)
			if err != nil {
				return err
			}
			mapping = m
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries)+1),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Debug("retrying resolution batch",
				"batch", num+1, "attempt", attempt+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

func (c *Client) callOnce(ctx context.Context, ids []string) (map[string]hyperlink.Resolved, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.BatchTimeout)
	defer cancel()

	body, err := json.Marshal(request{
		LookupIDs: ids,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("endpoint returned %s", resp.Status)
	}

	var mapping map[string]hyperlink.Resolved
	if err := json.NewDecoder(resp.Body).Decode(&mapping); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return mapping, nil
}

// dedupe removes duplicate ids and empty strings, preserving first-seen
// order so batch composition is deterministic.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// splitBatches chunks ids into groups of at most size.
func splitBatches(ids []string, size int) [][]string {
	var batches [][]string
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		batches = append(batches, ids[:n])
		ids = ids[n:]
	}
	return batches
}
