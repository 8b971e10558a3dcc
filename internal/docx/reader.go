package docx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/cache"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
)

// Reader extracts hyperlink records from documents.
type Reader struct {
	policy   FilePolicy
	cache    cache.Store
	cacheTTL time.Duration
	logger   *slog.Logger
}

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Policy FilePolicy
	// Cache, when set, memoizes extraction keyed by (fileName, mtime).
	Cache    cache.Store
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// NewReader creates a document reader.
func NewReader(cfg ReaderConfig) *Reader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Policy
	if policy.MaxSizeBytes == 0 && len(policy.Extensions) == 0 {
		policy = DefaultFilePolicy()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Reader{policy: policy, cache: cfg.Cache, cacheTTL: ttl, logger: logger}
}

// Extract opens the document read-only and materializes every hyperlink
// occurrence in document order. A malformed single hyperlink is logged and
// skipped; a document that cannot be opened fails the whole extraction
// with an AccessError or FormatError.
func (r *Reader) Extract(ctx context.Context, path string) ([]*hyperlink.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateFile(path, r.policy); err != nil {
		return nil, err
	}

	cacheKey := r.cacheKey(path)
	if cached, ok := r.cacheGet(ctx, cacheKey); ok {
		return cached, nil
	}

	pkg, err := OpenPackage(path)
	if err != nil {
		return nil, err
	}
	rels, err := pkg.Relationships()
	if err != nil {
		return nil, err
	}

	body := pkg.Document()
	spans := scanHyperlinks(body)
	records := make([]*hyperlink.Record, 0, len(spans))
	for _, s := range spans {
		rec := &hyperlink.Record{
			ElementID:   s.elementID(),
			SubAddress:  s.anchor,
			DisplayText: spanText(body, s),
			LineNumber:  s.line,
			PageHint:    pageHint(s.line),
		}
		if s.relID != "" {
			rel, ok := rels[s.relID]
			if !ok {
				r.logger.Warn("hyperlink references unknown relationship, skipping",
					"file", path, "rel_id", s.relID, "line", s.line)
				continue
			}
			rec.Address = rel.Target
		}
		rec.LookupID = hyperlink.LookupIDFor(rec)
		records = append(records, rec)
	}

	r.cachePut(ctx, cacheKey, records)
	return records, nil
}

// cacheKey derives the read-through cache key from the file name and its
// last-modified timestamp, so a touched file always misses.
func (r *Reader) cacheKey(path string) string {
	if r.cache == nil {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("extract:%s:%d", path, info.ModTime().UnixNano())
}

func (r *Reader) cacheGet(ctx context.Context, key string) ([]*hyperlink.Record, bool) {
	if r.cache == nil || key == "" {
		return nil, false
	}
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var records []*hyperlink.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false
	}
	return records, true
}

func (r *Reader) cachePut(ctx context.Context, key string, records []*hyperlink.Record) {
	if r.cache == nil || key == "" {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.cacheTTL); err != nil {
		r.logger.Debug("extraction cache write failed", "key", key, "error", err)
	}
}
