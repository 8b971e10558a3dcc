// Package pipeline wires validation, extraction, resolution, and document
// update into a bounded concurrent flow. Stages are connected by bounded
// channels, so a slow stage applies backpressure upstream instead of
// growing unbounded queues.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/backup"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/changelog"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/docx"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/resolve"
)

// Config configures a Pipeline with its collaborators and limits.
type Config struct {
	Reader   *docx.Reader      // required
	Writer   *docx.Writer      // required unless DetectOnly
	Engine   *hyperlink.Engine // required
	Resolver *resolve.Client   // required
	Backups  *backup.Manager   // nil disables pre-write backups
	Changes  *changelog.Log    // nil disables change recording

	Policy docx.FilePolicy

	ExtractWorkers  int // 0 means NumCPU
	UpdateWorkers   int // 0 means NumCPU
	QueueSize       int // per-stage queue capacity, default 64
	DocumentTimeout time.Duration

	// GroupPerDocument resolves each document's ids in its own round
	// instead of one round for the whole run.
	GroupPerDocument bool

	// DetectOnly reports title mismatches without touching any file.
	DetectOnly bool

	Rules  []hyperlink.ReplacementRule
	Logger *slog.Logger
}

// DocumentResult is the terminal outcome for one input path. Stage is
// where processing ended: StageCompletion on success, the failing stage
// otherwise.
type DocumentResult struct {
	Path       string
	Stage      Stage
	Err        error
	Hyperlinks int // records extracted
	Updated    int // changes applied (or mismatches found in detect mode)
}

// Summary is the run-level outcome. Per-file failures are collected in
// Results; they never abort the run.
type Summary struct {
	RunID   string
	State   RunState
	Stats   Stats
	Results []DocumentResult
}

// Pipeline processes a list of document paths through the staged flow.
// A Pipeline is good for exactly one Run.
type Pipeline struct {
	cfg      Config
	logger   *slog.Logger
	progress chan ProgressReport
	start    time.Time

	mu      sync.Mutex
	results []DocumentResult
}

// New validates the configuration and creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Reader == nil {
		return nil, fmt.Errorf("pipeline: reader is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("pipeline: engine is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("pipeline: resolver is required")
	}
	if cfg.Writer == nil && !cfg.DetectOnly {
		return nil, fmt.Errorf("pipeline: writer is required outside detect mode")
	}
	if cfg.ExtractWorkers <= 0 {
		cfg.ExtractWorkers = runtime.NumCPU()
	}
	if cfg.UpdateWorkers <= 0 {
		cfg.UpdateWorkers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Policy.MaxSizeBytes == 0 && len(cfg.Policy.Extensions) == 0 {
		cfg.Policy = docx.DefaultFilePolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		logger:   logger,
		progress: make(chan ProgressReport, cfg.QueueSize),
	}, nil
}

// Progress returns the run's progress stream. The channel is closed when
// Run returns. A consumer that falls behind misses reports rather than
// stalling the pipeline.
func (p *Pipeline) Progress() <-chan ProgressReport {
	return p.progress
}

// extractedDoc carries one document between extraction and update.
type extractedDoc struct {
	path    string
	records []*hyperlink.Record
}

// updateItem pairs a document with the resolution mapping to apply.
type updateItem struct {
	doc     extractedDoc
	mapping map[string]hyperlink.Resolved
}

// Run processes paths to completion and returns the run summary. Per-file
// failures are recorded and the run continues; cancellation of ctx drains
// in-flight work and yields a Cancelled state instead of Failed.
func (p *Pipeline) Run(ctx context.Context, paths []string) *Summary {
	runID := uuid.NewString()
	p.start = time.Now()
	stats := newStatCollector()
	defer close(p.progress)

	logger := p.logger.With("run_id", runID)
	logger.Info("run starting", "files", len(paths),
		"extract_workers", p.cfg.ExtractWorkers, "update_workers", p.cfg.UpdateWorkers)

	total := len(paths)

	// Stage 1: validation. Cheap stat checks, single goroutine.
	extractQueue := make(chan string, p.cfg.QueueSize)
	go func() {
		defer close(extractQueue)
		for _, path := range paths {
			if ctx.Err() != nil {
				return
			}
			if err := docx.ValidateFile(path, p.cfg.Policy); err != nil {
				logger.Warn("file rejected", "file", path, "error", err)
				p.fail(stats, path, StageFileValidation, err, total)
				continue
			}
			p.emit(ProgressReport{
				Stage:       StageFileValidation,
				CurrentFile: path,
				TotalCount:  total,
				Success:     true,
			})
			select {
			case extractQueue <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Stage 2: extraction worker pool.
	extractedCh := make(chan extractedDoc, p.cfg.QueueSize)
	var extractWG sync.WaitGroup
	for i := 0; i < p.cfg.ExtractWorkers; i++ {
		extractWG.Add(1)
		go func() {
			defer extractWG.Done()
			for path := range extractQueue {
				records, err := p.extractDoc(ctx, path)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Warn("extraction failed", "file", path, "error", err)
					p.fail(stats, path, StageHyperlinkExtraction, err, total)
					continue
				}
				p.emit(ProgressReport{
					Stage:          StageHyperlinkExtraction,
					CurrentFile:    path,
					ProcessedCount: len(records),
					TotalCount:     total,
					Success:        true,
				})
				select {
				case extractedCh <- extractedDoc{path: path, records: records}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		extractWG.Wait()
		close(extractedCh)
	}()

	// Stage 3: id grouping and resolution, feeding the update queue.
	updateCh := make(chan updateItem, p.cfg.QueueSize)
	go func() {
		defer close(updateCh)
		if p.cfg.GroupPerDocument {
			for doc := range extractedCh {
				mapping := p.resolveIDs(ctx, collectIDs(doc.records))
				select {
				case updateCh <- updateItem{doc: doc, mapping: mapping}:
				case <-ctx.Done():
					return
				}
			}
			return
		}

		// Global grouping: one resolution round for the whole run.
		var docs []extractedDoc
		var ids []string
		for doc := range extractedCh {
			docs = append(docs, doc)
			ids = append(ids, collectIDs(doc.records)...)
		}
		if ctx.Err() != nil {
			return
		}
		mapping := p.resolveIDs(ctx, ids)
		for _, doc := range docs {
			select {
			case updateCh <- updateItem{doc: doc, mapping: mapping}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Stage 4: update worker pool. Each document passes through exactly
	// one worker, so no path is ever written concurrently.
	var updateWG sync.WaitGroup
	for i := 0; i < p.cfg.UpdateWorkers; i++ {
		updateWG.Add(1)
		go func() {
			defer updateWG.Done()
			for item := range updateCh {
				if ctx.Err() != nil {
					return
				}
				p.updateDoc(ctx, stats, item, total)
			}
		}()
	}
	updateWG.Wait()

	// Stage 5: completion.
	final := stats.finish()
	final.Elapsed = time.Since(p.start)

	state := RunCompleted
	if ctx.Err() != nil {
		state = RunCancelled
	}

	p.mu.Lock()
	results := p.results
	p.mu.Unlock()

	succeeded := final.FilesProcessed
	p.emit(ProgressReport{
		Stage:          StageCompletion,
		Message:        fmt.Sprintf("%d/%d files succeeded", succeeded, total),
		ProcessedCount: succeeded,
		TotalCount:     total,
		Elapsed:        final.Elapsed,
		Success:        final.FilesFailed == 0 && state == RunCompleted,
	})
	logger.Info("run finished", "state", state,
		"succeeded", succeeded, "failed", final.FilesFailed,
		"hyperlinks", final.HyperlinksProcessed, "updated", final.HyperlinksUpdated,
		"elapsed", final.Elapsed)

	return &Summary{RunID: runID, State: state, Stats: final, Results: results}
}

// extractDoc runs one extraction under the per-document timeout.
func (p *Pipeline) extractDoc(ctx context.Context, path string) ([]*hyperlink.Record, error) {
	if p.cfg.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.DocumentTimeout)
		defer cancel()
	}
	return p.cfg.Reader.Extract(ctx, path)
}

// resolveIDs runs one resolution round. Failed batches leave their ids
// out of the mapping; missing ids read as "not found" downstream, so a
// resolution failure never fails a document.
func (p *Pipeline) resolveIDs(ctx context.Context, ids []string) map[string]hyperlink.Resolved {
	if len(ids) == 0 {
		return map[string]hyperlink.Resolved{}
	}
	result := p.cfg.Resolver.Resolve(ctx, ids)
	for _, err := range result.Errors {
		p.logger.Warn("resolution batch failed", "error", err)
	}
	p.emit(ProgressReport{
		Stage:          StageAPIProcessing,
		Message:        fmt.Sprintf("resolved %d of %d ids", len(result.Mapping), len(ids)),
		ProcessedCount: result.SucceededBatches,
		TotalCount:     result.TotalBatches,
		Success:        len(result.Errors) == 0,
	})
	return result.Mapping
}

// updateDoc applies the rewrite engine and persists one document.
func (p *Pipeline) updateDoc(ctx context.Context, stats *statCollector, item updateItem, total int) {
	path := item.doc.path
	extracted := len(item.doc.records)

	records, removedChanges := p.cfg.Engine.RemoveInvisible(item.doc.records)

	if p.cfg.DetectOnly {
		mismatches := p.cfg.Engine.DetectMismatches(records, item.mapping)
		if p.cfg.Changes != nil {
			p.cfg.Changes.AddChanges(path, mismatches)
		}
		p.complete(stats, path, extracted, len(mismatches), total)
		return
	}

	changes := p.cfg.Engine.Update(records, item.mapping, p.cfg.Rules)

	removeIDs := make([]string, 0, len(removedChanges))
	for _, c := range removedChanges {
		removeIDs = append(removeIDs, c.ElementID)
	}

	if len(changes) > 0 || len(removeIDs) > 0 {
		if p.cfg.Backups != nil {
			if _, err := p.cfg.Backups.Create(path); err != nil {
				p.fail(stats, path, StageDocumentUpdate, fmt.Errorf("backup: %w", err), total)
				return
			}
		}
		writeCtx := ctx
		if p.cfg.DocumentTimeout > 0 {
			var cancel context.CancelFunc
			writeCtx, cancel = context.WithTimeout(ctx, p.cfg.DocumentTimeout)
			defer cancel()
		}
		if err := p.cfg.Writer.Apply(writeCtx, path, records, removeIDs); err != nil {
			p.fail(stats, path, StageDocumentUpdate, err, total)
			return
		}
	}

	if p.cfg.Changes != nil {
		p.cfg.Changes.AddChanges(path, removedChanges)
		p.cfg.Changes.AddChanges(path, changes)
	}
	p.complete(stats, path, extracted, len(changes)+len(removedChanges), total)
}

// fail records a per-file failure and keeps the run going.
func (p *Pipeline) fail(stats *statCollector, path string, stage Stage, err error, total int) {
	stats.add(statDelta{filesFailed: 1})
	p.mu.Lock()
	p.results = append(p.results, DocumentResult{Path: path, Stage: stage, Err: err})
	p.mu.Unlock()
	p.emit(ProgressReport{
		Stage:       StageError,
		CurrentFile: path,
		Message:     err.Error(),
		TotalCount:  total,
	})
}

// complete records a per-file success.
func (p *Pipeline) complete(stats *statCollector, path string, hyperlinks, updated, total int) {
	stats.add(statDelta{
		filesProcessed:      1,
		hyperlinksProcessed: hyperlinks,
		hyperlinksUpdated:   updated,
	})
	p.mu.Lock()
	p.results = append(p.results, DocumentResult{
		Path:       path,
		Stage:      StageCompletion,
		Hyperlinks: hyperlinks,
		Updated:    updated,
	})
	p.mu.Unlock()
	p.emit(ProgressReport{
		Stage:          StageDocumentUpdate,
		CurrentFile:    path,
		ProcessedCount: updated,
		TotalCount:     total,
		Success:        true,
	})
}

// emit sends a report without ever blocking a stage worker.
func (p *Pipeline) emit(r ProgressReport) {
	if r.Elapsed == 0 {
		r.Elapsed = time.Since(p.start)
	}
	select {
	case p.progress <- r:
	default:
		p.logger.Debug("progress consumer behind, dropping report", "stage", r.Stage)
	}
}

// collectIDs gathers the non-empty lookup ids from a document's records.
func collectIDs(records []*hyperlink.Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.LookupID != "" {
			ids = append(ids, r.LookupID)
		}
	}
	return ids
}
