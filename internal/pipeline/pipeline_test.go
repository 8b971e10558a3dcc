package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/backup"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/changelog"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/docx"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/resolve"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/testutil"
)

// newResolveServer answers every batch from the given table; unknown ids
// are simply absent from the response.
func newResolveServer(t *testing.T, table map[string]hyperlink.Resolved) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LookupIDs []string `json:"lookupIds"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := make(map[string]hyperlink.Resolved)
		for _, id := range req.LookupIDs {
			if rec, ok := table[id]; ok {
				resp[id] = rec
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestPipeline(t *testing.T, endpoint string, mut func(*Config)) (*Pipeline, *changelog.Log) {
	t.Helper()
	log := changelog.NewLog()
	cfg := Config{
		Reader: docx.NewReader(docx.ReaderConfig{}),
		Writer: docx.NewWriter(docx.WriterConfig{}),
		Engine: hyperlink.NewEngine(hyperlink.EngineConfig{BaseURL: "https://docs.example.com/view"}),
		Resolver: resolve.New(resolve.Config{
			Endpoint:   endpoint,
			RetryDelay: time.Millisecond,
		}),
		Changes:        log,
		ExtractWorkers: 2,
		UpdateWorkers:  2,
	}
	if mut != nil {
		mut(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p, log
}

// extractTexts re-reads a file and returns its hyperlink display texts.
func extractTexts(t *testing.T, path string) []string {
	t.Helper()
	reader := docx.NewReader(docx.ReaderConfig{})
	records, err := reader.Extract(context.Background(), path)
	require.NoError(t, err)
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.DisplayText
	}
	return texts
}

func TestRunUpdatesDocuments(t *testing.T) {
	srv := newResolveServer(t, map[string]hyperlink.Resolved{
		"TSRC-AB-111111": {Title: "New Title", Status: "Active", ContentID: "TSRC-AB-111111", DocumentID: "doc-1"},
	})
	defer srv.Close()

	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "a.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://cms.example.com/page?docid=TSRC-AB-111111", Text: "Old Title"},
			{RelID: "rId2", Target: "https://cms.example.com/orphan", Text: ""}, // invisible
		},
	})

	p, log := newTestPipeline(t, srv.URL, nil)
	summary := p.Run(context.Background(), []string{path})

	assert.Equal(t, RunCompleted, summary.State)
	assert.Equal(t, 1, summary.Stats.FilesProcessed)
	assert.Equal(t, 0, summary.Stats.FilesFailed)
	assert.Equal(t, 2, summary.Stats.HyperlinksProcessed)
	assert.Greater(t, summary.Stats.HyperlinksUpdated, 0)

	// Title applied, content-id suffix appended, invisible link deleted.
	texts := extractTexts(t, path)
	require.Len(t, texts, 1)
	assert.Equal(t, "New Title (111111)", texts[0])

	grouped := log.ByKind()
	assert.Len(t, grouped[hyperlink.ChangeRemoved], 1)
	assert.Len(t, grouped[hyperlink.ChangeUpdatedTitle], 1)
}

func TestRunIsIdempotent(t *testing.T) {
	srv := newResolveServer(t, map[string]hyperlink.Resolved{
		"TSRC-AB-111111": {Title: "New Title", Status: "Active", ContentID: "TSRC-AB-111111", DocumentID: "doc-1"},
	})
	defer srv.Close()

	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "a.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://cms.example.com/page?docid=TSRC-AB-111111", Text: "Old Title"},
		},
	})

	p1, _ := newTestPipeline(t, srv.URL, nil)
	first := p1.Run(context.Background(), []string{path})
	require.Equal(t, RunCompleted, first.State)

	p2, _ := newTestPipeline(t, srv.URL, nil)
	second := p2.Run(context.Background(), []string{path})
	require.Equal(t, RunCompleted, second.State)
	assert.Equal(t, 0, second.Stats.HyperlinksUpdated, "second run must be a no-op")

	texts := extractTexts(t, path)
	require.Len(t, texts, 1)
	assert.Equal(t, "New Title (111111)", texts[0])
}

func TestRunNotFoundMarker(t *testing.T) {
	srv := newResolveServer(t, nil) // resolves nothing
	defer srv.Close()

	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "a.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://cms.example.com/page?docid=TSRC-AB-222222", Text: "Old Title"},
		},
	})

	p, _ := newTestPipeline(t, srv.URL, nil)
	summary := p.Run(context.Background(), []string{path})
	require.Equal(t, RunCompleted, summary.State)

	texts := extractTexts(t, path)
	require.Len(t, texts, 1)
	assert.Equal(t, "Old Title - Not Found (222222)", texts[0])
}

func TestRunPartialFailure(t *testing.T) {
	srv := newResolveServer(t, nil)
	defer srv.Close()

	dir := t.TempDir()
	good := testutil.WriteDocx(t, dir, "good.docx", testutil.Doc{
		Paragraphs: []string{"no links here"},
	})
	missing := filepath.Join(dir, "missing.docx")

	p, _ := newTestPipeline(t, srv.URL, nil)
	summary := p.Run(context.Background(), []string{good, missing})

	assert.Equal(t, RunCompleted, summary.State, "per-file failures never fail the run")
	assert.Equal(t, 1, summary.Stats.FilesProcessed)
	assert.Equal(t, 1, summary.Stats.FilesFailed)

	require.Len(t, summary.Results, 2)
	byPath := make(map[string]DocumentResult)
	for _, r := range summary.Results {
		byPath[r.Path] = r
	}
	assert.Equal(t, StageCompletion, byPath[good].Stage)
	assert.Equal(t, StageFileValidation, byPath[missing].Stage)
	assert.Error(t, byPath[missing].Err)
}

func TestRunCancelled(t *testing.T) {
	srv := newResolveServer(t, nil)
	defer srv.Close()

	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "a.docx", testutil.Doc{
		Paragraphs: []string{"text"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := newTestPipeline(t, srv.URL, nil)
	summary := p.Run(ctx, []string{path})
	assert.Equal(t, RunCancelled, summary.State)
}

func TestRunCancelledMidFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The endpoint cancels the run on first contact and holds the request
	// open until the client gives up. Extraction has finished by then, so
	// cancellation lands between resolution and update.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		<-r.Context().Done()
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "a.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://cms.example.com/page?docid=TSRC-AB-111111", Text: "Old Title"},
		},
	})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p, _ := newTestPipeline(t, srv.URL, nil)
	summary := p.Run(ctx, []string{path})

	assert.Equal(t, RunCancelled, summary.State)
	assert.Equal(t, 0, summary.Stats.HyperlinksUpdated)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a cancelled run must not write the document")
}

func TestRunDetectOnly(t *testing.T) {
	srv := newResolveServer(t, map[string]hyperlink.Resolved{
		"TSRC-AB-111111": {Title: "New Title", Status: "Active", ContentID: "TSRC-AB-111111"},
	})
	defer srv.Close()

	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "a.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://cms.example.com/page?docid=TSRC-AB-111111", Text: "Old Title"},
		},
	})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p, log := newTestPipeline(t, srv.URL, func(cfg *Config) {
		cfg.DetectOnly = true
		cfg.Writer = nil
	})
	summary := p.Run(context.Background(), []string{path})
	require.Equal(t, RunCompleted, summary.State)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "detect mode must not touch the file")

	mismatches := log.ByKind()[hyperlink.ChangeMismatch]
	require.Len(t, mismatches, 1)
	assert.Equal(t, "Old Title", mismatches[0].Before)
	assert.Equal(t, "New Title", mismatches[0].CorrectTitle)
}

func TestRunCreatesBackup(t *testing.T) {
	srv := newResolveServer(t, map[string]hyperlink.Resolved{
		"TSRC-AB-111111": {Title: "New Title", Status: "Active"},
	})
	defer srv.Close()

	dir := t.TempDir()
	backupDir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "a.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://cms.example.com/page?docid=TSRC-AB-111111", Text: "Old Title"},
		},
	})

	p, _ := newTestPipeline(t, srv.URL, func(cfg *Config) {
		cfg.Backups = backup.NewManager(backup.Config{Dir: backupDir, Keep: 3})
	})
	summary := p.Run(context.Background(), []string{path})
	require.Equal(t, RunCompleted, summary.State)

	backups, err := filepath.Glob(filepath.Join(backupDir, "a.*.bak.docx"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestRunProgressStream(t *testing.T) {
	srv := newResolveServer(t, nil)
	defer srv.Close()

	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "a.docx", testutil.Doc{
		Paragraphs: []string{"text"},
	})

	p, _ := newTestPipeline(t, srv.URL, nil)

	var reports []ProgressReport
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range p.Progress() {
			reports = append(reports, r)
		}
	}()

	p.Run(context.Background(), []string{path})
	<-done

	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	assert.Equal(t, StageCompletion, last.Stage)
	assert.Equal(t, "1/1 files succeeded", last.Message)
	assert.True(t, last.Success)

	seen := make(map[Stage]bool)
	for _, r := range reports {
		seen[r.Stage] = true
	}
	assert.True(t, seen[StageFileValidation])
	assert.True(t, seen[StageHyperlinkExtraction])
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
