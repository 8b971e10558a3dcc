// Package changelog collects the structured record of every change made
// during a run. The core produces entries; rendering and persistence live
// here at the edge.
package changelog

import (
	"sort"
	"sync"
	"time"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/docx"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
)

// Entry is one change to one hyperlink or text run, with its positional
// hints. Page and line are approximations, not layout data.
type Entry struct {
	File         string               `json:"file"`
	Kind         hyperlink.ChangeKind `json:"kind"`
	Page         int                  `json:"page"`
	Line         int                  `json:"line"`
	Before       string               `json:"before,omitempty"`
	After        string               `json:"after,omitempty"`
	CorrectTitle string               `json:"correct_title,omitempty"`
	ContentID    string               `json:"content_id,omitempty"`
}

// Log accumulates entries across concurrent pipeline workers.
type Log struct {
	mu      sync.Mutex
	started time.Time
	entries []Entry
}

// NewLog creates an empty changelog.
func NewLog() *Log {
	return &Log{started: time.Now()}
}

// AddChanges records the rewrite engine's changes for one file.
func (l *Log) AddChanges(file string, changes []hyperlink.Change) {
	if len(changes) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range changes {
		l.entries = append(l.entries, Entry{
			File:         file,
			Kind:         c.Kind,
			Page:         c.PageHint,
			Line:         c.LineNumber,
			Before:       c.Before,
			After:        c.After,
			CorrectTitle: c.CorrectTitle,
			ContentID:    c.ContentID,
		})
	}
}

// AddTextChanges records text-replacement changes for one file.
func (l *Log) AddTextChanges(file string, changes []docx.TextChange) {
	if len(changes) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range changes {
		l.entries = append(l.entries, Entry{
			File:   file,
			Kind:   "text_replaced",
			Page:   c.PageHint,
			Line:   c.LineNumber,
			Before: c.Before,
			After:  c.After,
		})
	}
}

// Entries returns a copy of all entries, ordered by file then position.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// ByKind groups entries by change kind, preserving the Entries ordering
// within each group.
func (l *Log) ByKind() map[hyperlink.ChangeKind][]Entry {
	grouped := make(map[hyperlink.ChangeKind][]Entry)
	for _, e := range l.Entries() {
		grouped[e.Kind] = append(grouped[e.Kind], e)
	}
	return grouped
}

// Started returns when the log was opened.
func (l *Log) Started() time.Time { return l.started }

// Len returns the number of entries recorded so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
