package docx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
)

// Writer applies rewritten hyperlink records back into a document and
// persists it. A given path must only be written by one goroutine at a
// time; the pipeline guarantees that by routing each document through a
// single update worker.
type Writer struct {
	logger *slog.Logger
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	Logger *slog.Logger
}

// NewWriter creates a document writer.
func NewWriter(cfg WriterConfig) *Writer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// edit replaces body[start:end] with repl.
type edit struct {
	start, end int
	repl       []byte
}

// Apply writes the records' display text, target, and anchor back into the
// document at path, deletes the elements named in remove, and saves the
// file in place. Records are joined to elements by ElementID; a record
// whose element cannot be found is logged and skipped.
func (w *Writer) Apply(ctx context.Context, path string, records []*hyperlink.Record, remove []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pkg, err := OpenPackage(path)
	if err != nil {
		return err
	}
	rels, err := pkg.Relationships()
	if err != nil {
		return err
	}

	body := pkg.Document()
	spans := scanHyperlinks(body)
	byID := make(map[string]span, len(spans))
	for _, s := range spans {
		byID[s.elementID()] = s
	}

	var edits []edit
	relsChanged := false

	for _, id := range remove {
		s, ok := byID[id]
		if !ok {
			w.logger.Warn("element to remove not found", "file", path, "element_id", id)
			continue
		}
		edits = append(edits, edit{start: s.start, end: s.end})
	}

	removed := make(map[string]bool, len(remove))
	for _, id := range remove {
		removed[id] = true
	}

	nextGenID := 1
	for _, rec := range records {
		if removed[rec.ElementID] {
			continue
		}
		s, ok := byID[rec.ElementID]
		if !ok {
			w.logger.Warn("element not found, skipping record",
				"file", path, "element_id", rec.ElementID)
			continue
		}

		openTag := string(body[s.start:s.innerStart])
		tagChanged := false

		// Anchor.
		if rec.SubAddress != s.anchor {
			openTag, tagChanged = setAnchorAttr(openTag, rec.SubAddress)
		}

		// Target address via the relationship table.
		if s.relID != "" {
			rel := rels[s.relID]
			if rec.Address != rel.Target {
				rel.Target = rec.Address
				rels[s.relID] = rel
				relsChanged = true
			}
		} else if rec.Address != "" {
			// An anchor-only link gained an external target (replacement
			// rule). Mint a relationship and attach it to the element.
			relID := fmt.Sprintf("rIdDH%d", nextGenID)
			for _, exists := rels[relID]; exists; _, exists = rels[relID] {
				nextGenID++
				relID = fmt.Sprintf("rIdDH%d", nextGenID)
			}
			nextGenID++
			rels[relID] = Relationship{
				ID:         relID,
				Type:       relTypeHyperlink,
				Target:     rec.Address,
				TargetMode: "External",
			}
			relsChanged = true
			openTag = strings.Replace(openTag, "<w:hyperlink",
				fmt.Sprintf(`<w:hyperlink r:id="%s"`, escapeString(relID)), 1)
			tagChanged = true
		}

		// Display text.
		currentText := spanText(body, s)
		textChanged := rec.DisplayText != currentText
		if !tagChanged && !textChanged {
			continue
		}

		var b bytes.Buffer
		b.WriteString(openTag)
		if textChanged {
			b.Write(rebuildRuns(body[s.innerStart:s.innerEnd], rec.DisplayText))
		} else {
			b.Write(body[s.innerStart:s.innerEnd])
		}
		b.WriteString("</w:hyperlink>")
		edits = append(edits, edit{start: s.start, end: s.end, repl: b.Bytes()})
	}

	if len(edits) == 0 && !relsChanged {
		return nil // nothing to persist
	}

	pkg.SetDocument(applyEdits(body, edits))
	if relsChanged {
		if err := pkg.SetRelationships(rels); err != nil {
			return err
		}
	}
	return pkg.Save(path)
}

// applyEdits applies non-overlapping edits from the end of the body
// backwards so earlier offsets stay valid.
func applyEdits(body []byte, edits []edit) []byte {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	out := body
	for _, e := range edits {
		merged := make([]byte, 0, len(out)-(e.end-e.start)+len(e.repl))
		merged = append(merged, out[:e.start]...)
		merged = append(merged, e.repl...)
		merged = append(merged, out[e.end:]...)
		out = merged
	}
	return out
}

var anchorReplacePattern = regexp.MustCompile(`w:anchor="[^"]*"`)

// setAnchorAttr updates or inserts the w:anchor attribute on a hyperlink
// open tag. An empty anchor removes the attribute.
func setAnchorAttr(openTag, anchor string) (string, bool) {
	if anchor == "" {
		updated := anchorReplacePattern.ReplaceAllString(openTag, "")
		updated = strings.ReplaceAll(updated, "  ", " ")
		updated = strings.Replace(updated, " >", ">", 1)
		return updated, updated != openTag
	}
	attr := fmt.Sprintf(`w:anchor="%s"`, escapeString(anchor))
	if anchorReplacePattern.MatchString(openTag) {
		return anchorReplacePattern.ReplaceAllString(openTag, attr), true
	}
	return strings.Replace(openTag, "<w:hyperlink", "<w:hyperlink "+attr, 1), true
}

// rebuildRuns replaces the element's child runs with a single text run.
// The first run's properties are preserved so the link keeps its character
// formatting (typically the Hyperlink style).
func rebuildRuns(inner []byte, text string) []byte {
	var props []byte
	if firstRun := runPattern.Find(inner); firstRun != nil {
		props = runPropsPattern.Find(firstRun)
	}
	var b bytes.Buffer
	b.WriteString("<w:r>")
	b.Write(props)
	b.WriteString(`<w:t xml:space="preserve">`)
	b.WriteString(escapeString(text))
	b.WriteString("</w:t></w:r>")
	return b.Bytes()
}
