package changelog

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
)

// section headings in render order.
var sections = []struct {
	kind  hyperlink.ChangeKind
	title string
}{
	{hyperlink.ChangeUpdatedTitle, "Updated titles"},
	{hyperlink.ChangeReplaced, "Replaced links"},
	{hyperlink.ChangeExpired, "Expired"},
	{hyperlink.ChangeNotFound, "Not found"},
	{hyperlink.ChangeMismatch, "Title mismatches"},
	{hyperlink.ChangeRemoved, "Removed invisible links"},
	{hyperlink.ChangeSuffixed, "Content-id suffixes"},
	{hyperlink.ChangeNormalized, "Whitespace normalized"},
	{"text_replaced", "Text replacements"},
}

// WriteText renders the changelog as a human-readable report.
func (l *Log) WriteText(w io.Writer) error {
	grouped := l.ByKind()
	fmt.Fprintf(w, "Change log - %s\n", l.started.Format(time.RFC1123))
	fmt.Fprintf(w, "%d changes\n", l.Len())

	for _, s := range sections {
		entries := grouped[s.kind]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d)\n", s.title, len(entries))
		for _, e := range entries {
			fmt.Fprintf(w, "  %s p.%d l.%d: ", e.File, e.Page, e.Line)
			switch {
			case e.CorrectTitle != "":
				fmt.Fprintf(w, "%q should be %q", e.Before, e.CorrectTitle)
			case e.After != "":
				fmt.Fprintf(w, "%q -> %q", e.Before, e.After)
			default:
				fmt.Fprintf(w, "%q", e.Before)
			}
			if e.ContentID != "" {
				fmt.Fprintf(w, " [%s]", e.ContentID)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

// WriteJSON renders all entries as a JSON array.
func (l *Log) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l.Entries())
}
