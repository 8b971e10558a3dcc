package changelog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/docx"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
)

func sampleLog() *Log {
	log := NewLog()
	log.AddChanges("b.docx", []hyperlink.Change{
		{Kind: hyperlink.ChangeUpdatedTitle, PageHint: 1, LineNumber: 3, Before: "Old", After: "New (123456)", ContentID: "TSRC-AB-123456"},
	})
	log.AddChanges("a.docx", []hyperlink.Change{
		{Kind: hyperlink.ChangeExpired, PageHint: 2, LineNumber: 60, Before: "Policy", After: "Policy - Expired"},
		{Kind: hyperlink.ChangeMismatch, PageHint: 1, LineNumber: 2, Before: "Stale", CorrectTitle: "Fresh"},
	})
	log.AddTextChanges("a.docx", []docx.TextChange{
		{Before: "draft text", After: "final text", LineNumber: 9, PageHint: 1},
	})
	return log
}

func TestEntriesSortedByFileThenLine(t *testing.T) {
	log := sampleLog()
	entries := log.Entries()
	require.Len(t, entries, 4)

	assert.Equal(t, "a.docx", entries[0].File)
	assert.Equal(t, 2, entries[0].Line)
	assert.Equal(t, "a.docx", entries[1].File)
	assert.Equal(t, 9, entries[1].Line)
	assert.Equal(t, "a.docx", entries[2].File)
	assert.Equal(t, 60, entries[2].Line)
	assert.Equal(t, "b.docx", entries[3].File)
}

func TestByKind(t *testing.T) {
	log := sampleLog()
	grouped := log.ByKind()
	assert.Len(t, grouped[hyperlink.ChangeUpdatedTitle], 1)
	assert.Len(t, grouped[hyperlink.ChangeExpired], 1)
	assert.Len(t, grouped[hyperlink.ChangeMismatch], 1)
	assert.Len(t, grouped["text_replaced"], 1)
}

func TestEmptyChangesAreIgnored(t *testing.T) {
	log := NewLog()
	log.AddChanges("a.docx", nil)
	log.AddTextChanges("a.docx", nil)
	assert.Equal(t, 0, log.Len())
}

func TestWriteText(t *testing.T) {
	log := sampleLog()
	var buf bytes.Buffer
	require.NoError(t, log.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, "4 changes")
	assert.Contains(t, out, "Updated titles (1)")
	assert.Contains(t, out, "Expired (1)")
	assert.Contains(t, out, "Title mismatches (1)")
	assert.Contains(t, out, "Text replacements (1)")
	assert.Contains(t, out, `"Stale" should be "Fresh"`)
	assert.Contains(t, out, `"Old" -> "New (123456)"`)
	assert.Contains(t, out, "[TSRC-AB-123456]")
}

func TestWriteJSON(t *testing.T) {
	log := sampleLog()
	var buf bytes.Buffer
	require.NoError(t, log.WriteJSON(&buf))

	var entries []Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 4)
	assert.Equal(t, hyperlink.ChangeMismatch, entries[0].Kind)
	assert.Equal(t, "Fresh", entries[0].CorrectTitle)
}

func TestConcurrentAdds(t *testing.T) {
	log := NewLog()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 50; j++ {
				log.AddChanges("f.docx", []hyperlink.Change{{Kind: hyperlink.ChangeNormalized, LineNumber: j}})
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 400, log.Len())
}
