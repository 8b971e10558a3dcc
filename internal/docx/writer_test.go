package docx

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/testutil"
)

func extractAll(t *testing.T, path string) []*hyperlink.Record {
	t.Helper()
	reader := NewReader(ReaderConfig{})
	records, err := reader.Extract(context.Background(), path)
	require.NoError(t, err)
	return records
}

func TestApplyNoChangesLeavesFileAlone(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "doc.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://example.com/a", Anchor: "top", Text: "Link A"},
		},
	})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	records := extractAll(t, path)
	writer := NewWriter(WriterConfig{})
	require.NoError(t, writer.Apply(context.Background(), path, records, nil))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "unchanged records must not rewrite the file")
}

func TestApplyUpdatesTextTargetAndAnchor(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "doc.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://example.com/old", Anchor: "oldmark", Text: "Old Text"},
			{RelID: "rId2", Target: "https://example.com/keep", Text: "Keep Me"},
		},
	})

	records := extractAll(t, path)
	records[0].DisplayText = "New Text (123456)"
	records[0].Address = "https://example.com/new"
	records[0].SubAddress = "newmark"

	writer := NewWriter(WriterConfig{})
	require.NoError(t, writer.Apply(context.Background(), path, records, nil))

	again := extractAll(t, path)
	require.Len(t, again, 2)
	assert.Equal(t, "New Text (123456)", again[0].DisplayText)
	assert.Equal(t, "https://example.com/new", again[0].Address)
	assert.Equal(t, "newmark", again[0].SubAddress)
	assert.Equal(t, "rId1#0", again[0].ElementID, "element id stays stable across write-back")

	assert.Equal(t, "Keep Me", again[1].DisplayText)
	assert.Equal(t, "https://example.com/keep", again[1].Address)
}

func TestApplyRemovesElements(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "doc.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://example.com/a", Text: "Visible"},
			{RelID: "rId2", Target: "https://example.com/ghost", Text: ""},
		},
	})

	records := extractAll(t, path)
	require.Len(t, records, 2)

	writer := NewWriter(WriterConfig{})
	require.NoError(t, writer.Apply(context.Background(), path, records, []string{records[1].ElementID}))

	again := extractAll(t, path)
	require.Len(t, again, 1)
	assert.Equal(t, "rId1#0", again[0].ElementID)
}

func TestApplyUpdatesAllLinksSharingRelationship(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "doc.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://example.com/shared", Text: "one"},
			{RelID: "rId1", Target: "https://example.com/shared", Text: "two"},
		},
	})

	records := extractAll(t, path)
	require.Len(t, records, 2)
	require.NotEqual(t, records[0].ElementID, records[1].ElementID)
	records[0].DisplayText = "ONE"
	records[1].DisplayText = "TWO"

	writer := NewWriter(WriterConfig{})
	require.NoError(t, writer.Apply(context.Background(), path, records, nil))

	again := extractAll(t, path)
	require.Len(t, again, 2)
	assert.Equal(t, "ONE", again[0].DisplayText)
	assert.Equal(t, "TWO", again[1].DisplayText)
}

func TestApplyMintsRelationshipForAnchorOnlyLink(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "doc.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{Anchor: "internal", Text: "Was Internal"},
		},
	})

	records := extractAll(t, path)
	require.Len(t, records, 1)
	require.Equal(t, "h0", records[0].ElementID)

	// A replacement rule turned the internal link into an external one.
	records[0].Address = "https://docs.example.com/view"
	records[0].SubAddress = "docid=doc-9"
	records[0].DisplayText = "Replacement Title (654321)"

	writer := NewWriter(WriterConfig{})
	require.NoError(t, writer.Apply(context.Background(), path, records, nil))

	again := extractAll(t, path)
	require.Len(t, again, 1)
	assert.Equal(t, "https://docs.example.com/view", again[0].Address)
	assert.Equal(t, "docid=doc-9", again[0].SubAddress)
	assert.Equal(t, "Replacement Title (654321)", again[0].DisplayText)

	pkg, err := OpenPackage(path)
	require.NoError(t, err)
	rels, err := pkg.Relationships()
	require.NoError(t, err)
	found := false
	for _, rel := range rels {
		if rel.Target == "https://docs.example.com/view" {
			found = true
			assert.Equal(t, "External", rel.TargetMode)
		}
	}
	assert.True(t, found, "a relationship was minted for the new target")
}

func TestApplyPreservesRunProperties(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDocx(t, dir, "doc.docx", testutil.Doc{
		Hyperlinks: []testutil.Hyperlink{
			{RelID: "rId1", Target: "https://example.com/a", Text: "Styled"},
		},
	})

	records := extractAll(t, path)
	records[0].DisplayText = "Restyled"
	writer := NewWriter(WriterConfig{})
	require.NoError(t, writer.Apply(context.Background(), path, records, nil))

	pkg, err := OpenPackage(path)
	require.NoError(t, err)
	body := string(pkg.Document())
	assert.Contains(t, body, `<w:rStyle w:val="Hyperlink"/>`, "run properties survive the rewrite")
	assert.Contains(t, body, `xml:space="preserve"`)
}

func TestApplyEdits(t *testing.T) {
	body := []byte("0123456789")
	out := applyEdits(body, []edit{
		{start: 0, end: 2, repl: []byte("ab")},
		{start: 5, end: 7, repl: []byte("XYZ")},
		{start: 8, end: 9},
	})
	assert.Equal(t, "ab234XYZ79", string(out))
}
