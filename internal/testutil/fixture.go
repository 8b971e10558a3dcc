// Package testutil builds minimal WordprocessingML packages for tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Hyperlink describes one link to place in a fixture document. A link with
// a RelID gets an entry in the relationship table pointing at Target; a
// link with only an Anchor is document-internal.
type Hyperlink struct {
	RelID  string
	Target string
	Anchor string
	Text   string
}

// Doc describes a fixture document. Each hyperlink and each paragraph of
// plain text occupies its own paragraph, in the order given: hyperlinks
// first, then Paragraphs.
type Doc struct {
	Hyperlinks []Hyperlink
	Paragraphs []string
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

// DocxBytes renders the fixture as a complete .docx package in memory.
func DocxBytes(doc Doc) []byte {
	var body strings.Builder
	for _, h := range doc.Hyperlinks {
		body.WriteString("<w:p>")
		body.WriteString("<w:hyperlink")
		if h.RelID != "" {
			fmt.Fprintf(&body, ` r:id="%s"`, h.RelID)
		}
		if h.Anchor != "" {
			fmt.Fprintf(&body, ` w:anchor="%s"`, h.Anchor)
		}
		body.WriteString(">")
		if h.Text != "" {
			body.WriteString(`<w:r><w:rPr><w:rStyle w:val="Hyperlink"/></w:rPr><w:t>`)
			body.WriteString(escape(h.Text))
			body.WriteString("</w:t></w:r>")
		}
		body.WriteString("</w:hyperlink></w:p>")
		body.WriteString("\n")
	}
	for _, p := range doc.Paragraphs {
		body.WriteString("<w:p><w:r><w:t>")
		body.WriteString(escape(p))
		body.WriteString("</w:t></w:r></w:p>\n")
	}

	documentXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>
` + body.String() + `</w:body></w:document>`

	var rels strings.Builder
	rels.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, h := range doc.Hyperlinks {
		if h.RelID == "" {
			continue
		}
		fmt.Fprintf(&rels, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="%s" TargetMode="External"/>`,
			h.RelID, escape(h.Target))
	}
	rels.WriteString(`</Relationships>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/document.xml", documentXML},
		{"word/_rels/document.xml.rels", rels.String()},
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(part.data)); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WriteDocx writes the fixture into dir and returns its path.
func WriteDocx(t testing.TB, dir, name string, doc Doc) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, DocxBytes(doc), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
