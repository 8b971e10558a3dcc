package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Well-known part names inside the package.
const (
	partDocument = "word/document.xml"
	partRels     = "word/_rels/document.xml.rels"

	relTypeHyperlink = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

// FilePolicy bounds which files are admitted for processing.
type FilePolicy struct {
	MaxSizeBytes int64
	Extensions   []string // lower-case, with dot; empty means .docx only
}

// DefaultFilePolicy admits .docx files up to 50 MB.
func DefaultFilePolicy() FilePolicy {
	return FilePolicy{
		MaxSizeBytes: 50 << 20,
		Extensions:   []string{".docx"},
	}
}

// ValidateFile checks a path against the policy before it is admitted to
// extraction. Returns an *AccessError describing the first violation.
func ValidateFile(path string, policy FilePolicy) error {
	info, err := os.Stat(path)
	if err != nil {
		return &AccessError{Path: path, Reason: ReasonMissing, Err: err}
	}
	if info.IsDir() {
		return &AccessError{Path: path, Reason: ReasonWrongType}
	}
	if info.Size() == 0 {
		return &AccessError{Path: path, Reason: ReasonZeroBytes}
	}
	if policy.MaxSizeBytes > 0 && info.Size() > policy.MaxSizeBytes {
		return &AccessError{Path: path, Reason: ReasonOversized}
	}

	exts := policy.Extensions
	if len(exts) == 0 {
		exts = []string{".docx"}
	}
	ext := strings.ToLower(filepath.Ext(path))
	ok := false
	for _, e := range exts {
		if ext == e {
			ok = true
			break
		}
	}
	if !ok {
		return &AccessError{Path: path, Reason: ReasonWrongType}
	}

	// Word drops a ~$ owner file next to a document it holds open.
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return &AccessError{Path: path, Reason: ReasonLocked}
	}

	f, err := os.Open(path)
	if err != nil {
		return &AccessError{Path: path, Reason: ReasonUnreadable, Err: err}
	}
	f.Close()
	return nil
}

// part is one zip entry, held in memory with its original header so that
// saving preserves entry order, names, and compression settings for parts
// we never touch.
type part struct {
	header *zip.FileHeader
	data   []byte
}

// Package is an open OOXML document. All parts are read into memory;
// Save round-trips untouched parts byte-for-byte.
type Package struct {
	path  string
	parts []part
	index map[string]int // part name -> position in parts
}

// OpenPackage reads the document at path into memory.
func OpenPackage(path string) (*Package, error) {
	if err := ValidateFile(path, FilePolicy{}); err != nil {
		return nil, err
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("open package: %w", err)}
	}
	defer reader.Close()

	pkg := &Package{
		path:  path,
		parts: make([]part, 0, len(reader.File)),
		index: make(map[string]int, len(reader.File)),
	}
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, &FormatError{Path: path, Err: fmt.Errorf("open part %s: %w", f.Name, err)}
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &FormatError{Path: path, Err: fmt.Errorf("read part %s: %w", f.Name, err)}
		}
		header := f.FileHeader
		pkg.index[f.Name] = len(pkg.parts)
		pkg.parts = append(pkg.parts, part{header: &header, data: data})
	}

	if _, ok := pkg.index[partDocument]; !ok {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("missing %s", partDocument)}
	}
	return pkg, nil
}

// Path returns the file path the package was opened from.
func (p *Package) Path() string { return p.path }

// Part returns the raw bytes of a named part, or nil if absent.
func (p *Package) Part(name string) []byte {
	i, ok := p.index[name]
	if !ok {
		return nil
	}
	return p.parts[i].data
}

// SetPart replaces the contents of a named part. Adding new parts is not
// supported; the rewrite only ever touches existing ones.
func (p *Package) SetPart(name string, data []byte) error {
	i, ok := p.index[name]
	if !ok {
		return fmt.Errorf("no such part: %s", name)
	}
	p.parts[i].data = data
	return nil
}

// Document returns the main document body XML.
func (p *Package) Document() []byte { return p.Part(partDocument) }

// SetDocument replaces the main document body XML.
func (p *Package) SetDocument(data []byte) { _ = p.SetPart(partDocument, data) }

// Save writes the package to path atomically: a temp file in the same
// directory is written first, then renamed over the destination.
func (p *Package) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dochelper-*.docx")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	zw := zip.NewWriter(tmp)
	for _, pt := range p.parts {
		header := *pt.header
		header.CompressedSize64 = 0
		header.UncompressedSize64 = 0
		header.CRC32 = 0
		w, err := zw.CreateHeader(&header)
		if err != nil {
			zw.Close()
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("write part %s: %w", pt.header.Name, err)
		}
		if _, err := w.Write(pt.data); err != nil {
			zw.Close()
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("write part %s: %w", pt.header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("finalize package: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Relationship is one entry from the document's relationship table.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

type relationshipsXML struct {
	XMLName xml.Name       `xml:"Relationships"`
	Rels    []Relationship `xml:"Relationship"`
}

// Relationships parses the document relationship table into a map keyed by
// relationship id.
func (p *Package) Relationships() (map[string]Relationship, error) {
	data := p.Part(partRels)
	if data == nil {
		// A body with no relationships part is legal (no external links).
		return map[string]Relationship{}, nil
	}
	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, &FormatError{Path: p.path, Err: fmt.Errorf("parse relationships: %w", err)}
	}
	out := make(map[string]Relationship, len(rels.Rels))
	for _, r := range rels.Rels {
		out[r.ID] = r
	}
	return out, nil
}

// SetRelationships rewrites the relationship part from the map. Entries are
// emitted in id order so output is deterministic.
func (p *Package) SetRelationships(rels map[string]Relationship) error {
	ids := make([]string, 0, len(rels))
	for id := range rels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, id := range ids {
		r := rels[id]
		b.WriteString(`<Relationship Id="`)
		xmlEscape(&b, r.ID)
		b.WriteString(`" Type="`)
		xmlEscape(&b, r.Type)
		b.WriteString(`" Target="`)
		xmlEscape(&b, r.Target)
		b.WriteString(`"`)
		if r.TargetMode != "" {
			b.WriteString(` TargetMode="`)
			xmlEscape(&b, r.TargetMode)
			b.WriteString(`"`)
		}
		b.WriteString(`/>`)
	}
	b.WriteString(`</Relationships>`)
	return p.SetPart(partRels, b.Bytes())
}

func xmlEscape(b *bytes.Buffer, s string) {
	_ = xml.EscapeText(b, []byte(s))
}

// escapeString returns s with XML special characters escaped.
func escapeString(s string) string {
	var b bytes.Buffer
	xmlEscape(&b, s)
	return b.String()
}

var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// unescapeString reverses the five predefined XML entity escapes. Numeric
// character references are rare in w:t content and are left as-is.
func unescapeString(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return xmlUnescaper.Replace(s)
}
