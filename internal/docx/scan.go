package docx

import (
	"fmt"
	"regexp"
	"sort"
)

var (
	hyperlinkOpenPattern  = regexp.MustCompile(`<w:hyperlink\b[^>]*>`)
	hyperlinkClosePattern = regexp.MustCompile(`</w:hyperlink>`)
	relIDAttrPattern      = regexp.MustCompile(`r:id="([^"]*)"`)
	anchorAttrPattern     = regexp.MustCompile(`w:anchor="([^"]*)"`)
	paragraphPattern      = regexp.MustCompile(`<w:p[ >]`)
	runPattern            = regexp.MustCompile(`(?s)<w:r\b[^>]*>.*?</w:r>`)
	runPropsPattern       = regexp.MustCompile(`(?s)<w:rPr>.*?</w:rPr>`)
	textRunPattern        = regexp.MustCompile(`(?s)<w:t\b([^/>]*)>(.*?)</w:t>`)
)

// span is one <w:hyperlink> element located in the document body.
// Offsets index into the body bytes; inner delimits the child content
// between the open and close tags.
type span struct {
	start, end           int
	innerStart, innerEnd int
	ordinal              int // 0-based position among hyperlink elements
	relID                string
	anchor               string
	line                 int // 1-based paragraph ordinal at the element's position
}

// elementID returns the join key for the element. The relationship id
// alone cannot serve: OOXML permits two hyperlinks to share one r:id, so
// the key carries the element ordinal too. Ordinals are stable for the
// lifetime of a run because the file is not rewritten between extraction
// and write-back.
func (s *span) elementID() string {
	if s.relID != "" {
		return fmt.Sprintf("%s#%d", s.relID, s.ordinal)
	}
	return fmt.Sprintf("h%d", s.ordinal)
}

// pageHint converts a line ordinal to the coarse page approximation:
// the page advances every 50 lines. This is a positional hint, not
// real pagination.
func pageHint(line int) int {
	if line < 1 {
		return 1
	}
	return (line-1)/50 + 1
}

// scanHyperlinks locates every hyperlink element in the body, in document
// order. Self-closing elements carry no text and are not returned.
func scanHyperlinks(body []byte) []span {
	paragraphStarts := paragraphPattern.FindAllIndex(body, -1)
	lineAt := func(offset int) int {
		n := sort.Search(len(paragraphStarts), func(i int) bool {
			return paragraphStarts[i][0] > offset
		})
		if n == 0 {
			return 1
		}
		return n
	}

	opens := hyperlinkOpenPattern.FindAllIndex(body, -1)
	var spans []span
	searchFrom := 0
	for i, open := range opens {
		if open[0] < searchFrom {
			// Overlapping match inside a previous element; OOXML does not
			// nest hyperlinks, so treat it as malformed and skip.
			continue
		}
		openTag := body[open[0]:open[1]]
		if openTag[len(openTag)-2] == '/' {
			continue // self-closing, no content
		}
		close := hyperlinkClosePattern.FindIndex(body[open[1]:])
		if close == nil {
			// Unterminated element; skip the rest of the body.
			break
		}
		s := span{
			start:      open[0],
			end:        open[1] + close[1],
			innerStart: open[1],
			innerEnd:   open[1] + close[0],
			ordinal:    i,
			line:       lineAt(open[0]),
		}
		if m := relIDAttrPattern.FindSubmatch(openTag); m != nil {
			s.relID = string(m[1])
		}
		if m := anchorAttrPattern.FindSubmatch(openTag); m != nil {
			s.anchor = unescapeString(string(m[1]))
		}
		spans = append(spans, s)
		searchFrom = s.end
	}
	return spans
}

// spanText concatenates the element's text runs into display text.
func spanText(body []byte, s span) string {
	inner := body[s.innerStart:s.innerEnd]
	matches := textRunPattern.FindAllSubmatch(inner, -1)
	if len(matches) == 0 {
		return ""
	}
	var text string
	for _, m := range matches {
		text += unescapeString(string(m[2]))
	}
	return text
}
