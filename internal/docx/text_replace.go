package docx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// TextReplacementRule is one ordered find/replace rule applied to plain
// document text, independent of hyperlinks. NewText may be empty
// (deletion); a rule with empty OldText is invalid and skipped.
type TextReplacementRule struct {
	OldText        string `mapstructure:"old_text" yaml:"old_text"`
	NewText        string `mapstructure:"new_text" yaml:"new_text"`
	CaseSensitive  bool   `mapstructure:"case_sensitive" yaml:"case_sensitive"`
	WholeWordsOnly bool   `mapstructure:"whole_words_only" yaml:"whole_words_only"`
}

// TextChange logs one changed text run. Line is the run ordinal and the
// page advances every 50 lines; both are positional hints, not real layout.
type TextChange struct {
	OldText    string
	NewText    string
	Before     string
	After      string
	LineNumber int
	PageHint   int
}

// TextReplaceResult summarizes one replacement pass over a document.
type TextReplaceResult struct {
	// Count is the number of text runs whose content changed.
	Count   int
	Changes []TextChange
}

// TextReplacer applies text replacement rules over a document's runs.
type TextReplacer struct {
	logger *slog.Logger
}

// NewTextReplacer creates a text replacer.
func NewTextReplacer(logger *slog.Logger) *TextReplacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextReplacer{logger: logger}
}

// Replace walks the document's text runs in order and applies every valid
// rule to each run. Matches never span run boundaries. The document is
// saved in place only when at least one run changed.
func (t *TextReplacer) Replace(ctx context.Context, path string, rules []TextReplacementRule) (*TextReplaceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matchers := t.compileRules(rules)
	if len(matchers) == 0 {
		return &TextReplaceResult{}, nil
	}

	pkg, err := OpenPackage(path)
	if err != nil {
		return nil, err
	}
	body := pkg.Document()

	result := &TextReplaceResult{}
	var edits []edit
	line := 0
	for _, loc := range textRunPattern.FindAllSubmatchIndex(body, -1) {
		line++
		attrs := string(body[loc[2]:loc[3]])
		before := unescapeString(string(body[loc[4]:loc[5]]))

		after := before
		for _, m := range matchers {
			after = m.apply(after)
		}
		if after == before {
			continue
		}

		result.Count++
		result.Changes = append(result.Changes, TextChange{
			Before:     before,
			After:      after,
			LineNumber: line,
			PageHint:   pageHint(line),
		})

		if !strings.Contains(attrs, "xml:space") {
			attrs += ` xml:space="preserve"`
		}
		var b bytes.Buffer
		fmt.Fprintf(&b, "<w:t%s>", attrs)
		b.WriteString(escapeString(after))
		b.WriteString("</w:t>")
		edits = append(edits, edit{start: loc[0], end: loc[1], repl: b.Bytes()})
	}

	if len(edits) == 0 {
		return result, nil
	}
	pkg.SetDocument(applyEdits(body, edits))
	if err := pkg.Save(path); err != nil {
		return nil, err
	}
	return result, nil
}

// ruleMatcher is a compiled rule ready to apply to run text.
type ruleMatcher struct {
	re      *regexp.Regexp // nil for case-sensitive literal rules
	literal string
	replace string
}

func (m ruleMatcher) apply(text string) string {
	if m.re != nil {
		return m.re.ReplaceAllLiteralString(text, m.replace)
	}
	return strings.ReplaceAll(text, m.literal, m.replace)
}

// compileRules drops invalid rules with a warning and compiles the rest,
// preserving order.
func (t *TextReplacer) compileRules(rules []TextReplacementRule) []ruleMatcher {
	matchers := make([]ruleMatcher, 0, len(rules))
	for _, rule := range rules {
		if rule.OldText == "" {
			t.logger.Warn("skipping text rule with empty old_text")
			continue
		}
		if !rule.WholeWordsOnly && rule.CaseSensitive {
			matchers = append(matchers, ruleMatcher{literal: rule.OldText, replace: rule.NewText})
			continue
		}
		pattern := regexp.QuoteMeta(rule.OldText)
		if rule.WholeWordsOnly {
			pattern = `\b` + pattern + `\b`
		}
		if !rule.CaseSensitive {
			pattern = `(?i)` + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			t.logger.Warn("skipping uncompilable text rule", "old_text", rule.OldText, "error", err)
			continue
		}
		matchers = append(matchers, ruleMatcher{re: re, replace: rule.NewText})
	}
	return matchers
}
