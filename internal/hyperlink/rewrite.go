package hyperlink

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// ChangeKind classifies a single rewrite applied to a record.
type ChangeKind string

const (
	ChangeUpdatedTitle ChangeKind = "updated_title"
	ChangeNotFound     ChangeKind = "not_found"
	ChangeExpired      ChangeKind = "expired"
	ChangeMismatch     ChangeKind = "mismatch"
	ChangeReplaced     ChangeKind = "replaced"
	ChangeRemoved      ChangeKind = "removed"
	ChangeSuffixed     ChangeKind = "suffixed"
	ChangeNormalized   ChangeKind = "normalized"
)

// Change records one rewrite for the changelog. Before/After are display
// text; CorrectTitle is only set for mismatch entries.
type Change struct {
	Kind         ChangeKind
	ElementID    string
	PageHint     int
	LineNumber   int
	Before       string
	After        string
	CorrectTitle string
	ContentID    string
}

var (
	// Trailing content-id suffix: five or six digits in parentheses.
	suffixPattern = regexp.MustCompile(`\s*\((\d{5,6})\)\s*$`)
	// Trailing status marker.
	markerPattern = regexp.MustCompile(`\s*-\s*(Expired|Not Found)\s*$`)
	multiSpace    = regexp.MustCompile(`  +`)

	// The only suffix form a rewrite may append. Anything else would not be
	// re-recognized by suffixPattern on the next pass and would stack.
	appendableSuffix = regexp.MustCompile(`^\d{5,6}$`)
)

// Markers appended to display text.
const (
	markerExpired  = "Expired"
	markerNotFound = "Not Found"
)

// SplitDisplayText decomposes display text into its canonical parts:
// base title, status marker ("" when absent), and content-id suffix digits
// ("" when absent). Recomposing with joinDisplayText is the identity for
// text already in canonical form, which is what makes every rewrite step
// safe to re-run.
func SplitDisplayText(text string) (base, marker, suffix string) {
	if m := suffixPattern.FindStringSubmatch(text); m != nil {
		suffix = m[1]
		text = text[:len(text)-len(m[0])]
	}
	if m := markerPattern.FindStringSubmatch(text); m != nil {
		marker = m[1]
		text = text[:len(text)-len(m[0])]
	}
	return strings.TrimRight(text, " "), marker, suffix
}

func joinDisplayText(base, marker, suffix string) string {
	var b strings.Builder
	b.WriteString(base)
	if marker != "" {
		b.WriteString(" - ")
		b.WriteString(marker)
	}
	if suffix != "" {
		b.WriteString(" (")
		b.WriteString(suffix)
		b.WriteString(")")
	}
	return b.String()
}

// SanitizeDisplayText strips the trailing content-id suffix. Replacement
// rules match against this form.
func SanitizeDisplayText(text string) string {
	return strings.TrimRight(suffixPattern.ReplaceAllString(text, ""), " ")
}

// titlesEqual compares two titles ignoring case, surrounding whitespace,
// and any content-id suffix.
func titlesEqual(a, b string) bool {
	return strings.EqualFold(
		strings.TrimSpace(SanitizeDisplayText(a)),
		strings.TrimSpace(SanitizeDisplayText(b)),
	)
}

// ContentIDSuffix returns the last-six and last-five digit forms for a
// lookup id. Ids shorter than the window return the whole id.
func ContentIDSuffix(lookupID string) (last6, last5 string) {
	last6 = lookupID
	if len(lookupID) > 6 {
		last6 = lookupID[len(lookupID)-6:]
	}
	last5 = last6
	if len(last6) > 5 {
		last5 = last6[len(last6)-5:]
	}
	return last6, last5
}

// EngineConfig configures a rewrite engine.
type EngineConfig struct {
	// BaseURL is the fixed address applied by replacement rules.
	BaseURL string
	Logger  *slog.Logger
}

// Engine applies the hyperlink rewrite rules. All sub-steps are idempotent:
// re-running any of them on an already-processed record leaves the record
// unchanged. That property is load-bearing because the same file is
// routinely processed more than once.
type Engine struct {
	baseURL string
	logger  *slog.Logger
}

// NewEngine creates a rewrite engine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{baseURL: cfg.BaseURL, logger: logger}
}

// RemoveInvisible drops records that have a target but no visible text.
// Such links render as nothing in the document and are deleted outright
// rather than rewritten. Returns the surviving records and one removal
// change per dropped link.
func (e *Engine) RemoveInvisible(records []*Record) ([]*Record, []Change) {
	kept := records[:0]
	var changes []Change
	for _, r := range records {
		if strings.TrimSpace(r.DisplayText) == "" && (r.Address != "" || r.SubAddress != "") {
			e.logger.Debug("removing invisible hyperlink",
				"element_id", r.ElementID, "address", r.Address)
			changes = append(changes, Change{
				Kind:       ChangeRemoved,
				ElementID:  r.ElementID,
				PageHint:   r.PageHint,
				LineNumber: r.LineNumber,
				Before:     r.FullAddress(),
			})
			continue
		}
		kept = append(kept, r)
	}
	return kept, changes
}

// ApplyTitle updates the record's display text from the resolved record.
// When the lookup id is absent from the mapping the title is left alone and
// a Not Found marker is applied instead. Returns the change made, if any.
func (e *Engine) ApplyTitle(r *Record, resolved map[string]Resolved) *Change {
	if r.LookupID == "" {
		return nil
	}
	before := r.DisplayText
	base, marker, suffix := SplitDisplayText(r.DisplayText)

	rec, ok := resolved[r.LookupID]
	if !ok {
		if marker == markerNotFound {
			return nil
		}
		r.DisplayText = joinDisplayText(base, markerNotFound, suffix)
		r.Status = StatusNotFound
		return &Change{
			Kind:       ChangeNotFound,
			ElementID:  r.ElementID,
			PageHint:   r.PageHint,
			LineNumber: r.LineNumber,
			Before:     before,
			After:      r.DisplayText,
			ContentID:  r.ContentID,
		}
	}

	r.Title = rec.Title
	r.ContentID = rec.ContentID
	r.DocumentID = rec.DocumentID
	r.Status = ParseStatus(rec.Status)

	if titlesEqual(base, rec.Title) {
		return nil
	}
	r.DisplayText = joinDisplayText(rec.Title, marker, suffix)
	return &Change{
		Kind:       ChangeUpdatedTitle,
		ElementID:  r.ElementID,
		PageHint:   r.PageHint,
		LineNumber: r.LineNumber,
		Before:     before,
		After:      r.DisplayText,
		ContentID:  rec.ContentID,
	}
}

// ApplyStatusMarker appends the marker matching the record's resolved
// status. Any existing marker is stripped first, so markers never stack.
func (e *Engine) ApplyStatusMarker(r *Record) *Change {
	if r.Status != StatusExpired {
		return nil
	}
	before := r.DisplayText
	base, marker, suffix := SplitDisplayText(r.DisplayText)
	if marker == markerExpired {
		return nil
	}
	r.DisplayText = joinDisplayText(base, markerExpired, suffix)
	return &Change{
		Kind:       ChangeExpired,
		ElementID:  r.ElementID,
		PageHint:   r.PageHint,
		LineNumber: r.LineNumber,
		Before:     before,
		After:      r.DisplayText,
		ContentID:  r.ContentID,
	}
}

// ApplyContentIDSuffix appends or upgrades the trailing content-id
// parenthetical. An existing five-digit suffix matching the lookup id is
// upgraded to six digits; any other existing suffix is left alone.
// Ids whose tail is not five or six digits get no suffix at all.
// Re-running on an already-suffixed record is a no-op.
func (e *Engine) ApplyContentIDSuffix(r *Record) *Change {
	if r.LookupID == "" {
		return nil
	}
	last6, last5 := ContentIDSuffix(r.LookupID)
	if !appendableSuffix.MatchString(last6) {
		return nil
	}
	before := r.DisplayText
	base, marker, suffix := SplitDisplayText(r.DisplayText)

	switch suffix {
	case last6:
		return nil
	case last5:
		suffix = last6
	case "":
		suffix = last6
	default:
		return nil
	}

	r.DisplayText = joinDisplayText(base, marker, suffix)
	return &Change{
		Kind:       ChangeSuffixed,
		ElementID:  r.ElementID,
		PageHint:   r.PageHint,
		LineNumber: r.LineNumber,
		Before:     before,
		After:      r.DisplayText,
		ContentID:  r.ContentID,
	}
}

// NormalizeSpaces collapses runs of two or more spaces in display text.
func (e *Engine) NormalizeSpaces(r *Record) *Change {
	normalized := multiSpace.ReplaceAllString(r.DisplayText, " ")
	if normalized == r.DisplayText {
		return nil
	}
	before := r.DisplayText
	r.DisplayText = normalized
	return &Change{
		Kind:       ChangeNormalized,
		ElementID:  r.ElementID,
		PageHint:   r.PageHint,
		LineNumber: r.LineNumber,
		Before:     before,
		After:      normalized,
	}
}

// DetectMismatches compares current titles against resolved titles without
// mutating any record. Records already carrying a status marker are
// skipped. This backs the detect-only mode.
func (e *Engine) DetectMismatches(records []*Record, resolved map[string]Resolved) []Change {
	var changes []Change
	for _, r := range records {
		if r.LookupID == "" {
			continue
		}
		rec, ok := resolved[r.LookupID]
		if !ok {
			continue
		}
		base, marker, _ := SplitDisplayText(r.DisplayText)
		if marker != "" {
			continue
		}
		if titlesEqual(base, rec.Title) {
			continue
		}
		changes = append(changes, Change{
			Kind:         ChangeMismatch,
			ElementID:    r.ElementID,
			PageHint:     r.PageHint,
			LineNumber:   r.LineNumber,
			Before:       base,
			CorrectTitle: rec.Title,
			ContentID:    rec.ContentID,
		})
	}
	return changes
}

// Update runs the full mutating rewrite sequence over the records:
// title application, status markers, content-id suffixes, replacement
// rules, and whitespace normalization. A panic inside one record's rewrite
// is recovered and that record is restored untouched; the rest of the
// document is unaffected.
//
// Invisible-link removal is separate (RemoveInvisible) because it changes
// the working set rather than individual records.
func (e *Engine) Update(records []*Record, resolved map[string]Resolved, rules []ReplacementRule) []Change {
	var changes []Change
	for _, r := range records {
		changes = append(changes, e.updateOne(r, resolved, rules)...)
	}
	return changes
}

func (e *Engine) updateOne(r *Record, resolved map[string]Resolved, rules []ReplacementRule) (changes []Change) {
	saved := *r
	defer func() {
		if p := recover(); p != nil {
			*r = saved
			changes = nil
			e.logger.Error("hyperlink rewrite panicked, record left unmodified",
				"element_id", saved.ElementID, "panic", fmt.Sprint(p))
		}
	}()

	if c := e.ApplyTitle(r, resolved); c != nil {
		changes = append(changes, *c)
	}
	if c := e.ApplyStatusMarker(r); c != nil {
		changes = append(changes, *c)
	}
	if c := e.ApplyContentIDSuffix(r); c != nil {
		changes = append(changes, *c)
	}
	if c := e.applyRules(r, resolved, rules); c != nil {
		changes = append(changes, *c)
	}
	if c := e.NormalizeSpaces(r); c != nil {
		changes = append(changes, *c)
	}
	return changes
}

// applyRules applies the first matching enabled replacement rule.
func (e *Engine) applyRules(r *Record, resolved map[string]Resolved, rules []ReplacementRule) *Change {
	sanitized := SanitizeDisplayText(r.DisplayText)
	for _, rule := range rules {
		if !rule.Enabled || rule.FindText == "" {
			continue
		}
		ok, err := matchRule(sanitized, rule)
		if err != nil {
			e.logger.Warn("skipping malformed replacement rule",
				"find_text", rule.FindText, "error", err)
			continue
		}
		if !ok {
			continue
		}
		rec, found := resolved[rule.ReplaceText]
		if !found {
			e.logger.Warn("replacement rule target not in resolution mapping",
				"replace_text", rule.ReplaceText)
			continue
		}
		last6, _ := ContentIDSuffix(rule.ReplaceText)
		before := r.DisplayText

		r.DisplayText = rec.Title
		if appendableSuffix.MatchString(last6) {
			r.DisplayText = fmt.Sprintf("%s (%s)", rec.Title, last6)
		}
		r.Title = rec.Title
		r.Address = e.baseURL
		r.SubAddress = "docid=" + rec.DocumentID
		r.LookupID = rule.ReplaceText
		r.ContentID = rec.ContentID
		r.DocumentID = rec.DocumentID
		r.Status = ParseStatus(rec.Status)

		return &Change{
			Kind:       ChangeReplaced,
			ElementID:  r.ElementID,
			PageHint:   r.PageHint,
			LineNumber: r.LineNumber,
			Before:     before,
			After:      r.DisplayText,
			ContentID:  rec.ContentID,
		}
	}
	return nil
}

// matchRule reports whether sanitized display text matches the rule.
// Comparison is case-insensitive for the literal match types.
func matchRule(sanitized string, rule ReplacementRule) (bool, error) {
	text := strings.ToLower(sanitized)
	find := strings.ToLower(rule.FindText)
	switch rule.MatchType {
	case MatchStartsWith:
		return strings.HasPrefix(text, find), nil
	case MatchEndsWith:
		return strings.HasSuffix(text, find), nil
	case MatchExact:
		return text == find, nil
	case MatchRegex:
		re, err := regexp.Compile("(?i)" + rule.FindText)
		if err != nil {
			return false, err
		}
		return re.MatchString(sanitized), nil
	case MatchContains, "":
		return strings.Contains(text, find), nil
	default:
		return false, fmt.Errorf("unknown match type %q", rule.MatchType)
	}
}
