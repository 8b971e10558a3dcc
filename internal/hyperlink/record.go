package hyperlink

import "fmt"

// Status is the lifecycle state of a resolved record.
type Status string

const (
	StatusActive   Status = "Active"
	StatusExpired  Status = "Expired"
	StatusNotFound Status = "Not Found"
	StatusError    Status = "Error"
	StatusUnknown  Status = "Unknown"
)

// ParseStatus normalizes a raw status string from the resolution endpoint.
// Unrecognized values map to StatusUnknown rather than failing the record.
func ParseStatus(s string) Status {
	switch s {
	case string(StatusActive):
		return StatusActive
	case string(StatusExpired):
		return StatusExpired
	case string(StatusNotFound):
		return StatusNotFound
	case string(StatusError):
		return StatusError
	case "":
		return StatusUnknown
	}
	return StatusUnknown
}

// Record is one hyperlink occurrence extracted from a document.
//
// ElementID is the identity within a document: it is the only join key used
// to locate the hyperlink again at write-back, so it must remain stable for
// the duration of a run. Records are created by the reader, mutated in place
// by the rewrite engine, and consumed by the writer.
type Record struct {
	ElementID   string // relationship id plus ordinal, or a generated id for anchor-only links
	Address     string // target URI from the relationship table
	SubAddress  string // anchor within the target
	DisplayText string
	Title       string
	ContentID   string
	DocumentID  string
	LookupID    string // derived via ExtractLookupID, attached after extraction
	Status      Status
	PageHint    int // coarse approximation: increments every 50 lines, not real pagination
	LineNumber  int // paragraph ordinal within the document body
}

// Key returns the equality key used for deduplication and logging.
// Identity for write-back is ElementID; this key is only for reporting.
func (r *Record) Key() string {
	return fmt.Sprintf("%s#%s|%s|%d:%d", r.Address, r.SubAddress, r.DisplayText, r.PageHint, r.LineNumber)
}

// FullAddress joins address and anchor the way the document stores them.
func (r *Record) FullAddress() string {
	if r.Address != "" && r.SubAddress != "" {
		return r.Address + "#" + r.SubAddress
	}
	if r.Address != "" {
		return r.Address
	}
	return r.SubAddress
}

// Resolved is the authoritative record returned by the resolution endpoint
// for one lookup id. Lifetime is a single batch call.
type Resolved struct {
	Title      string `json:"Title"`
	Status     string `json:"Status"`
	ContentID  string `json:"Content_ID"`
	DocumentID string `json:"Document_ID"`
}

// ReplacementRule rewrites a hyperlink whose sanitized display text matches
// FindText. ReplaceText is a full lookup id; the replacement title and
// document id come from the resolution mapping.
type ReplacementRule struct {
	FindText    string `mapstructure:"find_text" yaml:"find_text"`
	ReplaceText string `mapstructure:"replace_text" yaml:"replace_text"`
	MatchType   string `mapstructure:"match_type" yaml:"match_type"` // contains|starts_with|ends_with|exact|regex
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
}

// Match types for ReplacementRule.
const (
	MatchContains   = "contains"
	MatchStartsWith = "starts_with"
	MatchEndsWith   = "ends_with"
	MatchExact      = "exact"
	MatchRegex      = "regex"
)
