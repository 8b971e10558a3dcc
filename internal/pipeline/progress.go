package pipeline

import "time"

// Stage identifies where a document is in the processing sequence. Stage
// transitions are one-directional; a document that fails validation never
// reaches extraction.
type Stage string

const (
	StageFileValidation       Stage = "file_validation"
	StageHyperlinkExtraction  Stage = "hyperlink_extraction"
	StageAPIProcessing        Stage = "api_processing"
	StageDocumentUpdate       Stage = "document_update"
	StageCompletion           Stage = "completion"
	StageError                Stage = "error"
)

// ProgressReport is one message on the run's progress stream. The stream
// is transient and append-only; it is never replayed or persisted.
type ProgressReport struct {
	Stage          Stage
	CurrentFile    string
	Message        string
	ProcessedCount int
	TotalCount     int
	Elapsed        time.Duration
	Success        bool
}

// RunState is the terminal state of a whole run. Per-file failures never
// fail the run; Cancelled is reserved for context cancellation.
type RunState string

const (
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
	RunFailed    RunState = "failed"
)
