package jobs

import (
	"context"
	"time"
)

// JobStatus tracks a chat ledger job through its processing steps.
type JobStatus string

const (
	// JobStatusReceived indicates the inbound event was accepted and queued.
	JobStatusReceived JobStatus = "received"
	// JobStatusDownloading indicates the media bytes are being fetched.
	JobStatusDownloading JobStatus = "downloading"
	// JobStatusExtracting indicates the extraction model is running.
	JobStatusExtracting JobStatus = "extracting"
	// JobStatusRejected indicates the image was not a readable ledger.
	JobStatusRejected JobStatus = "rejected"
	// JobStatusCommitting indicates the sheet tab is being written.
	JobStatusCommitting JobStatus = "committing"
	// JobStatusExporting indicates the spreadsheet export is running.
	JobStatusExporting JobStatus = "exporting"
	// JobStatusNotifying indicates the result is being sent to the sender.
	JobStatusNotifying JobStatus = "notifying"
	// JobStatusDone indicates the job finished and the sender was notified.
	JobStatusDone JobStatus = "done"
	// JobStatusFailed is the absorbing failure state, reachable from any step.
	JobStatusFailed JobStatus = "failed"
)

// LedgerJob is one chat-triggered extraction job: an inbound image
// message to download, extract, commit, and answer.
type LedgerJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// From is the sender's phone number; all notifications go there.
	From string `json:"from"`

	// MediaID references the inbound image on the chat platform.
	MediaID string `json:"media_id"`

	// MIMEType is the inbound image content type, when known.
	MIMEType string `json:"mime_type,omitempty"`

	// RecordID is set once ingest created a record.
	RecordID string `json:"record_id,omitempty"`

	// Status is the current processing step.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// CompletedAt is when the job reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains failure details, kept server-side only.
	Error string `json:"error,omitempty"`
}

// Publisher defines the interface for handing a job to the background
// workers. Publishing never blocks on the job's outcome.
type Publisher interface {
	// PublishLedgerJob enqueues a chat ledger job for asynchronous processing.
	PublishLedgerJob(ctx context.Context, job *LedgerJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for running the background workers.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. Its error is recorded on the job; jobs
// are never retried.
type JobHandler func(ctx context.Context, job *LedgerJob) error

// JobStore tracks job state so callers (and tests) can observe
// progress and completion.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *LedgerJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*LedgerJob, error)
}
