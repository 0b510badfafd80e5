package chatflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SaurabhDhamne/AirStore/internal/jobs"
	"github.com/SaurabhDhamne/AirStore/internal/pipeline"
)

const (
	processingMessage = "Got your ledger image! Reading the handwriting now, this may take a few seconds..."
	failureMessage    = "Sorry, something went wrong while processing your image. Please try again."
	exportFilename    = "ledger_export.xlsx"
	exportMimeType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Messenger is the chat transport the flow needs: media in, messages
// and documents out.
type Messenger interface {
	MediaURL(ctx context.Context, mediaID string) (string, error)
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
	UploadMedia(ctx context.Context, path, mimeType string) (string, error)
	SendText(ctx context.Context, to, message string) error
	SendDocument(ctx context.Context, to, mediaID, filename, caption string) error
}

// Exporter produces a full-spreadsheet export file.
type Exporter interface {
	ExportXLSX(ctx context.Context, path string) error
}

// Flow runs the asynchronous chat variant of the ledger pipeline: no
// human review, auto-commit, and the result pushed back through
// outbound chat messages.
type Flow struct {
	pipe       *pipeline.Pipeline
	messenger  Messenger
	exporter   Exporter
	jobStore   jobs.JobStore
	scratchDir string
	log        zerolog.Logger
}

// New creates the chat ingestion flow.
func New(pipe *pipeline.Pipeline, messenger Messenger, exporter Exporter, jobStore jobs.JobStore, scratchDir string, log zerolog.Logger) *Flow {
	return &Flow{
		pipe:       pipe,
		messenger:  messenger,
		exporter:   exporter,
		jobStore:   jobStore,
		scratchDir: scratchDir,
		log:        log,
	}
}

// Process runs one chat ledger job to completion. Every failure inside
// the flow is absorbed here: it is logged, the sender gets a generic
// failure notice, and the error is returned only so the job is marked
// failed. Nothing propagates back to the webhook handler.
func (f *Flow) Process(ctx context.Context, job *jobs.LedgerJob) error {
	err := f.run(ctx, job)
	if err != nil {
		f.log.Error().
			Err(err).
			Str("job_id", job.JobID).
			Str("from", job.From).
			Msg("Chat ledger job failed")

		if sendErr := f.messenger.SendText(ctx, job.From, failureMessage); sendErr != nil {
			f.log.Error().Err(sendErr).Str("job_id", job.JobID).Msg("Failed to send failure notice")
		}
	}
	return err
}

func (f *Flow) run(ctx context.Context, job *jobs.LedgerJob) error {
	f.setStatus(ctx, job, jobs.JobStatusDownloading)

	mediaURL, err := f.messenger.MediaURL(ctx, job.MediaID)
	if err != nil {
		return fmt.Errorf("resolve media url: %w", err)
	}
	image, err := f.messenger.DownloadMedia(ctx, mediaURL)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}

	// The sender hears back before extraction starts; the webhook
	// already acknowledged receipt long ago.
	if err := f.messenger.SendText(ctx, job.From, processingMessage); err != nil {
		return fmt.Errorf("send processing notice: %w", err)
	}

	f.setStatus(ctx, job, jobs.JobStatusExtracting)

	outcome, err := f.pipe.Ingest(ctx, image, job.MIMEType)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	if !outcome.Accepted {
		f.setStatus(ctx, job, jobs.JobStatusRejected)
		if err := f.messenger.SendText(ctx, job.From, outcome.Extraction.ErrorMessage); err != nil {
			return fmt.Errorf("send rejection notice: %w", err)
		}
		return nil
	}

	job.RecordID = outcome.RecordID
	f.setStatus(ctx, job, jobs.JobStatusCommitting)

	// No human in the loop on this channel: the unedited extraction is
	// the confirmed payload.
	commit, err := f.pipe.Commit(ctx, outcome.RecordID, outcome.Extraction, pipeline.ChatTabPrefix)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	f.setStatus(ctx, job, jobs.JobStatusExporting)

	// The scratch file carries a unique suffix so concurrent jobs never
	// collide. The cleanup is registered before the export runs: a
	// failed export can still leave a partial file behind.
	exportPath := filepath.Join(f.scratchDir, "ledger_export_"+uuid.NewString()+".xlsx")
	defer os.Remove(exportPath)
	if err := f.exporter.ExportXLSX(ctx, exportPath); err != nil {
		return fmt.Errorf("export spreadsheet: %w", err)
	}

	f.setStatus(ctx, job, jobs.JobStatusNotifying)

	mediaID, err := f.messenger.UploadMedia(ctx, exportPath, exportMimeType)
	if err != nil {
		return fmt.Errorf("upload export: %w", err)
	}

	entries := outcome.Extraction.Entries
	caption := fmt.Sprintf(
		"Saved %d entries to your ledger. Total: %s",
		len(entries),
		strconv.FormatFloat(pipeline.SumNumericAmounts(entries), 'f', -1, 64),
	)
	if err := f.messenger.SendDocument(ctx, job.From, mediaID, exportFilename, caption); err != nil {
		return fmt.Errorf("send export document: %w", err)
	}

	f.setStatus(ctx, job, jobs.JobStatusDone)

	f.log.Info().
		Str("job_id", job.JobID).
		Str("record_id", job.RecordID).
		Str("tab", commit.Sheet.TabName).
		Int("rows", commit.RowCount).
		Msg("Chat ledger job completed")

	return nil
}

func (f *Flow) setStatus(ctx context.Context, job *jobs.LedgerJob, status jobs.JobStatus) {
	job.Status = status
	if f.jobStore != nil {
		_ = f.jobStore.SaveJob(ctx, job)
	}
}
