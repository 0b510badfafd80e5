package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/SaurabhDhamne/AirStore/internal/ledger"
	"github.com/SaurabhDhamne/AirStore/internal/records"
)

// Tab name prefixes for the two entry points.
const (
	// WebTabPrefix marks tabs committed through the web confirmation flow.
	WebTabPrefix = "WebLog"
	// ChatTabPrefix marks tabs committed through the chat ingestion flow.
	ChatTabPrefix = "Log"
)

// SheetHeader is the header row written above every committed tab.
var SheetHeader = []string{"Date", "Description/Name", "Amount", "Status"}

// Pipeline orchestrates ingest -> extract -> persist-pending and
// commit -> sheet-write -> confirm, shared by the web and chat flows.
type Pipeline struct {
	extractor Extractor
	store     RecordStore
	sheets    SheetWriter
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a pipeline over the given collaborators.
func New(extractor Extractor, store RecordStore, sheets SheetWriter, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		store:     store,
		sheets:    sheets,
		now:       time.Now,
		log:       log,
	}
}

// IngestOutcome is the result of running extraction on one image.
// When Accepted is false the image was not a readable ledger, no
// record was created, and Extraction.ErrorMessage carries the reason.
type IngestOutcome struct {
	Accepted   bool
	RecordID   string
	Extraction *ledger.ExtractionResult
}

// CommitOutcome describes a successful commit: the created tab and the
// number of data rows written to it.
type CommitOutcome struct {
	Sheet    *SheetRef
	RowCount int
}

// Ingest runs extraction on the image and, if the model recognized a
// ledger, persists the result as a PENDING record. The image bytes are
// not retained; callers must discard their buffer once Ingest returns.
func (p *Pipeline) Ingest(ctx context.Context, image []byte, mimeType string) (*IngestOutcome, error) {
	result, err := p.extractor.ExtractLedger(ctx, image, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract ledger: %w", err)
	}

	if !result.IsValid {
		p.log.Info().Str("reason", result.ErrorMessage).Msg("Image rejected by extraction")
		return &IngestOutcome{Accepted: false, Extraction: result}, nil
	}

	id, err := p.store.Create(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	p.log.Info().
		Str("record_id", id).
		Int("entries", len(result.Entries)).
		Msg("Extraction stored as pending record")

	return &IngestOutcome{Accepted: true, RecordID: id, Extraction: result}, nil
}

// Commit writes the (possibly edited) payload into a brand-new sheet
// tab and marks the record CONFIRMED. The tab is created before the
// confirm; if the confirm then fails the tab is not rolled back.
func (p *Pipeline) Commit(ctx context.Context, recordID string, payload *ledger.ExtractionResult, tabPrefix string) (*CommitOutcome, error) {
	if payload == nil || len(payload.Entries) == 0 {
		return nil, ledger.ErrEmptyEntries
	}

	// Sequential double-commits are caught here before any tab is
	// created; the conditional update in Confirm closes the remaining
	// concurrent window (at the cost of a possible orphan tab).
	rec, err := p.store.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status == records.StatusConfirmed {
		return nil, ledger.ErrAlreadyConfirmed
	}

	rows := NormalizeRows(payload.Entries)
	tabName := TabName(tabPrefix, p.now())

	ref, err := p.sheets.CreateTab(ctx, tabName, SheetHeader, rows)
	if err != nil {
		return nil, fmt.Errorf("create sheet tab %q: %w", tabName, err)
	}

	if err := p.store.Confirm(ctx, recordID, payload); err != nil {
		// The tab already exists at this point; surface the error as-is
		// and leave the tab in place.
		return nil, err
	}

	p.log.Info().
		Str("record_id", recordID).
		Str("tab", tabName).
		Int("rows", len(rows)).
		Msg("Record committed to sheet")

	return &CommitOutcome{Sheet: ref, RowCount: len(rows)}, nil
}

// TabName builds the per-commit tab name, e.g. "WebLog_2026-Sep-01_1430".
// Collisions at minute granularity are accepted; the sheet writer
// reports them as a fatal commit error.
func TabName(prefix string, at time.Time) string {
	return prefix + "_" + at.Format("2006-Jan-02_1504")
}
