package pipeline

import (
	"context"

	"github.com/SaurabhDhamne/AirStore/internal/ledger"
	"github.com/SaurabhDhamne/AirStore/internal/records"
)

// Extractor provides an interface for AI-powered ledger extraction.
// This interface enables mocking and testing of the extraction step.
type Extractor interface {
	// ExtractLedger sends image bytes to the model and returns the
	// structured extraction, or an extraction with IsValid=false when
	// the image is not a ledger.
	ExtractLedger(ctx context.Context, image []byte, mimeType string) (*ledger.ExtractionResult, error)
}

// SheetRef identifies one committed tab inside the target spreadsheet.
// It is opaque to the pipeline; presentation (URLs) is the caller's
// concern.
type SheetRef struct {
	SpreadsheetID string
	TabName       string
	SheetID       int64
}

// SheetWriter is an interface for sheet-tab creation. Each commit
// creates exactly one new tab; the implementation must fail when a tab
// with the same name already exists.
type SheetWriter interface {
	CreateTab(ctx context.Context, tabName string, header []string, rows [][]string) (*SheetRef, error)
}

// RecordStore is the subset of record storage the pipeline needs.
type RecordStore interface {
	Create(ctx context.Context, payload *ledger.ExtractionResult) (string, error)
	Get(ctx context.Context, id string) (*records.Record, error)
	Confirm(ctx context.Context, id string, newPayload *ledger.ExtractionResult) error
}
