package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/SaurabhDhamne/AirStore/internal/api/middleware"
	"github.com/SaurabhDhamne/AirStore/internal/jobs"
	"github.com/SaurabhDhamne/AirStore/internal/ledger"
	"github.com/SaurabhDhamne/AirStore/internal/pipeline"
	"github.com/SaurabhDhamne/AirStore/internal/records"
)

// maxUploadBytes caps inbound ledger images at 20 MiB.
const maxUploadBytes = 20 << 20

// RecordsHandler handles the web confirmation flow: upload, review,
// confirm.
type RecordsHandler struct {
	pipe  *pipeline.Pipeline
	store *records.Store
	log   zerolog.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(pipe *pipeline.Pipeline, store *records.Store, log zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{
		pipe:  pipe,
		store: store,
		log:   log,
	}
}

// Upload handles POST /upload. It runs extraction on the attached
// image and stores the result as a PENDING record. The image bytes are
// discarded once extraction returns; nothing is written to disk.
func (h *RecordsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A multipart 'file' field is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	mimeType := header.Header.Get("Content-Type")

	outcome, err := h.pipe.Ingest(ctx, image, mimeType)
	if err != nil {
		h.log.Error().Err(err).Msg("Ingest failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process image")
		return
	}

	if !outcome.Accepted {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "error",
			"message": outcome.Extraction.ErrorMessage,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"record_id": outcome.RecordID,
		"data":      outcome.Extraction,
	})
}

// GetRecord handles GET /record/{id} for the confirmation screen.
func (h *RecordsHandler) GetRecord(w http.ResponseWriter, r *http.Request, recordID string) {
	ctx := r.Context()

	rec, err := h.store.Get(ctx, recordID)
	if errors.Is(err, ledger.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Record not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("record_id", recordID).Msg("Failed to load record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load record")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"record_id": rec.ID,
		"status":    rec.Status,
		"data":      rec.Payload,
	})
}

// Confirm handles POST /confirm/{id}. The caller-supplied entries
// replace the extraction wholesale; the pipeline writes them into a
// fresh sheet tab and marks the record CONFIRMED.
func (h *RecordsHandler) Confirm(w http.ResponseWriter, r *http.Request, recordID string) {
	ctx := r.Context()

	var req struct {
		Entries []ledger.ExtractionEntry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload := &ledger.ExtractionResult{IsValid: true, Entries: req.Entries}

	outcome, err := h.pipe.Commit(ctx, recordID, payload, pipeline.WebTabPrefix)
	switch {
	case errors.Is(err, ledger.ErrEmptyEntries):
		middleware.WriteError(w, http.StatusBadRequest, "No entries provided to save")
		return
	case errors.Is(err, ledger.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Record not found")
		return
	case errors.Is(err, ledger.ErrAlreadyConfirmed):
		middleware.WriteError(w, http.StatusBadRequest, "Record already confirmed")
		return
	case err != nil:
		h.log.Error().Err(err).Str("record_id", recordID).Msg("Commit failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save data to Google Sheets")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"message":   fmt.Sprintf("Saved %d entries to tab %s", outcome.RowCount, outcome.Sheet.TabName),
		"sheet_url": sheetURL(outcome.Sheet),
		"entries":   req.Entries,
	})
}

// sheetURL renders the committed tab as a link for the frontend. The
// URL template is presentation only; the pipeline deals in opaque
// sheet references.
func sheetURL(ref *pipeline.SheetRef) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", ref.SpreadsheetID, ref.SheetID)
}

// WebhookHandler handles the chat platform's verification handshake
// and inbound message events.
type WebhookHandler struct {
	publisher   jobs.Publisher
	verifyToken string
	log         zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(publisher jobs.Publisher, verifyToken string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		publisher:   publisher,
		verifyToken: verifyToken,
		log:         log,
	}
}

// Verify handles GET /webhook. Meta sends hub.mode, hub.verify_token,
// and hub.challenge; the challenge is echoed back iff the mode is
// "subscribe" and the token matches.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "" || token == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Bad Request")
		return
	}

	if mode != "subscribe" || token != h.verifyToken {
		middleware.WriteError(w, http.StatusForbidden, "Verification failed")
		return
	}

	h.log.Info().Msg("Webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// webhookEvent covers the slice of the WhatsApp Cloud API event shape
// the flow cares about: inbound image messages.
type webhookEvent struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From  string `json:"from"`
					Type  string `json:"type"`
					Image struct {
						ID       string `json:"id"`
						MIMEType string `json:"mime_type"`
					} `json:"image"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Receive handles POST /webhook. It publishes one background job per
// inbound image message and acknowledges immediately; the response
// never reflects the outcome of the jobs.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var event webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		// Malformed events are acknowledged too; Meta retries otherwise.
		h.log.Warn().Err(err).Msg("Undecodable webhook event")
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "image" || msg.Image.ID == "" {
					continue
				}
				job := &jobs.LedgerJob{
					From:     msg.From,
					MediaID:  msg.Image.ID,
					MIMEType: msg.Image.MIMEType,
				}
				if err := h.publisher.PublishLedgerJob(ctx, job); err != nil {
					h.log.Error().Err(err).Str("from", msg.From).Msg("Failed to enqueue ledger job")
					continue
				}
				h.log.Info().
					Str("job_id", job.JobID).
					Str("from", msg.From).
					Msg("Ledger job enqueued")
			}
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
