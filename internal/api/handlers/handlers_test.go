package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/SaurabhDhamne/AirStore/internal/api/handlers"
	"github.com/SaurabhDhamne/AirStore/internal/jobs"
	"github.com/SaurabhDhamne/AirStore/internal/ledger"
	"github.com/SaurabhDhamne/AirStore/internal/pipeline"
	"github.com/SaurabhDhamne/AirStore/internal/records"
)

type mockExtractor struct {
	extractFunc func(ctx context.Context, image []byte, mimeType string) (*ledger.ExtractionResult, error)
}

func (m *mockExtractor) ExtractLedger(ctx context.Context, image []byte, mimeType string) (*ledger.ExtractionResult, error) {
	return m.extractFunc(ctx, image, mimeType)
}

type mockSheetWriter struct {
	tabs []string
}

func (m *mockSheetWriter) CreateTab(ctx context.Context, tabName string, header []string, rows [][]string) (*pipeline.SheetRef, error) {
	m.tabs = append(m.tabs, tabName)
	return &pipeline.SheetRef{SpreadsheetID: "sheet-abc", TabName: tabName, SheetID: 42}, nil
}

type mockPublisher struct {
	jobs []*jobs.LedgerJob
	err  error
}

func (m *mockPublisher) PublishLedgerJob(ctx context.Context, job *jobs.LedgerJob) error {
	if m.err != nil {
		return m.err
	}
	job.JobID = fmt.Sprintf("job-%d", len(m.jobs)+1)
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type handlerFixture struct {
	handler *handlers.RecordsHandler
	store   *records.Store
	sheets  *mockSheetWriter
}

func newHandlerFixture(t *testing.T, extraction *ledger.ExtractionResult) *handlerFixture {
	t.Helper()

	store, err := records.Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	extractor := &mockExtractor{
		extractFunc: func(ctx context.Context, image []byte, mimeType string) (*ledger.ExtractionResult, error) {
			return extraction, nil
		},
	}
	sheets := &mockSheetWriter{}
	pipe := pipeline.New(extractor, store, sheets, zerolog.Nop())

	return &handlerFixture{
		handler: handlers.NewRecordsHandler(pipe, store, zerolog.Nop()),
		store:   store,
		sheets:  sheets,
	}
}

func multipartImage(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "ledger.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("jpeg-bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestUploadAccepted(t *testing.T) {
	f := newHandlerFixture(t, &ledger.ExtractionResult{
		IsValid: true,
		Entries: []ledger.ExtractionEntry{
			{Date: "10/12", Name: "Coffee", Amount: ledger.NewAmount("5"), Status: "Purchased"},
		},
	})

	body, contentType := multipartImage(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.handler.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	if resp["status"] != "success" {
		t.Errorf("status field = %v", resp["status"])
	}
	recordID, _ := resp["record_id"].(string)
	if recordID == "" {
		t.Fatal("no record_id in response")
	}
	stored, err := f.store.Get(context.Background(), recordID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if stored.Status != records.StatusPending {
		t.Errorf("record status = %q, want PENDING", stored.Status)
	}
}

func TestUploadRejected(t *testing.T) {
	f := newHandlerFixture(t, &ledger.ExtractionResult{
		IsValid:      false,
		ErrorMessage: "This appears to be a restaurant menu, not a ledger.",
	})

	body, contentType := multipartImage(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.handler.Upload(rec, req)

	// Rejection is a successful extraction with a negative verdict, not
	// an HTTP failure.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody(t, rec)
	if resp["status"] != "error" {
		t.Errorf("status field = %v, want error", resp["status"])
	}
	if resp["message"] != "This appears to be a restaurant menu, not a ledger." {
		t.Errorf("message = %v", resp["message"])
	}
	if _, ok := resp["record_id"]; ok {
		t.Error("rejected upload returned a record_id")
	}
}

func TestUploadMissingFile(t *testing.T) {
	f := newHandlerFixture(t, &ledger.ExtractionResult{IsValid: true})

	body, contentType := multipartImage(t, "image")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetRecord(t *testing.T) {
	f := newHandlerFixture(t, nil)

	payload := &ledger.ExtractionResult{
		IsValid: true,
		Entries: []ledger.ExtractionEntry{
			{Date: "10/12", Name: "Coffee", Amount: ledger.NewAmount("5"), Status: "Purchased"},
		},
	}
	id, err := f.store.Create(context.Background(), payload)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/record/"+id, nil)
	w := httptest.NewRecorder()
	f.handler.GetRecord(w, req, id)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["record_id"] != id {
		t.Errorf("record_id = %v", resp["record_id"])
	}
	if resp["status"] != string(records.StatusPending) {
		t.Errorf("status = %v, want PENDING", resp["status"])
	}
}

func TestGetRecordNotFound(t *testing.T) {
	f := newHandlerFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/record/no-such-id", nil)
	w := httptest.NewRecorder()
	f.handler.GetRecord(w, req, "no-such-id")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func confirmRequest(t *testing.T, recordID string, entries []ledger.ExtractionEntry) *http.Request {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{"entries": entries})
	if err != nil {
		t.Fatalf("marshal confirm body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/confirm/"+recordID, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestConfirm(t *testing.T) {
	f := newHandlerFixture(t, nil)

	id, err := f.store.Create(context.Background(), &ledger.ExtractionResult{
		IsValid: true,
		Entries: []ledger.ExtractionEntry{
			{Date: "10/12", Name: "Coffee", Amount: ledger.NewAmount("5"), Status: "Purchased"},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	edited := []ledger.ExtractionEntry{
		{Date: "10/12", Name: "Filter Coffee", Amount: ledger.NewAmount("7.5"), Status: "Purchased"},
		{Date: "11/12", Name: "Sugar", Amount: ledger.NewAmount("20"), Status: "Pending"},
	}
	w := httptest.NewRecorder()
	f.handler.Confirm(w, confirmRequest(t, id, edited), id)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["status"] != "success" {
		t.Errorf("status = %v", resp["status"])
	}
	sheetURL, _ := resp["sheet_url"].(string)
	if !strings.Contains(sheetURL, "sheet-abc") || !strings.Contains(sheetURL, "gid=42") {
		t.Errorf("sheet_url = %q", sheetURL)
	}
	if len(f.sheets.tabs) != 1 || !strings.HasPrefix(f.sheets.tabs[0], "WebLog_") {
		t.Errorf("tabs = %v, want one WebLog_ tab", f.sheets.tabs)
	}

	stored, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != records.StatusConfirmed {
		t.Errorf("record status = %q, want CONFIRMED", stored.Status)
	}
	if len(stored.Payload.Entries) != 2 || stored.Payload.Entries[0].Name != "Filter Coffee" {
		t.Errorf("confirmed payload kept the original extraction: %+v", stored.Payload.Entries)
	}
}

func TestConfirmErrors(t *testing.T) {
	f := newHandlerFixture(t, nil)

	entries := []ledger.ExtractionEntry{
		{Date: "10/12", Name: "Coffee", Amount: ledger.NewAmount("5"), Status: "Purchased"},
	}
	id, err := f.store.Create(context.Background(), &ledger.ExtractionResult{IsValid: true, Entries: entries})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w := httptest.NewRecorder()
	f.handler.Confirm(w, confirmRequest(t, id, entries), id)
	if w.Code != http.StatusOK {
		t.Fatalf("initial confirm failed: %d %s", w.Code, w.Body.String())
	}

	tests := []struct {
		name     string
		recordID string
		entries  []ledger.ExtractionEntry
		wantCode int
	}{
		{"empty entries", id, nil, http.StatusBadRequest},
		{"unknown record", "no-such-id", entries, http.StatusNotFound},
		{"already confirmed", id, entries, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.handler.Confirm(w, confirmRequest(t, tt.recordID, tt.entries), tt.recordID)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}

	// The only tab is from the successful confirm above.
	if len(f.sheets.tabs) != 1 {
		t.Errorf("tabs = %v, want exactly 1", f.sheets.tabs)
	}
}

func TestWebhookVerify(t *testing.T) {
	h := handlers.NewWebhookHandler(&mockPublisher{}, "airstore_secure_token_123", zerolog.Nop())

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{
			name:     "valid handshake",
			query:    "hub.mode=subscribe&hub.verify_token=airstore_secure_token_123&hub.challenge=challenge-77",
			wantCode: http.StatusOK,
			wantBody: "challenge-77",
		},
		{
			name:     "wrong token",
			query:    "hub.mode=subscribe&hub.verify_token=guess&hub.challenge=challenge-77",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "wrong mode",
			query:    "hub.mode=unsubscribe&hub.verify_token=airstore_secure_token_123&hub.challenge=challenge-77",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing params",
			query:    "hub.challenge=challenge-77",
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil)
			w := httptest.NewRecorder()
			h.Verify(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestWebhookReceive(t *testing.T) {
	publisher := &mockPublisher{}
	h := handlers.NewWebhookHandler(publisher, "airstore_secure_token_123", zerolog.Nop())

	event := map[string]interface{}{
		"entry": []interface{}{
			map[string]interface{}{
				"changes": []interface{}{
					map[string]interface{}{
						"value": map[string]interface{}{
							"messages": []interface{}{
								map[string]interface{}{
									"from": "919900112233",
									"type": "text",
									"text": map[string]string{"body": "hello"},
								},
								map[string]interface{}{
									"from": "919900112233",
									"type": "image",
									"image": map[string]string{
										"id":        "media-55",
										"mime_type": "image/jpeg",
									},
								},
							},
						},
					},
				},
			},
		},
	}
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Receive(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(publisher.jobs) != 1 {
		t.Fatalf("published %d jobs, want 1 (text message must be skipped)", len(publisher.jobs))
	}
	job := publisher.jobs[0]
	if job.From != "919900112233" || job.MediaID != "media-55" || job.MIMEType != "image/jpeg" {
		t.Errorf("job = %+v", job)
	}
}

func TestWebhookReceiveMalformed(t *testing.T) {
	publisher := &mockPublisher{}
	h := handlers.NewWebhookHandler(publisher, "airstore_secure_token_123", zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	h.Receive(w, req)

	// Malformed payloads still get a 200; otherwise the platform retries
	// forever.
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if len(publisher.jobs) != 0 {
		t.Errorf("published %d jobs from garbage", len(publisher.jobs))
	}
}
