package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/SaurabhDhamne/AirStore/internal/ledger"
)

const extractionPrompt = "You are an expert data entry assistant. " +
	"Read the attached handwritten log/ledger. The writing might be in English, Hindi, or Marathi. " +
	"Extract the Date, Name/Description, Amount/Quantity, and Status. " +
	"If the handwritten text is in Hindi or Marathi, please accurately translate the meaning to English for the final JSON. " +
	"If the image is not a ledger or list of records, set is_valid_ledger to false and provide an error message."

// Extractor runs handwritten-ledger extraction against the Gemini API
// using structured JSON output.
type Extractor struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewExtractor creates a Gemini-backed extractor.
func NewExtractor(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Extractor{client: client, model: model, log: log}, nil
}

// ExtractLedger sends the image to the model and decodes the structured
// extraction result. An unreadable or off-topic image comes back with
// IsValid=false rather than an error.
func (e *Extractor) ExtractLedger(ctx context.Context, image []byte, mimeType string) (*ledger.ExtractionResult, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   extractionSchema(),
		Temperature:      genai.Ptr[float32](0.1),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	// Structured output should already be bare JSON, but clean up fences
	// in case the model ignored the response format.
	clean := cleanModelJSON(rawText)

	var result ledger.ExtractionResult
	if err := json.Unmarshal([]byte(clean), &result); err != nil {
		return nil, fmt.Errorf("unmarshal extraction JSON: %w\nraw response: %s", err, rawText)
	}

	if !result.IsValid {
		result.Entries = nil
		if result.ErrorMessage == "" {
			result.ErrorMessage = "The image does not appear to contain a handwritten ledger."
		}
	}

	e.log.Debug().
		Bool("is_valid", result.IsValid).
		Int("entries", len(result.Entries)).
		Msg("Ledger extraction completed")

	return &result, nil
}

// extractionSchema mirrors the ExtractionResult shape so the model
// returns strictly typed JSON.
func extractionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"is_valid_ledger": {
				Type:        genai.TypeBoolean,
				Description: "True if the image contains a handwritten ledger or list of records. False if it's a random image like a dog or landscape.",
			},
			"error_message": {
				Type:        genai.TypeString,
				Description: "If is_valid_ledger is false, explain why. Otherwise, leave empty.",
			},
			"entries": {
				Type:        genai.TypeArray,
				Description: "The list of extracted entries.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"date": {
							Type:        genai.TypeString,
							Description: "The date of the entry, if available. Use N/A if missing.",
						},
						"name": {
							Type:        genai.TypeString,
							Description: "The name of the item, person, or description. Translate to English if written in Hindi or Marathi, but keep the original intent.",
						},
						"amount": {
							Type:        genai.TypeNumber,
							Description: "The numerical amount or quantity.",
						},
						"status": {
							Type:        genai.TypeString,
							Description: "Any status, notes, or remarks. Translate to English if written in Hindi or Marathi.",
						},
					},
					Required: []string{"date", "name", "amount", "status"},
				},
			},
		},
		Required: []string{"is_valid_ledger", "error_message", "entries"},
	}
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: keep only from the first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
