package ledger

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ExtractionEntry is one line item read from a handwritten ledger image.
// Name and Status are translated to English when the source handwriting
// is Hindi or Marathi; Date stays free-form ("N/A" when missing).
type ExtractionEntry struct {
	Date   string `json:"date"`
	Name   string `json:"name"`
	Amount Amount `json:"amount"`
	Status string `json:"status"`
}

// ExtractionResult is the typed outcome of running the extraction model
// on one image. When IsValid is false, ErrorMessage explains why and
// Entries is empty.
type ExtractionResult struct {
	IsValid      bool              `json:"is_valid_ledger"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Entries      []ExtractionEntry `json:"entries"`
}

// Amount holds an entry amount as written. The model returns numbers,
// but user-edited payloads may carry strings, so both decode. The raw
// text is kept so "5" never becomes "5.0" on the way back out.
type Amount struct {
	raw string
}

// NewAmount builds an Amount from its string form.
func NewAmount(s string) Amount {
	return Amount{raw: s}
}

// String returns the amount as written, or "" when absent.
func (a Amount) String() string {
	return a.raw
}

// Float returns the numeric value and whether the amount parses as one.
func (a Amount) Float() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(a.raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// UnmarshalJSON accepts a JSON number, string, or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		a.raw = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	// Normalize "5.0" style model output to "5".
	if f, err := n.Float64(); err == nil {
		a.raw = strconv.FormatFloat(f, 'f', -1, 64)
	} else {
		a.raw = n.String()
	}
	return nil
}

// MarshalJSON emits a number when the amount is numeric, else a string.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.raw == "" {
		return []byte(`""`), nil
	}
	if _, ok := a.Float(); ok {
		return []byte(a.raw), nil
	}
	return json.Marshal(a.raw)
}
