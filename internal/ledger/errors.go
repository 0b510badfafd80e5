package ledger

import "errors"

// Sentinel errors for the record lifecycle. Callers classify with
// errors.Is; anything else is a collaborator or storage failure.
var (
	// ErrNotFound means no record exists for the given id.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyConfirmed means the record was confirmed before; confirm
	// is a one-shot operation per id.
	ErrAlreadyConfirmed = errors.New("record already confirmed")

	// ErrEmptyEntries means a commit payload carried no entries; nothing
	// is written.
	ErrEmptyEntries = errors.New("no entries provided to save")
)
