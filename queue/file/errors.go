package file

import "github.com/pkg/errors"

// ErrInvalidJournal reports a journal file whose head or frames failed
// validation on open.
var ErrInvalidJournal = errors.New("journal file is corrupt")
