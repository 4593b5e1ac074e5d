package cli

import (
	"errors"

	"github.com/ppiankov/nesach/internal/pipeline"
	"github.com/ppiankov/nesach/internal/validate"
)

// Process exit codes
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitLoad      = 2 // Source missing, unreadable, not a PDF or too small
	ExitParse     = 3
	ExitNoText    = 4
	ExitNotHebrew = 5
)

// ExitCode maps a command error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, validate.ErrNoText):
		return ExitNoText
	case errors.Is(err, validate.ErrNotHebrew):
		return ExitNotHebrew
	case errors.Is(err, pipeline.ErrParse):
		return ExitParse
	case errors.Is(err, pipeline.ErrLoad), errors.Is(err, validate.ErrNotPDF), errors.Is(err, validate.ErrTooSmall):
		return ExitLoad
	default:
		return ExitFailure
	}
}
