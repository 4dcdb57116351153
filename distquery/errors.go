package distquery

import (
	"errors"
	"fmt"
)

// ErrPrecondition marks caller bugs detected before any communication
// begins. A round must be aborted on it: proceeding would either corrupt
// results or hang the collective, since the message-passing layer requires
// deterministic participation from every rank.
var ErrPrecondition = errors.New("precondition violation")

// ExtentError reports a mismatched extent between the export and import
// sides of a bulk transfer. Dim 0 is the row count; trailing dimensions
// describe the per-row packet.
type ExtentError struct {
	Op     string
	Dim    int
	Export int
	Import int
}

func (e *ExtentError) Error() string {
	return fmt.Sprintf("%s: extent mismatch at dimension %d: export %d, import %d", e.Op, e.Dim, e.Export, e.Import)
}

func (e *ExtentError) Unwrap() error { return ErrPrecondition }

func preconditionf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrPrecondition)...)
}
