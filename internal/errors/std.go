package errors

import stderrors "errors"

// Re-exports so callers importing this package do not also need the standard one.
var (
	New  = stderrors.New
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
)
