package document

import "errors"

var (
	// ErrPatchApply marks a stored patch that cannot be applied to the resolved
	// base document, typically because it references paths the base no longer has.
	ErrPatchApply = errors.New("patch does not apply to document")
)
