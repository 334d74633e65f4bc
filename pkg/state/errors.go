package state

import (
	"github.com/vango-dev/trackstate/internal/errors"
)

// Error is the code-tagged usage error returned (or, for view reads, panicked)
// by the store engine. Use errors.As to inspect Code and Path.
type Error = errors.Error

// Error codes raised by this package.
const (
	CodeInitFromView     = "E101"
	CodeSetToView        = "E102"
	CodeGetWhenPending   = "E103"
	CodeSetWhenPending   = "E104"
	CodeNestedFuture     = "E105"
	CodeSetWhenDestroyed = "E106"
	CodeNotContainer     = "E107"
	CodeViewToJSON       = "E108"
	CodeNodeToJSON       = "E109"
	CodeFunctionProperty = "E110"
	CodeInvalidPath      = "E111"
	CodeIndexOutOfRange  = "E112"
	CodeViewSet          = "E201"
	CodeViewDelete       = "E202"
	CodeViewStructure    = "E203"
	CodeUnknownMethod    = "E301"
	CodePresetVetoed     = "E302"
)

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code string) bool {
	return errors.HasCode(err, code)
}

func usageError(code string, path Path) *Error {
	return errors.New(code).WithPath(path.display())
}
