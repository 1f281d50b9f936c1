package match

import "errors"

// Registry errors.
var (
	ErrUnknownType    = errors.New("unknown match type")
	ErrDuplicateType  = errors.New("match type already registered")
	ErrInvalidType    = errors.New("invalid match type definition")
	ErrInvalidMatcher = errors.New("matcher needs a value or a registered type name")
)
