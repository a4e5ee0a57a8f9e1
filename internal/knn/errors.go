package knn

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes caller mistakes (an untrained classifier) from bad
// query data without matching on messages.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindNotTrained
	KindShape
	KindDimensionMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotTrained:
		return "not trained"
	case KindShape:
		return "shape"
	case KindDimensionMismatch:
		return "dimension mismatch"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is reports errors of the same kind as equal, so errors.Is(err, ErrShape)
// holds for every shape error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotTrained        = &Error{Kind: KindNotTrained, Msg: "classifier has no training data"}
	ErrShape             = &Error{Kind: KindShape, Msg: "queries must form a two-dimensional matrix"}
	ErrDimensionMismatch = &Error{Kind: KindDimensionMismatch, Msg: "number of query features does not match the classifier"}
)

func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func shapeErrorf(format string, args ...interface{}) error {
	return &Error{Kind: KindShape, Msg: fmt.Sprintf(format, args...)}
}

func dimensionErrorf(format string, args ...interface{}) error {
	return &Error{Kind: KindDimensionMismatch, Msg: fmt.Sprintf(format, args...)}
}
