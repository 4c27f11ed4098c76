package protocol

import "errors"

// Layout/encode/decode error taxonomy (§7 of the design: ProtocolError).
var (
	ErrProtocolNotFound   = errors.New("protocol: named layout not found")
	ErrStructureNotFound  = errors.New("protocol: field not found in layout")
	ErrDuplicateName      = errors.New("protocol: duplicate field name")
	ErrOutOfOrder         = errors.New("protocol: field added out of start-byte order")
	ErrEmptyArrayLayout   = errors.New("protocol: array field has no inner layout")
	ErrArrayLengthMismatch = errors.New("protocol: array element length mismatch")
	ErrInvalidRawData     = errors.New("protocol: raw data too short for layout")
	ErrWrongFieldKind     = errors.New("protocol: accessor used on field of a different kind")
	ErrDynamicNotLast     = errors.New("protocol: dynamic-length field must be last")
	ErrSizeMismatch       = errors.New("protocol: fixed-width payload size mismatch")
)
