package protocol

import "fmt"

// RawDataBuilder encodes a Layout's fields into a flat byte slice. Fields
// must be appended in start-byte order; the builder tracks the next
// expected field by position, not by letting callers pick an arbitrary
// name (§4.2: "fields must be appended in start_byte order").
type RawDataBuilder struct {
	layout      *Layout
	out         []byte
	cursor      int  // index into layout.Fields()
	arrayOpened bool // true once the trailing array field has started accepting elements
}

// NewRawDataBuilder returns a builder targeting layout.
func NewRawDataBuilder(layout *Layout) *RawDataBuilder {
	return &RawDataBuilder{layout: layout}
}

func (b *RawDataBuilder) nextField(name string) (LayoutField, error) {
	fields := b.layout.Fields()
	if b.cursor >= len(fields) {
		return LayoutField{}, fmt.Errorf("%w: no more fields expected, got %q", ErrOutOfOrder, name)
	}
	f := fields[b.cursor]
	if f.Name != name {
		return LayoutField{}, fmt.Errorf("%w: expected %q, got %q", ErrOutOfOrder, f.Name, name)
	}
	return f, nil
}

// AddFixedString appends a FieldFixedString field, zero-padding short
// input or truncating long input to the field's declared length.
func (b *RawDataBuilder) AddFixedString(name, value string) error {
	f, err := b.nextField(name)
	if err != nil {
		return err
	}
	if f.Kind != FieldFixedString {
		return fmt.Errorf("%w: %q is not a fixed-string field", ErrWrongFieldKind, name)
	}
	buf := make([]byte, f.Length)
	copy(buf, value) // copy truncates to len(buf); short values leave the zero padding in place
	b.out = append(b.out, buf...)
	b.cursor++
	return nil
}

// AddBytes appends a FieldFixedString field from a raw byte slice, which
// must equal the field's declared length exactly (SizeMismatch otherwise).
// Used for non-textual fixed fields such as a 4-byte IPv4 address.
func (b *RawDataBuilder) AddBytes(name string, value []byte) error {
	f, err := b.nextField(name)
	if err != nil {
		return err
	}
	if f.Kind != FieldFixedString {
		return fmt.Errorf("%w: %q is not a fixed-string field", ErrWrongFieldKind, name)
	}
	if len(value) != f.Length {
		return fmt.Errorf("%w: %q wants %d bytes, got %d", ErrSizeMismatch, name, f.Length, len(value))
	}
	b.out = append(b.out, value...)
	b.cursor++
	return nil
}

// AddDynamicString appends a FieldDynamicString field, emitting exactly the
// provided bytes with no padding or length prefix.
func (b *RawDataBuilder) AddDynamicString(name, value string) error {
	f, err := b.nextField(name)
	if err != nil {
		return err
	}
	if f.Kind != FieldDynamicString {
		return fmt.Errorf("%w: %q is not a dynamic-string field", ErrWrongFieldKind, name)
	}
	b.out = append(b.out, []byte(value)...)
	b.cursor++
	return nil
}

// AddU8 appends a one-byte FieldNumber field.
func (b *RawDataBuilder) AddU8(name string, value uint8) error {
	f, err := b.nextField(name)
	if err != nil {
		return err
	}
	if f.Kind != FieldNumber || f.Length != 1 {
		return fmt.Errorf("%w: %q is not a 1-byte number field", ErrWrongFieldKind, name)
	}
	b.out = append(b.out, value)
	b.cursor++
	return nil
}

// AddU16 appends a two-byte, big-endian FieldNumber field.
func (b *RawDataBuilder) AddU16(name string, value uint16) error {
	f, err := b.nextField(name)
	if err != nil {
		return err
	}
	if f.Kind != FieldNumber || f.Length != 2 {
		return fmt.Errorf("%w: %q is not a 2-byte number field", ErrWrongFieldKind, name)
	}
	b.out = append(b.out, byte(value>>8), byte(value))
	b.cursor++
	return nil
}

// AddArrayElement appends one element to the trailing FieldArray field
// named name. fill populates a fresh RawDataBuilder scoped to the array's
// inner Layout; this is "array element mode" (§4.2): the relative
// start-byte baseline resets to zero for each element, and the
// concatenated element bodies are appended to the outer builder with no
// length prefix or element count, since the array spans to end-of-datagram.
// May be called any number of times (including zero) for the same name.
func (b *RawDataBuilder) AddArrayElement(name string, fill func(elem *RawDataBuilder) error) error {
	fields := b.layout.Fields()
	if b.cursor >= len(fields) || fields[b.cursor].Name != name {
		if !(b.arrayOpened && b.cursor < len(fields) && fields[b.cursor].Name == name) {
			return fmt.Errorf("%w: unexpected array field %q", ErrOutOfOrder, name)
		}
	}
	f := fields[b.cursor]
	if f.Kind != FieldArray {
		return fmt.Errorf("%w: %q is not an array field", ErrWrongFieldKind, name)
	}
	elem := NewRawDataBuilder(f.Inner)
	if err := fill(elem); err != nil {
		return err
	}
	body, err := elem.Build()
	if err != nil {
		return err
	}
	if len(body) != f.Length {
		return fmt.Errorf("%w: element of %q produced %d bytes, want %d", ErrArrayLengthMismatch, name, len(body), f.Length)
	}
	b.out = append(b.out, body...)
	b.arrayOpened = true
	return nil
}

// Build finalizes the encoded byte slice. It does not require every field
// to have been visited when the trailing field is dynamic and was never
// opened (an empty DynamicString or a zero-element Array is valid).
func (b *RawDataBuilder) Build() ([]byte, error) {
	fields := b.layout.Fields()
	if b.cursor < len(fields) {
		rest := fields[b.cursor]
		trailingDynamic := b.cursor == len(fields)-1 && (rest.Kind == FieldDynamicString || rest.Kind == FieldArray)
		if !trailingDynamic {
			return nil, fmt.Errorf("%w: field %q was never added", ErrInvalidRawData, rest.Name)
		}
	}
	return b.out, nil
}
