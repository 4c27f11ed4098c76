package protocol

import "fmt"

// FieldKind identifies how a LayoutField is encoded on the wire.
type FieldKind int

const (
	// FieldFixedString is a fixed-length raw byte field. When used as text
	// it is zero-padded/truncated to its declared length; it is also used
	// for fixed-length non-textual byte fields such as an IPv4 address.
	FieldFixedString FieldKind = iota
	// FieldDynamicString is a variable-length raw byte field that spans to
	// the end of the datagram. At most one dynamic field (this or
	// FieldArray) may appear in a Layout, and it must be the last field.
	FieldDynamicString
	// FieldNumber is a fixed-width unsigned integer, 1 or 2 bytes.
	FieldNumber
	// FieldArray is a repeating sequence of elements described by Inner,
	// spanning to the end of the datagram. Like FieldDynamicString it must
	// be the last field in its Layout.
	FieldArray
)

// LayoutField describes one named field of a Layout.
type LayoutField struct {
	Name      string
	Kind      FieldKind
	StartByte int
	// Length is the field's byte width for FieldFixedString/FieldNumber,
	// or the size of a single element for FieldArray. It is meaningless
	// (0) for FieldDynamicString.
	Length int
	// Inner is the element Layout for FieldArray fields, nil otherwise.
	Inner *Layout
}

// Layout is an ordered, by-name-indexed set of LayoutFields describing a
// message body's binary encoding. Fields are stored in start-byte order
// (not a hash map) per the re-architecture guidance: this keeps encode and
// decode O(n) instead of requiring a runtime ordering check against
// unordered storage.
type Layout struct {
	fields []LayoutField
	index  map[string]int
}

// Field returns the named field and whether it exists.
func (l *Layout) Field(name string) (LayoutField, bool) {
	i, ok := l.index[name]
	if !ok {
		return LayoutField{}, false
	}
	return l.fields[i], true
}

// Fields returns the layout's fields in start-byte order. The slice must
// not be mutated by callers.
func (l *Layout) Fields() []LayoutField {
	return l.fields
}

// HasTrailingDynamic reports whether the layout's last field is a
// DynamicString or Array.
func (l *Layout) HasTrailingDynamic() bool {
	if len(l.fields) == 0 {
		return false
	}
	last := l.fields[len(l.fields)-1]
	return last.Kind == FieldDynamicString || last.Kind == FieldArray
}

// FixedLength returns the sum of the lengths of all non-dynamic fields,
// i.e. the minimum byte length a valid encoding of this layout occupies.
func (l *Layout) FixedLength() int {
	total := 0
	for _, f := range l.fields {
		if f.Kind == FieldDynamicString || f.Kind == FieldArray {
			continue
		}
		total += f.Length
	}
	return total
}

// LayoutBuilder incrementally assembles a Layout, rejecting malformed
// definitions with typed errors instead of panicking (panics are reserved
// for the protocol catalogue's own static definitions, which are
// programmer error if malformed, not runtime input).
type LayoutBuilder struct {
	fields      []LayoutField
	names       map[string]struct{}
	hasDynamic  bool
	cursorBytes int
}

// NewLayoutBuilder returns an empty builder.
func NewLayoutBuilder() *LayoutBuilder {
	return &LayoutBuilder{names: make(map[string]struct{})}
}

func (b *LayoutBuilder) checkName(name string) error {
	if _, dup := b.names[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if b.hasDynamic {
		return fmt.Errorf("%w: %q added after a dynamic field", ErrDynamicNotLast, name)
	}
	return nil
}

// FixedString appends a fixed-length raw byte field.
func (b *LayoutBuilder) FixedString(name string, length int) error {
	if err := b.checkName(name); err != nil {
		return err
	}
	b.append(LayoutField{Name: name, Kind: FieldFixedString, StartByte: b.cursorBytes, Length: length})
	return nil
}

// DynamicString appends a variable-length raw byte field. It must be the
// last field added to the builder.
func (b *LayoutBuilder) DynamicString(name string) error {
	if err := b.checkName(name); err != nil {
		return err
	}
	b.append(LayoutField{Name: name, Kind: FieldDynamicString, StartByte: b.cursorBytes})
	b.hasDynamic = true
	return nil
}

// Number appends a fixed-width unsigned integer field (length 1 or 2
// bytes).
func (b *LayoutBuilder) Number(name string, length int) error {
	if err := b.checkName(name); err != nil {
		return err
	}
	b.append(LayoutField{Name: name, Kind: FieldNumber, StartByte: b.cursorBytes, Length: length})
	return nil
}

// Array appends a repeating-element field whose element shape is given by
// inner. inner must have at least one field, and inner itself must not
// declare a trailing dynamic field (array elements are fixed-size). It
// must be the last field added to the builder.
func (b *LayoutBuilder) Array(name string, inner *Layout) error {
	if err := b.checkName(name); err != nil {
		return err
	}
	if inner == nil || len(inner.fields) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyArrayLayout, name)
	}
	elementSize := inner.FixedLength()
	b.append(LayoutField{Name: name, Kind: FieldArray, StartByte: b.cursorBytes, Length: elementSize, Inner: inner})
	b.hasDynamic = true
	return nil
}

func (b *LayoutBuilder) append(f LayoutField) {
	b.fields = append(b.fields, f)
	b.names[f.Name] = struct{}{}
	if f.Kind != FieldDynamicString && f.Kind != FieldArray {
		b.cursorBytes += f.Length
	}
}

// Build finalizes the layout.
func (b *LayoutBuilder) Build() *Layout {
	index := make(map[string]int, len(b.fields))
	for i, f := range b.fields {
		index[f.Name] = i
	}
	return &Layout{fields: b.fields, index: index}
}

// MustBuild builds a Layout given a closure that adds fields, panicking on
// any builder error. Reserved for the protocol catalogue's static
// definitions (§4.3): a malformed built-in layout is a programmer error,
// not a runtime input, so it panics at package init rather than returning
// an error nobody can act on.
func MustBuild(define func(b *LayoutBuilder) error) *Layout {
	b := NewLayoutBuilder()
	if err := define(b); err != nil {
		panic(fmt.Sprintf("protocol: malformed static layout definition: %v", err))
	}
	return b.Build()
}
