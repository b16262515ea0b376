package mapping

import (
	"fmt"
	"slices"

	"github.com/roach88/searchgen/internal/condition"
)

// FieldDescriptor is the resolved capability record for one field.
//
// It is produced ahead of generation by whatever owns the field types; the
// generators only read it. A zero descriptor accepts every value kind.
type FieldDescriptor struct {
	Kinds []condition.ValueKind
}

// AcceptAll returns a descriptor that accepts every value kind.
func AcceptAll() FieldDescriptor {
	return FieldDescriptor{}
}

// Accepts returns a descriptor restricted to kinds.
func Accepts(kinds ...condition.ValueKind) FieldDescriptor {
	cp := make([]condition.ValueKind, len(kinds))
	copy(cp, kinds)
	return FieldDescriptor{Kinds: cp}
}

// Supports reports whether kind is legal for the field.
func (d FieldDescriptor) Supports(kind condition.ValueKind) bool {
	if len(d.Kinds) == 0 {
		return true
	}
	return slices.Contains(d.Kinds, kind)
}

// Check returns ErrUnsupportedValueKind for the first kind in bag the
// descriptor does not accept.
func (d FieldDescriptor) Check(field string, bag *condition.ValuesBag) error {
	for _, kind := range bag.Kinds() {
		if !d.Supports(kind) {
			return &Error{
				Code:    ErrCodeUnsupportedKind,
				Field:   field,
				Message: fmt.Sprintf("value kind %s is not supported", kind),
				Err:     ErrUnsupportedValueKind,
			}
		}
	}
	return nil
}

// Signature describes the descriptor for cache keys.
func (d FieldDescriptor) Signature() []any {
	out := make([]any, 0, len(d.Kinds))
	for _, k := range d.Kinds {
		out = append(out, string(k))
	}
	return out
}
