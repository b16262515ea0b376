package condition

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Signature returns a structural description of the condition.
//
// The result only contains map[string]any, []any and string values, so it can
// be fed to canonical.Marshal directly. Field order and value order are
// preserved because both influence generated output.
func (c *SearchCondition) Signature() map[string]any {
	sig := map[string]any{
		"root":  groupSignature(c.Root),
		"order": orderSignature(c.Order),
	}
	if c.Primary != nil {
		sig["primary"] = map[string]any{
			"group": groupSignature(c.Primary.Group),
			"order": orderSignature(c.Primary.Order),
		}
	}
	return sig
}

func groupSignature(g *ValuesGroup) map[string]any {
	if g == nil {
		return map[string]any{}
	}
	fields := make([]any, 0, len(g.names))
	for _, name := range g.names {
		fields = append(fields, []any{name, bagSignature(g.fields[name])})
	}
	children := make([]any, 0, len(g.children))
	for _, child := range g.children {
		children = append(children, groupSignature(child))
	}
	return map[string]any{
		"logical":  string(g.logical),
		"fields":   fields,
		"children": children,
	}
}

func bagSignature(b *ValuesBag) map[string]any {
	if b == nil {
		return map[string]any{}
	}
	sig := make(map[string]any)
	if len(b.simple) > 0 {
		sig["simple"] = scalarList(b.simple)
	}
	if len(b.excluded) > 0 {
		sig["excluded"] = scalarList(b.excluded)
	}
	if len(b.ranges) > 0 {
		sig["ranges"] = rangeList(b.ranges)
	}
	if len(b.excludedRanges) > 0 {
		sig["excluded_ranges"] = rangeList(b.excludedRanges)
	}
	if len(b.compares) > 0 {
		list := make([]any, 0, len(b.compares))
		for _, c := range b.compares {
			list = append(list, []any{string(c.Operator), Tag(c.Value)})
		}
		sig["compares"] = list
	}
	if len(b.patterns) > 0 {
		list := make([]any, 0, len(b.patterns))
		for _, p := range b.patterns {
			list = append(list, []any{string(p.Kind), p.Value, p.Negated, p.CaseInsensitive})
		}
		sig["patterns"] = list
	}
	return sig
}

func scalarList(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = Tag(v)
	}
	return out
}

func rangeList(ranges []Range) []any {
	out := make([]any, len(ranges))
	for i, r := range ranges {
		out[i] = []any{Tag(r.Lower), Tag(r.Upper), r.InclusiveLower, r.InclusiveUpper}
	}
	return out
}

func orderSignature(order []OrderEntry) []any {
	out := make([]any, len(order))
	for i, o := range order {
		out[i] = []any{o.Field, string(o.Direction)}
	}
	return out
}

// Tag renders a scalar as a kind-prefixed string.
//
// Floats are rendered with strconv 'g' formatting so they survive canonical
// encoding, which has no float type.
func Tag(v any) string {
	switch val := v.(type) {
	case nil:
		return "n:"
	case string:
		return "s:" + val
	case bool:
		return "b:" + strconv.FormatBool(val)
	case int:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case int8:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case int16:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case int32:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case int64:
		return "i:" + strconv.FormatInt(val, 10)
	case uint:
		return "i:" + strconv.FormatUint(uint64(val), 10)
	case uint8:
		return "i:" + strconv.FormatUint(uint64(val), 10)
	case uint16:
		return "i:" + strconv.FormatUint(uint64(val), 10)
	case uint32:
		return "i:" + strconv.FormatUint(uint64(val), 10)
	case uint64:
		return "i:" + strconv.FormatUint(val, 10)
	case float32:
		return "f:" + strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return "t:" + val.Format(time.RFC3339Nano)
	case uuid.UUID:
		return "u:" + val.String()
	case fmt.Stringer:
		return fmt.Sprintf("%T:%s", val, val.String())
	default:
		return fmt.Sprintf("%T:%v", val, val)
	}
}
