package condition

import "fmt"

// Logical is the operator joining the members of a ValuesGroup.
type Logical string

const (
	LogicalAnd Logical = "AND"
	LogicalOr  Logical = "OR"
)

// Valid reports whether l is AND or OR.
func (l Logical) Valid() bool {
	return l == LogicalAnd || l == LogicalOr
}

// ValuesGroup is one logical node of the condition tree.
//
// Field order is insertion order. Generators walk fields in this order, so it
// is observable in the compiled output.
type ValuesGroup struct {
	logical  Logical
	names    []string
	fields   map[string]*ValuesBag
	children []*ValuesGroup
}

// NewGroup creates an empty group. An invalid logical defaults to AND.
func NewGroup(logical Logical) *ValuesGroup {
	if !logical.Valid() {
		logical = LogicalAnd
	}
	return &ValuesGroup{
		logical: logical,
		fields:  make(map[string]*ValuesBag),
	}
}

// Logical returns the group operator.
func (g *ValuesGroup) Logical() Logical {
	return g.logical
}

// Field returns the bag for name, creating it on first use.
func (g *ValuesGroup) Field(name string) *ValuesBag {
	if bag, ok := g.fields[name]; ok {
		return bag
	}
	bag := NewValuesBag()
	g.fields[name] = bag
	g.names = append(g.names, name)
	return bag
}

// SetField replaces the bag for name. A new name is appended to the field order.
func (g *ValuesGroup) SetField(name string, bag *ValuesBag) {
	if _, ok := g.fields[name]; !ok {
		g.names = append(g.names, name)
	}
	g.fields[name] = bag
}

// Lookup returns the bag for name without creating it.
func (g *ValuesGroup) Lookup(name string) (*ValuesBag, bool) {
	bag, ok := g.fields[name]
	return bag, ok
}

// FieldNames returns field names in insertion order.
func (g *ValuesGroup) FieldNames() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// AddChild appends a nested group and returns it.
func (g *ValuesGroup) AddChild(child *ValuesGroup) *ValuesGroup {
	g.children = append(g.children, child)
	return child
}

// Group creates, appends and returns a nested group.
func (g *ValuesGroup) Group(logical Logical) *ValuesGroup {
	return g.AddChild(NewGroup(logical))
}

// Children returns the nested groups in declaration order.
func (g *ValuesGroup) Children() []*ValuesGroup {
	return g.children
}

// Empty reports whether the group has no values anywhere in its subtree.
func (g *ValuesGroup) Empty() bool {
	if g == nil {
		return true
	}
	for _, name := range g.names {
		if !g.fields[name].Empty() {
			return false
		}
	}
	for _, child := range g.children {
		if !child.Empty() {
			return false
		}
	}
	return true
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderEntry sorts on one field. Fields starting with "@" are order-only.
type OrderEntry struct {
	Field     string
	Direction Direction
}

// PrimaryCondition is a restriction that is always AND-ed at the top of the
// compiled condition, independent of the root group operator.
type PrimaryCondition struct {
	Group *ValuesGroup
	Order []OrderEntry
}

// SearchCondition is the root of a condition tree.
type SearchCondition struct {
	Root    *ValuesGroup
	Primary *PrimaryCondition
	Order   []OrderEntry
}

// New creates a SearchCondition for root. A nil root becomes an empty AND group.
func New(root *ValuesGroup) *SearchCondition {
	if root == nil {
		root = NewGroup(LogicalAnd)
	}
	return &SearchCondition{Root: root}
}

// WithPrimary sets the primary condition and returns c.
func (c *SearchCondition) WithPrimary(group *ValuesGroup, order ...OrderEntry) *SearchCondition {
	c.Primary = &PrimaryCondition{Group: group, Order: order}
	return c
}

// OrderBy appends a sort entry and returns c.
func (c *SearchCondition) OrderBy(field string, dir Direction) *SearchCondition {
	c.Order = append(c.Order, OrderEntry{Field: field, Direction: dir})
	return c
}

// Validate checks the structural invariants the generators rely on:
// known logical operators, known compare operators and pattern kinds,
// order directions, and order-only fields kept out of field maps.
func (c *SearchCondition) Validate() error {
	if c == nil || c.Root == nil {
		return fmt.Errorf("search condition has no root group")
	}
	if err := validateGroup(c.Root, "root"); err != nil {
		return err
	}
	if err := validateOrder(c.Order); err != nil {
		return err
	}
	if c.Primary != nil {
		if c.Primary.Group != nil {
			if err := validateGroup(c.Primary.Group, "primary"); err != nil {
				return err
			}
		}
		if err := validateOrder(c.Primary.Order); err != nil {
			return err
		}
	}
	return nil
}

func validateGroup(g *ValuesGroup, path string) error {
	if !g.logical.Valid() {
		return fmt.Errorf("%s: invalid logical operator %q", path, g.logical)
	}
	for _, name := range g.names {
		if len(name) > 0 && name[0] == '@' {
			return fmt.Errorf("%s: order-only field %q used as a condition field", path, name)
		}
		bag := g.fields[name]
		for _, cmp := range bag.compares {
			if !cmp.Operator.Valid() {
				return fmt.Errorf("%s.%s: invalid compare operator %q", path, name, cmp.Operator)
			}
		}
		for _, p := range bag.patterns {
			if !p.Kind.Valid() {
				return fmt.Errorf("%s.%s: invalid pattern kind %q", path, name, p.Kind)
			}
		}
	}
	for i, child := range g.children {
		if child == nil {
			return fmt.Errorf("%s[%d]: nil group", path, i)
		}
		if err := validateGroup(child, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateOrder(order []OrderEntry) error {
	for _, o := range order {
		if o.Direction != Asc && o.Direction != Desc {
			return fmt.Errorf("order %q: invalid direction %q", o.Field, o.Direction)
		}
	}
	return nil
}
