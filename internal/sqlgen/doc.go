// Package sqlgen compiles a condition tree into a parameterized SQL WHERE
// fragment.
//
// The generator walks the tree depth-first and assigns placeholders
// sequentially (search_0, search_1, ...) in first-use order. Values are never
// interpolated into the SQL text; every value is bound as a named parameter.
//
//	gen, _ := sqlgen.New(cond)
//	_ = gen.SetField("id", "id", sqlgen.WithAlias("u"), sqlgen.WithType("integer"))
//	_ = gen.SetField("name#1", "first_name", sqlgen.WithAlias("u"))
//	_ = gen.SetField("name#2", "last_name", sqlgen.WithAlias("u"))
//	clause, _ := gen.Compile("WHERE ")
//	rows, _ := db.QueryContext(ctx, "SELECT * FROM users u "+clause.SQL, clause.NamedArgs()...)
//
// Composition per field:
//
//	inclusion = value OR value OR ...        (equalities, ranges, compares, patterns)
//	exclusion = value AND value AND ...      (excluded values and ranges, <>, negated patterns)
//	field     = (inclusion AND exclusion)    when both are present
//
// Lists with more than one member are parenthesized. Two or more directional
// compares on one field form a single AND-ed alternative. Fields that share a
// base name through a "#token" suffix are flattened into one OR set.
package sqlgen
