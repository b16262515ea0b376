// Package condition provides the backend-agnostic search condition model.
//
// A SearchCondition is a tree of ValuesGroup nodes. Each group combines its
// fields and child groups with a single logical operator (AND or OR). A field
// inside a group owns one ValuesBag holding every value the user supplied for
// that field in that group:
//
//	SearchCondition
//	  ├── Root: ValuesGroup (AND)
//	  │     ├── "id":     ValuesBag{simple: [2, 5]}
//	  │     ├── "status": ValuesBag{excluded: [3]}
//	  │     └── children: [ValuesGroup (OR) ...]
//	  ├── Primary: optional ValuesGroup, always AND-ed at the top
//	  └── Order: [@id DESC, ...]
//
// The model is produced by an input layer outside this module and is treated
// as read-only by the generators. Input validation (range ordering, field
// types) happens upstream; the generators trust what they receive.
//
// VALUE KINDS:
//
// Value is a sealed interface. Only SingleValue, Range, Compare and
// PatternMatch implement it, so generator type switches are exhaustive.
//
// SIGNATURES:
//
// SearchCondition.Signature returns a structural description of the whole
// tree, suitable for canonical encoding. Scalars are tagged with their Go
// kind so the integer 2 and the string "2" never share a signature.
package condition
