package sqlgen

// Kind names this backend in cache keys.
const Kind = "sql"

// Kind returns the backend name.
func (g *Generator) Kind() string {
	return Kind
}

// Generate compiles without a prefix. Cached bodies are stored un-prefixed.
func (g *Generator) Generate() (Clause, error) {
	return g.Compile("")
}

// Signature describes the mapping configuration. It does not depend on the
// order fields were registered in.
func (g *Generator) Signature() any {
	return map[string]any{
		"style":  string(g.style),
		"prefix": g.paramPrefix,
		"fields": g.fields.Signature(Field.signature),
	}
}
