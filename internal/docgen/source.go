package docgen

// Kind names this backend in cache keys.
const Kind = "document"

// Kind returns the backend name.
func (g *Generator) Kind() string {
	return Kind
}

// Generate compiles the condition.
func (g *Generator) Generate() (Query, error) {
	return g.Compile()
}

// Signature describes the mapping configuration, independent of
// registration order. Path parameters are already resolved into the paths.
func (g *Generator) Signature() any {
	return map[string]any{
		"fields": g.fields.Signature((*Field).signature),
	}
}
