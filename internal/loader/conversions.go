package loader

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/searchgen/internal/docgen"
	"github.com/roach88/searchgen/internal/sqlgen"
)

var lowerCaser = cases.Lower(language.Und)

func lowerString(v any) any {
	if s, ok := v.(string); ok {
		return lowerCaser.String(s)
	}
	return v
}

// SQLConversions returns the conversions a mapping file may name.
//
//	lower   compares LOWER(column) with the lower-cased value
//	trim    compares TRIM(column) with the trimmed value
func SQLConversions() map[string]sqlgen.Conversion {
	return map[string]sqlgen.Conversion{
		"lower": {
			Name: "lower",
			Column: func(column string, _ sqlgen.Hints) (string, error) {
				return "LOWER(" + column + ")", nil
			},
			Value: func(value any, h sqlgen.Hints) (string, error) {
				return h.Param(lowerString(value), h.Type), nil
			},
		},
		"trim": {
			Name: "trim",
			Column: func(column string, _ sqlgen.Hints) (string, error) {
				return "TRIM(" + column + ")", nil
			},
			Value: func(value any, h sqlgen.Hints) (string, error) {
				if s, ok := value.(string); ok {
					value = strings.TrimSpace(s)
				}
				return h.Param(value, h.Type), nil
			},
		},
	}
}

// DocumentConversions returns the value conversions a mapping file may name.
// Their names match SQLConversions so one mapping file serves both backends.
func DocumentConversions() map[string]docgen.ValueFunc {
	return map[string]docgen.ValueFunc{
		"lower": func(value any, _ docgen.Hints) (any, error) {
			return lowerString(value), nil
		},
		"trim": func(value any, _ docgen.Hints) (any, error) {
			if s, ok := value.(string); ok {
				return strings.TrimSpace(s), nil
			}
			return value, nil
		},
	}
}
