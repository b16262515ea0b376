// Package loader reads field-mapping files and condition fixtures from YAML
// or CUE.
//
// Both formats decode into the same structs: YAML through gopkg.in/yaml.v3
// and the yaml tags, CUE through cue.Value.Decode and the json tags.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// ErrUnknownConversion is a setup error for a mapping that names a
// conversion the caller did not provide.
var ErrUnknownConversion = errors.New("unknown conversion")

// Error codes.
const (
	ErrCodeNotFound    = "E001" // File not found or unreadable
	ErrCodeFormat      = "E002" // Unsupported file extension
	ErrCodeParse       = "E003" // YAML/CUE syntax or evaluation error
	ErrCodeInvalid     = "E004" // Structurally invalid content
	ErrCodeConversion  = "E005" // Unknown conversion reference
	ErrCodeFieldConfig = "E006" // Field registration rejected by the generator
)

// LoadError is a loading failure, with a source position when known.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// decodeFile reads path and decodes it into out based on its extension.
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Code: ErrCodeNotFound, Path: path, Message: err.Error(), Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return &LoadError{Code: ErrCodeParse, Path: path, Message: err.Error(), Err: err}
		}
		return nil
	case ".cue":
		return decodeCUE(path, data, out)
	default:
		return &LoadError{
			Code:    ErrCodeFormat,
			Path:    path,
			Message: fmt.Sprintf("unsupported extension %q (want .yaml, .yml or .cue)", filepath.Ext(path)),
		}
	}
}

func decodeCUE(path string, data []byte, out any) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return formatCUEError(path, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(path, err)
	}
	if err := v.Decode(out); err != nil {
		return formatCUEError(path, err)
	}
	return nil
}

// formatCUEError reports the first CUE error with its position.
func formatCUEError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeParse, Path: path, Message: err.Error(), Err: err}
	}
	first := errs[0]
	le := &LoadError{Code: ErrCodeParse, Path: path, Message: first.Error(), Err: err}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
