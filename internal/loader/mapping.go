package loader

import (
	"fmt"
	"slices"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/docgen"
	"github.com/roach88/searchgen/internal/mapping"
	"github.com/roach88/searchgen/internal/sqlgen"
)

// MappingFile is a field-mapping configuration.
//
//	placeholder_style: ":"
//	fields:
//	  - name: id
//	    column: id
//	    alias: u
//	    type: integer
//	  - name: author
//	    path: comments[].author
//	    level_conditions:
//	      comments:
//	        - field: comments.approved
//	          values: [true]
type MappingFile struct {
	PlaceholderStyle string            `yaml:"placeholder_style" json:"placeholder_style,omitempty"`
	ParamPrefix      string            `yaml:"param_prefix" json:"param_prefix,omitempty"`
	PathParams       map[string]string `yaml:"path_params" json:"path_params,omitempty"`
	Fields           []FieldSpec       `yaml:"fields" json:"fields"`
}

// FieldSpec maps one logical field. Column is used by the SQL backend,
// Path by the document backend; a file may carry both.
type FieldSpec struct {
	Name            string                          `yaml:"name" json:"name"`
	Column          string                          `yaml:"column" json:"column,omitempty"`
	Alias           string                          `yaml:"alias" json:"alias,omitempty"`
	Type            string                          `yaml:"type" json:"type,omitempty"`
	Path            string                          `yaml:"path" json:"path,omitempty"`
	Conversion      string                          `yaml:"conversion" json:"conversion,omitempty"`
	Kinds           []string                        `yaml:"kinds" json:"kinds,omitempty"`
	LevelConditions map[string][]LevelConditionSpec `yaml:"level_conditions" json:"level_conditions,omitempty"`
}

// LevelConditionSpec is a static condition inside a document wrapper level.
type LevelConditionSpec struct {
	Field  string `yaml:"field" json:"field"`
	Values []any  `yaml:"values" json:"values"`
}

// LoadMappings reads a mapping file (.yaml, .yml or .cue).
func LoadMappings(path string) (*MappingFile, error) {
	var mf MappingFile
	if err := decodeFile(path, &mf); err != nil {
		return nil, err
	}
	if len(mf.Fields) == 0 {
		return nil, &LoadError{Code: ErrCodeInvalid, Path: path, Message: "no fields defined"}
	}
	for i, f := range mf.Fields {
		if f.Name == "" {
			return nil, &LoadError{Code: ErrCodeInvalid, Path: path, Message: fmt.Sprintf("fields[%d]: name is required", i)}
		}
	}
	switch sqlgen.PlaceholderStyle(mf.PlaceholderStyle) {
	case "", sqlgen.StyleColon, sqlgen.StyleAt:
	default:
		return nil, &LoadError{Code: ErrCodeInvalid, Path: path, Message: fmt.Sprintf("unknown placeholder_style %q", mf.PlaceholderStyle)}
	}
	return &mf, nil
}

// SQLOptions returns the generator options configured by the file.
func (mf *MappingFile) SQLOptions() []sqlgen.Option {
	var opts []sqlgen.Option
	if mf.PlaceholderStyle != "" {
		opts = append(opts, sqlgen.WithPlaceholderStyle(sqlgen.PlaceholderStyle(mf.PlaceholderStyle)))
	}
	if mf.ParamPrefix != "" {
		opts = append(opts, sqlgen.WithParamPrefix(mf.ParamPrefix))
	}
	return opts
}

// DocumentOptions returns the generator options configured by the file.
func (mf *MappingFile) DocumentOptions() []docgen.Option {
	if len(mf.PathParams) == 0 {
		return nil
	}
	return []docgen.Option{docgen.WithPathParams(mf.PathParams)}
}

// ApplySQL registers every field that has a column.
func (mf *MappingFile) ApplySQL(gen *sqlgen.Generator, conversions map[string]sqlgen.Conversion) error {
	for _, f := range mf.Fields {
		if f.Column == "" {
			continue
		}
		opts := []sqlgen.FieldOption{sqlgen.WithAlias(f.Alias), sqlgen.WithType(f.Type)}
		if f.Conversion != "" {
			conv, ok := conversions[f.Conversion]
			if !ok {
				return unknownConversion(f)
			}
			if conv.Name == "" {
				conv.Name = f.Conversion
			}
			opts = append(opts, sqlgen.WithConversion(conv))
		}
		desc, err := f.Descriptor()
		if err != nil {
			return err
		}
		opts = append(opts, sqlgen.WithDescriptor(desc))

		if err := gen.SetField(f.Name, f.Column, opts...); err != nil {
			return &LoadError{Code: ErrCodeFieldConfig, Message: fmt.Sprintf("field %s: %v", f.Name, err), Err: err}
		}
	}
	return nil
}

// ApplyDocument registers every field that has a path.
func (mf *MappingFile) ApplyDocument(gen *docgen.Generator, conversions map[string]docgen.ValueFunc) error {
	for _, f := range mf.Fields {
		if f.Path == "" {
			continue
		}
		var opts []docgen.FieldOption
		if f.Conversion != "" {
			fn, ok := conversions[f.Conversion]
			if !ok {
				return unknownConversion(f)
			}
			opts = append(opts, docgen.WithValueConversion(f.Conversion, fn))
		}
		if len(f.LevelConditions) > 0 {
			conds := make(map[string][]docgen.LevelCondition, len(f.LevelConditions))
			for level, specs := range f.LevelConditions {
				for _, s := range specs {
					values, err := normalizeValues(s.Values)
					if err != nil {
						return &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("field %s: level %s: %v", f.Name, level, err)}
					}
					conds[level] = append(conds[level], docgen.LevelCondition{Field: s.Field, Values: values})
				}
			}
			opts = append(opts, docgen.WithLevelConditions(conds))
		}
		desc, err := f.Descriptor()
		if err != nil {
			return err
		}
		opts = append(opts, docgen.WithDescriptor(desc))

		if err := gen.RegisterField(f.Name, f.Path, opts...); err != nil {
			return &LoadError{Code: ErrCodeFieldConfig, Message: fmt.Sprintf("field %s: %v", f.Name, err), Err: err}
		}
	}
	return nil
}

func unknownConversion(f FieldSpec) error {
	return &LoadError{
		Code:    ErrCodeConversion,
		Message: fmt.Sprintf("field %s: conversion %q is not registered", f.Name, f.Conversion),
		Err:     ErrUnknownConversion,
	}
}

// Descriptor resolves Kinds into a FieldDescriptor. No kinds accepts everything.
func (f FieldSpec) Descriptor() (mapping.FieldDescriptor, error) {
	if len(f.Kinds) == 0 {
		return mapping.AcceptAll(), nil
	}
	kinds := make([]condition.ValueKind, 0, len(f.Kinds))
	for _, k := range f.Kinds {
		kind := condition.ValueKind(k)
		if !slices.Contains(condition.AllKinds, kind) {
			return mapping.FieldDescriptor{}, &LoadError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("field %s: unknown value kind %q", f.Name, k),
				Err:     mapping.ErrInvalidMapping,
			}
		}
		kinds = append(kinds, kind)
	}
	return mapping.Accepts(kinds...), nil
}
