// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Templates
// =============================================================================

//go:embed dispatch_templates.yaml
var defaultTemplatesYAML []byte

// DefaultTemplatesYAML returns a copy of the embedded template file.
func DefaultTemplatesYAML() []byte {
	out := make([]byte, len(defaultTemplatesYAML))
	copy(out, defaultTemplatesYAML)
	return out
}

// =============================================================================
// Limits and Sentinels
// =============================================================================

const (
	// MaxYAMLFileSize caps the size of a template file. Template files are
	// hand-written; anything larger is almost certainly the wrong file.
	MaxYAMLFileSize = 1 << 20

	// SupportedTemplateFileVersion is the only accepted "version" value.
	SupportedTemplateFileVersion = 1
)

// ErrEmptyTemplateFile is returned when the template YAML is empty.
var ErrEmptyTemplateFile = errors.New("empty template file")

var configTracer = otel.Tracer("aleutian.dispatch.config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================
// Template File Types
// =============================================================================

// TemplateFile is the on-disk form of the dispatch vocabulary: the function
// catalog plus the ordered list of query templates.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type TemplateFile struct {
	// Version is the file format version. Only 1 is supported.
	Version int `yaml:"version" validate:"eq=1"`

	// Functions declares every function a template may target, with its
	// parameters in canonical order.
	Functions []FunctionSpec `yaml:"functions" validate:"required,min=1,dive"`

	// Templates is the ordered template list. Order is significant.
	Templates []TemplateSpec `yaml:"templates" validate:"required,min=1,dive"`
}

// FunctionSpec declares one target function.
type FunctionSpec struct {
	Name        string      `yaml:"name" validate:"required"`
	Description string      `yaml:"description"`
	Parameters  []ParamSpec `yaml:"parameters" validate:"dive"`
}

// ParamSpec declares one function parameter.
type ParamSpec struct {
	Name        string `yaml:"name" validate:"required"`
	Type        string `yaml:"type" validate:"required,oneof=integer string"`
	Description string `yaml:"description"`
}

// TemplateSpec declares one query template.
type TemplateSpec struct {
	// ID identifies the template in logs, lint output and the API.
	ID string `yaml:"id" validate:"required"`

	// Function is the target function name. Must exist in Functions.
	Function string `yaml:"function" validate:"required"`

	// Pattern is an RE2 expression matched against the entire query.
	Pattern string `yaml:"pattern" validate:"required"`

	// Captures maps capture group N (list position + 1) to a parameter
	// name. When empty, named groups (?P<name>...) are used instead.
	Captures []string `yaml:"captures"`

	// Example is a query that must resolve to this template. Optional.
	Example string `yaml:"example"`
}

// =============================================================================
// Loading
// =============================================================================

// LoadTemplateFile parses and validates a TemplateFile from YAML bytes.
//
// Description:
//
//	Parses the YAML, checks struct-level constraints (required fields,
//	parameter types, version) and cross-references between sections
//	(duplicate names, unknown functions). Pattern compilation and capture
//	checks happen later, when the templates are compiled into a registry.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	data - Raw YAML bytes.
//
// Outputs:
//
//	*TemplateFile - The validated file.
//	error - Non-nil if parsing or validation fails.
func LoadTemplateFile(ctx context.Context, data []byte) (*TemplateFile, error) {
	_, span := configTracer.Start(ctx, "config.LoadTemplateFile")
	defer span.End()

	if len(data) == 0 {
		span.SetStatus(codes.Error, "empty")
		return nil, fmt.Errorf("LoadTemplateFile: %w", ErrEmptyTemplateFile)
	}
	if len(data) > MaxYAMLFileSize {
		span.SetStatus(codes.Error, "too large")
		return nil, fmt.Errorf("LoadTemplateFile: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var tf TemplateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse")
		return nil, fmt.Errorf("LoadTemplateFile: parsing YAML: %w", err)
	}

	if err := validate.Struct(&tf); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation")
		return nil, fmt.Errorf("LoadTemplateFile: validation: %w", err)
	}
	if err := validateReferences(&tf); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation")
		return nil, fmt.Errorf("LoadTemplateFile: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int("functions", len(tf.Functions)),
		attribute.Int("templates", len(tf.Templates)),
	)

	slog.Info("template file loaded",
		slog.Int("functions", len(tf.Functions)),
		slog.Int("templates", len(tf.Templates)),
	)

	return &tf, nil
}

// LoadTemplateFileFromPath reads and loads a template file from disk.
func LoadTemplateFileFromPath(ctx context.Context, path string) (*TemplateFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("LoadTemplateFileFromPath: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadTemplateFileFromPath: %s exceeds maximum size (%d > %d)", path, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadTemplateFileFromPath: %w", err)
	}
	tf, err := LoadTemplateFile(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tf, nil
}

// validateReferences checks cross-section consistency.
func validateReferences(tf *TemplateFile) error {
	functions := make(map[string]struct{}, len(tf.Functions))
	for i, fn := range tf.Functions {
		if _, dup := functions[fn.Name]; dup {
			return fmt.Errorf("functions[%d]: duplicate function %q", i, fn.Name)
		}
		functions[fn.Name] = struct{}{}

		params := make(map[string]struct{}, len(fn.Parameters))
		for j, p := range fn.Parameters {
			if _, dup := params[p.Name]; dup {
				return fmt.Errorf("functions[%d] (%s): parameters[%d]: duplicate parameter %q", i, fn.Name, j, p.Name)
			}
			params[p.Name] = struct{}{}
		}
	}

	ids := make(map[string]struct{}, len(tf.Templates))
	for i, t := range tf.Templates {
		if _, dup := ids[t.ID]; dup {
			return fmt.Errorf("templates[%d]: duplicate template id %q", i, t.ID)
		}
		ids[t.ID] = struct{}{}

		if _, ok := functions[t.Function]; !ok {
			return fmt.Errorf("templates[%d] (%s): unknown function %q", i, t.ID, t.Function)
		}
	}

	return nil
}

// =============================================================================
// Singleton Default Template File
// =============================================================================

var (
	defaultTemplatesMu      sync.Mutex
	defaultTemplatesOnce    sync.Once
	cachedDefaultTemplates  *TemplateFile
	defaultTemplatesLoadErr error
)

// GetDefaultTemplateFile returns the embedded template file, loading and
// validating it on first use.
//
// Thread Safety: Safe for concurrent use.
func GetDefaultTemplateFile(ctx context.Context) (*TemplateFile, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetDefaultTemplateFile: ctx must not be nil")
	}

	defaultTemplatesMu.Lock()
	defer defaultTemplatesMu.Unlock()

	defaultTemplatesOnce.Do(func() {
		cachedDefaultTemplates, defaultTemplatesLoadErr = LoadTemplateFile(ctx, defaultTemplatesYAML)
	})
	return cachedDefaultTemplates, defaultTemplatesLoadErr
}

// ResetDefaultTemplateFile clears the cached default file. Tests only.
func ResetDefaultTemplateFile() {
	defaultTemplatesMu.Lock()
	defer defaultTemplatesMu.Unlock()
	cachedDefaultTemplates = nil
	defaultTemplatesLoadErr = nil
	defaultTemplatesOnce = sync.Once{}
}
