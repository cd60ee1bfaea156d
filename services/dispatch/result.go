// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dispatch

// Outcome classifies a Result.
type Outcome string

const (
	OutcomeMatched          Outcome = "matched"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeNoMatch          Outcome = "no_match"
)

// Result is the outcome of resolving one query. It is one of Matched,
// ExtractionFailed or NoMatch.
//
// Use a type switch to inspect it:
//
//	switch r := res.(type) {
//	case dispatch.Matched:
//	case dispatch.ExtractionFailed:
//	case dispatch.NoMatch:
//	}
type Result interface {
	Outcome() Outcome
	isResult()
}

// Matched is a successful resolution.
type Matched struct {
	// FunctionName is the target function.
	FunctionName string

	// Arguments is the canonical encoding of the extracted arguments, e.g.
	// {"ticket_id": 83742}. It is a string so callers can forward it as-is.
	Arguments string

	// TemplateID identifies the template that matched. Diagnostic only.
	TemplateID string
}

// ExtractionFailed means a template matched the query but its arguments
// could not be extracted. Scanning stopped at that template.
type ExtractionFailed struct {
	// Message describes the failure for the caller.
	Message string

	// FunctionName and TemplateID identify the template that matched.
	FunctionName string
	TemplateID   string
}

// NoMatch means no template matched the query.
type NoMatch struct{}

func (Matched) Outcome() Outcome          { return OutcomeMatched }
func (ExtractionFailed) Outcome() Outcome { return OutcomeExtractionFailed }
func (NoMatch) Outcome() Outcome          { return OutcomeNoMatch }

func (Matched) isResult()          {}
func (ExtractionFailed) isResult() {}
func (NoMatch) isResult()          {}
