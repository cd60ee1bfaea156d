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

import (
	"regexp"
	"unicode/utf8"
)

// MaxLoggedQueryLength caps how much of a query is written to logs.
const MaxLoggedQueryLength = 256

// redaction pairs a secret pattern with its labeled replacement.
//
// Thread Safety: This type is immutable after construction.
type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// redactions is applied in order. Specific key formats come before the
// generic key=/token= forms so the label names the secret class.
var redactions = []redaction{
	{regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`), "[REDACTED:anthropic_key]"},
	{regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`), "[REDACTED:api_key]"},
	{regexp.MustCompile(`AIza[A-Za-z0-9_-]{30,}`), "[REDACTED:google_key]"},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{10,}=*`), "[REDACTED:bearer_token]"},
	{regexp.MustCompile(`(?i)\b(api[_-]?key|key|token|secret)=[^\s&]{6,}`), "${1}=[REDACTED]"},
	{regexp.MustCompile(`(?i)\bpassword[=:]\s*[^\s&]{3,}`), "password=[REDACTED]"},
	{regexp.MustCompile(`(postgres|postgresql|mysql|mongodb|redis)://[^\s@/]+@`), "${1}://[REDACTED]@"},
	{regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), "[REDACTED:email]"},
}

// RedactQuery prepares free-form query text for logging.
//
// Description:
//
//	Queries are user input and may carry credentials or contact details.
//	Known secret formats and email addresses are replaced with labeled
//	placeholders and the result is truncated to MaxLoggedQueryLength bytes
//	on a rune boundary. Identifiers the templates extract (ticket numbers,
//	dates, room names) pass through unchanged.
//
// Inputs:
//
//	s - Query or message text. Empty is valid.
//
// Outputs:
//
//	string - Text safe to log.
//
// Limitations:
//
//	Pattern-based only; secrets in unfamiliar formats are not detected.
//
// Thread Safety: This function is safe for concurrent use.
func RedactQuery(s string) string {
	if s == "" {
		return s
	}
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	if len(s) <= MaxLoggedQueryLength {
		return s
	}
	cut := MaxLoggedQueryLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
