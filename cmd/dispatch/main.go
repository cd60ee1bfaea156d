// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command dispatch serves and inspects the TechNova query dispatcher.
//
// The dispatcher maps free-form queries to a function name and extracted
// arguments using an ordered list of full-match templates.
//
// Usage:
//
//	dispatch serve                       # HTTP API on :8000
//	dispatch serve --templates t.yaml --watch
//	dispatch resolve What is the status of ticket 83742?
//	dispatch templates list
//	dispatch templates lint --templates t.yaml
//	dispatch functions
//
// Example requests:
//
//	curl 'http://localhost:8000/execute?q=What%20is%20the%20status%20of%20ticket%2083742%3F'
//	curl http://localhost:8000/functions | jq
//
// Every flag can also be set with a DISPATCH_* environment variable
// (DISPATCH_PORT, DISPATCH_TEMPLATES_PATH, ...) or a YAML file passed with
// --config.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

func main() {
	root := newRootCmd(viper.New())
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
