// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch/api"
)

func newResolveCmd(v *viper.Viper) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "resolve <query...>",
		Short: "Resolve one query and print the response body",
		Long: `Resolves the query (all arguments joined by single spaces) and prints the
body GET /execute would return. Exits 1 when the query does not match or
extraction fails.`,
		Example: `  dispatch resolve "What is the status of ticket 83742?"
  dispatch resolve Show me all open tickets for customer C-1023`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cliLogger(cmd, v)
			d, err := loadDispatcher(cmd.Context(), v.GetString("templates_path"), logger)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			status, body := api.Payload(d.Resolve(cmd.Context(), query))

			out := cmd.OutOrStdout()
			if err := writeJSON(out, body, pretty || isTerminal(out)); err != nil {
				return err
			}
			if status != http.StatusOK {
				return &exitError{code: 1, msg: fmt.Sprintf("resolve: status %d", status)}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output (default when stdout is a terminal)")
	return cmd
}
