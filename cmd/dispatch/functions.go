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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch/api"
	"github.com/AleutianAI/AleutianDispatch/services/llm"
)

func newFunctionsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "Print the function catalog as tool definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDispatcher(cmd.Context(), v.GetString("templates_path"), cliLogger(cmd, v))
			if err != nil {
				return err
			}
			tools := []llm.ToolDef{}
			if cat := d.Catalog(); cat != nil {
				tools = cat.ToolDefs()
			}
			out := cmd.OutOrStdout()
			return writeJSON(out, api.FunctionsResponse{Tools: tools}, isTerminal(out))
		},
	}
}
