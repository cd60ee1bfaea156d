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
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/api"
)

func newTemplatesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect the template registry",
	}
	cmd.AddCommand(newTemplatesListCmd(v), newTemplatesLintCmd(v))
	return cmd
}

func newTemplatesListCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates in scan order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDispatcher(cmd.Context(), v.GetString("templates_path"), cliLogger(cmd, v))
			if err != nil {
				return err
			}

			reg := d.Registry()
			infos := make([]api.TemplateInfo, 0, reg.Len())
			for i, t := range reg.All() {
				infos = append(infos, api.TemplateInfo{
					Index:    i,
					ID:       t.ID,
					Function: t.FunctionName,
					Pattern:  t.Pattern,
					Example:  t.Example,
				})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, api.TemplatesResponse{Count: len(infos), Templates: infos}, isTerminal(out))
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tID\tFUNCTION\tPATTERN")
			for _, info := range infos {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", info.Index, info.ID, info.Function, info.Pattern)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newTemplatesLintCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check templates for shadowing and broken examples",
		Long: `Resolves every template's example query and reports templates that are
shadowed by an earlier one, examples that fail to match or extract, and
duplicate patterns. Exits 1 when there are findings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDispatcher(cmd.Context(), v.GetString("templates_path"), cliLogger(cmd, v))
			if err != nil {
				return err
			}

			findings := dispatch.Lint(cmd.Context(), d)
			out := cmd.OutOrStdout()
			if asJSON {
				if findings == nil {
					findings = []dispatch.Finding{}
				}
				if err := writeJSON(out, findings, isTerminal(out)); err != nil {
					return err
				}
			} else {
				for _, f := range findings {
					fmt.Fprintln(out, f.String())
				}
				if len(findings) == 0 {
					fmt.Fprintf(out, "ok: %d templates, no findings\n", d.Registry().Len())
				}
			}

			if len(findings) > 0 {
				return &exitError{code: 1, msg: fmt.Sprintf("lint: %d findings", len(findings))}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print findings as JSON")
	return cmd
}
