package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/effectus/extension-sdk/entry"
)

func createEvalCmd() *cobra.Command {
	var (
		showPaths bool
		asBool    bool
	)

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression over the entry data",
		Long: `Evaluate an expr-lang expression with the saved entry data as its
environment. Paths the expression reads must exist in the schema.

Examples:
  entryctl eval --init init.json 'number > 3 && title == "Home"'
  entryctl eval --init init.json --paths 'len(group.group.group)'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expression := args[0]
			out := cmd.OutOrStdout()

			if showPaths {
				fmt.Fprintf(out, "paths: %s\n", strings.Join(entry.ReferencedPaths(expression), ", "))
			}

			a, err := newApp(context.Background(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.loadEntry()
			if err != nil {
				return err
			}

			if asBool {
				ok, err := e.EvaluateBool(expression)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ok)
				return nil
			}

			result, err := e.Evaluate(expression)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(result)
			if err != nil {
				fmt.Fprintln(out, result)
				return nil
			}
			fmt.Fprintln(out, string(raw))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPaths, "paths", false, "Print the field paths the expression reads")
	cmd.Flags().BoolVar(&asBool, "bool", false, "Require a boolean result")

	return cmd
}
