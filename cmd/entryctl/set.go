package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/effectus/extension-sdk/transport"
)

func createSetCmd() *cobra.Command {
	var (
		dryRun  bool
		raw     bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Write a field value through the host",
		Long: `Send a setData request for a writable field. The value is parsed as JSON
unless --raw is given; anything that is not valid JSON is sent as a string.

Examples:
  entryctl set --init init.json title '"New title"'
  entryctl set --init init.json group.group.group.0.number 7
  entryctl set --init init.json --dry-run seo_ref '{"meta_title":"x"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			a, err := newApp(ctx, !dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			var recorder *transport.Recorder
			if dryRun {
				recorder = transport.NewRecorder()
				a.conn = recorder
			} else if a.conn == nil {
				return fmt.Errorf("no transport configured; set transport.kind or use --dry-run")
			}

			e, err := a.loadEntry()
			if err != nil {
				return err
			}
			field, err := e.GetField(args[0])
			if err != nil {
				return err
			}
			if err := field.SetData(ctx, parseValue(args[1], raw)); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if recorder != nil {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(recorder.Requests())
			}
			fmt.Fprintf(out, "updated %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the request instead of sending it")
	cmd.Flags().BoolVar(&raw, "raw", false, "Send the value as a plain string")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	return cmd
}

func parseValue(arg string, raw bool) interface{} {
	if raw {
		return arg
	}
	var value interface{}
	if err := json.Unmarshal([]byte(arg), &value); err != nil {
		return arg
	}
	return value
}
