package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/effectus/extension-sdk/entry"
	"github.com/effectus/extension-sdk/schema"
)

// fieldReport describes one resolved path
type fieldReport struct {
	Path     string      `json:"path" yaml:"path"`
	DataType string      `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	Role     string      `json:"role,omitempty" yaml:"role,omitempty"`
	Writable bool        `json:"writable" yaml:"writable"`
	Present  bool        `json:"present" yaml:"present"`
	Data     interface{} `json:"data,omitempty" yaml:"data,omitempty"`
	Children []string    `json:"children,omitempty" yaml:"children,omitempty"`
	Error    string      `json:"error,omitempty" yaml:"error,omitempty"`
}

func createResolveCmd() *cobra.Command {
	var (
		format   string
		unsaved  bool
		children bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <path>...",
		Short: "Resolve field paths against the entry",
		Long: `Resolve one or more dotted field paths and report the schema node, the
data found there and whether the field can be written.

Examples:
  # A nested group inside a multiple group instance
  entryctl resolve --init init.json group.group.group.1.single_line

  # Block definition and instance
  entryctl resolve --init init.json modular_blocks.banner modular_blocks.0.banner

  # Resolve against the unsaved schema
  entryctl resolve --init init.json --unsaved subtitle`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.loadEntry()
			if err != nil {
				return err
			}

			var opts []entry.FieldOption
			if unsaved {
				opts = append(opts, entry.UseUnsavedSchema())
			}
			navigator := schema.NewNavigator(a.registry)

			reports := make([]fieldReport, 0, len(args))
			failed := 0
			for _, path := range args {
				report := resolveReport(e, navigator, path, children, opts...)
				if report.Error != "" {
					failed++
				}
				reports = append(reports, report)
			}

			if err := writeReports(cmd.OutOrStdout(), format, reports); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d paths did not resolve", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	cmd.Flags().BoolVar(&unsaved, "unsaved", false, "Resolve against the unsaved schema")
	cmd.Flags().BoolVar(&children, "children", false, "List the child uids of each field")

	return cmd
}

func resolveReport(e *entry.Entry, navigator *schema.Navigator, path string, withChildren bool, opts ...entry.FieldOption) fieldReport {
	report := fieldReport{Path: path}

	handle, err := e.GetField(path, opts...)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.DataType = handle.DataType()
	report.Data, report.Present = handle.GetData()
	if field, ok := handle.(*entry.Field); ok {
		report.Writable = field.Writable()
		switch {
		case field.IsDefinition():
			report.Role = "definition"
		case field.IsInstance():
			report.Role = "instance"
		default:
			report.Role = "field"
		}
	}
	if withChildren {
		for _, child := range navigator.Children(handle.Schema()) {
			report.Children = append(report.Children, child.UID())
		}
	}
	return report
}

func writeReports(w io.Writer, format string, reports []fieldReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(reports)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PATH\tTYPE\tROLE\tWRITABLE\tDATA")
		for _, r := range reports {
			if r.Error != "" {
				fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\n", r.Path, r.Error)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.Path, r.DataType, r.Role, r.Writable, summarize(r.Data, r.Present))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// summarize renders data compactly for the table view
func summarize(data interface{}, present bool) string {
	if !present {
		return "<undefined>"
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	const limit = 60
	if len(raw) > limit {
		return string(raw[:limit-3]) + "..."
	}
	return string(raw)
}
