package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/effectus/extension-sdk/adapters"
	"github.com/effectus/extension-sdk/internal/config"
	"github.com/effectus/extension-sdk/internal/logging"
	"github.com/effectus/extension-sdk/internal/schemasources"
)

func createSourcesCmd() *cobra.Command {
	var showTypes bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Load the configured schema sources and list their documents",
		Long: `Load every schema source from the config file and list the content types
and global fields they provide. With --types, list the available source
types and their settings instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

			if showTypes {
				fmt.Fprintln(tw, "TYPE\tREQUIRED\tSETTINGS")
				for _, typ := range adapters.GetAvailableSchemaProviderTypes() {
					info := adapters.GetSchemaProviderTypeInfo(typ)
					settings := make([]string, 0, len(info.ConfigSchema.Properties))
					for name := range info.ConfigSchema.Properties {
						settings = append(settings, name)
					}
					sort.Strings(settings)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", typ,
						strings.Join(info.ConfigSchema.Required, ","),
						strings.Join(settings, ","))
				}
				return tw.Flush()
			}

			a, err := newApp(context.Background(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(tw, "KIND\tUID\tFIELDS")
			for _, uid := range a.registry.ContentTypes() {
				ct, _ := a.registry.ContentType(uid)
				fmt.Fprintf(tw, "content_type\t%s\t%d\n", uid, len(ct.Schema))
			}
			for _, uid := range a.registry.GlobalFields() {
				gf, _ := a.registry.GlobalField(uid)
				fmt.Fprintf(tw, "global_field\t%s\t%d\n", uid, len(gf.Schema))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&showTypes, "types", false, "List available source types")
	cmd.AddCommand(createSourcesPushCmd())
	return cmd
}

func createSourcesPushCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "push --to <source>",
		Short: "Copy every configured schema document into a writable source",
		Long: `Load the documents of every configured schema source except the target
and store them in the target, keyed by uid. The target must be a source
type that can store documents, such as sql.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync()

			var (
				dest    *adapters.SchemaSourceConfig
				sources []adapters.SchemaSourceConfig
			)
			for i, source := range cfg.SchemaSources {
				if source.Name == target {
					dest = &cfg.SchemaSources[i]
					continue
				}
				sources = append(sources, source)
			}
			if dest == nil {
				return fmt.Errorf("no schema source named %q", target)
			}

			count, err := schemasources.Sync(cmd.Context(), sources, *dest, logger.Named("schemas"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d documents in %s\n", count, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Name of the target schema source")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
