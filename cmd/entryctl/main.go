// Command entryctl resolves entry field paths, evaluates expressions and
// follows host notifications from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	initPath   string
	logLevel   string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entryctl",
		Short: "Inspect and edit entries through the extension SDK",
		Long: `entryctl loads an entry init payload (the content type, the saved entry and
any unsaved changes) and resolves dotted field paths against it.

Schema sources from the config file provide global field definitions;
the transport section decides where writes are sent.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or JSON)")
	cmd.PersistentFlags().StringVarP(&initPath, "init", "i", "", "Entry init payload (JSON)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	cmd.AddCommand(
		createResolveCmd(),
		createEvalCmd(),
		createSetCmd(),
		createWatchCmd(),
		createSourcesCmd(),
	)
	return cmd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
