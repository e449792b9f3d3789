package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/odvcencio/romlink/pkg/config"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose int
	root := &cobra.Command{
		Use:           "romlink",
		Short:         "Link class units into a compact ROM image",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbose, nil)
		},
	}
	root.PersistentFlags().String("config", "", "path to "+config.FileName+" (default: search upward from the working directory)")
	root.PersistentFlags().CountVarP(&verbose, "verbose", "v", "log more (repeat for debug output)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newLinkCmd())
	root.AddCommand(newTablesCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newVerifyCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "romlink "+version)
		},
	}
}

// loadConfig reads the file named by --config, or the nearest
// romlink.toml above the working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.Load(path)
	}
	return config.FindAndLoad(".")
}
