package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gwuah/steerd/cmd/subcmd"
)

var (
	rootCmd = &cobra.Command{
		Use:   "steerd",
		Short: "Steer connections to chosen ports into a single socket.",
		Long: "steerd hands connections arriving on a set of ports to one dedicated socket, either\n" +
			"from the kernel through an sk_lookup eBPF program or from its own listeners, and\n" +
			"proxies them to the targets of the application owning each port.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Get the built version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("built commit: %s\n", builtCommit)
		},
	}

	confPath    string
	logLevel    string
	logTimeFlag bool
	logJSONFlag bool

	builtCommit = "dev"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&confPath, "conf", "/etc/steerd/conf.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "one of trace, debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logTimeFlag, "log-time", false, "include timestamps in log lines")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "log in JSON instead of logfmt")

	// Disable completion please!
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add the different sub-commands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(subcmd.Inspect)
}

func setupLogging() error {
	level, ok := logLevelMap[strings.ToLower(logLevel)]
	if !ok {
		return fmt.Errorf("wrong log level %q", logLevel)
	}

	opts := &slog.HandlerOptions{
		AddSource:   level <= slog.LevelDebug,
		Level:       level,
		ReplaceAttr: logReplacements,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logJSONFlag {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
