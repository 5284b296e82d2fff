package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docbridge/internal/logging"
	"docbridge/internal/storageclient"
)

var (
	serverURL string
	verbose   bool
	workdir   string
	interval  time.Duration
	jsonLogs  bool

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "doceditor",
	Short: "Edit documents stored behind the docbridge storage proxy",
	Long: `doceditor opens a document from the storage proxy into a local working file,
autosaves every change back to the proxy and creates new documents with a
duplicate-name check.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "info"
		if verbose {
			level = "debug"
		}
		format := logging.FormatConsole
		if jsonLogs {
			format = logging.FormatJSON
		}
		logger = logging.New(os.Stderr, level, format)
	},
}

func Execute() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultServer := os.Getenv("DOCBRIDGE_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:62869"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "storage proxy base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log as JSON")
	rootCmd.PersistentFlags().StringVar(&workdir, "workdir", ".", "directory holding the working file")
	rootCmd.PersistentFlags().DurationVar(&interval, "interval", time.Second, "autosave interval")
}

func newClient() (*storageclient.Client, error) {
	return storageclient.New(serverURL, storageclient.WithLogger(logging.Component(logger, "storage")))
}
