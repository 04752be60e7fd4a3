package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/server"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry - Multi-tenant code-indexing server",
	Long: `Quarry is a code-indexing server that lets administrators register
golden source repositories and lets users activate per-user working
copies through copy-on-write clones, with background jobs driving all
long-running operations.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Quarry version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serverCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the Quarry server",
	Long: `Start the Quarry server: loads configuration, restores persisted
background jobs (failing any orphaned by a previous run), and serves
the repository and job APIs until a shutdown signal arrives.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := rootCmd.PersistentFlags().GetString("config")
		dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
		listenAddr, _ := cmd.Flags().GetString("listen-addr")

		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}

		srv, err := server.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		fmt.Printf("Quarry server starting\n")
		fmt.Printf("  Data Directory: %s\n", cfg.DataDir)
		fmt.Printf("  API Address: %s\n", cfg.ListenAddr)
		fmt.Printf("  Job Backend: %s\n", cfg.JobBackend)

		return srv.Run()
	},
}

func init() {
	serverCmd.Flags().String("listen-addr", "", "API listen address (overrides config)")
}
