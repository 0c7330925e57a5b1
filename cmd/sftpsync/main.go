package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/sftpsync/internal/agent"
	"github.com/tturner/sftpsync/internal/config"
	"github.com/tturner/sftpsync/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type rootFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

func main() {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "sftpsync",
		Short: "SFTP file transfer and directory sync for agents and automation",
		Long: `sftpsync exposes SFTP/SSH file-transfer operations against a single
pre-configured remote host: directory sync with gitignore-style filtering
and change detection, single-file upload, remote reads, remote command
execution and directory listing.

Connection settings come from the environment (TARGET_HOST, TARGET_PORT,
TARGET_USERNAME, TARGET_PASSWORD, LOCAL_PATH, REMOTE_PATH,
IGNORE_PATTERNS) or an optional YAML config file; the environment wins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Optional YAML config file (environment overrides it)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: silent|error|info|verbose|debug")
	rootCmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Append logs to this file")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newSyncCmd(flags))
	rootCmd.AddCommand(newUploadCmd(flags))
	rootCmd.AddCommand(newReadCmd(flags))
	rootCmd.AddCommand(newExecCmd(flags))
	rootCmd.AddCommand(newListCmd(flags))
	rootCmd.AddCommand(newConfigCmd(flags))

	// Custom help command
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(os.Stdout, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden {
				fmt.Fprintf(os.Stdout, "  %-10s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(os.Stdout, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newToolset loads settings, builds the logger and returns the wired
// handler set. Flag values override both file and environment.
func newToolset(flags *rootFlags) (*agent.Tools, config.Settings, *logging.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, cfg, nil, err
	}

	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	logFile := cfg.LogFile
	if flags.logFile != "" {
		logFile = flags.logFile
	}

	logger, err := logging.NewLogger(logging.ParseLevel(level), logFile)
	if err != nil {
		return nil, cfg, nil, err
	}

	return agent.NewTools(cfg, logger), cfg, logger, nil
}
