package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the gmailward application
var rootCmd = &cobra.Command{
	Use:   "gmailward",
	Short: "Rate-governed Gmail client",
	Long: `gmailward is a Gmail client that keeps a hard budget on remote API
calls: every command makes at most the configured number of calls,
spaces consecutive calls apart, and refuses destructive operations
on protected labels without touching the network.`,
	SilenceUsage: true,
}

var configPath string

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gmailward version %s\n" .Version}}`)

	// If no subcommand is provided, show the inbox by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "fetch")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gmailward", "config.yaml")
	}
	return "config.yaml"
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gmailward version %s\n", version)
		},
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the YAML config file")

	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newLabelsCmd())
	rootCmd.AddCommand(newTrashCmd())
	rootCmd.AddCommand(newVersionCmd())
}
