// Package cmd implements the command-line interface for hospitalscan.
// It provides the root command and subcommands for verifying hospital
// websites, extracting tender announcements, and running scans.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cmdextract "github.com/jiazeyu1987/hospitalscan/cmd/extract"
	cmdscan "github.com/jiazeyu1987/hospitalscan/cmd/scan"
	cmdscheduler "github.com/jiazeyu1987/hospitalscan/cmd/scheduler"
	cmdverify "github.com/jiazeyu1987/hospitalscan/cmd/verify"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug mode for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "hospitalscan",
		Short: "A hospital tender monitoring engine",
		Long: `hospitalscan discovers and verifies hospital websites, extracts tender
announcements from their procurement pages, and runs recurring monitoring
scans on a schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env file early so environment variables are available
	// before configuration is read.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("hospitalscan version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(cmdverify.Command())
	rootCmd.AddCommand(cmdextract.Command())
	rootCmd.AddCommand(cmdscan.Command())
	rootCmd.AddCommand(cmdscheduler.Command())
}
