package cmd

import (
	"fmt"
	"os"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "personaflow",
	Short: "Multi-persona document analysis",
	Long: `personaflow runs a document through a pipeline of analytical personas,
each one a prompt template sent to a language model, and keeps the results
for follow-up chat, summaries and comparisons.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Verbose = verbose
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadEnv reads the environment file named by PERSONAFLOW_ENV
func loadEnv() (*config.EnvConfig, string, error) {
	path := config.GetEnvPath()
	envConfig, err := config.LoadEnvConfig(path)
	if err != nil {
		return nil, path, fmt.Errorf("error loading configuration: %w", err)
	}
	return envConfig, path, nil
}

func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
