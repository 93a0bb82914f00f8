package cmd

import (
	"github.com/kris-hansen/personaflow/utils/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Start the HTTP API for personas, pipelines, analyses and chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envConfig, _, err := loadEnv()
		if err != nil {
			return err
		}
		return server.Run(envConfig)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
