package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/server"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start and manage the HTTP server",
	Long:  `Start the HTTP API, or manage its port, data directory, storage and authentication`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envConfig, _, err := loadEnv()
		if err != nil {
			return err
		}
		return server.Run(envConfig)
	},
}

// updateServerConfig loads the env file, applies fn to it and saves it back
func updateServerConfig(fn func(envConfig *config.EnvConfig, sc *config.ServerConfig) error) error {
	envConfig, path, err := loadEnv()
	if err != nil {
		return err
	}
	sc := envConfig.GetServerConfig()
	if err := fn(envConfig, sc); err != nil {
		return err
	}
	envConfig.UpdateServerConfig(*sc)
	if err := config.SaveEnvConfig(path, envConfig); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}
	config.VerboseLog("Saved configuration to %s", path)
	return nil
}

var configureServerCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure server settings interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)
		return updateServerConfig(func(envConfig *config.EnvConfig, sc *config.ServerConfig) error {
			return configureServer(reader, os.Stdout, envConfig, sc)
		})
	},
}

var showServerCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current server configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		envConfig, path, err := loadEnv()
		if err != nil {
			return err
		}
		sc := envConfig.GetServerConfig()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\nServer Configuration (%s):\n", path)
		fmt.Fprintf(out, "Port: %d\n", sc.Port)
		fmt.Fprintf(out, "Data Directory: %s\n", sc.DataDir)
		fmt.Fprintf(out, "Authentication Enabled: %v\n", sc.Enabled)
		if sc.BearerToken != "" {
			fmt.Fprintf(out, "Bearer Token: %s\n", sc.BearerToken)
		}
		fmt.Fprintf(out, "CORS Enabled: %v\n", sc.CORS.Enabled)
		fmt.Fprintf(out, "Storage: %s\n", envConfig.Storage.Driver)
		if envConfig.Retention.Enabled {
			fmt.Fprintf(out, "Retention: runs older than %s pruned %s\n", envConfig.Retention.MaxAge, envConfig.Retention.Schedule)
		} else {
			fmt.Fprintln(out, "Retention: disabled")
		}
		fmt.Fprintln(out)
		return nil
	},
}

var updatePortCmd = &cobra.Command{
	Use:   "port [port]",
	Short: "Update server port",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.Atoi(args[0])
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port number: %s", args[0])
		}
		if err := updateServerConfig(func(_ *config.EnvConfig, sc *config.ServerConfig) error {
			sc.Port = port
			return nil
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Server port updated to %d\n", port)
		return nil
	},
}

var updateDataDirCmd = &cobra.Command{
	Use:   "datadir [path]",
	Short: "Update data directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := args[0]
		if err := updateServerConfig(func(_ *config.EnvConfig, sc *config.ServerConfig) error {
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return fmt.Errorf("error creating data directory: %w", err)
			}
			sc.DataDir = dataDir
			return nil
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Data directory updated to %s\n", dataDir)
		return nil
	},
}

var toggleAuthCmd = &cobra.Command{
	Use:   "auth [on|off]",
	Short: "Toggle authentication",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enable := strings.ToLower(args[0])
		if enable != "on" && enable != "off" {
			return fmt.Errorf("please specify either 'on' or 'off'")
		}
		out := cmd.OutOrStdout()
		return updateServerConfig(func(_ *config.EnvConfig, sc *config.ServerConfig) error {
			sc.Enabled = enable == "on"
			if sc.Enabled && sc.BearerToken == "" {
				token, err := config.GenerateBearerToken()
				if err != nil {
					return fmt.Errorf("error generating bearer token: %w", err)
				}
				sc.BearerToken = token
				fmt.Fprintf(out, "Generated new bearer token: %s\n", token)
			}
			fmt.Fprintf(out, "Server authentication %s\n", map[bool]string{true: "enabled", false: "disabled"}[sc.Enabled])
			return nil
		})
	},
}

var newTokenCmd = &cobra.Command{
	Use:   "newtoken",
	Short: "Generate new bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateServerConfig(func(_ *config.EnvConfig, sc *config.ServerConfig) error {
			token, err := config.GenerateBearerToken()
			if err != nil {
				return fmt.Errorf("error generating bearer token: %w", err)
			}
			sc.BearerToken = token
			fmt.Fprintf(cmd.OutOrStdout(), "Generated new bearer token: %s\n", token)
			return nil
		})
	},
}

// configureServer prompts for each server setting. An empty answer keeps the current value.
func configureServer(reader *bufio.Reader, out io.Writer, envConfig *config.EnvConfig, sc *config.ServerConfig) error {
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	if portStr := ask(fmt.Sprintf("Enter server port (default: %d): ", sc.Port)); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid port number: %v", err)
		}
		sc.Port = port
	}

	if dataDir := ask(fmt.Sprintf("Enter data directory path (default: %s): ", sc.DataDir)); dataDir != "" {
		sc.DataDir = dataDir
	}
	if err := os.MkdirAll(sc.DataDir, 0755); err != nil {
		return fmt.Errorf("error creating data directory: %v", err)
	}

	if driver := ask(fmt.Sprintf("Storage driver memory/bolt/postgres (default: %s): ", envConfig.Storage.Driver)); driver != "" {
		switch driver {
		case "memory", "bolt":
		case "postgres":
			envConfig.Storage.DSN = ask("Postgres DSN: ")
		default:
			return fmt.Errorf("unknown storage driver %q", driver)
		}
		envConfig.Storage.Driver = driver
	}

	if strings.ToLower(ask("Generate new bearer token? (y/n): ")) == "y" {
		token, err := config.GenerateBearerToken()
		if err != nil {
			return fmt.Errorf("error generating bearer token: %v", err)
		}
		sc.BearerToken = token
		fmt.Fprintf(out, "Generated bearer token: %s\n", token)
	}

	sc.Enabled = strings.ToLower(ask("Enable server authentication? (y/n): ")) == "y"
	return nil
}

func init() {
	serverCmd.AddCommand(configureServerCmd)
	serverCmd.AddCommand(showServerCmd)
	serverCmd.AddCommand(updatePortCmd)
	serverCmd.AddCommand(updateDataDirCmd)
	serverCmd.AddCommand(toggleAuthCmd)
	serverCmd.AddCommand(newTokenCmd)
	rootCmd.AddCommand(serverCmd)
}
