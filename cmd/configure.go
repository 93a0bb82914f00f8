package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	listFlag       bool
	providerFlag   string
	apiKeyFlag     string
	modelFlag      string
	baseURLFlag    string
	setDefaultFlag bool
)

func checkOllamaInstalled() bool {
	return exec.Command("ollama", "list").Run() == nil
}

func isValidOllamaModel(modelName string) bool {
	output, err := exec.Command("ollama", "list").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(output), modelName)
}

// rotateAPIKey replaces the key of an already configured provider and saves the
// file. It reports false when the provider has no entry yet.
func rotateAPIKey(out io.Writer, envConfig *config.EnvConfig, path, provider, key string) (bool, error) {
	if err := envConfig.UpdateAPIKey(provider, key); err != nil {
		return false, nil
	}
	if err := config.SaveEnvConfig(path, envConfig); err != nil {
		return true, err
	}
	fmt.Fprintf(out, "API key for %s updated in %s\n", provider, path)
	return true, nil
}

// providerNames lists the providers the model router can dispatch to
func providerNames() []string {
	var names []string
	for _, meta := range models.DefaultRegistry().GetAvailableProviders() {
		names = append(names, meta.Name)
	}
	sort.Strings(names)
	return names
}

func knownProvider(name string) bool {
	for _, n := range providerNames() {
		if n == name {
			return true
		}
	}
	return false
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure model providers",
	Long: `Configure a model provider: its API key, an optional base URL and the models
personas may name. Values not passed as flags are prompted for.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envConfig, path, err := loadEnv()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if listFlag {
			listConfiguration(out, envConfig)
			return nil
		}

		reader := bufio.NewReader(os.Stdin)
		ask := func(prompt string) string {
			fmt.Fprint(out, prompt)
			line, _ := reader.ReadString('\n')
			return strings.TrimSpace(line)
		}

		provider := providerFlag
		for !knownProvider(provider) {
			if provider != "" {
				fmt.Fprintf(out, "Invalid provider %q.\n", provider)
			}
			provider = ask(fmt.Sprintf("Enter provider (%s): ", strings.Join(providerNames(), "/")))
			if provider == "" {
				return fmt.Errorf("a provider is required")
			}
		}
		// A bare --api-key on a configured provider only rotates the key
		if apiKeyFlag != "" && modelFlag == "" && baseURLFlag == "" {
			rotated, err := rotateAPIKey(out, envConfig, path, provider, apiKeyFlag)
			if rotated || err != nil {
				return err
			}
		}

		if provider == "ollama" && !checkOllamaInstalled() {
			return fmt.Errorf("ollama is not installed or not running")
		}

		existing, err := envConfig.GetProviderConfig(provider)
		entry := config.Provider{}
		if err == nil {
			entry = *existing
		}

		if provider != "ollama" {
			key := apiKeyFlag
			if key == "" && entry.APIKey == "" {
				key, err = readSecret(out, reader, "Enter API key: ")
				if err != nil {
					return err
				}
			}
			if key != "" {
				entry.APIKey = key
			}
		}
		if baseURLFlag != "" {
			entry.BaseURL = baseURLFlag
		}

		modelName := modelFlag
		if modelName == "" {
			modelName = ask("Enter model name (blank to skip): ")
		}
		if modelName != "" {
			if provider == "ollama" && !isValidOllamaModel(modelName) {
				return fmt.Errorf("model %q is not available in ollama, pull it first with 'ollama pull %s'", modelName, modelName)
			}
			modelType := "external"
			if provider == "ollama" {
				modelType = "local"
			}
			entry.Models = appendModel(entry.Models, config.Model{Name: modelName, Type: modelType})
			if setDefaultFlag {
				envConfig.DefaultModel = modelName
			}
		}

		envConfig.AddProvider(provider, entry)
		if err := config.SaveEnvConfig(path, envConfig); err != nil {
			return err
		}
		fmt.Fprintf(out, "Configuration saved successfully to %s!\n", path)
		return nil
	},
}

// appendModel adds m unless a model of the same name is already listed
func appendModel(list []config.Model, m config.Model) []config.Model {
	for _, existing := range list {
		if existing.Name == m.Name {
			return list
		}
	}
	return append(list, m)
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(out io.Writer, reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("error reading API key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line), nil
}

func listConfiguration(out io.Writer, envConfig *config.EnvConfig) {
	fmt.Fprintf(out, "Default model: %s\n", envConfig.DefaultModel)
	if len(envConfig.Providers) == 0 {
		fmt.Fprintln(out, "No providers configured.")
		return
	}

	names := make([]string, 0, len(envConfig.Providers))
	for name := range envConfig.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "\nConfigured Providers:")
	for _, name := range names {
		p := envConfig.Providers[name]
		key := "not set"
		if envConfig.APIKey(name) != "" {
			key = "set"
		}
		fmt.Fprintf(out, "\n%s (api key %s)\n", name, key)
		if p.BaseURL != "" {
			fmt.Fprintf(out, "  base url: %s\n", p.BaseURL)
		}
		if len(p.Models) == 0 {
			fmt.Fprintln(out, "  No models configured")
			continue
		}
		for _, m := range p.Models {
			fmt.Fprintf(out, "  - %s (%s)\n", m.Name, m.Type)
		}
	}
}

func init() {
	configureCmd.Flags().BoolVar(&listFlag, "list", false, "List all configured providers and models")
	configureCmd.Flags().StringVar(&providerFlag, "provider", "", "Provider name")
	configureCmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "Provider API key")
	configureCmd.Flags().StringVar(&modelFlag, "model", "", "Model name to register")
	configureCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "Override the provider endpoint")
	configureCmd.Flags().BoolVar(&setDefaultFlag, "default", false, "Make the model the default for personas without one")
	rootCmd.AddCommand(configureCmd)
}
