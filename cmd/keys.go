package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/bridge"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys forwarded to the engine",
	Long: `Manage the API keys voco pushes to the engine on connect. Only a
fixed set of keys is ever forwarded; anything else is ignored.

Running bare 'voco keys' is the same as 'voco keys list'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return keysListRun()
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List forwarded keys and where they come from",
	RunE: func(cmd *cobra.Command, args []string) error {
		return keysListRun()
	},
}

var keysSetCmd = &cobra.Command{
	Use:   "set <KEY> <value>",
	Short: "Store a key in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return keysSetRun(args[0], args[1])
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysSetCmd)
	rootCmd.AddCommand(keysCmd)
}

func allowedKey(name string) bool {
	for _, k := range bridge.AllowedEnvKeys {
		if k == name {
			return true
		}
	}
	return false
}

// mask hides all but the edges of a secret for display.
func mask(v string) string {
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return v[:4] + strings.Repeat("*", 4) + v[len(v)-4:]
}

func keysListRun() error {
	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, key := range bridge.AllowedEnvKeys {
		value := viper.GetString("keys." + strings.ToLower(key))
		source := "(file)"
		if value == "" {
			value = os.Getenv(key)
			source = "(env)"
		}
		if value == "" {
			table.Append([]string{key, "-", "(unset)"})
			continue
		}
		table.Append([]string{key, mask(value), source})
	}
	table.Render()
	return nil
}

func keysSetRun(name, value string) error {
	name = strings.ToUpper(name)
	if !allowedKey(name) {
		return fmt.Errorf("%s is not a forwardable key (allowed: %s)",
			name, strings.Join(bridge.AllowedEnvKeys, ", "))
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would store %s in %s", name, cfgPath)
		return nil
	}

	// Edit the raw file rather than dumping viper's full state, so
	// defaults and comments from other sections are not materialized.
	doc := make(map[string]any)
	if data, err := os.ReadFile(cfgPath); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("config file %s is not valid YAML: %w", cfgPath, err)
		}
	}

	keys, _ := doc["keys"].(map[string]any)
	if keys == nil {
		keys = make(map[string]any)
	}
	keys[strings.ToLower(name)] = value
	doc["keys"] = keys

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(cfgPath, data, 0600); err != nil {
		return err
	}

	viper.Set("keys."+strings.ToLower(name), value)
	ui.Success("%s stored in %s", name, cfgPath)
	return nil
}
