package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit the configuration file",
	Long: `View and edit contextkb.toml. Keys use dot notation, for example
embedding.provider or chunker.chunk_size. Environment variables such as
GOOGLE_API_KEY override file values at startup.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save the file. Integers, decimals and
booleans are stored as TOML numbers and booleans; anything else as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	store, err := openConfig()
	if err != nil {
		return err
	}
	cmd.Println(store.Path())
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	store, err := openConfig()
	if err != nil {
		return err
	}
	v, ok := store.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set", args[0])
	}
	cmd.Println(displayValue(args[0], v))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store, err := openConfig()
	if err != nil {
		return err
	}
	if err := store.Set(args[0], parseValue(args[1])); err != nil {
		return fmt.Errorf("failed to save %s: %w", store.Path(), err)
	}
	cmd.Printf("Set %s in %s\n", args[0], store.Path())
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	store, err := openConfig()
	if err != nil {
		return err
	}
	keys := store.Keys()
	if len(keys) == 0 {
		cmd.Printf("No values set in %s\n", store.Path())
		return nil
	}
	for _, k := range keys {
		v, _ := store.Get(k)
		cmd.Printf("%s = %s\n", k, displayValue(k, v))
	}
	return nil
}

// parseValue converts command line text to the most specific TOML type.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// displayValue masks secrets.
func displayValue(key string, v any) string {
	s := fmt.Sprint(v)
	if strings.HasSuffix(key, "api_key") {
		return maskAPIKey(s)
	}
	return s
}

// maskAPIKey masks an API key for display.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
