package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/consolidator/internal/engine"
	"github.com/ppiankov/consolidator/internal/logging"
	"github.com/ppiankov/consolidator/internal/model"
)

// Set by -ldflags "-X github.com/ppiankov/consolidator/internal/cli.version=..."
var version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "consolidator",
	Short: "Consolidator - confidence scoring and vector ingestion for knowledge items",
	Long: `Consolidator turns inconsistently scaled relevance signals into a single
normalized confidence score per knowledge item, and ingests document chunks
into a vector store without duplicating them across re-runs.

Scores are advisory. Ingestion never inserts a chunk twice under the
skip and preserve strategies.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and scoring algorithm revision.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("consolidator %s (algorithm %s)\n", version, model.AlgorithmVersion)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.consolidator/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}

	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.consolidator")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CONSOLIDATOR_*, with
	// nested keys as CONSOLIDATOR_EMBEDDING_API_KEY
	viper.SetEnvPrefix("CONSOLIDATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Keys omitted from the marshaled defaults still need an env binding
	for _, key := range []string{"embedding.api_key", "embedding.base_url", "embedding.http_proxy", "embedding.https_proxy"} {
		_ = viper.BindEnv(key)
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to viper so environment
// variables can override keys absent from the config file
func registerDefaults(v *viper.Viper, cfg model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig decodes the effective configuration and validates it.
// Warnings go to stderr.
func loadConfig(v *viper.Viper) (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	// Conventional provider variables fill in when the config has none
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if base := os.Getenv("OLLAMA_BASE_URL"); base != "" && cfg.Embedding.Provider == "ollama" && !v.IsSet("embedding.base_url") {
		cfg.Embedding.BaseURL = base
	}

	warnings, err := cfg.Validate()
	if err != nil {
		return cfg, err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	return cfg, nil
}

// newEngine builds the engine from the effective configuration
func newEngine(ctx context.Context) (*engine.Engine, model.Config, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, cfg, err
	}

	logger, err := logging.New(os.Stderr, cfg.Log)
	if err != nil {
		return nil, cfg, err
	}

	e, err := engine.New(ctx, cfg, engine.WithLogger(logger), engine.WithVersion(version))
	if err != nil {
		return nil, cfg, fmt.Errorf("init engine: %w", err)
	}
	return e, cfg, nil
}
