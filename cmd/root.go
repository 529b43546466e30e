package cmd

import (
	"errors"
	"log"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/generator"
	"github.com/spigell/matchmaker/internal/logger"
	"github.com/spigell/matchmaker/internal/matching"
	"github.com/spigell/matchmaker/internal/model"
)

const (
	app       = "matchmaker"
	envPrefix = "MATCHMAKER"

	modelFile = "model.json"
)

type Config struct {
	DataDir  string          `mapstructure:"data-dir"`
	Generate *GenerateConfig `mapstructure:"generate"`
	Train    *TrainConfig    `mapstructure:"train"`
	Match    *MatchConfig    `mapstructure:"match"`
	Serve    *ServeConfig    `mapstructure:"serve"`
	Store    *StoreConfig    `mapstructure:"store"`
	AI       *AIConfig       `mapstructure:"ai"`
}

type GenerateConfig struct {
	Employers int    `mapstructure:"employers"`
	Employees int    `mapstructure:"employees"`
	Seed      uint64 `mapstructure:"seed"`
}

type TrainConfig struct {
	Kernel    string  `mapstructure:"kernel"`
	Gamma     float64 `mapstructure:"gamma"`
	Alpha     float64 `mapstructure:"alpha"`
	Landmarks int     `mapstructure:"landmarks"`
	Seed      uint64  `mapstructure:"seed"`
	// Model is the artifact path; empty means <data-dir>/model.json.
	Model string `mapstructure:"model"`
}

type MatchConfig struct {
	TopK        int      `mapstructure:"top-k"`
	MinScore    float64  `mapstructure:"min-score"`
	ExcludeFile string   `mapstructure:"exclude-file"`
	Origins     []string `mapstructure:"origins"`
	Workers     int      `mapstructure:"workers"`
}

type ServeConfig struct {
	Addr         string `mapstructure:"addr"`
	MaxEmployees int    `mapstructure:"max-employees"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "matchmaker generates synthetic profiles, trains a compatibility model and ranks employees for employers",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is matchmaker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("data-dir", "data", "directory holding the CSV files and the model")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// setDefaults registers every key so that AutomaticEnv can resolve it
// during Unmarshal.
func setDefaults() {
	viper.SetDefault("generate.employers", generator.DefaultEmployers)
	viper.SetDefault("generate.employees", generator.DefaultEmployees)
	viper.SetDefault("generate.seed", 0)

	viper.SetDefault("train.kernel", model.KindRBF)
	viper.SetDefault("train.gamma", 0)
	viper.SetDefault("train.alpha", model.DefaultAlpha)
	viper.SetDefault("train.landmarks", model.DefaultLandmarks)
	viper.SetDefault("train.seed", 1)
	viper.SetDefault("train.model", "")

	viper.SetDefault("match.top-k", matching.DefaultK)
	viper.SetDefault("match.min-score", 0)
	viper.SetDefault("match.exclude-file", "")
	viper.SetDefault("match.origins", []string{})
	viper.SetDefault("match.workers", 4)

	viper.SetDefault("serve.addr", ":8080")
	viper.SetDefault("serve.max-employees", 10000)

	viper.SetDefault("store.path", "")

	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.gemini.api-key-file", "")
	viper.SetDefault("ai.gemini.model", "")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 200)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The config file is optional unless it was asked for explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// setup builds the logger and loads the config, exiting on failure.
func setup(command string) (*zap.Logger, *Config) {
	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		lg.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		lg.Fatal("config is required")
	}

	if viper.ConfigFileUsed() != "" {
		lg.Debug("config file loaded", zap.String("path", viper.ConfigFileUsed()))
	}

	lg.Debug("starting the matchmaker", zap.String("command", command), zap.String("version", version))

	return lg, config
}

func (c *Config) modelPath() string {
	if c.Train != nil && c.Train.Model != "" {
		return c.Train.Model
	}
	return filepath.Join(c.DataDir, modelFile)
}

// bindFlags maps command flags to config keys. It runs from PreRun so that
// commands sharing a key do not override each other's bindings.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			log.Fatalf("binding --%s to %s: %v", flag, key, err)
		}
	}
}
