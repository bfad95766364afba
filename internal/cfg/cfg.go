package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"credit-risk/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	BaseDir             string
	RawDataset          string
	TestSize            float64
	RandomSeed          int64
	Workers             int
	IncludeDecisionTree bool
	PositiveClass       int
	ServerPort          int
	PredictTimeout      time.Duration
	PredictorCommand    string
	GeminiAPIKey        string
	RecommendModel      string
	RecommendBaseURL    string
	RecommendTimeout    time.Duration
	RecommendCacheTTL   time.Duration
	RecommendCacheSize  int
	LogLevel            string
}

type ConfigFile struct {
	Paths struct {
		Base       string `yaml:"base"`
		RawDataset string `yaml:"rawDataset"`
	} `yaml:"paths"`

	Train struct {
		TestSize            float64 `yaml:"testSize"`
		RandomSeed          int64   `yaml:"randomSeed"`
		Workers             int     `yaml:"workers"`
		IncludeDecisionTree *bool   `yaml:"includeDecisionTree"`
	} `yaml:"train"`

	Evaluate struct {
		PositiveClass *int `yaml:"positiveClass"`
	} `yaml:"evaluate"`

	Server struct {
		Port             int    `yaml:"port"`
		PredictTimeout   string `yaml:"predictTimeout"`
		PredictorCommand string `yaml:"predictorCommand"`
	} `yaml:"server"`

	Recommend struct {
		APIKey    string `yaml:"apiKey"`
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"baseURL"`
		Timeout   string `yaml:"timeout"`
		CacheTTL  string `yaml:"cacheTTL"`
		CacheSize int    `yaml:"cacheSize"`
	} `yaml:"recommend"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, or from the
// environment when it is unset. A .env file in the working directory is
// applied first and never overrides variables that are already set.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	predictTimeout, err := time.ParseDuration(config.Server.PredictTimeout)
	if err != nil {
		predictTimeout = common.DefaultPredictTimeoutSec * time.Second
	}
	recommendTimeout, err := time.ParseDuration(config.Recommend.Timeout)
	if err != nil {
		recommendTimeout = common.DefaultRecommendTimeout * time.Second
	}
	cacheTTL, err := time.ParseDuration(config.Recommend.CacheTTL)
	if err != nil {
		cacheTTL = time.Hour
	}

	includeTree := true
	if config.Train.IncludeDecisionTree != nil {
		includeTree = *config.Train.IncludeDecisionTree
	}
	positiveClass := common.DefaultPositiveClass
	if config.Evaluate.PositiveClass != nil {
		positiveClass = *config.Evaluate.PositiveClass
	}

	// Relative base paths in a config file are anchored at the file itself.
	base := config.Paths.Base
	if base != "" && !filepath.IsAbs(base) {
		base = filepath.Join(filepath.Dir(path), base)
	}

	settings := Settings{
		BaseDir:             getEnvOrDefault(common.EnvHome, orDefault(base, ".")),
		RawDataset:          config.Paths.RawDataset,
		TestSize:            getFloatFromEnvOrConfig(common.EnvTestSize, config.Train.TestSize, common.DefaultTestSize),
		RandomSeed:          getInt64FromEnvOrConfig(common.EnvRandomSeed, config.Train.RandomSeed, common.DefaultRandomSeed),
		Workers:             getIntFromEnvOrConfig(common.EnvWorkers, config.Train.Workers, runtime.GOMAXPROCS(0)),
		IncludeDecisionTree: getBoolOrDefault(common.EnvIncludeTree, includeTree),
		PositiveClass:       getIntOrDefault(common.EnvPositiveClass, positiveClass),
		ServerPort:          getIntFromEnvOrConfig(common.EnvServerPort, config.Server.Port, common.DefaultServerPort),
		PredictTimeout:      getDurationOrDefault(common.EnvPredictTimeout, predictTimeout),
		PredictorCommand:    getEnvOrDefault(common.EnvPredictorCommand, config.Server.PredictorCommand),
		GeminiAPIKey:        getEnvOrDefault(common.EnvGeminiAPIKey, config.Recommend.APIKey),
		RecommendModel:      getEnvOrDefault(common.EnvRecommendModel, orDefault(config.Recommend.Model, common.DefaultRecommendModel)),
		RecommendBaseURL:    getEnvOrDefault(common.EnvRecommendBaseURL, orDefault(config.Recommend.BaseURL, common.DefaultRecommendBaseURL)),
		RecommendTimeout:    getDurationOrDefault(common.EnvRecommendTimeout, recommendTimeout),
		RecommendCacheTTL:   getDurationOrDefault(common.EnvRecommendCacheTTL, cacheTTL),
		RecommendCacheSize:  orDefaultInt(config.Recommend.CacheSize, common.DefaultCacheSize),
		LogLevel:            getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, "info")),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		BaseDir:             getEnvOrDefault(common.EnvHome, "."),
		TestSize:            getFloatOrDefault(common.EnvTestSize, common.DefaultTestSize),
		RandomSeed:          int64(getIntOrDefault(common.EnvRandomSeed, common.DefaultRandomSeed)),
		Workers:             getIntOrDefault(common.EnvWorkers, runtime.GOMAXPROCS(0)),
		IncludeDecisionTree: getBoolOrDefault(common.EnvIncludeTree, true),
		PositiveClass:       getIntOrDefault(common.EnvPositiveClass, common.DefaultPositiveClass),
		ServerPort:          getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		PredictTimeout:      getDurationOrDefault(common.EnvPredictTimeout, common.DefaultPredictTimeoutSec*time.Second),
		PredictorCommand:    os.Getenv(common.EnvPredictorCommand), // optional
		GeminiAPIKey:        os.Getenv(common.EnvGeminiAPIKey),     // optional
		RecommendModel:      getEnvOrDefault(common.EnvRecommendModel, common.DefaultRecommendModel),
		RecommendBaseURL:    getEnvOrDefault(common.EnvRecommendBaseURL, common.DefaultRecommendBaseURL),
		RecommendTimeout:    getDurationOrDefault(common.EnvRecommendTimeout, common.DefaultRecommendTimeout*time.Second),
		RecommendCacheTTL:   getDurationOrDefault(common.EnvRecommendCacheTTL, time.Hour),
		RecommendCacheSize:  common.DefaultCacheSize,
		LogLevel:            getEnvOrDefault(common.EnvLogLevel, "info"),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Path joins elem onto the base directory.
func (s *Settings) Path(elem ...string) string {
	return filepath.Join(append([]string{s.BaseDir}, elem...)...)
}

func (s *Settings) RawDatasetPath() string {
	if s.RawDataset == "" {
		return s.Path(common.DataDir, common.RawDatasetFile)
	}
	if filepath.IsAbs(s.RawDataset) {
		return s.RawDataset
	}
	return s.Path(s.RawDataset)
}

func (s *Settings) CleanedDatasetPath() string {
	return s.Path(common.DataDir, common.CleanedDatasetFile)
}

func (s *Settings) ModelsDir() string  { return s.Path(common.ModelsDir) }
func (s *Settings) OutputsDir() string { return s.Path(common.OutputsDir) }
func (s *Settings) UtilsDir() string   { return s.Path(common.UtilsDir) }

func (s *Settings) BestModelPath() string {
	return s.Path(common.ModelsDir, common.BestModelFile)
}

func (s *Settings) LabelEncodersPath() string {
	return s.Path(common.UtilsDir, common.LabelEncodersFile)
}

func (s *Settings) TargetEncoderPath() string {
	return s.Path(common.UtilsDir, common.TargetEncoderFile)
}

func (s *Settings) SplitPath() string {
	return s.Path(common.UtilsDir, common.SplitFile)
}

func (s *Settings) RegistryPath() string {
	return s.Path(common.UtilsDir, common.RegistryFile)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getIntOrDefault(key, defaultValue)
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getFloatOrDefault(key, defaultValue)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// validateSettings range-checks every value that the pipeline depends on
func validateSettings(settings *Settings) error {
	if settings.BaseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	if settings.TestSize < common.MinTestSize || settings.TestSize > common.MaxTestSize {
		return fmt.Errorf("test size must be between %.2f and %.2f, got %f",
			common.MinTestSize, common.MaxTestSize, settings.TestSize)
	}
	if settings.Workers < 1 || settings.Workers > common.MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", common.MaxWorkers, settings.Workers)
	}
	if settings.PositiveClass < 0 || settings.PositiveClass >= len(common.ClassLabels) {
		return fmt.Errorf("positive class must be between 0 and %d, got %d",
			len(common.ClassLabels)-1, settings.PositiveClass)
	}

	if settings.ServerPort < common.MinServerPort || settings.ServerPort > common.MaxServerPort {
		return fmt.Errorf("server port must be between %d and %d, got %d",
			common.MinServerPort, common.MaxServerPort, settings.ServerPort)
	}
	if settings.PredictTimeout < time.Second || settings.PredictTimeout > 5*time.Minute {
		return fmt.Errorf("predict timeout must be between 1s and 5m, got %v", settings.PredictTimeout)
	}
	if settings.RecommendTimeout < time.Second || settings.RecommendTimeout > 5*time.Minute {
		return fmt.Errorf("recommend timeout must be between 1s and 5m, got %v", settings.RecommendTimeout)
	}
	if settings.RecommendCacheTTL < 0 {
		return fmt.Errorf("recommend cache TTL cannot be negative, got %v", settings.RecommendCacheTTL)
	}
	if settings.RecommendCacheSize <= 0 {
		return fmt.Errorf("recommend cache size must be positive, got %d", settings.RecommendCacheSize)
	}
	if settings.RecommendBaseURL == "" {
		return fmt.Errorf("recommend base URL cannot be empty")
	}

	switch settings.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", settings.LogLevel)
	}

	return nil
}
