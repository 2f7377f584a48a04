package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	// Input data.
	AccidentsCSVPath string `envconfig:"ACCIDENTS_CSV_PATH" default:"data/raw/US_Accidents.csv"`
	RoadsPath        string `envconfig:"ROADS_PATH" default:"data/raw/roads.geojson"`
	OutputDir        string `envconfig:"OUTPUT_DIR" default:"data"`

	// Spatial join.
	MaxDistanceMeters float64 `envconfig:"MAX_DISTANCE_METERS" default:"100"`
	JoinBatchSize     int     `envconfig:"JOIN_BATCH_SIZE" default:"10000"`
	MinMatchRate      float64 `envconfig:"MIN_MATCH_RATE" default:"0.5"`

	// Cleaning.
	OutlierIQRFactor float64 `envconfig:"OUTLIER_IQR_FACTOR" default:"3.0"`

	// Model training.
	RandomSeed     int64   `envconfig:"RANDOM_SEED" default:"42"`
	TestSize       float64 `envconfig:"TEST_SIZE" default:"0.15"`
	ValidationSize float64 `envconfig:"VALIDATION_SIZE" default:"0.15"`
	NumFolds       int     `envconfig:"N_FOLDS" default:"5"`

	// Optional YAML file overriding the model hyperparameter defaults.
	HyperparamsFile string `envconfig:"HYPERPARAMS_FILE"`

	// Observability.
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Optional Kafka sink for integrated records.
	KafkaEnabled   bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaSinkTopic string   `envconfig:"KAFKA_SINK_TOPIC" default:"integrated-accidents"`

	Hyperparams Hyperparams `ignored:"true"`
}

// Hyperparams are the model settings that researchers tune per experiment.
// Defaults match the reference study; a YAML file can override any subset.
type Hyperparams struct {
	Tree        TreeParams        `yaml:"tree"`
	Forest      ForestParams      `yaml:"forest"`
	Permutation PermutationParams `yaml:"permutation"`
}

// TreeParams configures the single decision tree.
type TreeParams struct {
	MaxDepth            int     `yaml:"max_depth"`
	MinSamplesSplit     int     `yaml:"min_samples_split"`
	MinSamplesLeaf      int     `yaml:"min_samples_leaf"`
	MinImpurityDecrease float64 `yaml:"min_impurity_decrease"`
	Criterion           string  `yaml:"criterion"` // "gini" or "entropy"
}

// ForestParams configures the random forest.
type ForestParams struct {
	NumTrees        int  `yaml:"n_estimators"`
	MaxDepth        int  `yaml:"max_depth"`
	MinSamplesSplit int  `yaml:"min_samples_split"`
	MinSamplesLeaf  int  `yaml:"min_samples_leaf"`
	MaxFeatures     int  `yaml:"max_features"` // 0 = sqrt(p)
	Bootstrap       bool `yaml:"bootstrap"`
}

// PermutationParams configures permutation importance.
type PermutationParams struct {
	Repeats   int `yaml:"repeats"`
	SampleCap int `yaml:"sample_cap"`
}

// DefaultHyperparams returns the hyperparameters of the reference study.
func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		Tree: TreeParams{
			MaxDepth:        10,
			MinSamplesSplit: 100,
			MinSamplesLeaf:  50,
			Criterion:       "gini",
		},
		Forest: ForestParams{
			NumTrees:        100,
			MaxDepth:        15,
			MinSamplesSplit: 50,
			MinSamplesLeaf:  20,
			Bootstrap:       true,
		},
		Permutation: PermutationParams{
			Repeats:   5,
			SampleCap: 1000,
		},
	}
}

// Load reads configuration from the environment (and an optional .env file),
// applying defaults where unset.
func Load() (*Config, error) {
	// A missing .env file is fine; explicit env vars always win.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg.Hyperparams = DefaultHyperparams()
	if cfg.HyperparamsFile != "" {
		if err := loadHyperparams(cfg.HyperparamsFile, &cfg.Hyperparams); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AccidentsCSVPath == "" {
		return errors.New("ACCIDENTS_CSV_PATH is required")
	}
	if c.RoadsPath == "" {
		return errors.New("ROADS_PATH is required")
	}
	if c.MaxDistanceMeters <= 0 {
		return errors.New("MAX_DISTANCE_METERS must be positive")
	}
	if c.JoinBatchSize <= 0 {
		return errors.New("JOIN_BATCH_SIZE must be positive")
	}
	if c.MinMatchRate < 0 || c.MinMatchRate > 1 {
		return errors.New("MIN_MATCH_RATE must be within [0,1]")
	}
	if c.TestSize <= 0 || c.ValidationSize < 0 || c.TestSize+c.ValidationSize >= 1 {
		return errors.New("TEST_SIZE and VALIDATION_SIZE must leave a non-empty training split")
	}
	if c.NumFolds < 2 {
		return errors.New("N_FOLDS must be at least 2")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_ENABLED is true but KAFKA_SINK_TOPIC is empty")
		}
	}
	if c.Hyperparams.Tree.Criterion != "gini" && c.Hyperparams.Tree.Criterion != "entropy" {
		return fmt.Errorf("unknown tree criterion %q", c.Hyperparams.Tree.Criterion)
	}
	return nil
}

// loadHyperparams overlays YAML values onto the defaults already in hp.
func loadHyperparams(path string, hp *Hyperparams) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read hyperparams file: %w", err)
	}
	if err := yaml.Unmarshal(data, hp); err != nil {
		return fmt.Errorf("parse hyperparams file %s: %w", path, err)
	}
	return nil
}
