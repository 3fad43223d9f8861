package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is where the job looks for its configuration when no
	// -config flag is given.
	DefaultPath = "config/config.yml"

	DefaultFlushThreshold      = 50000
	DefaultAggregationCapacity = 65536
	DefaultInstrumentCapacity  = 16384
	DefaultReadBufferBytes     = 1 << 20
	DefaultSegmentBytes        = 4 << 20
	DefaultMaxSplitBytes       = 256 << 20
)

type Config struct {
	Job     JobConfig     `yaml:"job"`
	Input   InputConfig   `yaml:"input"`
	Mapper  MapperConfig  `yaml:"mapper"`
	Shuffle ShuffleConfig `yaml:"shuffle"`
	Output  OutputConfig  `yaml:"output"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type JobConfig struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Workers  int    `yaml:"workers"`
	Reducers int    `yaml:"reducers"`
}

type InputConfig struct {
	Paths         []string `yaml:"paths"`
	Recursive     bool     `yaml:"recursive"`
	MinSplitBytes int64    `yaml:"min_split_bytes"`
	MaxSplitBytes int64    `yaml:"max_split_bytes"`
	SplitManifest string   `yaml:"split_manifest"`
}

type MapperConfig struct {
	FlushThreshold      int `yaml:"flush_threshold"`
	AggregationCapacity int `yaml:"aggregation_capacity"`
	InstrumentCapacity  int `yaml:"instrument_capacity"`
	ReadBufferBytes     int `yaml:"read_buffer_bytes"`
}

type ShuffleConfig struct {
	Compression  string `yaml:"compression"`
	SegmentBytes int    `yaml:"segment_bytes"`
	SpillDir     string `yaml:"spill_dir"`
}

type OutputConfig struct {
	Dir       string        `yaml:"dir"`
	Format    string        `yaml:"format"`
	Naming    string        `yaml:"naming"`
	Overwrite bool          `yaml:"overwrite"`
	Parquet   ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled          bool    `yaml:"enabled"`
	Bucket           string  `yaml:"bucket"`
	Region           string  `yaml:"region"`
	Endpoint         string  `yaml:"endpoint"`
	PathStyle        bool    `yaml:"path_style"`
	Prefix           string  `yaml:"prefix"`
	UploadsPerSecond float64 `yaml:"uploads_per_second"`
	AccessKeyID      string  `yaml:"access_key_id"`
	SecretAccessKey  string  `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	Textfile   string           `yaml:"textfile"`
	Listen     string           `yaml:"listen"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns a configuration with every tunable set to its default.
func Default() Config {
	return Config{
		Job: JobConfig{
			Name:     "factor-job",
			Version:  "1.0",
			Reducers: 4,
		},
		Input: InputConfig{
			Recursive:     true,
			MaxSplitBytes: DefaultMaxSplitBytes,
		},
		Mapper: MapperConfig{
			FlushThreshold:      DefaultFlushThreshold,
			AggregationCapacity: DefaultAggregationCapacity,
			InstrumentCapacity:  DefaultInstrumentCapacity,
			ReadBufferBytes:     DefaultReadBufferBytes,
		},
		Shuffle: ShuffleConfig{
			Compression:  "snappy",
			SegmentBytes: DefaultSegmentBytes,
		},
		Output: OutputConfig{
			Format:    "csv",
			Naming:    "mmdd",
			Overwrite: true,
			Parquet:   ParquetConfig{Compression: "snappy"},
		},
		Storage: StorageConfig{
			S3: S3Config{UploadsPerSecond: 10},
		},
		Metrics: MetricsConfig{
			CloudWatch: CloudWatchConfig{Namespace: "AlphaFlow"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Override adjusts a loaded configuration before it is validated.
type Override func(*Config)

// WithPaths replaces the input paths and output directory when non-empty.
func WithPaths(input []string, output string) Override {
	return func(c *Config) {
		if len(input) > 0 {
			c.Input.Paths = input
		}
		if output != "" {
			c.Output.Dir = output
		}
	}
}

// LoadConfig reads the YAML file at path over the defaults, applies
// environment and caller overrides, and validates the result.
func LoadConfig(path string, overrides ...Override) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	for _, o := range overrides {
		o(&config)
	}
	if config.Job.Workers <= 0 {
		config.Job.Workers = runtime.NumCPU()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnv overrides S3 and CloudWatch settings from the environment.
func (c *Config) applyEnv() {
	if c.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			c.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			c.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			c.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			c.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	if c.Metrics.CloudWatch.Enabled && c.Metrics.CloudWatch.Region == "" {
		c.Metrics.CloudWatch.Region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	}
	c.Storage.S3.Bucket = strings.TrimSpace(c.Storage.S3.Bucket)
}

// Validate checks the configuration for values the job cannot run with.
func (c *Config) Validate() error {
	if c.Job.Name == "" {
		return fmt.Errorf("job.name is required")
	}
	if c.Job.Version == "" {
		return fmt.Errorf("job.version is required")
	}
	if c.Job.Workers <= 0 {
		return fmt.Errorf("job.workers must be greater than 0")
	}
	if c.Job.Reducers <= 0 {
		return fmt.Errorf("job.reducers must be greater than 0")
	}

	if len(c.Input.Paths) == 0 && c.Input.SplitManifest == "" {
		return fmt.Errorf("input.paths or input.split_manifest is required")
	}
	if c.Input.MinSplitBytes < 0 || c.Input.MaxSplitBytes < 0 {
		return fmt.Errorf("input split sizes must not be negative")
	}
	if c.Input.MaxSplitBytes > 0 && c.Input.MinSplitBytes > c.Input.MaxSplitBytes {
		return fmt.Errorf("input.min_split_bytes must not exceed input.max_split_bytes")
	}

	if c.Mapper.FlushThreshold <= 0 {
		return fmt.Errorf("mapper.flush_threshold must be greater than 0")
	}
	if c.Mapper.AggregationCapacity <= c.Mapper.FlushThreshold {
		return fmt.Errorf("mapper.aggregation_capacity must be greater than mapper.flush_threshold")
	}
	if c.Mapper.InstrumentCapacity <= 0 {
		return fmt.Errorf("mapper.instrument_capacity must be greater than 0")
	}
	if c.Mapper.ReadBufferBytes < 16 {
		return fmt.Errorf("mapper.read_buffer_bytes must be at least 16")
	}

	switch c.Shuffle.Compression {
	case "snappy", "none":
	default:
		return fmt.Errorf("shuffle.compression '%s' is invalid", c.Shuffle.Compression)
	}
	if c.Shuffle.SegmentBytes <= 0 {
		return fmt.Errorf("shuffle.segment_bytes must be greater than 0")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	switch c.Output.Format {
	case "csv", "parquet":
	default:
		return fmt.Errorf("output.format '%s' is invalid", c.Output.Format)
	}
	switch c.Output.Naming {
	case "mmdd", "yyyymmdd":
	default:
		return fmt.Errorf("output.naming '%s' is invalid", c.Output.Naming)
	}
	if c.Output.Format == "parquet" {
		switch strings.ToLower(c.Output.Parquet.Compression) {
		case "snappy", "gzip", "uncompressed", "none", "":
		default:
			return fmt.Errorf("output.parquet.compression '%s' is invalid", c.Output.Parquet.Compression)
		}
	}

	if c.Storage.S3.Enabled {
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if c.Storage.S3.AccessKeyID == "" || c.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(c.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", c.Storage.S3.Bucket)
		}
		if c.Storage.S3.UploadsPerSecond <= 0 {
			return fmt.Errorf("storage.s3.uploads_per_second must be greater than 0")
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
