package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/aperture147/svgc/compressor"
)

const (
	StorageFileSystem = "fs"
	StorageS3         = "s3"

	CodecLilliput = "lilliput"
	CodecImaging  = "imaging"
	CodecMagick   = "magick"
)

var (
	validStorages = []string{StorageFileSystem, StorageS3}
	validCodecs   = []string{CodecLilliput, CodecImaging, CodecMagick}
)

type RedisConfig struct {
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLMinutes int    `json:"ttl_minutes"`
}

type StorageConfig struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Bucket string `json:"bucket"`
}

type CompressionConfig struct {
	Quality      int    `json:"quality"`
	OptimisePngs *bool  `json:"optimise_pngs"`
	Workers      int    `json:"workers"`
	Codec        string `json:"codec"`
	MagickPath   string `json:"magick_path"`
	MaxDimension int    `json:"max_dimension"`
	Minify       bool   `json:"minify"`
	Strict       bool   `json:"strict"`
	AbortOnError bool   `json:"abort_on_error"`
}

type Config struct {
	Addr           string            `json:"addr"`
	Path           string            `json:"path"`
	AuthToken      string            `json:"auth_token"`
	CDNHost        string            `json:"cdn_host"`
	MaxUploadMB    int               `json:"max_upload_mb"`
	RequestTimeout int               `json:"request_timeout"`
	Routines       int               `json:"routines"`
	Storage        StorageConfig     `json:"storage"`
	Redis          *RedisConfig      `json:"redis"`
	Compression    CompressionConfig `json:"compression"`
}

// Default is the configuration used when no file is given.
func Default() *Config {
	config := &Config{}
	setDefaults(config)
	return config
}

// Load reads a JSON config file. A missing file is not an error, the
// defaults are used instead. Environment variables override the file.
func Load(filename string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	if err := applyEnv(&config); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	setDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyEnv(config *Config) error {
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		config.AuthToken = v
	}
	if v := os.Getenv("CDN_HOST"); v != "" {
		config.CDNHost = v
	}
	if v := os.Getenv("SVGC_ADDR"); v != "" {
		config.Addr = v
	}
	if v := os.Getenv("SVGC_STORAGE"); v != "" {
		config.Storage.Kind = v
	}
	if v := os.Getenv("SVGC_STORAGE_PATH"); v != "" {
		config.Storage.Path = v
	}
	if v := os.Getenv("SVGC_BUCKET"); v != "" {
		config.Storage.Bucket = v
	}
	if v := os.Getenv("SVGC_QUALITY"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SVGC_QUALITY: %w", err)
		}
		config.Compression.Quality = q
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		config.Redis.Addr = v
	}
	return nil
}

func validateConfig(config *Config) error {
	if !slices.Contains(validStorages, config.Storage.Kind) {
		return fmt.Errorf("storage.kind: invalid storage '%s', must be one of: %s",
			config.Storage.Kind, strings.Join(validStorages, ", "))
	}
	if config.Storage.Kind == StorageS3 && config.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for s3 storage")
	}
	if !slices.Contains(validCodecs, config.Compression.Codec) {
		return fmt.Errorf("compression.codec: invalid codec '%s', must be one of: %s",
			config.Compression.Codec, strings.Join(validCodecs, ", "))
	}
	if config.Redis != nil && config.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is configured")
	}
	if config.MaxUploadMB < 0 || config.RequestTimeout < 0 || config.Compression.MaxDimension < 0 {
		return fmt.Errorf("sizes and timeouts must not be negative")
	}
	if !strings.HasPrefix(config.Path, "/") {
		return fmt.Errorf("path must start with '/'")
	}
	return config.CompressorOptions().Validate()
}

func setDefaults(config *Config) {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Path == "" {
		config.Path = "/svg/compress"
	}
	if config.MaxUploadMB == 0 {
		config.MaxUploadMB = 10
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30
	}
	if config.Storage.Kind == "" {
		config.Storage.Kind = StorageFileSystem
	}
	if config.Storage.Path == "" {
		config.Storage.Path = "uploads"
	}
	if config.Redis != nil && config.Redis.TTLMinutes == 0 {
		config.Redis.TTLMinutes = 24 * 60
	}
	if config.Compression.Quality == 0 {
		config.Compression.Quality = compressor.DefaultQuality
	}
	if config.Compression.OptimisePngs == nil {
		optimise := true
		config.Compression.OptimisePngs = &optimise
	}
	if config.Compression.Workers == 0 {
		config.Compression.Workers = 1
	}
	if config.Compression.Codec == "" {
		config.Compression.Codec = CodecImaging
	}
}

// CompressorOptions are the per-document defaults; requests may override
// quality and png handling.
func (c *Config) CompressorOptions() compressor.Options {
	opts := compressor.DefaultOptions()
	opts.Quality = c.Compression.Quality
	if c.Compression.OptimisePngs != nil {
		opts.OptimisePngs = *c.Compression.OptimisePngs
	}
	opts.Workers = c.Compression.Workers
	if c.Compression.AbortOnError {
		opts.OnError = compressor.Abort
	}
	return opts
}
