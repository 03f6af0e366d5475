package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Environment string `toml:"-"`
	ServerPort  int    `toml:"server_port"`
	DBPath      string `toml:"db_path"`

	// Storage paths
	StoragePath string `toml:"storage_path"`
	VideosPath  string `toml:"-"`
	TempPath    string `toml:"-"`

	// Encoder settings
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`

	// Render defaults
	RenderWidth  int `toml:"render_width"`
	RenderHeight int `toml:"render_height"`
	RenderFPS    int `toml:"render_fps"`
}

// LoadConfig loads configuration from defaults, an optional TOML file named
// by RENDER_ORCHESTRATOR_CONFIG, then environment overrides, in that order.
func LoadConfig() *Config {
	env := os.Getenv("RENDER_ORCHESTRATOR_ENV")
	if env == "" {
		env = "development"
	}

	cfg := Config{
		Environment:  env,
		ServerPort:   8080,
		RenderWidth:  1280,
		RenderHeight: 720,
		RenderFPS:    30,
	}

	if env == "production" {
		cfg.StoragePath = "/var/lib/render-orchestrator/storage"
		cfg.DBPath = "/var/lib/render-orchestrator/data/exports.db"
	} else {
		homeDir, _ := os.UserHomeDir()
		basePath := filepath.Join(homeDir, "render-orchestrator")
		cfg.StoragePath = filepath.Join(basePath, "storage")
		cfg.DBPath = filepath.Join(basePath, "data", "exports.db")
	}

	if path := os.Getenv("RENDER_ORCHESTRATOR_CONFIG"); path != "" {
		if err := loadTOML(path, &cfg); err != nil {
			fmt.Printf("Warning: could not load config file %s: %v\n", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	// Derived storage paths
	cfg.VideosPath = filepath.Join(cfg.StoragePath, "videos")
	cfg.TempPath = filepath.Join(cfg.StoragePath, "temp")

	fmt.Printf("Loaded configuration for environment: %s\n", env)
	return &cfg
}

func loadTOML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RENDER_ORCHESTRATOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.ServerPort = port
		}
	}
	if v := os.Getenv("RENDER_ORCHESTRATOR_STORAGE"); v != "" {
		cfg.StoragePath = v
	}
	if v := os.Getenv("RENDER_ORCHESTRATOR_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("RENDER_ORCHESTRATOR_FFMPEG"); v != "" {
		cfg.FFmpegPath = v
	}
	if v := os.Getenv("RENDER_ORCHESTRATOR_FFPROBE"); v != "" {
		cfg.FFprobePath = v
	}
}

// EnsureDirectories creates the storage layout if it does not exist
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.StoragePath,
		c.VideosPath,
		c.TempPath,
		filepath.Join(c.StoragePath, "logs"),
		filepath.Dir(c.DBPath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
