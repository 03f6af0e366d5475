package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RENDER_ORCHESTRATOR_ENV", "")
	t.Setenv("RENDER_ORCHESTRATOR_CONFIG", "")
	t.Setenv("RENDER_ORCHESTRATOR_PORT", "")
	t.Setenv("RENDER_ORCHESTRATOR_STORAGE", "")

	cfg := LoadConfig()
	if cfg.Environment != "development" {
		t.Errorf("environment = %q, want development", cfg.Environment)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("port = %d, want 8080", cfg.ServerPort)
	}
	if cfg.RenderWidth != 1280 || cfg.RenderHeight != 720 || cfg.RenderFPS != 30 {
		t.Errorf("render defaults = %dx%d@%d", cfg.RenderWidth, cfg.RenderHeight, cfg.RenderFPS)
	}
	if cfg.VideosPath != filepath.Join(cfg.StoragePath, "videos") {
		t.Errorf("videos path not derived from storage: %q", cfg.VideosPath)
	}
}

func TestLoadConfigTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.toml")
	content := `
server_port = 9090
storage_path = "` + dir + `"
ffmpeg_path = "/opt/ffmpeg/bin/ffmpeg"
render_fps = 24
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RENDER_ORCHESTRATOR_ENV", "")
	t.Setenv("RENDER_ORCHESTRATOR_CONFIG", path)
	t.Setenv("RENDER_ORCHESTRATOR_PORT", "")
	t.Setenv("RENDER_ORCHESTRATOR_STORAGE", "")
	t.Setenv("RENDER_ORCHESTRATOR_FFMPEG", "")

	cfg := LoadConfig()
	if cfg.ServerPort != 9090 {
		t.Errorf("port = %d, want 9090 from file", cfg.ServerPort)
	}
	if cfg.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("ffmpeg path = %q", cfg.FFmpegPath)
	}
	if cfg.RenderFPS != 24 {
		t.Errorf("fps = %d, want 24 from file", cfg.RenderFPS)
	}
	if cfg.StoragePath != dir {
		t.Errorf("storage = %q, want %q", cfg.StoragePath, dir)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.toml")
	if err := os.WriteFile(path, []byte("server_port = 9090\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RENDER_ORCHESTRATOR_ENV", "")
	t.Setenv("RENDER_ORCHESTRATOR_CONFIG", path)
	t.Setenv("RENDER_ORCHESTRATOR_PORT", "7070")
	t.Setenv("RENDER_ORCHESTRATOR_STORAGE", dir)

	cfg := LoadConfig()
	if cfg.ServerPort != 7070 {
		t.Errorf("port = %d, environment should override the file", cfg.ServerPort)
	}
	if cfg.StoragePath != dir {
		t.Errorf("storage = %q, want env override", cfg.StoragePath)
	}
}
