package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	WorkDir   string `toml:"work_dir"`
}

// Auth carries the already-established portal credentials. Session and
// cookie bootstrap happen outside this tool; only the resulting values are
// consumed here.
type Auth struct {
	BearerToken  string `toml:"bearer_token"`
	CookieHeader string `toml:"cookie_header"`
}

// Portal contains the course portal endpoints.
type Portal struct {
	BaseURL    string `toml:"base_url"`
	LicenseURL string `toml:"license_url"`
}

// CDM locates the externally provisioned key-exchange device blob.
type CDM struct {
	DevicePath string `toml:"device_path"`
}

// Tools names the external binaries the pipeline drives.
type Tools struct {
	YtDlp    string `toml:"ytdlp"`
	FFmpeg   string `toml:"ffmpeg"`
	Packager string `toml:"packager"`
}

// Limits contains the safety caps and the quality ceiling.
type Limits struct {
	DailyCourseCap int `toml:"daily_course_cap"`
	RunLectureCap  int `toml:"run_lecture_cap"`
	MaxQuality     int `toml:"max_quality"`
}

// Delays configures the randomized human-like pauses, in milliseconds.
// Sequential processing plus these delays is the anti-detection posture;
// shrinking them trades account safety for speed.
type Delays struct {
	APIMinMS     int `toml:"api_min_ms"`
	APIMaxMS     int `toml:"api_max_ms"`
	LectureMinMS int `toml:"lecture_min_ms"`
	LectureMaxMS int `toml:"lecture_max_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the downloader.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Auth    Auth    `toml:"auth"`
	Portal  Portal  `toml:"portal"`
	CDM     CDM     `toml:"cdm"`
	Tools   Tools   `toml:"tools"`
	Limits  Limits  `toml:"limits"`
	Delays  Delays  `toml:"delays"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/udl/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The bool reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("udl.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir, c.Paths.WorkDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StatePath returns the location of the persisted safety state file.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.StateDir, "download_state.json")
}

// LockPath returns the location of the single-instance run lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "udl.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
