package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCDM(); err != nil {
		return err
	}
	c.normalizePortal()
	c.normalizeAuth()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = os.TempDir()
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCDM() error {
	if strings.TrimSpace(c.CDM.DevicePath) == "" {
		c.CDM.DevicePath = defaultDevicePath
	}
	expanded, err := expandPath(c.CDM.DevicePath)
	if err != nil {
		return fmt.Errorf("cdm.device_path: %w", err)
	}
	c.CDM.DevicePath = expanded
	return nil
}

func (c *Config) normalizePortal() {
	c.Portal.BaseURL = strings.TrimRight(strings.TrimSpace(c.Portal.BaseURL), "/")
	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = defaultBaseURL
	}
	c.Portal.LicenseURL = strings.TrimSpace(c.Portal.LicenseURL)
	if c.Portal.LicenseURL == "" {
		c.Portal.LicenseURL = defaultLicenseURL
	}
}

func (c *Config) normalizeAuth() {
	c.Auth.BearerToken = strings.Trim(strings.TrimSpace(c.Auth.BearerToken), `"`)
	c.Auth.CookieHeader = strings.TrimSpace(c.Auth.CookieHeader)
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.Tools.YtDlp) == "" {
		c.Tools.YtDlp = defaultYtDlpBinary
	}
	if strings.TrimSpace(c.Tools.FFmpeg) == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Tools.Packager) == "" {
		c.Tools.Packager = defaultPackagerBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
