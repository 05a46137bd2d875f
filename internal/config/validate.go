package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePortal(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateDelays(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePortal() error {
	if _, err := url.ParseRequestURI(c.Portal.BaseURL); err != nil {
		return fmt.Errorf("portal.base_url is not a valid URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.Portal.LicenseURL); err != nil {
		return fmt.Errorf("portal.license_url is not a valid URL: %w", err)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.DailyCourseCap < 1 {
		return errors.New("limits.daily_course_cap must be at least 1")
	}
	if c.Limits.RunLectureCap < 1 {
		return errors.New("limits.run_lecture_cap must be at least 1")
	}
	if c.Limits.MaxQuality < 1 {
		return errors.New("limits.max_quality must be a positive pixel height")
	}
	return nil
}

func (c *Config) validateDelays() error {
	pairs := []struct {
		name     string
		min, max int
	}{
		{"delays.api", c.Delays.APIMinMS, c.Delays.APIMaxMS},
		{"delays.lecture", c.Delays.LectureMinMS, c.Delays.LectureMaxMS},
	}
	for _, p := range pairs {
		if p.min < 0 || p.max < 0 {
			return fmt.Errorf("%s delays must not be negative", p.name)
		}
		if p.max < p.min {
			return fmt.Errorf("%s max delay must be >= min delay", p.name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
