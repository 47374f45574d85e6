// Package config loads the program properties and applies the one-time
// administrative settings they may carry.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultFile is the properties file read when none is given.
const DefaultFile = "program.properties"

// ErrInvalidRange reports a range property that is not "low-high" or "low,high".
var ErrInvalidRange = errors.New("invalid range")

// Config is the program configuration.
type Config struct {
	DatabaseDir   string `mapstructure:"databaseDir"`
	OutputDir     string `mapstructure:"outputDir"`
	Range         string `mapstructure:"range"`
	RangeCategory string `mapstructure:"rangeCategory"`
	LogLevel      string `mapstructure:"logLevel"`
	ErrorLog      string `mapstructure:"errorLog"`

	v *viper.Viper
	// file holds only the keys present in the properties file. It is what
	// Store writes back.
	file *viper.Viper
}

// Load reads the properties file at path. A missing file yields the
// defaults. Environment variables prefixed DEID_ override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	v.SetEnvPrefix("DEID")
	v.AutomaticEnv()

	v.SetDefault("databaseDir", "data")
	v.SetDefault("outputDir", "Submissions")
	v.SetDefault("range", "")
	v.SetDefault("rangeCategory", "ptid")
	v.SetDefault("logLevel", "info")
	v.SetDefault("errorLog", "")

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("properties")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := file.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{v: v, file: file}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Set changes a property in memory; Store persists it.
func (c *Config) Set(key, value string) {
	c.v.Set(key, value)
	c.file.Set(key, value)
}

// Store writes the file's own properties, with any Set changes, back to the
// file. Defaults and environment overrides are not written.
func (c *Config) Store() error {
	if err := c.file.WriteConfig(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var rangeSep = regexp.MustCompile(`[,-]`)

// ParseRange parses "low-high" or "low,high".
func ParseRange(s string) (low, high int, err error) {
	limits := rangeSep.Split(strings.TrimSpace(s), -1)
	if len(limits) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	low, err = strconv.Atoi(strings.TrimSpace(limits[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	high, err = strconv.Atoi(strings.TrimSpace(limits[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	return low, high, nil
}

// RangeInstaller accepts a skip range. *idtable.Table implements it.
type RangeInstaller interface {
	SetSkipRange(category string, low, high int) bool
}

// InstallIntegerRange applies the range property, if present, and removes it
// from the properties file once the table has accepted it. A malformed or
// refused range is left in place so it can be corrected and retried.
//
// Only a range written in the properties file is applied: one set through
// the environment could not be removed and would be applied on every start.
func (c *Config) InstallIntegerRange(t RangeInstaller, log zerolog.Logger) error {
	value := strings.TrimSpace(c.file.GetString("range"))
	if value == "" {
		if strings.TrimSpace(c.Range) != "" {
			log.Warn().Str("range", c.Range).Msg("range from the environment ignored, set it in the properties file")
		}
		return nil
	}
	low, high, err := ParseRange(value)
	if err != nil {
		log.Warn().Err(err).Msg("unable to process range property")
		return err
	}
	if !t.SetSkipRange(c.RangeCategory, low, high) {
		log.Warn().Str("range", value).Msg("integer skip range not installed")
		return fmt.Errorf("skip range %s not installed", value)
	}
	log.Warn().Int("low", low).Int("high", high).Str("category", c.RangeCategory).Msg("integer skip range set")

	c.Range = ""
	c.Set("range", "")
	return c.Store()
}
