// Package config loads the YAML file describing how an instrument session
// is administered: locale, modes, candidate context, age windows, examiners
// and where saved answers go.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/pipeline"
	"github.com/goliatone/go-instrument/pkg/session"
	"github.com/goliatone/go-instrument/pkg/window"
)

// DefaultDatabase is used when the file does not name one.
const DefaultDatabase = "instrument.db"

// configValidate is shared; validator.Validate caches struct metadata.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("isodate", validateISODate)
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := window.ParseDate(fl.Field().String())
	return err == nil
}

// Config is the session configuration file.
type Config struct {
	// Definition is the instrument definition path, relative to the working
	// directory.
	Definition    string                 `yaml:"definition"`
	Locale        string                 `yaml:"locale" validate:"omitempty,oneof=en-ca fr-ca"`
	SurveyMode    bool                   `yaml:"survey_mode"`
	DataEntryMode bool                   `yaml:"data_entry_mode"`
	Frozen        bool                   `yaml:"frozen"`
	DOB           string                 `yaml:"dob" validate:"omitempty,isodate"`
	Context       map[string]any         `yaml:"context"`
	Windows       []instrument.AgeWindow `yaml:"windows" validate:"dive"`
	Examiners     map[string]string      `yaml:"examiners" validate:"dive,keys,required,endkeys,required"`
	Database      string                 `yaml:"database"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Locale:   session.DefaultLocale,
		Database: DefaultDatabase,
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of Default and validates it. Unknown
// keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	cfg.Locale = strings.ToLower(strings.TrimSpace(cfg.Locale))
	if cfg.Locale == "" {
		cfg.Locale = session.DefaultLocale
	}
	if strings.TrimSpace(cfg.Database) == "" {
		cfg.Database = DefaultDatabase
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// EvaluationContext merges the free-form context with the candidate dob.
func (c *Config) EvaluationContext() pipeline.Context {
	ctx := make(pipeline.Context, len(c.Context)+1)
	for k, v := range c.Context {
		ctx[k] = v
	}
	if c.DOB != "" {
		ctx[pipeline.ContextDOB] = c.DOB
	}
	return ctx
}

// SessionOptions translates the configuration into session options.
func (c *Config) SessionOptions() []session.Option {
	return []session.Option{
		session.WithLocale(c.Locale),
		session.WithSurveyMode(c.SurveyMode),
		session.WithDataEntryMode(c.DataEntryMode),
		session.WithFrozen(c.Frozen),
		session.WithContext(c.EvaluationContext()),
		session.WithWindows(c.Windows...),
		session.WithExaminers(c.Examiners),
	}
}
