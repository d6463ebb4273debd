// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the cosmos YAML configuration, turns it into
// recorders and hot-reloads recorder thresholds.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/recorders"
	"github.com/AleutianAI/cosmos/pkg/telemetry"
	"github.com/AleutianAI/cosmos/pkg/validation"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Recorder kinds accepted in RecorderConfig.Kind.
const (
	KindConsole    = "console"
	KindFile       = "file"
	KindBuffer     = "buffer"
	KindBadger     = "badger"
	KindInflux     = "influx"
	KindPrometheus = "prometheus"
	KindOTel       = "otel"
	KindSpans      = "spans"
	KindSlog       = "slog"
	KindDiscard    = "discard"
)

// ErrInvalid wraps every validation failure returned by Parse and Load.
var ErrInvalid = errors.New("invalid config")

// =============================================================================
// Schema
// =============================================================================

// Config is the root of the YAML document.
type Config struct {
	// Service names log files and the telemetry resource.
	Service string `yaml:"service" validate:"required,cosmosname"`

	// LogLevel is the threshold of the tool's own diagnostic logger.
	LogLevel cosmos.Level `yaml:"log_level"`

	// LogDir enables the diagnostic logger's daily file when set.
	LogDir string `yaml:"log_dir,omitempty"`

	Recorders []RecorderConfig `yaml:"recorders" validate:"dive"`

	Telemetry telemetry.Config `yaml:"telemetry" validate:"-"`

	Debug DebugConfig `yaml:"debug"`
}

// DebugConfig configures the debug HTTP server.
type DebugConfig struct {
	// Addr is the listen address. Empty disables the server.
	Addr string `yaml:"addr,omitempty"`
}

// RecorderConfig describes one recorder. Exactly the sub-section matching
// Kind is read; the others are ignored.
type RecorderConfig struct {
	Name     string       `yaml:"name" validate:"required,cosmosname"`
	Kind     string       `yaml:"kind" validate:"required,oneof=console file buffer badger influx prometheus otel spans slog discard"`
	MinLevel cosmos.Level `yaml:"min_level"`

	Sample *SampleConfig `yaml:"sample,omitempty"`

	Console    *ConsoleConfig    `yaml:"console,omitempty"`
	File       *FileConfig       `yaml:"file,omitempty" validate:"required_if=Kind file"`
	Buffer     *BufferConfig     `yaml:"buffer,omitempty"`
	Badger     *BadgerConfig     `yaml:"badger,omitempty" validate:"required_if=Kind badger"`
	Influx     *InfluxConfig     `yaml:"influx,omitempty" validate:"required_if=Kind influx"`
	Prometheus *PrometheusConfig `yaml:"prometheus,omitempty"`
}

// UnmarshalYAML defaults MinLevel to info when the key is absent.
func (r *RecorderConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain RecorderConfig
	p := plain{MinLevel: cosmos.LevelInfo}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = RecorderConfig(p)
	return nil
}

// SampleConfig wraps a recorder in a token bucket.
type SampleConfig struct {
	PerSecond float64      `yaml:"per_second" validate:"gt=0"`
	Burst     int          `yaml:"burst" validate:"gte=1"`
	Bypass    cosmos.Level `yaml:"bypass"`
}

// ConsoleConfig configures a console recorder.
type ConsoleConfig struct {
	// Color is auto, always or never.
	Color string `yaml:"color,omitempty" validate:"omitempty,oneof=auto always never"`
}

// FileConfig configures a daily file recorder.
type FileConfig struct {
	Dir     string `yaml:"dir" validate:"required"`
	Service string `yaml:"service,omitempty" validate:"omitempty,cosmosname"`
}

// BufferConfig configures an in-memory ring recorder.
type BufferConfig struct {
	Capacity int `yaml:"capacity" validate:"gte=0"`
}

// BadgerConfig configures a badger recorder.
type BadgerConfig struct {
	Path       string        `yaml:"path,omitempty" validate:"required_without=InMemory"`
	InMemory   bool          `yaml:"in_memory,omitempty"`
	SyncWrites *bool         `yaml:"sync_writes,omitempty"`
	GCInterval time.Duration `yaml:"gc_interval,omitempty" validate:"gte=0"`
}

// InfluxConfig configures an influx recorder.
type InfluxConfig struct {
	URL         string        `yaml:"url" validate:"required,url"`
	Token       string        `yaml:"token,omitempty"`
	Org         string        `yaml:"org" validate:"required"`
	Bucket      string        `yaml:"bucket" validate:"required"`
	Measurement string        `yaml:"measurement,omitempty" validate:"omitempty,cosmosname"`
	Timeout     time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
}

// PrometheusConfig configures a prometheus recorder.
type PrometheusConfig struct {
	Namespace string `yaml:"namespace,omitempty" validate:"omitempty,cosmosname"`
}

// =============================================================================
// Loading
// =============================================================================

// validate is the shared validator, with the "cosmosname" rule registered.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("cosmosname", validateName)
}

// validateName applies validation.ValidateName to a string field.
func validateName(fl validator.FieldLevel) bool {
	return validation.ValidateName(fl.Field().String()) == nil
}

// Default returns a configuration with one console recorder at info.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	tel.MetricExporter = telemetry.ExporterNone
	return &Config{
		Service:  "cosmos",
		LogLevel: cosmos.LevelInfo,
		Recorders: []RecorderConfig{
			{Name: "console", Kind: KindConsole, MinLevel: cosmos.LevelInfo},
		},
		Telemetry: tel,
	}
}

// Parse decodes and validates a YAML document. Keys absent from data keep
// their Default values, except Recorders which is replaced when present.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks struct tags and cross-field rules: recorder names are
// unique, prometheus recorders do not share a namespace, and every level
// is known.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}

	names := make([]string, len(c.Recorders))
	namespaces := make(map[string]string)
	for i, rc := range c.Recorders {
		names[i] = rc.Name
		if !rc.MinLevel.Valid() {
			return fmt.Errorf("%w: recorder %q: unknown min_level %d", ErrInvalid, rc.Name, rc.MinLevel)
		}
		if rc.Kind != KindPrometheus {
			continue
		}
		ns := rc.prometheusNamespace()
		if other, ok := namespaces[ns]; ok {
			return fmt.Errorf("%w: recorders %q and %q share prometheus namespace %q", ErrInvalid, other, rc.Name, ns)
		}
		namespaces[ns] = rc.Name
	}
	if err := validation.ValidateNames(names); err != nil {
		return fmt.Errorf("%w: recorders: %v", ErrInvalid, err)
	}
	if !c.LogLevel.Valid() {
		return fmt.Errorf("%w: unknown log_level %d", ErrInvalid, c.LogLevel)
	}
	if c.Debug.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Debug.Addr); err != nil {
			return fmt.Errorf("%w: debug.addr: %v", ErrInvalid, err)
		}
	}
	return nil
}

// prometheusNamespace returns the namespace a prometheus recorder will
// register under.
func (rc RecorderConfig) prometheusNamespace() string {
	if rc.Prometheus != nil && rc.Prometheus.Namespace != "" {
		return rc.Prometheus.Namespace
	}
	return recorders.DefaultPrometheusNamespace
}

// Recorder returns the recorder section named name.
func (c *Config) Recorder(name string) (RecorderConfig, bool) {
	for _, rc := range c.Recorders {
		if rc.Name == name {
			return rc, true
		}
	}
	return RecorderConfig{}, false
}

// describe flattens validator errors into "Field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, strings.TrimPrefix(fe.Namespace(), "Config.")+": "+rule)
	}
	return strings.Join(parts, "; ")
}
