// Package config loads the pipeline and receiver settings from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"smntmb/core"
)

// Config is the whole configuration file.
type Config struct {
	Pipeline PipelineConfig `json:"pipeline"`
	Receiver ReceiverConfig `json:"receiver"`
}

// PipelineConfig holds the acquisition parameters shared by the firmware
// and the receiver (which needs the batch size to cut blocks).
type PipelineConfig struct {
	SamplesPerBatch int    `json:"samples_per_batch"`
	MaxTransfers    int    `json:"max_transfers"`
	SampleRate      uint32 `json:"sample_rate"`
	ScanDVL         int    `json:"scan_dvl"`
	PRSChannel      uint8  `json:"prs_channel"`
	ClockHz         uint32 `json:"clock_hz"`
	FaultPolicy     string `json:"fault_policy"` // "halt" or "report"
}

// ReceiverConfig configures the host side.
type ReceiverConfig struct {
	Device        string       `json:"device"`
	Baud          int          `json:"baud"`
	ReadTimeoutMs int          `json:"read_timeout_ms"`
	Record        RecordConfig `json:"record"`
	MQTT          MQTTConfig   `json:"mqtt"`
}

// RecordConfig selects the file sink. An empty path disables recording.
type RecordConfig struct {
	Path   string `json:"path"`
	Format string `json:"format"` // "raw", "csv" or "proto"
}

// MQTTConfig selects the MQTT sink. An empty broker disables publishing.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	Topic    string `json:"topic"`
	ClientID string `json:"client_id"`
	QoS      byte   `json:"qos"`
}

// Record formats
const (
	FormatRaw   = "raw"
	FormatCSV   = "csv"
	FormatProto = "proto"
)

// Defaults
const (
	DefaultClockHz     = 16000000
	DefaultBaud        = 115200
	DefaultReadTimeout = 100
	DefaultTopic       = "smnt-mb/mic"
)

// Load parses a JSON configuration and fills in defaults.
func Load(jsonData []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and parses a configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Load(data)
}

// Default returns the smnt-mb configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in unset values, e.g. after command line overrides.
func (c *Config) ApplyDefaults() {
	applyDefaults(c)
}

func applyDefaults(cfg *Config) {
	p := &cfg.Pipeline
	if p.SamplesPerBatch == 0 {
		p.SamplesPerBatch = core.DefaultSamplesPerBatch
	}
	if p.MaxTransfers == 0 {
		p.MaxTransfers = core.MaxTransferUnits
	}
	if p.SampleRate == 0 {
		p.SampleRate = core.DefaultSampleRate
	}
	if p.ScanDVL == 0 {
		p.ScanDVL = core.DefaultScanDVL
	}
	if p.ClockHz == 0 {
		p.ClockHz = DefaultClockHz
	}
	if p.FaultPolicy == "" {
		p.FaultPolicy = "report"
	}

	r := &cfg.Receiver
	if r.Baud == 0 {
		r.Baud = DefaultBaud
	}
	if r.ReadTimeoutMs == 0 {
		r.ReadTimeoutMs = DefaultReadTimeout
	}
	if r.Record.Path != "" && r.Record.Format == "" {
		r.Record.Format = formatFromPath(r.Record.Path)
	}
	if r.MQTT.Broker != "" && r.MQTT.Topic == "" {
		r.MQTT.Topic = DefaultTopic
	}
}

func formatFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV
	case strings.HasSuffix(path, ".pb"):
		return FormatProto
	}
	return FormatRaw
}

// Validate checks the pipeline arithmetic and the receiver options.
func (c *Config) Validate() error {
	if err := c.Capture().Validate(); err != nil {
		return err
	}
	if _, err := core.TopValue(c.Pipeline.ClockHz, c.Pipeline.SampleRate); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	switch c.Receiver.Record.Format {
	case "", FormatRaw, FormatCSV, FormatProto:
	default:
		return fmt.Errorf("config: unknown record format %q", c.Receiver.Record.Format)
	}
	if c.Receiver.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt qos %d out of range", c.Receiver.MQTT.QoS)
	}
	return nil
}

// Capture converts the pipeline section to a core.CaptureConfig.
func (c *Config) Capture() core.CaptureConfig {
	return core.CaptureConfig{
		SamplesPerBatch: c.Pipeline.SamplesPerBatch,
		MaxTransfers:    c.Pipeline.MaxTransfers,
		SampleRate:      c.Pipeline.SampleRate,
		ScanDVL:         c.Pipeline.ScanDVL,
		PRSChannel:      c.Pipeline.PRSChannel,
	}
}

// Policy returns the configured fault policy.
func (c *Config) Policy() (core.FaultPolicy, error) {
	switch c.Pipeline.FaultPolicy {
	case "report", "":
		return core.FaultReport, nil
	case "halt":
		return core.FaultHalt, nil
	}
	return 0, fmt.Errorf("config: unknown fault policy %q", c.Pipeline.FaultPolicy)
}
