// Package config implements the root YAML configuration document, grounded
// on controlplane/pkg/yncp/cfg.go's DefaultConfig/LoadConfig pattern.
package config

import (
	"fmt"
	"math/bits"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// HardwareConfig configures the radio device negotiation.
type HardwareConfig struct {
	AntennaCount  uint32 `yaml:"antenna_count"`
	SampleRateHz  uint32 `yaml:"sample_rate_hz"`
	TxGapSamples  uint32 `yaml:"tx_gap_samples"`
	Simulate      bool   `yaml:"simulate"`
	SampleRateSpeedup float64 `yaml:"sample_rate_speedup"`
}

// QueuesConfig configures the JobQueue and DatagramQueue sizing.
type QueuesConfig struct {
	// JobQueueCapacity must be >= jobqueue.MinCapacity.
	JobQueueCapacity uint32 `yaml:"job_queue_capacity"`
	// JobQueueBackend selects "naive" or "concurrent".
	JobQueueBackend string `yaml:"job_queue_backend"`
	// JobQueueAccessProtection throttles ingress job creation.
	JobQueueAccessProtection time.Duration `yaml:"job_queue_access_protection"`
	// JobQueueEnqueueFatal selects the resource-exhaustion policy: true
	// aborts the process on a full queue, false discards and logs.
	JobQueueEnqueueFatal bool `yaml:"job_queue_enqueue_fatal"`

	NDatagram        uint32            `yaml:"n_datagram"`
	NDatagramMaxByte datasize.ByteSize `yaml:"n_datagram_max_byte"`
}

// ConnectionConfig describes one ingress connection.
type ConnectionConfig struct {
	// Kind is "udp" or "tun".
	Kind string `yaml:"kind"`
	// Addr is "host:port" for udp, the interface name for tun.
	Addr string `yaml:"addr"`
	// AllowedSources is a glob allow-list, udp only.
	AllowedSources []string `yaml:"allowed_sources"`
	// Namespace is an optional network namespace, tun only.
	Namespace string `yaml:"namespace"`
}

// IngressConfig configures the IngressServer.
type IngressConfig struct {
	Connections []ConnectionConfig `yaml:"connections"`
}

// PpsSyncConfig configures the PPS rendezvous.
type PpsSyncConfig struct {
	// NofParticipants is how many ExpectOneMore calls precede the
	// rendezvous.
	NofParticipants uint32 `yaml:"nof_participants"`
	// Mode is "zero" or "tai_now".
	Mode string `yaml:"mode"`
}

// ControlPlaneConfig configures the gRPC introspection service.
type ControlPlaneConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig is the configuration for the logging subsystem.
type LoggingConfig struct {
	Level zapcore.Level `yaml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Hardware     HardwareConfig     `yaml:"hardware"`
	Queues       QueuesConfig       `yaml:"queues"`
	Ingress      IngressConfig      `yaml:"ingress"`
	PpsSync      PpsSyncConfig      `yaml:"ppssync"`
	ControlPlane ControlPlaneConfig `yaml:"controlplane"`
}

// DefaultConfig returns safe defaults: job queue capacity 32, naive
// backend, datagram queue of 64 slots at 2KB each, info-level logging, and
// a loopback control-plane listener.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: zapcore.InfoLevel},
		Hardware: HardwareConfig{
			AntennaCount:      1,
			SampleRateHz:      1_000_000,
			TxGapSamples:      32,
			Simulate:          true,
			SampleRateSpeedup: 1.0,
		},
		Queues: QueuesConfig{
			JobQueueCapacity:         32,
			JobQueueBackend:          "naive",
			JobQueueAccessProtection: 0,
			JobQueueEnqueueFatal:     true,
			NDatagram:                64,
			NDatagramMaxByte:         2 * datasize.KB,
		},
		Ingress: IngressConfig{},
		PpsSync: PpsSyncConfig{
			NofParticipants: 1,
			Mode:            "zero",
		},
		ControlPlane: ControlPlaneConfig{
			ListenAddr: "127.0.0.1:9402",
		},
	}
}

// LoadConfig reads path, unmarshals it over DefaultConfig, and validates
// the result.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("config: deserialize: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}

// Validate checks the invariants spec.md's "Configuration" error class
// covers: invalid antenna count, invalid sample rate, queue sizes out of
// range, and, for a non-simulated device, at least one ingress connection.
// Validation errors are fatal at startup, never mid-run.
func (c *Config) Validate() error {
	if c.Hardware.AntennaCount == 0 || bits.OnesCount32(c.Hardware.AntennaCount) != 1 {
		return fmt.Errorf("hardware.antenna_count must be a power of two, got %d", c.Hardware.AntennaCount)
	}
	if c.Hardware.AntennaCount > 8 {
		return fmt.Errorf("hardware.antenna_count must be <= 8, got %d", c.Hardware.AntennaCount)
	}
	if c.Hardware.SampleRateHz == 0 {
		return fmt.Errorf("hardware.sample_rate_hz must be > 0")
	}
	if c.Queues.JobQueueCapacity < 32 {
		return fmt.Errorf("queues.job_queue_capacity must be >= 32, got %d", c.Queues.JobQueueCapacity)
	}
	if c.Queues.JobQueueBackend != "naive" && c.Queues.JobQueueBackend != "concurrent" {
		return fmt.Errorf("queues.job_queue_backend must be %q or %q, got %q", "naive", "concurrent", c.Queues.JobQueueBackend)
	}
	if c.Queues.NDatagram == 0 {
		return fmt.Errorf("queues.n_datagram must be >= 1")
	}
	if c.Queues.NDatagramMaxByte == 0 {
		return fmt.Errorf("queues.n_datagram_max_byte must be > 0")
	}
	if len(c.Ingress.Connections) == 0 && !c.Hardware.Simulate {
		return fmt.Errorf("ingress.connections must contain at least one entry for a non-simulated device")
	}
	for i, conn := range c.Ingress.Connections {
		if conn.Kind != "udp" && conn.Kind != "tun" {
			return fmt.Errorf("ingress.connections[%d].kind must be %q or %q, got %q", i, "udp", "tun", conn.Kind)
		}
		if conn.Addr == "" {
			return fmt.Errorf("ingress.connections[%d].addr must not be empty", i)
		}
	}
	if c.PpsSync.Mode != "zero" && c.PpsSync.Mode != "tai_now" {
		return fmt.Errorf("ppssync.mode must be %q or %q, got %q", "zero", "tai_now", c.PpsSync.Mode)
	}
	if c.PpsSync.NofParticipants == 0 {
		return fmt.Errorf("ppssync.nof_participants must be >= 1")
	}
	return nil
}
