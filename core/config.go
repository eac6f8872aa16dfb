package core

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the forwarder's full configuration, loaded from a YAML file.
type Config struct {
	// Port is the UDP/IPv4 listen port. Default 9000.
	Port int `yaml:"port"`

	// MgmtPort is the TCP management control socket port.
	MgmtPort int `yaml:"mgmt_port"`

	// Transport selects the default face transport: "udp" or "websocket".
	Transport string `yaml:"transport"`

	// ChunkSize is the maximum payload bytes carried per chunk before the
	// ChunkLayer fragments a Content object.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkTimeout bounds how long ChunkLayer waits for a missing chunk
	// during reassembly before aborting with a Nack.
	ChunkTimeout time.Duration `yaml:"chunk_timeout"`

	// PitTimeout is the maximum age of a PIT entry before ageing evicts it.
	PitTimeout time.Duration `yaml:"pit_timeout"`

	// CsTTL is the maximum age of a CS entry before ageing evicts it.
	CsTTL time.Duration `yaml:"cs_ttl"`

	// CsCapacity bounds the number of entries the Content Store holds.
	CsCapacity int `yaml:"cs_capacity"`

	// KeepaliveTimeoutInterval is how long a keep-alive dict entry can go
	// unrefreshed before TimeoutPrevention gives up on the upstream peer.
	// Must be >= AgeingInterval.
	KeepaliveTimeoutInterval time.Duration `yaml:"keepalive_timeout_interval"`

	// AgeingInterval is the period of every layer's ageing ticker.
	AgeingInterval time.Duration `yaml:"ageing_interval"`

	// InterestToApp controls whether unmatched NFN Interests with no FIB
	// route are handed to the local NFN layer instead of Nacked.
	InterestToApp bool `yaml:"interest_to_app"`

	// Executors maps a key to an executor backend name. Only the
	// "default" entry is read: the forwarder builds a single executor
	// from it for every computation, and entries under any other key
	// (such as a language tag like "PYTHON") are ignored.
	Executors map[string]string `yaml:"executors"`

	// ExecutorWorkers sizes the NFN executor worker pool. Zero means
	// GOMAXPROCS.
	ExecutorWorkers int `yaml:"executor_workers"`

	// ExecutorDeadline bounds a single executor invocation.
	ExecutorDeadline time.Duration `yaml:"executor_deadline"`

	// CodeCacheDir is the Badger directory used to cache installed
	// executor code by content hash. Empty disables the on-disk cache;
	// the in-memory cache is kept either way.
	CodeCacheDir string `yaml:"code_cache_dir"`

	// AuditDBPath is the sqlite database file the management surface
	// appends its command audit log to. Empty disables auditing.
	AuditDBPath string `yaml:"audit_db_path"`

	// ComputationGrace is how long a FINISHED or FAILED NFN computation
	// lingers in the table before ageing removes it, so a retransmitted
	// Interest for the same name can still be answered from the result
	// without recomputing.
	ComputationGrace time.Duration `yaml:"computation_grace"`

	// LogLevel is one of TRACE, DEBUG, INFO, WARN, ERROR, FATAL.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the forwarder's built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:                     9000,
		MgmtPort:                 9001,
		Transport:                "udp",
		ChunkSize:                4096,
		ChunkTimeout:             4 * time.Second,
		PitTimeout:               4 * time.Second,
		CsTTL:                    10 * time.Second,
		CsCapacity:               1024,
		KeepaliveTimeoutInterval: 2 * time.Second,
		AgeingInterval:           1 * time.Second,
		InterestToApp:            false,
		Executors:                map[string]string{},
		ExecutorWorkers:          0,
		ExecutorDeadline:         30 * time.Second,
		ComputationGrace:         10 * time.Second,
		LogLevel:                 "INFO",
	}
}

// ReadYaml loads config from a YAML file at path, overlaying it on top of
// whatever defaults are already set.
func ReadYaml(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the cross-field invariants the configuration requires:
// keepalive_timeout_interval must be >= ageing_interval, and chunk_size
// must be positive.
func (c *Config) Validate() error {
	if c.KeepaliveTimeoutInterval < c.AgeingInterval {
		return fmt.Errorf("keepalive_timeout_interval (%s) must be >= ageing_interval (%s)",
			c.KeepaliveTimeoutInterval, c.AgeingInterval)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	return nil
}
