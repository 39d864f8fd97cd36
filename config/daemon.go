package config

import (
	"fmt"
	"os"

	"github.com/lytics/confl"
)

// DaemonConfig is the sqliterelayd process config: which database file to
// open, where to listen, and how to reach the etcd cluster that arbitrates
// leadership.
type DaemonConfig struct {
	// LogLevel is one of [debug,info,warn,error].
	LogLevel string `json:"log_level"`
	// SQLitePath is the embedded database file this node opens when it
	// becomes leader.
	SQLitePath string `json:"sqlite_path"`
	// ListenAddr is the address this node binds for followers when it
	// becomes leader.
	ListenAddr string `json:"listen_addr"`
	// SelfAddr is the address this node advertises to etcd as the leader
	// value; usually equal to ListenAddr, distinct when behind a NAT/LB.
	SelfAddr string `json:"self_addr"`
	// Etcd lists the coordination cluster's client endpoints.
	Etcd []string `json:"etcd"`
	// ElectionKey namespaces the leader election to one logical database.
	ElectionKey string `json:"election_key"`
	// DefaultTimeoutMs is the default command timeout in milliseconds.
	DefaultTimeoutMs int `json:"default_timeout_ms"`
}

// LoadDaemonConfigFromFile reads a confl-formatted config file from disk,
// expanding environment variables first.
func LoadDaemonConfigFromFile(filename string) (*DaemonConfig, error) {
	confBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", filename, err)
	}
	return LoadDaemonConfig(string(confBytes))
}

// LoadDaemonConfig parses a confl-formatted string, expanding environment
// variables, assuming it came from a file or was passed in directly.
func LoadDaemonConfig(conf string) (*DaemonConfig, error) {
	var c DaemonConfig
	if _, err := confl.Decode(os.ExpandEnv(conf), &c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ElectionKey == "" {
		c.ElectionKey = "/sqliterelay/leader"
	}
	return &c, nil
}
