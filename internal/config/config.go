// Package config handles node configuration and command-line argument parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/bmatcuk/doublestar/v4"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/joe/peersync/internal/store"
)

// Exported constants.
const (
	// DefaultLowWaterMark is the buffered amount above which chunk sends wait.
	DefaultLowWaterMark = 1 << 20
)

// Exported variables.
var (
	ErrFolderRequired  = errors.New("folder path is required")
	ErrInvalidPattern  = errors.New("invalid ignore pattern")
	ErrLogFileRequired = errors.New("a log file is required while the monitor owns the terminal")
)

// Role selects which side of the pairing exchange this node plays.
type Role int

const (
	// RoleOffer creates the connection and prints the first pairing code.
	RoleOffer Role = iota
	// RoleAnswer reads the offer code and replies with its own.
	RoleAnswer
)

// String returns the flag spelling of the role.
func (r Role) String() string {
	switch r {
	case RoleOffer:
		return "offer"
	case RoleAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "offer", "o":
		return RoleOffer, nil
	case "answer", "a":
		return RoleAnswer, nil
	default:
		return RoleOffer, fmt.Errorf("invalid role: %s (valid: offer, answer)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for go-arg
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// LogFormat selects the log encoder.
type LogFormat int

const (
	// LogConsole writes human-readable lines.
	LogConsole LogFormat = iota
	// LogJSON writes one JSON object per line.
	LogJSON
)

// String returns the flag spelling of the format.
func (f LogFormat) String() string {
	switch f {
	case LogConsole:
		return "console"
	case LogJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseLogFormat parses a log format name.
func ParseLogFormat(s string) (LogFormat, error) {
	switch strings.ToLower(s) {
	case "console", "text":
		return LogConsole, nil
	case "json":
		return LogJSON, nil
	default:
		return LogConsole, fmt.Errorf("invalid log format: %s (valid: console, json)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for go-arg
func (f *LogFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseLogFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Config holds the node configuration
type Config struct {
	Role         Role          `arg:"-r,--role" default:"offer" help:"Pairing role: offer|answer"`
	Folder       string        `arg:"-f,--folder" help:"Folder to sync: a local directory or sftp://user@host[:port]/path"`
	StateFile    string        `arg:"--state" help:"Where the folder list is kept (default: user config dir)"`
	Ignore       []string      `arg:"-x,--ignore,separate" help:"Glob pattern of files to leave out (repeatable)"`
	STUNServers  []string      `arg:"--stun,separate" help:"ICE server URL (repeatable, default: public Google STUN)"`
	LowWaterMark uint64        `arg:"--low-water-mark" default:"1048576" help:"Buffered bytes above which chunk sends wait"`
	StallTimeout time.Duration `arg:"--stall-timeout" help:"Revert transfers without progress for this long (0 = never)"`
	MetricsAddr  string        `arg:"--metrics-addr" help:"Serve Prometheus metrics on this address, e.g. :9090"`
	LogLevel     string        `arg:"--log-level" default:"info" help:"Log level: debug|info|warn|error"`
	LogFormat    LogFormat     `arg:"--log-format" default:"console" help:"Log format: console|json"`
	LogFile      string        `arg:"--log-file" help:"Write logs to this file (required with the monitor)"`
	Headless     bool          `arg:"--headless" help:"Log status instead of running the terminal monitor"`
}

// Description returns the program description for go-arg
func (Config) Description() string {
	return "Keep a folder identical on two devices over a direct peer-to-peer channel"
}

// Version returns the version string for go-arg
func (Config) Version() string {
	return "peersync 1.0.0"
}

// ParseFlags parses command-line flags and returns configuration
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	arg.MustParse(cfg)

	return PostProcessConfig(cfg)
}

// PostProcessConfig fills derived defaults and validates a parsed config
func PostProcessConfig(cfg *Config) (*Config, error) {
	if err := cfg.expandHome(); err != nil {
		return nil, err
	}

	if cfg.StateFile == "" {
		path, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfg.StateFile = path
	}

	if cfg.LowWaterMark == 0 {
		cfg.LowWaterMark = DefaultLowWaterMark
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandHome resolves a leading ~ in local paths.
func (cfg *Config) expandHome() error {
	paths := []*string{&cfg.StateFile, &cfg.LogFile}
	if !strings.HasPrefix(cfg.Folder, "sftp://") {
		paths = append(paths, &cfg.Folder)
	}

	for _, path := range paths {
		expanded, err := homedir.Expand(*path)
		if err != nil {
			return fmt.Errorf("failed to expand %q: %w", *path, err)
		}

		*path = expanded
	}

	return nil
}

// Validate checks flag combinations and the folder location.
func (cfg *Config) Validate() error {
	if err := cfg.ValidatePaths(); err != nil {
		return err
	}

	for _, pattern := range cfg.Ignore {
		if err := ValidateFilePattern(pattern); err != nil {
			return err
		}
	}

	if !cfg.Headless && cfg.LogFile == "" {
		return ErrLogFileRequired
	}

	return nil
}

// ValidatePaths checks that the folder is an existing local directory or a
// well-formed sftp URL.
func (cfg *Config) ValidatePaths() error {
	if cfg.Folder == "" {
		return ErrFolderRequired
	}

	if strings.HasPrefix(cfg.Folder, "sftp://") {
		return validateSFTPURL(cfg.Folder)
	}

	info, err := os.Stat(cfg.Folder)
	if os.IsNotExist(err) {
		return fmt.Errorf("folder does not exist: %s", cfg.Folder)
	}
	if err != nil {
		return fmt.Errorf("cannot access folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("folder is not a directory: %s", cfg.Folder)
	}

	return nil
}

// ValidateFilePattern reports whether pattern is a usable doublestar glob.
// The empty pattern is accepted and matches nothing.
func ValidateFilePattern(pattern string) error {
	if pattern == "" {
		return nil
	}

	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}

	return nil
}

// validateSFTPURL does a cheap shape check; the connection itself is made later.
func validateSFTPURL(url string) error {
	rest := strings.TrimPrefix(url, "sftp://")

	slash := strings.Index(rest, "/")
	authority := rest
	if slash >= 0 {
		authority = rest[:slash]
	}

	if !strings.Contains(authority, "@") {
		return fmt.Errorf("SFTP URL must include username (sftp://user@host/path): %s", url)
	}

	if slash < 0 {
		return fmt.Errorf("SFTP URL must include path (sftp://user@host/path): %s", url)
	}

	return nil
}
