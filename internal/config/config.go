package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/hashhistory/internal/errors"
	"github.com/vango-dev/hashhistory/pkg/pathcoder"
	"github.com/vango-dev/hashhistory/pkg/statestore"
)

// ConfigFileNames are searched by Load, in order.
var ConfigFileNames = []string{
	"hashhistory.json",
	"hashhistory.toml",
	"hashhistory.yaml",
	"hashhistory.yml",
}

const (
	DefaultQueryKey    = "_k"
	DefaultHashType    = pathcoder.DefaultName
	DefaultStateAPI    = StateAPIAuto
	DefaultBackend     = BackendMemory
	DefaultAddr        = ":8080"
	DefaultWSPath      = "/ws"
	DefaultNamespace   = "hashhistory"
	DefaultLogLevel    = "info"
	DefaultS3Region    = "us-east-1"
	DefaultS3KeyPrefix = "hashhistory/"
)

// State API modes.
const (
	StateAPIAuto = "auto"
	StateAPIOn   = "on"
	StateAPIOff  = "off"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendS3     = "s3"
)

// Environment overrides.
const (
	EnvQueryKey = "HASHHISTORY_QUERY_KEY"
	EnvAddr     = "HASHHISTORY_ADDR"
	EnvS3Bucket = "HASHHISTORY_S3_BUCKET"
)

// Config is the complete project configuration.
type Config struct {
	// QueryKey is the fragment query parameter carrying state keys.
	QueryKey string `json:"queryKey" toml:"queryKey" yaml:"queryKey"`

	// HashType names a built-in path coder.
	HashType string `json:"hashType" toml:"hashType" yaml:"hashType"`

	// CoderScript is a Lua file defining encode/decode. It takes precedence
	// over HashType.
	CoderScript string `json:"coderScript,omitempty" toml:"coderScript,omitempty" yaml:"coderScript,omitempty"`

	// StateAPI is auto, on or off. off forces state through storage even
	// when the browser supports pushState.
	StateAPI string `json:"stateApi" toml:"stateApi" yaml:"stateApi"`

	Storage StorageConfig `json:"storage" toml:"storage" yaml:"storage"`
	Server  ServerConfig  `json:"server" toml:"server" yaml:"server"`
	Metrics MetricsConfig `json:"metrics" toml:"metrics" yaml:"metrics"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"logLevel" toml:"logLevel" yaml:"logLevel"`

	configPath string
}

// StorageConfig configures persisted state.
type StorageConfig struct {
	// Backend is memory or s3.
	Backend string `json:"backend" toml:"backend" yaml:"backend"`

	// Prefix is prepended to every state key (default "@@History/").
	Prefix string `json:"prefix" toml:"prefix" yaml:"prefix"`

	// TTL expires saved states, e.g. "24h". Empty keeps them forever.
	TTL string `json:"ttl,omitempty" toml:"ttl,omitempty" yaml:"ttl,omitempty"`

	S3 S3Config `json:"s3" toml:"s3" yaml:"s3"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Bucket   string `json:"bucket,omitempty" toml:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region   string `json:"region,omitempty" toml:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" toml:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// KeyPrefix is prepended to object keys (default "hashhistory/").
	KeyPrefix string `json:"keyPrefix,omitempty" toml:"keyPrefix,omitempty" yaml:"keyPrefix,omitempty"`

	// UsePathStyle selects path-style addressing, needed by most
	// S3-compatible servers.
	UsePathStyle bool `json:"usePathStyle,omitempty" toml:"usePathStyle,omitempty" yaml:"usePathStyle,omitempty"`
}

// ServerConfig configures the websocket bridge server.
type ServerConfig struct {
	Addr   string `json:"addr" toml:"addr" yaml:"addr"`
	WSPath string `json:"wsPath" toml:"wsPath" yaml:"wsPath"`

	// Metrics serves /metrics.
	Metrics bool `json:"metrics" toml:"metrics" yaml:"metrics"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Namespace string `json:"namespace" toml:"namespace" yaml:"namespace"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		QueryKey: DefaultQueryKey,
		HashType: DefaultHashType,
		StateAPI: DefaultStateAPI,
		Storage: StorageConfig{
			Backend: DefaultBackend,
			Prefix:  statestore.DefaultKeyPrefix,
			S3: S3Config{
				Region:    DefaultS3Region,
				KeyPrefix: DefaultS3KeyPrefix,
			},
		},
		Server: ServerConfig{
			Addr:    DefaultAddr,
			WSPath:  DefaultWSPath,
			Metrics: true,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Load loads the first configuration file found in dir.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E109").
		WithDetailf("No hashhistory.json, hashhistory.toml or hashhistory.yaml found in %s", dir).
		WithSuggestion("Run 'hashhist init' to write a default configuration")
}

// LoadFile loads a configuration file, applies defaults and environment
// overrides, and validates the result.
func LoadFile(path string) (*Config, error) {
	format := formatOf(path)
	if format == "" {
		return nil, errors.New("E101").WithDetailf("Cannot read %s: unknown extension %q", path, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E109").WithDetailf("%s does not exist", path)
		}
		return nil, errors.New("E100").Wrap(err)
	}

	cfg := New()
	if err := decode(format, data, cfg); err != nil {
		e := errors.New("E100").
			WithDetailf("Failed to parse %s", filepath.Base(path)).
			WithSuggestionf("Check that %s is valid %s", filepath.Base(path), strings.ToUpper(format)).
			Wrap(err)
		if line, col := errorPosition(format, data, err); line > 0 {
			e.WithLocation(path, line, col)
		}
		return nil, e
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}

func decode(format string, data []byte, cfg *Config) error {
	switch format {
	case "toml":
		return toml.Unmarshal(data, cfg)
	case "yaml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// errorPosition extracts a 1-based line and column from a decode error.
func errorPosition(format string, data []byte, err error) (line, col int) {
	switch format {
	case "toml":
		var de *toml.DecodeError
		if stderrors.As(err, &de) {
			return de.Position()
		}
	case "yaml":
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			line, _ = strconv.Atoi(m[1])
			return line, 0
		}
	default:
		var se *json.SyntaxError
		if stderrors.As(err, &se) {
			return offsetPosition(data, se.Offset)
		}
		var te *json.UnmarshalTypeError
		if stderrors.As(err, &te) {
			return offsetPosition(data, te.Offset)
		}
	}
	return 0, 0
}

func offsetPosition(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := data[:offset]
	line = bytes.Count(before, []byte("\n")) + 1
	col = int(offset) - bytes.LastIndexByte(before, '\n') - 1
	if col < 1 {
		col = 1
	}
	return line, col
}

// ApplyEnv applies the HASHHISTORY_* environment overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvQueryKey); v != "" {
		c.QueryKey = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvS3Bucket); v != "" {
		c.Storage.S3.Bucket = v
		if c.Storage.Backend == BackendMemory {
			c.Storage.Backend = BackendS3
		}
	}
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path in the format its extension
// names.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch formatOf(path) {
	case "json":
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	case "toml":
		data, err = toml.Marshal(c)
	case "yaml":
		data, err = yaml.Marshal(c)
	default:
		return errors.New("E101").WithDetailf("Cannot write %s: unknown extension %q", path, filepath.Ext(path))
	}
	if err != nil {
		return errors.New("E100").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E100").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the file the configuration was loaded from or saved to.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the configuration file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills fields a file set to empty values.
func (c *Config) applyDefaults() {
	if c.QueryKey == "" {
		c.QueryKey = DefaultQueryKey
	}
	if c.HashType == "" {
		c.HashType = DefaultHashType
	}
	if c.StateAPI == "" {
		c.StateAPI = DefaultStateAPI
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = statestore.DefaultKeyPrefix
	}
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = DefaultS3Region
	}
	if c.Storage.S3.KeyPrefix == "" {
		c.Storage.S3.KeyPrefix = DefaultS3KeyPrefix
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

var queryKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var reservedPaths = map[string]bool{
	"/":          true,
	"/client.js": true,
	"/healthz":   true,
	"/metrics":   true,
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !queryKeyPattern.MatchString(c.QueryKey) {
		return errors.New("E103").WithDetailf("queryKey %q is not a valid parameter name", c.QueryKey)
	}
	if c.CoderScript == "" {
		if _, err := pathcoder.Lookup(c.HashType); err != nil {
			return errors.New("E102").
				WithSuggestionf("Use one of: %s", strings.Join(pathcoder.Names(), ", ")).
				Wrap(err)
		}
	}
	switch c.StateAPI {
	case StateAPIAuto, StateAPIOn, StateAPIOff:
	default:
		return errors.New("E104").WithDetailf("stateApi is %q; use auto, on or off", c.StateAPI)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("E106").WithSuggestionf("Set storage.s3.bucket or %s", EnvS3Bucket)
		}
	default:
		return errors.New("E105").WithDetailf("storage.backend is %q; use memory or s3", c.Storage.Backend)
	}
	if _, err := c.TTL(); err != nil {
		return errors.New("E108").WithDetailf("storage.ttl %q: %v", c.Storage.TTL, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return errors.New("E107").Wrap(err)
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") || reservedPaths[c.Server.WSPath] {
		return errors.New("E401").WithDetailf("server.wsPath %q is not usable", c.Server.WSPath)
	}
	return nil
}

// TTL returns the parsed storage TTL; zero means no expiry.
func (c *Config) TTL() (time.Duration, error) {
	if c.Storage.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Storage.TTL)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, stderrors.New("negative duration")
	}
	return d, nil
}

// SlogLevel returns LogLevel as a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// CoderScriptPath resolves CoderScript against the configuration's
// directory.
func (c *Config) CoderScriptPath() string {
	if c.CoderScript == "" || filepath.IsAbs(c.CoderScript) {
		return c.CoderScript
	}
	return filepath.Join(c.Dir(), c.CoderScript)
}
