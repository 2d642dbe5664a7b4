package config

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/hashhistory/internal/errors"
)

const sampleJSON = `{
  "queryKey": "h",
  "hashType": "hashbang",
  "stateApi": "off",
  "storage": {
    "backend": "s3",
    "prefix": "app/",
    "ttl": "24h",
    "s3": {
      "bucket": "history",
      "region": "eu-west-1",
      "endpoint": "http://localhost:9000",
      "usePathStyle": true
    }
  },
  "server": {"addr": ":9090", "wsPath": "/bridge", "metrics": false},
  "metrics": {"namespace": "app"},
  "logLevel": "debug"
}
`

const sampleTOML = `queryKey = "h"
hashType = "hashbang"
stateApi = "off"
logLevel = "debug"

[storage]
backend = "s3"
prefix = "app/"
ttl = "24h"

[storage.s3]
bucket = "history"
region = "eu-west-1"
endpoint = "http://localhost:9000"
usePathStyle = true

[server]
addr = ":9090"
wsPath = "/bridge"
metrics = false

[metrics]
namespace = "app"
`

const sampleYAML = `queryKey: h
hashType: hashbang
stateApi: "off"
logLevel: debug
storage:
  backend: s3
  prefix: app/
  ttl: 24h
  s3:
    bucket: history
    region: eu-west-1
    endpoint: http://localhost:9000
    usePathStyle: true
server:
  addr: ":9090"
  wsPath: /bridge
  metrics: false
metrics:
  namespace: app
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvQueryKey, EnvAddr, EnvS3Bucket} {
		t.Setenv(key, "")
	}
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.QueryKey != DefaultQueryKey {
		t.Errorf("QueryKey = %q, want %q", cfg.QueryKey, DefaultQueryKey)
	}
	if cfg.HashType != "slash" {
		t.Errorf("HashType = %q, want %q", cfg.HashType, "slash")
	}
	if cfg.Storage.Prefix != "@@History/" {
		t.Errorf("Storage.Prefix = %q, want %q", cfg.Storage.Prefix, "@@History/")
	}
	if !cfg.Server.Metrics {
		t.Error("Server.Metrics should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error on defaults: %v", err)
	}
}

func TestLoadFile_FormatsAgree(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	fromJSON, err := LoadFile(writeFile(t, dir, "hashhistory.json", sampleJSON))
	if err != nil {
		t.Fatalf("LoadFile(json) error: %v", err)
	}
	fromTOML, err := LoadFile(writeFile(t, dir, "hashhistory.toml", sampleTOML))
	if err != nil {
		t.Fatalf("LoadFile(toml) error: %v", err)
	}
	fromYAML, err := LoadFile(writeFile(t, dir, "hashhistory.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("LoadFile(yaml) error: %v", err)
	}

	if fromJSON.Storage.S3.Bucket != "history" || fromJSON.Server.Metrics || fromJSON.StateAPI != StateAPIOff {
		t.Fatalf("json config = %+v", fromJSON)
	}
	// defaults fill what the files omit
	if fromJSON.Storage.S3.KeyPrefix != DefaultS3KeyPrefix {
		t.Errorf("Storage.S3.KeyPrefix = %q, want default", fromJSON.Storage.S3.KeyPrefix)
	}

	for name, cfg := range map[string]*Config{"toml": fromTOML, "yaml": fromYAML} {
		cfg.configPath = fromJSON.configPath
		if !reflect.DeepEqual(cfg, fromJSON) {
			t.Errorf("%s config differs from json:\n got %+v\nwant %+v", name, cfg, fromJSON)
		}
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(dir)
	if !stderrors.Is(err, errors.New("E109")) {
		t.Fatalf("Load() on empty dir error = %v, want E109", err)
	}

	writeFile(t, dir, "hashhistory.yml", "queryKey: q\n")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.QueryKey != "q" || cfg.HashType != DefaultHashType {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), dir)
	}

	// json wins over yaml
	writeFile(t, dir, "hashhistory.json", `{"queryKey": "j"}`)
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.QueryKey != "j" {
		t.Errorf("QueryKey = %q, want %q", cfg.QueryKey, "j")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		content  string
		code     string
		wantLine int
	}{
		{"unknown extension", "hashhistory.ini", "x=1", "E101", 0},
		{"json syntax", "bad.json", "{\n  \"queryKey\": \"h\",\n  oops\n}", "E100", 3},
		{"toml syntax", "bad.toml", "queryKey = \"h\"\nhashType = \n", "E100", 2},
		{"yaml syntax", "bad.yaml", "queryKey: h\nstorage: [\n", "E100", 0},
		{"unknown hash type", "c.json", `{"hashType": "slashy"}`, "E102", 0},
		{"bad query key", "c.json", `{"queryKey": "a b"}`, "E103", 0},
		{"bad state api", "c.json", `{"stateApi": "sometimes"}`, "E104", 0},
		{"bad backend", "c.json", `{"storage": {"backend": "redis"}}`, "E105", 0},
		{"s3 without bucket", "c.json", `{"storage": {"backend": "s3"}}`, "E106", 0},
		{"bad log level", "c.json", `{"logLevel": "loud"}`, "E107", 0},
		{"bad ttl", "c.json", `{"storage": {"ttl": "soon"}}`, "E108", 0},
		{"negative ttl", "c.json", `{"storage": {"ttl": "-1h"}}`, "E108", 0},
		{"reserved ws path", "c.json", `{"server": {"wsPath": "/healthz"}}`, "E401", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			_, err := LoadFile(path)

			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("LoadFile() error = %v, want *errors.Error", err)
			}
			if e.Code != tt.code {
				t.Fatalf("Code = %q, want %q (%v)", e.Code, tt.code, err)
			}
			if tt.wantLine > 0 {
				if e.Location == nil || e.Location.Line != tt.wantLine {
					t.Fatalf("Location = %v, want line %d", e.Location, tt.wantLine)
				}
			}
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "hashhistory.toml"))
	if !stderrors.Is(err, errors.New("E109")) {
		t.Fatalf("LoadFile() error = %v, want E109", err)
	}
}

func TestLoadFile_CoderScriptSkipsHashType(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "hashhistory.json", `{"hashType": "custom", "coderScript": "coder.lua"}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if got, want := cfg.CoderScriptPath(), filepath.Join(dir, "coder.lua"); got != want {
		t.Errorf("CoderScriptPath() = %q, want %q", got, want)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvQueryKey, "envkey")
	t.Setenv(EnvAddr, "127.0.0.1:7000")
	t.Setenv(EnvS3Bucket, "env-bucket")

	dir := t.TempDir()
	cfg, err := LoadFile(writeFile(t, dir, "hashhistory.json", `{"queryKey": "filekey"}`))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if cfg.QueryKey != "envkey" {
		t.Errorf("QueryKey = %q, want %q", cfg.QueryKey, "envkey")
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Storage.S3.Bucket != "env-bucket" || cfg.Storage.Backend != BackendS3 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	want := New()
	want.QueryKey = "h"
	want.Storage.TTL = "30m"
	want.Server.Metrics = false

	for _, name := range []string{"out.json", "out.toml", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := want.SaveTo(path); err != nil {
				t.Fatalf("SaveTo() error: %v", err)
			}
			if want.Path() != path {
				t.Errorf("Path() = %q, want %q", want.Path(), path)
			}

			got, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error: %v", err)
			}
			if got.QueryKey != "h" || got.Storage.TTL != "30m" || got.Server.Metrics {
				t.Errorf("round trip = %+v", got)
			}
		})
	}

	if err := want.SaveTo(filepath.Join(dir, "out.ini")); !stderrors.Is(err, errors.New("E101")) {
		t.Errorf("SaveTo(.ini) error = %v, want E101", err)
	}
}

func TestSave_WithoutPath(t *testing.T) {
	if err := New().Save(); err == nil {
		t.Fatal("Save() without a path should fail")
	}
}

func TestAccessors(t *testing.T) {
	cfg := New()

	if d, err := cfg.TTL(); err != nil || d != 0 {
		t.Errorf("TTL() = %v, %v; want 0, nil", d, err)
	}
	cfg.Storage.TTL = "90m"
	if d, err := cfg.TTL(); err != nil || d != 90*time.Minute {
		t.Errorf("TTL() = %v, %v", d, err)
	}

	cfg.LogLevel = "WARN"
	if level, err := cfg.SlogLevel(); err != nil || level != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}

	cfg.CoderScript = "/abs/coder.lua"
	if cfg.CoderScriptPath() != "/abs/coder.lua" {
		t.Errorf("CoderScriptPath() = %q", cfg.CoderScriptPath())
	}
}

func TestValidate_HashTypeSuggestion(t *testing.T) {
	cfg := New()
	cfg.HashType = "slashy"

	var e *errors.Error
	if !stderrors.As(cfg.Validate(), &e) {
		t.Fatal("Validate() should return *errors.Error")
	}
	if !strings.Contains(e.Suggestion, "noslash") {
		t.Errorf("Suggestion = %q, want the coder names", e.Suggestion)
	}
}
