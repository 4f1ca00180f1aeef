package appconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.ListenAddr != "127.0.0.1:8190" {
		t.Errorf("Default ListenAddr = %q; want %q", cfg.ListenAddr, "127.0.0.1:8190")
	}

	if cfg.Model.URL != DefaultModelURL {
		t.Errorf("Default Model.URL = %q; want %q", cfg.Model.URL, DefaultModelURL)
	}

	if cfg.Model.InputName != "pixel_values" {
		t.Errorf("Default Model.InputName = %q; want %q", cfg.Model.InputName, "pixel_values")
	}

	if cfg.Model.OutputName != "logits" {
		t.Errorf("Default Model.OutputName = %q; want %q", cfg.Model.OutputName, "logits")
	}

	if cfg.Model.LoadMaxAttempts != 3 {
		t.Errorf("Default LoadMaxAttempts = %d; want 3", cfg.Model.LoadMaxAttempts)
	}

	if cfg.Model.LoadRetryDelaySeconds != 2 {
		t.Errorf("Default LoadRetryDelaySeconds = %d; want 2", cfg.Model.LoadRetryDelaySeconds)
	}

	if cfg.JWTSecret == "" {
		t.Error("Default JWTSecret should not be empty")
	}
}

// TestDefaultDBPath verifies the database path generation
func TestDefaultDBPath(t *testing.T) {
	path := DefaultDBPath()

	if filepath.Base(path) != "smartcrop.db" {
		t.Errorf("Default DB path should end with 'smartcrop.db'; got %q", path)
	}
}

// TestGetSet verifies Get/Set functions for in-memory config
func TestGetSet(t *testing.T) {
	// Save original and restore after test
	original := Get()
	defer Set(original)

	testConfig := Config{
		DBPath:     "/test/path/db.sqlite",
		ListenAddr: "127.0.0.1:9999",
	}
	testConfig.Model.URL = "https://example.com/model.onnx"

	Set(testConfig)

	retrieved := Get()

	if retrieved.DBPath != testConfig.DBPath {
		t.Errorf("Get().DBPath = %q; want %q", retrieved.DBPath, testConfig.DBPath)
	}
	if retrieved.ListenAddr != testConfig.ListenAddr {
		t.Errorf("Get().ListenAddr = %q; want %q", retrieved.ListenAddr, testConfig.ListenAddr)
	}
	if retrieved.Model.URL != testConfig.Model.URL {
		t.Errorf("Get().Model.URL = %q; want %q", retrieved.Model.URL, testConfig.Model.URL)
	}
}

// TestLoadCreatesDefaults verifies that Load writes a default config when the
// file is missing and fills in missing fields on subsequent loads.
func TestLoadCreatesDefaults(t *testing.T) {
	original := Get()
	defer Set(original)

	dir := t.TempDir()
	configPathOverride = filepath.Join(dir, "config.json")
	defer func() { configPathOverride = "" }()

	c, path, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != configPathOverride {
		t.Errorf("Load() path = %q; want %q", path, configPathOverride)
	}
	if c.Model.URL != DefaultModelURL {
		t.Errorf("Load() Model.URL = %q; want default", c.Model.URL)
	}
	if _, err := os.Stat(configPathOverride); err != nil {
		t.Errorf("Load() should have created config file: %v", err)
	}

	// Partial file gets missing fields merged in.
	partial := `{"listenAddr": "127.0.0.1:7777"}`
	if err := os.WriteFile(configPathOverride, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}
	c, _, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.ListenAddr != "127.0.0.1:7777" {
		t.Errorf("Load() ListenAddr = %q; want %q", c.ListenAddr, "127.0.0.1:7777")
	}
	if c.Model.InputName != "pixel_values" {
		t.Errorf("Load() should merge default input name; got %q", c.Model.InputName)
	}
}

// TestSavePreservesUnknownKeys verifies Save merges over existing JSON.
func TestSavePreservesUnknownKeys(t *testing.T) {
	original := Get()
	defer Set(original)

	dir := t.TempDir()
	configPathOverride = filepath.Join(dir, "config.json")
	defer func() { configPathOverride = "" }()

	existing := `{"customKey": "kept", "listenAddr": "old"}`
	if err := os.WriteFile(configPathOverride, []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}

	c := defaultConfig()
	c.ListenAddr = "127.0.0.1:8000"
	if _, err := Save(c); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(configPathOverride)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["customKey"]) != `"kept"` {
		t.Errorf("Save() dropped unknown key; got %s", raw["customKey"])
	}
	if string(raw["listenAddr"]) != `"127.0.0.1:8000"` {
		t.Errorf("Save() did not update listenAddr; got %s", raw["listenAddr"])
	}
}

// TestIsJSONObject tests the JSON object detection helper
func TestIsJSONObject(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{`{}`, true},
		{`{"key": "value"}`, true},
		{`  {  }  `, true},
		{`[]`, false},
		{`"string"`, false},
		{`123`, false},
		{`null`, false},
		{``, false},
	}

	for _, tt := range tests {
		result := isJSONObject([]byte(tt.input))
		if result != tt.expected {
			t.Errorf("isJSONObject(%q) = %v; want %v", tt.input, result, tt.expected)
		}
	}
}

// TestDeepMergeJSON tests the JSON merge functionality
func TestDeepMergeJSON(t *testing.T) {
	tests := []struct {
		name     string
		dst      string
		src      string
		expected string
	}{
		{
			name:     "Simple merge",
			dst:      `{"a": "1"}`,
			src:      `{"b": "2"}`,
			expected: `{"a":"1","b":"2"}`,
		},
		{
			name:     "Override value",
			dst:      `{"a": "1"}`,
			src:      `{"a": "2"}`,
			expected: `{"a":"2"}`,
		},
		{
			name:     "Nested merge",
			dst:      `{"nested": {"a": "1"}}`,
			src:      `{"nested": {"b": "2"}}`,
			expected: `{"nested":{"a":"1","b":"2"}}`,
		},
		{
			name:     "Add new nested",
			dst:      `{"a": "1"}`,
			src:      `{"nested": {"b": "2"}}`,
			expected: `{"a":"1","nested":{"b":"2"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst map[string]json.RawMessage
			var src map[string]json.RawMessage

			json.Unmarshal([]byte(tt.dst), &dst)
			json.Unmarshal([]byte(tt.src), &src)

			deepMergeJSON(dst, src)

			result, _ := json.Marshal(dst)

			var resultMap, expectedMap map[string]interface{}
			json.Unmarshal(result, &resultMap)
			json.Unmarshal([]byte(tt.expected), &expectedMap)

			if !mapsEqual(resultMap, expectedMap) {
				t.Errorf("deepMergeJSON result = %s; want %s", result, tt.expected)
			}
		})
	}
}

// mapsEqual compares two maps recursively
func mapsEqual(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !valuesEqual(v, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok {
			return false
		}
		return mapsEqual(av, bv)
	default:
		return a == b
	}
}
