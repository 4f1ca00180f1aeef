package appconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/smartcrop/smartcrop/platform"
)

// ModelConfig holds settings for the crop disease model artifact and session.
type ModelConfig struct {
	// URL is where the serialized model graph is fetched from. Supports
	// http(s)://, s3://bucket/key, or a plain local file path.
	URL string `json:"url"`

	// CachePath is the local path the fetched artifact is stored at.
	CachePath string `json:"cachePath"`

	// Path to the onnxruntime shared library (.dll/.so/.dylib). If empty, the
	// environment variable ONNXRUNTIME_SHARED_LIBRARY_PATH will be respected.
	ORTSharedLibraryPath string `json:"ortSharedLibraryPath"`

	// Input and output tensor names in the model graph.
	InputName  string `json:"inputName"`
	OutputName string `json:"outputName"`

	// Bounded retry policy for model load attempts.
	LoadMaxAttempts       int `json:"loadMaxAttempts"`
	LoadRetryDelaySeconds int `json:"loadRetryDelaySeconds"`
}

// Config holds application configuration including database path, server
// address, and model settings.
type Config struct {
	DBPath     string `json:"dbPath"`
	ListenAddr string `json:"listenAddr"`

	Model ModelConfig `json:"model"`

	// JWT Secret for authentication
	JWTSecret string `json:"jwtSecret"`
}

var (
	cfgMu sync.RWMutex
	cfg   Config
)

// DefaultModelURL points at the ONNX export of the reference crop leaf
// disease classifier.
const DefaultModelURL = "https://huggingface.co/wambugu71/crop_leaf_diseases_vit/resolve/main/onnx/model.onnx"

// DefaultDBPath returns the default database path.
// Uses the platform-specific data directory.
func DefaultDBPath() string {
	return filepath.Join(platform.GetDataDir(), "smartcrop.db")
}

// DefaultModelCachePath returns the default location for the fetched model artifact.
func DefaultModelCachePath() string {
	return filepath.Join(platform.GetCacheDir(), "model.onnx")
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	return platform.GetDataDir()
}

// defaultConfig returns a Config populated with sensible defaults.
func defaultConfig() Config {
	return Config{
		DBPath:     DefaultDBPath(),
		ListenAddr: "127.0.0.1:8190",
		Model: ModelConfig{
			URL:                   DefaultModelURL,
			CachePath:             DefaultModelCachePath(),
			InputName:             "pixel_values",
			OutputName:            "logits",
			LoadMaxAttempts:       3,
			LoadRetryDelaySeconds: 2,
		},
		JWTSecret: uuid.New().String(),
	}
}

// Get returns a copy of the current in-memory config.
func Get() Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg
}

// Set replaces the in-memory config.
func Set(c Config) {
	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func deepMergeJSON(dst, src map[string]json.RawMessage) {
	for k, v := range src {
		if existing, ok := dst[k]; ok && isJSONObject(existing) && isJSONObject(v) {
			var dstObj map[string]json.RawMessage
			var srcObj map[string]json.RawMessage
			if err := json.Unmarshal(existing, &dstObj); err != nil {
				dst[k] = v
				continue
			}
			if err := json.Unmarshal(v, &srcObj); err != nil {
				dst[k] = v
				continue
			}
			deepMergeJSON(dstObj, srcObj)
			merged, err := json.Marshal(dstObj)
			if err != nil {
				dst[k] = v
				continue
			}
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}

// configPathOverride lets tests redirect config I/O to a temp location.
var configPathOverride string

// getConfigPath returns the full path to the config.json file.
func getConfigPath() (string, error) {
	if configPathOverride != "" {
		return configPathOverride, nil
	}
	return filepath.Join(DefaultConfigDir(), "config.json"), nil
}

// Load reads the config from disk and updates the in-memory config. It returns the config and path.
// If the config file doesn't exist, it creates one with default values.
func Load() (Config, string, error) {
	path, err := getConfigPath()
	if err != nil {
		return Config{}, "", err
	}

	// Ensure config directory exists
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return Config{}, "", fmt.Errorf("failed to create config directory %s: %v", configDir, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file doesn't exist - create it with defaults
			def := defaultConfig()

			dbDir := filepath.Dir(def.DBPath)
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return Config{}, "", fmt.Errorf("failed to create database directory %s: %v", dbDir, err)
			}

			savedPath, saveErr := Save(def)
			if saveErr != nil {
				return Config{}, path, fmt.Errorf("failed to create default config file: %v", saveErr)
			}
			Set(def)
			return def, savedPath, nil
		}
		return Config{}, path, fmt.Errorf("failed to read config file at %s: %v", path, err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, path, fmt.Errorf("failed to parse config JSON: %v", err)
	}

	// Merge defaults for any missing fields
	def := defaultConfig()
	needsSave := false

	if c.DBPath == "" {
		c.DBPath = def.DBPath
		needsSave = true
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.Model.URL == "" {
		c.Model.URL = def.Model.URL
	}
	if c.Model.CachePath == "" {
		c.Model.CachePath = def.Model.CachePath
	}
	if c.Model.InputName == "" {
		c.Model.InputName = def.Model.InputName
	}
	if c.Model.OutputName == "" {
		c.Model.OutputName = def.Model.OutputName
	}
	if c.Model.LoadMaxAttempts <= 0 {
		c.Model.LoadMaxAttempts = def.Model.LoadMaxAttempts
	}
	if c.Model.LoadRetryDelaySeconds <= 0 {
		c.Model.LoadRetryDelaySeconds = def.Model.LoadRetryDelaySeconds
	}
	if c.JWTSecret == "" {
		c.JWTSecret = uuid.New().String()
		needsSave = true
	}

	// Ensure the database directory exists
	dbDir := filepath.Dir(c.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return Config{}, path, fmt.Errorf("failed to create database directory %s: %v", dbDir, err)
	}

	// Save config if we had to fill in critical missing fields
	if needsSave {
		if _, saveErr := Save(c); saveErr != nil {
			// Log but don't fail - we can continue with the in-memory config
			fmt.Printf("Warning: failed to save updated config: %v\n", saveErr)
		}
	}

	Set(c)
	return c, path, nil
}

// Save writes the config to disk, creating the directory as needed. Returns the path.
// Unknown keys already present in the file are preserved.
func Save(c Config) (string, error) {
	path, err := getConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return path, fmt.Errorf("failed to create config directory: %v", err)
	}
	base := map[string]json.RawMessage{}
	if existing, readErr := os.ReadFile(path); readErr == nil {
		var tmp map[string]json.RawMessage
		if err := json.Unmarshal(existing, &tmp); err == nil {
			base = tmp
		}
	}

	marshaled, err := json.Marshal(c)
	if err != nil {
		return path, fmt.Errorf("failed to marshal config: %v", err)
	}
	incoming := map[string]json.RawMessage{}
	if err := json.Unmarshal(marshaled, &incoming); err != nil {
		return path, fmt.Errorf("failed to map config JSON: %v", err)
	}

	deepMergeJSON(base, incoming)

	mergedData, err := json.MarshalIndent(base, "", "  ")
	if err != nil {
		return path, fmt.Errorf("failed to marshal merged config: %v", err)
	}
	if err := os.WriteFile(path, mergedData, 0644); err != nil {
		return path, fmt.Errorf("failed to write config file: %v", err)
	}
	Set(c)
	return path, nil
}
