// Package modelfetch retrieves the model artifact and the onnxruntime shared
// library from their configured locations and caches them on local disk.
package modelfetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ByteProgressCallback is a function called to report raw byte progress
// during a download.
type ByteProgressCallback func(downloaded, total int64)

// FetchError reports a failed artifact retrieval, including the transport
// status when the server responded.
type FetchError struct {
	URL        string
	Status     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("failed to fetch %s: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Policy is the bounded retry policy for artifact downloads.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy mirrors the config defaults: three attempts, short delay.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Fetch resolves src to a local file at destPath. Supported sources:
// http(s):// URLs, s3://bucket/key, and plain local file paths.
func Fetch(ctx context.Context, src, destPath string, progressCb ByteProgressCallback) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return downloadHTTP(ctx, destPath, src, progressCb)
	case strings.HasPrefix(src, "s3://"):
		return downloadS3(ctx, destPath, src, progressCb)
	default:
		return copyLocal(src, destPath, progressCb)
	}
}

// FetchWithRetry fetches with automatic retry per the given policy.
// Context cancellation is never retried.
func FetchWithRetry(ctx context.Context, src, destPath string, policy Policy, progressCb ByteProgressCallback) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := Fetch(ctx, src, destPath, progressCb)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return err
		}

		if attempt < policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Delay):
			}
		}
	}

	return fmt.Errorf("download failed after %d attempts: %w", policy.MaxAttempts, lastErr)
}

// copyLocal treats src as a file already on disk.
func copyLocal(src, destPath string, progressCb ByteProgressCallback) error {
	if src == destPath {
		if _, err := os.Stat(src); err != nil {
			return &FetchError{URL: src, Err: err}
		}
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return &FetchError{URL: src, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return &FetchError{URL: src, Err: err}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if progressCb != nil {
		progressCb(info.Size(), info.Size())
	}
	return nil
}

// Checksum returns a short sha256-based version string for an artifact file.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}

	hash := hex.EncodeToString(hasher.Sum(nil))
	return hash[:12], nil
}

// FormatBytes formats bytes as human-readable size.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
