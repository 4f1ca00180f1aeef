package modelfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultBufferSize is the buffer size for file downloads.
const DefaultBufferSize = 32 * 1024 // 32KB

// downloadHTTP downloads a file from a URL to a local path with progress
// tracking. It supports resuming interrupted downloads using HTTP Range
// headers.
func downloadHTTP(ctx context.Context, destPath string, url string, progressCb ByteProgressCallback) error {
	// Check if partial file exists for resume
	var existingSize int64
	if stat, err := os.Stat(destPath); err == nil {
		existingSize = stat.Size()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Add Range header for resume if we have partial data
	if existingSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}

	client := &http.Client{
		Timeout: 0, // No timeout for large downloads
	}
	resp, err := client.Do(req)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Fresh download, reset existing size
		existingSize = 0
	case http.StatusPartialContent:
		// Resume supported, keep existing size
	default:
		return &FetchError{URL: url, Status: resp.Status, StatusCode: resp.StatusCode}
	}

	totalSize := resp.ContentLength
	if totalSize > 0 && existingSize > 0 {
		totalSize += existingSize
	}

	// Open output file (append if resuming, create new otherwise)
	var out *os.File
	if existingSize > 0 && resp.StatusCode == http.StatusPartialContent {
		out, err = os.OpenFile(destPath, os.O_APPEND|os.O_WRONLY, 0644)
	} else {
		out, err = os.Create(destPath)
		existingSize = 0
	}
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer out.Close()

	downloaded := existingSize
	buffer := make([]byte, DefaultBufferSize)
	lastReport := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := out.Write(buffer[:n]); writeErr != nil {
				return fmt.Errorf("failed to write to file: %w", writeErr)
			}
			downloaded += int64(n)

			// Report progress periodically
			if progressCb != nil && time.Since(lastReport) >= 100*time.Millisecond {
				progressCb(downloaded, totalSize)
				lastReport = time.Now()
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
	}

	// Final progress report
	if progressCb != nil {
		progressCb(downloaded, totalSize)
	}

	return nil
}
