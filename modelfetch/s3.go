package modelfetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// parseS3URL splits s3://bucket/key into bucket and key.
func parseS3URL(src string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(src, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid s3 url %q; want s3://bucket/key", src)
	}
	return parts[0], parts[1], nil
}

// downloadS3 fetches an object from S3 to a local path. Credentials and
// region come from the standard AWS environment/config chain.
func downloadS3(ctx context.Context, destPath string, src string, progressCb ByteProgressCallback) error {
	bucket, key, err := parseS3URL(src)
	if err != nil {
		return &FetchError{URL: src, Err: err}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return &FetchError{URL: src, Err: fmt.Errorf("loading AWS config: %w", err)}
	}

	client := s3.NewFromConfig(awsCfg)
	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &FetchError{URL: src, Err: err}
	}
	defer obj.Body.Close()

	totalSize := int64(0)
	if obj.ContentLength != nil {
		totalSize = *obj.ContentLength
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer out.Close()

	downloaded := int64(0)
	buffer := make([]byte, DefaultBufferSize)
	lastReport := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := obj.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := out.Write(buffer[:n]); writeErr != nil {
				return fmt.Errorf("failed to write to file: %w", writeErr)
			}
			downloaded += int64(n)

			if progressCb != nil && time.Since(lastReport) >= 100*time.Millisecond {
				progressCb(downloaded, totalSize)
				lastReport = time.Now()
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read object body: %w", err)
		}
	}

	if progressCb != nil {
		progressCb(downloaded, totalSize)
	}

	return nil
}
