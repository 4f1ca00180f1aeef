// Command classify runs a one-shot diagnosis of a leaf image from the
// terminal, without the server or a user account.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/smartcrop/smartcrop/appconfig"
	"github.com/smartcrop/smartcrop/catalog"
	"github.com/smartcrop/smartcrop/inference"
	"github.com/smartcrop/smartcrop/modelfetch"
	"github.com/smartcrop/smartcrop/platform"
)

func main() {
	var (
		imagePath  string
		modelPath  string
		modelURL   string
		inputName  string
		outputName string
		ortLibPath string
		timeout    time.Duration
	)

	flag.StringVar(&imagePath, "image", "", "Path to input image file")
	flag.StringVar(&modelPath, "model", "", "Path to a local ONNX model file (skips download)")
	flag.StringVar(&modelURL, "model-url", appconfig.DefaultModelURL, "Model artifact URL (http(s)://, s3://, or local path)")
	flag.StringVar(&inputName, "input", "pixel_values", "Model input tensor name")
	flag.StringVar(&outputName, "output", "logits", "Model output tensor name")
	flag.StringVar(&ortLibPath, "ort", "", "Path to onnxruntime shared library (optional)")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Overall timeout including model download")
	flag.Parse()

	if imagePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --image is required")
		flag.Usage()
		os.Exit(2)
	}

	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		log.Fatalf("failed to read image: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fetch := func(ctx context.Context) (string, error) {
		if modelPath != "" {
			return modelPath, nil
		}
		if ortLibPath == "" && os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH") == "" {
			libPath, err := modelfetch.EnsureRuntime(ctx, platform.GetCacheDir(), nil)
			if err != nil {
				return "", err
			}
			os.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", libPath)
		}
		dest := appconfig.DefaultModelCachePath()
		if _, err := os.Stat(dest); err == nil {
			return dest, nil
		}
		if err := os.MkdirAll(platform.GetCacheDir(), 0755); err != nil {
			return "", err
		}
		log.Printf("fetching model from %s", modelURL)
		return dest, modelfetch.FetchWithRetry(ctx, modelURL, dest, modelfetch.DefaultPolicy(), nil)
	}

	manager := inference.NewManager(inference.ORTBackend{}, fetch, inference.SessionOptions{
		InputName:            inputName,
		OutputName:           outputName,
		ORTSharedLibraryPath: ortLibPath,
		NumClasses:           catalog.NumClasses,
	})
	defer manager.Close()

	engine := inference.NewEngine(manager)
	preds, err := engine.Predict(ctx, imageBytes)
	if err != nil {
		log.Fatalf("prediction failed: %v", err)
	}

	top := preds[0]
	info := catalog.Lookup(top.Label)
	fmt.Printf("%s (%.1f%%)\n", info.Name, top.Score*100)
	fmt.Printf("  %s\n", info.Description)
	fmt.Printf("  Treatment: %s\n\n", info.Treatment)

	fmt.Println("Top matches:")
	for _, p := range preds {
		fmt.Printf("  %-40s %6.2f%%\n", p.Label, p.Score*100)
	}
}
