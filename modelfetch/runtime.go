package modelfetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/smartcrop/smartcrop/platform"
)

// ORTVersion is the onnxruntime release fetched when no shared library is
// configured. 1.17+ covers the opset used by the crop disease model export.
const ORTVersion = "1.17.0"

// RuntimeLibName returns the platform-specific onnxruntime library file name.
func RuntimeLibName() string {
	return "onnxruntime" + platform.SharedLibExtension()
}

// RuntimeDownloadURL returns the platform-specific download URL for the
// onnxruntime release archive.
func RuntimeDownloadURL(version, arch string) string {
	switch runtime.GOOS {
	case "windows":
		if arch == "arm64" {
			return "https://github.com/microsoft/onnxruntime/releases/download/v" + version + "/onnxruntime-win-arm64-" + version + ".zip"
		}
		return "https://github.com/microsoft/onnxruntime/releases/download/v" + version + "/onnxruntime-win-x64-" + version + ".zip"
	case "darwin":
		if arch == "arm64" {
			return "https://github.com/microsoft/onnxruntime/releases/download/v" + version + "/onnxruntime-osx-arm64-" + version + ".tgz"
		}
		return "https://github.com/microsoft/onnxruntime/releases/download/v" + version + "/onnxruntime-osx-x86_64-" + version + ".tgz"
	default: // linux
		if arch == "arm64" {
			return "https://github.com/microsoft/onnxruntime/releases/download/v" + version + "/onnxruntime-linux-aarch64-" + version + ".tgz"
		}
		return "https://github.com/microsoft/onnxruntime/releases/download/v" + version + "/onnxruntime-linux-x64-" + version + ".tgz"
	}
}

// EnsureRuntime makes the onnxruntime shared library available under dir and
// returns its path. If the library is already present it is reused; otherwise
// the release archive is downloaded and the library extracted from it.
func EnsureRuntime(ctx context.Context, dir string, progressCb ByteProgressCallback) (string, error) {
	libPath := filepath.Join(dir, RuntimeLibName())
	if _, err := os.Stat(libPath); err == nil {
		return libPath, nil
	}

	arch := runtime.GOARCH
	if arch != "amd64" && arch != "arm64" {
		return "", fmt.Errorf("unsupported architecture %s; install onnxruntime manually from https://github.com/microsoft/onnxruntime/releases", arch)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create runtime directory: %w", err)
	}

	url := RuntimeDownloadURL(ORTVersion, arch)
	archivePath := filepath.Join(dir, "onnxruntime"+archiveExt(url))

	log.Printf("downloading onnxruntime %s from %s", ORTVersion, url)
	if err := Fetch(ctx, url, archivePath, progressCb); err != nil {
		return "", err
	}
	defer os.Remove(archivePath)

	if err := ExtractSharedLibrary(archivePath, libPath); err != nil {
		return "", err
	}
	return libPath, nil
}

func archiveExt(url string) string {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return ".zip"
	case strings.HasSuffix(url, ".7z"):
		return ".7z"
	default:
		return ".tgz"
	}
}

// ExtractSharedLibrary pulls the main onnxruntime shared library out of a
// release archive (.zip, .tgz/.tar.gz, or .7z) and writes it to destPath.
func ExtractSharedLibrary(archivePath, destPath string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractLibFromZip(archivePath, destPath)
	case strings.HasSuffix(archivePath, ".7z"):
		return extractLibFrom7z(archivePath, destPath)
	case strings.HasSuffix(archivePath, ".tgz"), strings.HasSuffix(archivePath, ".tar.gz"):
		return extractLibFromTarGz(archivePath, destPath)
	default:
		return fmt.Errorf("unsupported archive format: %s", archivePath)
	}
}

// isMainLib reports whether an archive entry is the main onnxruntime shared
// library (as opposed to provider or training variants).
func isMainLib(name string) bool {
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if strings.Contains(base, "_providers_") || strings.Contains(base, "training") {
		return false
	}
	switch runtime.GOOS {
	case "windows":
		return base == "onnxruntime.dll"
	case "darwin":
		return strings.HasPrefix(base, "libonnxruntime.") && strings.HasSuffix(base, ".dylib")
	default:
		return strings.HasPrefix(base, "libonnxruntime.so")
	}
}

func writeLibFile(r io.Reader, destPath string) error {
	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, r); err != nil {
		return fmt.Errorf("failed to extract library: %w", err)
	}
	return nil
}

func extractLibFromZip(archivePath, destPath string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !isMainLib(file.Name) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s in archive: %w", file.Name, err)
		}
		defer rc.Close()
		return writeLibFile(rc, destPath)
	}
	return fmt.Errorf("onnxruntime library not found in %s", archivePath)
}

func extractLibFrom7z(archivePath, destPath string) error {
	reader, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !isMainLib(file.Name) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s in archive: %w", file.Name, err)
		}
		defer rc.Close()
		return writeLibFile(rc, destPath)
	}
	return fmt.Errorf("onnxruntime library not found in %s", archivePath)
}

func extractLibFromTarGz(archivePath, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg || !isMainLib(header.Name) {
			continue
		}
		return writeLibFile(tarReader, destPath)
	}
	return fmt.Errorf("onnxruntime library not found in %s", archivePath)
}
