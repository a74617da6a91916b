package upload

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest image accepted for upload (high-resolution phone photos fit)
const MaxFileSize = 50 << 20

// LoadFile reads an image from disk for enqueueing
func LoadFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return File{}, fmt.Errorf("%s is too large (maximum is 50MB), compress or resize the image", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}

	return File{
		Name:        filepath.Base(path),
		ContentType: DetectContentType(filepath.Base(path), data),
		Data:        data,
	}, nil
}

// DetectContentType guesses the MIME type from the extension, then from the content
func DetectContentType(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	if isHEICFormat(data) {
		return "image/heic"
	}
	return normalizeMIME(http.DetectContentType(data))
}
