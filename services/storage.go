package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docqa-platform/internal/logger"
)

// FileStorage holds uploads on local disk until processing consumes them.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// Save writes the upload under a collision-free name and returns its path.
func (fs *FileStorage) Save(data []byte, originalName string) (string, error) {
	path := filepath.Join(fs.dir, secureFilename(originalName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return path, nil
}

// Remove deletes a stored upload.
func (fs *FileStorage) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove stored upload", "path", path, "error", err)
	}
}

// secureFilename builds a storage name that cannot collide or escape the
// upload directory: timestamp, random prefix, then a sanitized base name.
func secureFilename(originalName string) string {
	randomBytes := make([]byte, 8)
	rand.Read(randomBytes)
	randomPrefix := hex.EncodeToString(randomBytes)

	timestamp := time.Now().Format("20060102_150405")

	ext := filepath.Ext(originalName)
	baseName := strings.TrimSuffix(filepath.Base(originalName), ext)
	safeName := strings.ReplaceAll(baseName, " ", "_")
	safeName = strings.ReplaceAll(safeName, "..", "")
	if len(safeName) > 50 {
		safeName = safeName[:50]
	}

	return fmt.Sprintf("%s_%s_%s%s", timestamp, randomPrefix, safeName, ext)
}

// ValidateUpload enforces size, filename and content type limits before a
// file is accepted.
func ValidateUpload(header *multipart.FileHeader, maxSize int64, allowedTypes []string) error {
	if header.Size == 0 {
		return NewDomainError(ErrorTypeValidation, "file is empty", nil)
	}
	if header.Size > maxSize {
		return NewDomainError(ErrorTypeValidation,
			fmt.Sprintf("file size %d exceeds maximum allowed size %d", header.Size, maxSize), nil)
	}

	if header.Filename == "" {
		return NewDomainError(ErrorTypeValidation, "filename is required", nil)
	}
	if len(header.Filename) > 255 {
		return NewDomainError(ErrorTypeValidation, "filename too long (max 255 characters)", nil)
	}
	dangerous := []string{"../", "..\\", "<", ">", ":", "\"", "|", "?", "*", "\x00"}
	for _, char := range dangerous {
		if strings.Contains(header.Filename, char) {
			return NewDomainError(ErrorTypeValidation, "filename contains invalid characters", nil)
		}
	}

	contentType := header.Header.Get("Content-Type")
	for _, allowed := range allowedTypes {
		if allowed = strings.TrimSpace(allowed); allowed != "" && strings.Contains(contentType, allowed) {
			return nil
		}
	}
	return NewDomainError(ErrorTypeValidation,
		fmt.Sprintf("unsupported content type: %s", contentType), nil)
}

// SniffContent cross-checks magic bytes against the declared content type,
// so a renamed binary cannot masquerade as a supported format.
func SniffContent(contentType string, data []byte) error {
	if strings.Contains(contentType, "pdf") {
		if len(data) < 4 || string(data[:4]) != "%PDF" {
			return NewDomainError(ErrorTypeValidation,
				"file is not a valid PDF document (missing PDF header)", nil)
		}
	}
	return nil
}
