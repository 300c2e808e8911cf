// utils/files.go
package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"audittool/models"
)

// DefaultAllowedExtensions is the upload allow-list shared by most record
// types. Advisories use AdvisoryAllowedExtensions, which is narrower.
var DefaultAllowedExtensions = []string{"jpeg", "jpg", "png", "doc", "docx", "pdf", "xls", "xlsx", "ppt", "pptx"}

var AdvisoryAllowedExtensions = []string{"jpeg", "jpg", "png", "xls", "doc", "docx", "pdf"}

// ExtensionAllowed checks a filename's extension against an allow-list,
// case-insensitively.
func ExtensionAllowed(filename string, allowed []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// StorageFilename builds a collision-resistant name for a stored file:
// unix-millis timestamp, a short random suffix and the original extension.
func StorageFilename(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), suffix, ext)
}

// SaveUploadedFiles validates every file's extension before writing anything,
// so a single bad file rejects the whole batch. A failure mid-batch unlinks
// whatever was already stored; on success each file is written under dir and
// its metadata returned in upload order.
func SaveUploadedFiles(files []*multipart.FileHeader, dir string, allowed []string) ([]models.Attachment, error) {
	for _, fh := range files {
		if !ExtensionAllowed(fh.Filename, allowed) {
			return nil, fmt.Errorf("file type not allowed: %s (allowed: %s)", fh.Filename, strings.Join(allowed, ", "))
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	var attachments []models.Attachment
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			_ = RemoveStoredFiles(attachments)
			return nil, fmt.Errorf("failed to open uploaded file %s: %w", fh.Filename, err)
		}

		stored := StorageFilename(fh.Filename)
		dstPath := filepath.Join(dir, stored)
		dst, err := os.Create(dstPath)
		if err != nil {
			src.Close()
			_ = RemoveStoredFiles(attachments)
			return nil, fmt.Errorf("failed to store file %s: %w", fh.Filename, err)
		}

		size, err := io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			os.Remove(dstPath)
			_ = RemoveStoredFiles(attachments)
			return nil, fmt.Errorf("failed to write file %s: %w", fh.Filename, err)
		}

		attachments = append(attachments, models.Attachment{
			ID:           primitive.NewObjectID(),
			Filename:     stored,
			OriginalName: fh.Filename,
			MimeType:     fh.Header.Get("Content-Type"),
			Size:         size,
			Path:         dstPath,
			UploadedAt:   time.Now().UTC(),
		})
	}

	return attachments, nil
}

// RemoveStoredFiles unlinks attachment files from disk. Failures are
// returned but callers treat cleanup as best-effort.
func RemoveStoredFiles(attachments []models.Attachment) error {
	var firstErr error
	for _, a := range attachments {
		if a.Path == "" {
			continue
		}
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
