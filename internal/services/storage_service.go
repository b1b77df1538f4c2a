// internal/services/storage_service.go
package services

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
)

// UploadOptions is the acceptance policy for uploaded bytes.
type UploadOptions struct {
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

func VideoUploadOptions(maxSize int64) UploadOptions {
	return UploadOptions{
		MaxSize:      maxSize,
		AllowedTypes: []string{".mp4", ".m4v", ".mov", ".webm", ".mkv", ".avi", ".mpeg", ".mpg", ".ts"},
	}
}

// Validate checks size, extension and content type, and returns the mime
// type to store the bytes under. Sniffed content wins over the declared
// type when it is recognisably video.
func (o UploadOptions) Validate(data []byte, filename, declaredType string) (string, error) {
	if len(data) == 0 {
		return "", apperrors.New(apperrors.KindValidation, "file is empty")
	}
	if o.MaxSize > 0 && int64(len(data)) > o.MaxSize {
		return "", apperrors.Newf(apperrors.KindValidation, "file size %d bytes exceeds maximum allowed size %d bytes", len(data), o.MaxSize).
			WithDetail("max_bytes", o.MaxSize)
	}

	fileExt := strings.ToLower(filepath.Ext(filename))
	if fileExt != "" && !o.allowedExt(fileExt) {
		return "", apperrors.Newf(apperrors.KindValidation, "file type %s is not allowed", fileExt)
	}

	declared := ""
	if declaredType != "" {
		if mediaType, _, err := mime.ParseMediaType(declaredType); err == nil {
			declared = strings.ToLower(mediaType)
		}
	}

	sniffed, err := SniffVideo(data)
	if err != nil {
		return "", err
	}
	if sniffed != "" {
		return sniffed, nil
	}

	switch {
	case strings.HasPrefix(declared, "video/"):
		return declared, nil
	case (declared == "" || declared == "application/octet-stream") && o.allowedExt(fileExt):
		return "application/octet-stream", nil
	}
	return "", apperrors.Newf(apperrors.KindValidation, "mime type %q is not an accepted video type", declaredType)
}

func (o UploadOptions) allowedExt(ext string) bool {
	for _, allowedType := range o.AllowedTypes {
		if ext == allowedType {
			return true
		}
	}
	return false
}

// SniffVideo detects the type of content from its first bytes. It returns
// the video mime type when one is recognised, "" when the format is unknown,
// and an error when the bytes are clearly something other than video.
func SniffVideo(head []byte) (string, error) {
	sniffed, _, _ := mime.ParseMediaType(mimetype.Detect(head).String())
	switch {
	case strings.HasPrefix(sniffed, "video/"):
		return sniffed, nil
	case sniffed == "application/octet-stream":
		return "", nil
	}
	return "", apperrors.Newf(apperrors.KindValidation, "content looks like %s, not a video", sniffed)
}
