package core

import (
	"context"
	"io"
)

// FileInfo describes a file held in external object storage.
type FileInfo struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

func (fi FileInfo) IsZero() bool { return fi.FilePath == "" }

// Upload is an inbound file to be stored.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileStorage is any service that can store and delete file blobs.
// Implementations enforce the upload path policy: uploads by student-role
// actors land under a "submissions/" prefix regardless of the requested path.
type FileStorage interface {
	Upload(ctx context.Context, actorRole, path string, up Upload) (FileInfo, error)
	Delete(ctx context.Context, path string) error
}
