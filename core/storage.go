package core

import (
	"context"
	"io"
)

// FileStorage stores user uploaded files and returns their public URL.
type FileStorage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}
