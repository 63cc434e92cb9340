// Package filesvc stores user uploads on the local disk or in an S3 bucket.
package filesvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
)

// localStorage writes files under a directory served by the API at PublicBaseURL.
type localStorage struct {
	dir     string
	baseURL string
}

var _ core.FileStorage = (*localStorage)(nil)

func NewLocalStorage(conf core.StorageConfig) core.FileStorage {
	return &localStorage{dir: conf.LocalDir, baseURL: strings.TrimRight(conf.PublicBaseURL, "/")}
}

func (st *localStorage) Save(_ context.Context, key string, r io.Reader, size int64, _ string) (string, error) {
	key = path.Clean("/" + key)[1:] // no escaping the storage dir
	fp := filepath.Join(st.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload dir")
	}

	file, err := os.Create(fp)
	if err != nil {
		return "", errors.Wrap(err, "creating upload file")
	}
	n, err := io.Copy(file, r)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil && size > 0 && n != size {
		err = errors.Errorf("wrote %d bytes out of %d", n, size)
	}
	if err != nil {
		_ = os.Remove(fp)
		return "", errors.Wrap(err, "writing upload file")
	}
	return st.baseURL + "/" + key, nil
}

// New picks the storage backend from the configuration.
func New(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Driver {
	case "s3":
		return NewS3Storage(ctx, conf.Storage)
	case "", "local":
		return NewLocalStorage(conf.Storage), nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}
