package filesvc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
)

func TestLocalStorage_Save(t *testing.T) {
	dir := t.TempDir()
	st := NewLocalStorage(core.StorageConfig{LocalDir: dir, PublicBaseURL: "/uploads/"})
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		wantURL string
		wantFp  string
	}{
		{name: "nested", key: "proofs/receipt.png", wantURL: "/uploads/proofs/receipt.png", wantFp: "proofs/receipt.png"},
		{name: "no escaping", key: "../../etc/passwd", wantURL: "/uploads/etc/passwd", wantFp: "etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := st.Save(ctx, tt.key, strings.NewReader("content"), 7, "image/png")
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, u)

			b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(tt.wantFp)))
			require.NoError(t, err)
			assert.Equal(t, "content", string(b))
		})
	}

	t.Run("short write", func(t *testing.T) {
		_, err := st.Save(ctx, "proofs/short.png", strings.NewReader("abc"), 10, "image/png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wrote 3 bytes out of 10")
		assert.NoFileExists(t, filepath.Join(dir, "proofs", "short.png"))
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	st, err := New(ctx, &core.Config{Storage: core.StorageConfig{LocalDir: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &localStorage{}, st)

	_, err = New(ctx, &core.Config{Storage: core.StorageConfig{Driver: "ftp"}})
	assert.EqualError(t, err, `unknown storage driver "ftp"`)

	_, err = New(ctx, &core.Config{Storage: core.StorageConfig{Driver: "s3"}})
	assert.EqualError(t, err, "storage bucket is required")
}

func Test_defaultS3URL(t *testing.T) {
	assert.Equal(t, "https://proofs.s3.eu-west-1.amazonaws.com", defaultS3URL(core.StorageConfig{Bucket: "proofs"}, "eu-west-1"))
	assert.Equal(t, "http://minio:9000/proofs", defaultS3URL(core.StorageConfig{Bucket: "proofs", Endpoint: "http://minio:9000/"}, "us-east-1"))
}
