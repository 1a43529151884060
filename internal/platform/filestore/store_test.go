package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	_, err := NewStore(config.DocumentsConfig{BaseURL: "https://files.test"}, nil)
	assert.Error(t, err, "dir is required")

	_, err = NewStore(config.DocumentsConfig{Dir: t.TempDir()}, nil)
	assert.Error(t, err, "base url is required")

	dir := filepath.Join(t.TempDir(), "nested", "kyc")
	_, err = NewStore(config.DocumentsConfig{Dir: dir, BaseURL: "https://files.test"}, nil)
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(config.DocumentsConfig{Dir: dir, BaseURL: "https://files.test/kyc/"}, nil)
	require.NoError(t, err)

	u, err := s.Upload(context.Background(), service.Document{
		Name:        "id_proof-passport scan.png",
		ContentType: "image/png",
		Data:        []byte("png-bytes"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://files.test/kyc/"), u)
	assert.True(t, strings.HasSuffix(u, "-id_proof-passport_scan.png"), u)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestUploadRejectsEmpty(t *testing.T) {
	s, err := NewStore(config.DocumentsConfig{Dir: t.TempDir(), BaseURL: "https://files.test"}, nil)
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), service.Document{Name: "empty.png"})
	assert.Error(t, err)
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"photo.jpg":          "photo.jpg",
		"../../etc/passwd":   "passwd",
		`C:\Users\me\id.png`: "id.png",
		"my file (1).pdf":    "my_file_1_.pdf",
		"..":                 "document",
		"":                   "document",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeName(in), in)
	}
}
