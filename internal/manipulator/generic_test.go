package manipulator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tempStager 将内容写入临时目录的最小暂存实现
type tempStager struct {
	dir string
}

func (s *tempStager) Stage(ctx context.Context, r io.Reader, originalName string) (*filestore.StagedFile, error) {
	staged := &filestore.StagedFile{
		Folder:       s.dir,
		Name:         strings.TrimSuffix(originalName, filepath.Ext(originalName)),
		Extension:    filestore.ExtensionOf(originalName),
		OriginalName: originalName,
	}
	f, err := os.Create(staged.LocalPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	size, err := io.Copy(f, r)
	if err != nil {
		return nil, err
	}
	staged.Size = size
	return staged, nil
}

func genericConfig(thumbnails map[string]config.ThumbnailDescriptor) config.ManipulatorConfig {
	return config.ManipulatorConfig{
		Impl:       config.ManipulatorGenericDocument,
		Thumbnails: thumbnails,
		Mimes: map[string][]string{
			"word":  {"application/msword"},
			"excel": {"application/vnd.ms-excel"},
		},
	}
}

func stagedDoc(t *testing.T, dir, mimeType string) *filestore.StagedFile {
	t.Helper()
	staged := &filestore.StagedFile{
		Folder:       dir,
		Name:         "doc",
		Extension:    "bin",
		MimeType:     mimeType,
		OriginalName: "doc.bin",
	}
	require.NoError(t, os.WriteFile(staged.LocalPath(), []byte("content"), 0644))
	return staged
}

func TestGenericManipulatorReusesExistingThumbnail(t *testing.T) {
	existing := uint(42)
	m, err := NewGenericDocument("GenericDocuments", genericConfig(map[string]config.ThumbnailDescriptor{
		"word":    {ID: &existing},
		"generic": {URL: "https://cdn.test/generic.png"},
	}), &tempStager{dir: t.TempDir()})
	require.NoError(t, err)

	dir := t.TempDir()
	staged := stagedDoc(t, dir, "application/msword")

	bag, err := m.Manipulate(context.Background(), staged, nil)
	require.NoError(t, err)

	assert.Equal(t, "word", bag.Category)
	assert.Same(t, staged, bag.Document)
	require.NotNil(t, bag.Thumbnail)
	require.NotNil(t, bag.Thumbnail.ExistingID)
	assert.Equal(t, existing, *bag.Thumbnail.ExistingID)
	assert.Nil(t, bag.Thumbnail.Staged)
}

func TestGenericManipulatorFetchesThumbnail(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	stagerDir := t.TempDir()
	m, err := NewGenericDocument("GenericDocuments", genericConfig(map[string]config.ThumbnailDescriptor{
		"generic": {URL: server.URL + "/thumbnails/generic.png"},
	}), &tempStager{dir: stagerDir})
	require.NoError(t, err)

	staged := stagedDoc(t, t.TempDir(), "application/zip")

	bag, err := m.Manipulate(context.Background(), staged, nil)
	require.NoError(t, err)

	assert.Equal(t, "generic", bag.Category)
	assert.Equal(t, 1, requests)
	require.NotNil(t, bag.Thumbnail)
	require.NotNil(t, bag.Thumbnail.Staged)
	assert.Nil(t, bag.Thumbnail.ExistingID)
	assert.FileExists(t, bag.Thumbnail.Staged.LocalPath())
}

func TestGenericManipulatorUnknownMimeFallsBackToGeneric(t *testing.T) {
	existing := uint(7)
	m, err := NewGenericDocument("GenericDocuments", genericConfig(map[string]config.ThumbnailDescriptor{
		"generic": {ID: &existing},
	}), &tempStager{dir: t.TempDir()})
	require.NoError(t, err)

	staged := stagedDoc(t, t.TempDir(), "text/csv")

	bag, err := m.Manipulate(context.Background(), staged, nil)
	require.NoError(t, err)
	assert.Equal(t, "generic", bag.Category)
	require.NotNil(t, bag.Thumbnail.ExistingID)
	assert.Equal(t, existing, *bag.Thumbnail.ExistingID)
}

func TestGenericManipulatorThumbnailFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m, err := NewGenericDocument("GenericDocuments", genericConfig(map[string]config.ThumbnailDescriptor{
		"generic": {URL: server.URL + "/broken.png"},
	}), &tempStager{dir: t.TempDir()})
	require.NoError(t, err)

	staged := stagedDoc(t, t.TempDir(), "application/zip")

	_, err = m.Manipulate(context.Background(), staged, nil)
	assert.ErrorIs(t, err, ErrThumbnailFetch)
}

func TestNewGenericDocumentRequiresGenericFallback(t *testing.T) {
	_, err := NewGenericDocument("GenericDocuments", genericConfig(map[string]config.ThumbnailDescriptor{
		"word": {URL: "https://cdn.test/word.png"},
	}), &tempStager{dir: t.TempDir()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
