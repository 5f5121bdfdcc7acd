package document

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/database/repo/documents"
	"github.com/coreux/asset-gateway/database/repo/files"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/internal/manipulator"
	"github.com/coreux/asset-gateway/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// countingProvider 包装本地存储并统计上传次数
type countingProvider struct {
	storage.Provider
	mu    sync.Mutex
	saves int
}

func (p *countingProvider) SaveWithContext(ctx context.Context, key string, file io.Reader) error {
	p.mu.Lock()
	p.saves++
	p.mu.Unlock()
	return p.Provider.SaveWithContext(ctx, key, file)
}

func (p *countingProvider) SaveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// failingProvider 模拟持久化存储不可用
type failingProvider struct{}

func (failingProvider) SaveWithContext(ctx context.Context, key string, file io.Reader) error {
	return errors.New("connection refused")
}
func (failingProvider) GetWithContext(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("connection refused")
}
func (failingProvider) DeleteWithContext(ctx context.Context, key string) error {
	return errors.New("connection refused")
}
func (failingProvider) Exists(ctx context.Context, key string) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingProvider) Health(ctx context.Context) error { return errors.New("connection refused") }
func (failingProvider) Name() string                     { return "failing" }

// recordingCleaner 记录补偿删除请求的 key
type recordingCleaner struct {
	mu   sync.Mutex
	keys []string
}

func (c *recordingCleaner) CleanupBlobs(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, keys...)
}

func (c *recordingCleaner) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...)
}

type testStack struct {
	db       *gorm.DB
	gateway  *filestore.Gateway
	registry *Registry
	cleaner  *recordingCleaner
}

func newTestStack(t *testing.T, provider storage.Provider, assetsCfg *config.AssetsConfig) *testStack {
	t.Helper()
	dir := t.TempDir()

	dsn := filepath.Join(dir, "test.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.File{}, &models.Image{}, &models.GenericDocument{}))

	if provider == nil {
		provider, err = storage.NewLocalStorage(filepath.Join(dir, "durable"))
		require.NoError(t, err)
	}

	cfg := &config.Config{
		CloudBaseURL:            "https://cdn.test",
		CloudFolder:             "docs",
		LocalDriver:             "local",
		LocalDocumentFolder:     filepath.Join(dir, "staging"),
		LocalDocumentFolderName: "staging",
	}

	gateway, err := filestore.NewGateway(cfg, provider, files.NewRepository(db))
	require.NoError(t, err)

	if assetsCfg == nil {
		assetsCfg = config.DefaultAssetsConfig()
	}

	cleaner := &recordingCleaner{}
	registry, err := BuildRegistry(
		assetsCfg,
		manipulator.NewNativeEngine(),
		gateway,
		documents.NewImageRepository(db),
		documents.NewGenericRepository(db),
		cleaner,
	)
	require.NoError(t, err)

	return &testStack{db: db, gateway: gateway, registry: registry, cleaner: cleaner}
}

// newJPEGUpload 生成一个客户端声明为 octet-stream 的 JPEG 上传
func newJPEGUpload(t *testing.T, clientMime string) *filestore.Upload {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for x := 0; x < 600; x++ {
		for y := 0; y < 400; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}

	tmpPath := filepath.Join(t.TempDir(), "upload.tmp")
	f, err := os.Create(tmpPath)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 85}))
	require.NoError(t, f.Close())

	upload, err := filestore.NewUpload(tmpPath, "photo.jpg", clientMime)
	require.NoError(t, err)
	return upload
}

func newBinaryUpload(t *testing.T, name, clientMime string, content []byte) *filestore.Upload {
	t.Helper()

	tmpPath := filepath.Join(t.TempDir(), "upload.tmp")
	require.NoError(t, os.WriteFile(tmpPath, content, 0644))

	upload, err := filestore.NewUpload(tmpPath, name, clientMime)
	require.NoError(t, err)
	return upload
}

func TestRegistryResolveByMime(t *testing.T) {
	stack := newTestStack(t, nil, nil)

	driver, err := stack.registry.Resolve("image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentTypeImage, driver.DocumentType())
}

func TestRegistryFallsBackToDefaultDriver(t *testing.T) {
	assetsCfg := config.DefaultAssetsConfig()
	assetsCfg.DefaultDriver = config.DriverGenericDocument
	stack := newTestStack(t, nil, assetsCfg)

	driver, err := stack.registry.Resolve("application/zip")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentTypeGeneric, driver.DocumentType())
}

func TestRegistryStrictModeRejectsUnknownMime(t *testing.T) {
	assetsCfg := config.DefaultAssetsConfig()
	assetsCfg.StrictDriverMatch = true
	stack := newTestStack(t, nil, assetsCfg)

	_, err := stack.registry.Resolve("application/zip")
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestRegistryResolveUploadUsesEffectiveMime(t *testing.T) {
	stack := newTestStack(t, nil, nil)

	// 客户端声明 octet-stream，嗅探结果是 image/jpeg
	upload := newJPEGUpload(t, "application/octet-stream")
	assert.Equal(t, "image/jpeg", upload.EffectiveMimeType())

	driver, err := stack.registry.ResolveUpload(upload)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentTypeImage, driver.DocumentType())
}

func TestRegistryDeterministicDispatch(t *testing.T) {
	// 两个驱动声明同一 MIME 时按驱动名排序，首个命中者胜出
	assetsCfg := config.DefaultAssetsConfig()
	generic := assetsCfg.Drivers[config.DriverGenericDocument]
	generic.Mimes = []string{"image/jpeg"}
	assetsCfg.Drivers[config.DriverGenericDocument] = generic
	stack := newTestStack(t, nil, assetsCfg)

	driver, err := stack.registry.Resolve("image/jpeg")
	require.NoError(t, err)
	// "document" < "image"
	assert.Equal(t, models.DocumentTypeGeneric, driver.DocumentType())
}

func TestRegistryByDocumentType(t *testing.T) {
	stack := newTestStack(t, nil, nil)

	driver, err := stack.registry.ByDocumentType(models.DocumentTypeImage)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentTypeImage, driver.DocumentType())

	_, err = stack.registry.ByDocumentType("video")
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestSelectManipulatorRequiresAssetCapability(t *testing.T) {
	stack := newTestStack(t, nil, nil)
	driver, err := stack.registry.Resolve("image/jpeg")
	require.NoError(t, err)

	// 模型不具备资产能力时快速失败
	type plainModel struct{}
	upload := newJPEGUpload(t, "image/jpeg")
	_, err = driver.Create(context.Background(), upload, &manipulator.Options{Model: plainModel{}})
	assert.ErrorIs(t, err, ErrMissingCapability)
}
