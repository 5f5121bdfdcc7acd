package asset

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreux/asset-gateway/cache"
	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/database/models"
	assetsrepo "github.com/coreux/asset-gateway/database/repo/assets"
	"github.com/coreux/asset-gateway/database/repo/documents"
	"github.com/coreux/asset-gateway/database/repo/files"
	"github.com/coreux/asset-gateway/internal/document"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/internal/manipulator"
	"github.com/coreux/asset-gateway/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// company 测试用 owner，带主资产 URL 投影
type company struct {
	id        uint
	manip     string
	projected *models.PrimaryURLSet
}

func (c *company) AssetOwnerID() uint {
	return c.id
}

func (c *company) AssetOwnerType() string {
	return "companies"
}

func (c *company) Manipulator() string {
	return c.manip
}

func (c *company) ApplyPrimaryAssetURLs(urls models.PrimaryURLSet) {
	c.projected = &urls
}

func newTestGateway(t *testing.T) (*Gateway, *gorm.DB) {
	t.Helper()
	dir := t.TempDir()

	dsn := filepath.Join(dir, "test.db") + "?_journal_mode=WAL&_busy_timeout=10000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.File{}, &models.Image{}, &models.GenericDocument{},
		&models.Asset{}, &models.AssetAssociation{},
	))

	provider, err := storage.NewLocalStorage(filepath.Join(dir, "durable"))
	require.NoError(t, err)

	cfg := &config.Config{
		CloudBaseURL:            "https://cdn.test",
		CloudFolder:             "docs",
		LocalDriver:             "local",
		LocalDocumentFolder:     filepath.Join(dir, "staging"),
		LocalDocumentFolderName: "staging",
	}
	fileGateway, err := filestore.NewGateway(cfg, provider, files.NewRepository(db))
	require.NoError(t, err)

	registry, err := document.BuildRegistry(
		config.DefaultAssetsConfig(),
		manipulator.NewNativeEngine(),
		fileGateway,
		documents.NewImageRepository(db),
		documents.NewGenericRepository(db),
		nil,
	)
	require.NoError(t, err)

	associations := assetsrepo.NewAssociationRepository(db)
	require.NoError(t, associations.EnsurePrimaryIndex())

	memCache, err := cache.NewMemoryCache(cache.MemoryConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = memCache.Close() })

	return NewGateway(registry, assetsrepo.NewRepository(db), associations, memCache, time.Minute), db
}

func newJPEGUpload(t *testing.T) *filestore.Upload {
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

	upload, err := filestore.NewUpload(tmpPath, "photo.jpg", "image/jpeg")
	require.NoError(t, err)
	return upload
}

func TestCreateAssetWrapsDocument(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	created, err := gateway.CreateAsset(ctx, newJPEGUpload(t), &CreateOptions{UserID: 7})
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, models.DocumentTypeImage, created.DocumentType)
	assert.NotZero(t, created.DocumentID)
	assert.True(t, created.Active)
	assert.Equal(t, uint(7), created.UserID)
}

func TestFindServesFromCache(t *testing.T) {
	gateway, db := newTestGateway(t)
	ctx := context.Background()

	created, err := gateway.CreateAsset(ctx, newJPEGUpload(t), nil)
	require.NoError(t, err)

	first, err := gateway.Find(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, first.ID)

	// 直接删除底层行，命中缓存时仍能读到
	require.NoError(t, db.Unscoped().Delete(&models.Asset{}, created.ID).Error)

	second, err := gateway.Find(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, second.ID)
}

func TestAttachPrimaryPromotesAndProjects(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()
	owner := &company{id: 10}

	first, err := gateway.CreateAsset(ctx, newJPEGUpload(t), nil)
	require.NoError(t, err)
	second, err := gateway.CreateAsset(ctx, newJPEGUpload(t), nil)
	require.NoError(t, err)

	_, err = gateway.Attach(ctx, owner, first, true)
	require.NoError(t, err)
	_, err = gateway.Attach(ctx, owner, second, true)
	require.NoError(t, err)

	// 第二次提升后主资产切换
	primary, err := gateway.PrimaryAsset(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, second.ID, primary.ID)

	// owner 顶层拿到了四个变体 URL
	require.NotNil(t, owner.projected)
	assert.NotEmpty(t, owner.projected.OriginalURL)
	assert.NotEmpty(t, owner.projected.SmallURL)
	assert.NotEmpty(t, owner.projected.MediumURL)
	assert.NotEmpty(t, owner.projected.LargeURL)

	associations, err := gateway.ListAssociations(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, associations, 2)
}

func TestAttachNonPrimaryDoesNotPromote(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()
	owner := &company{id: 11}

	created, err := gateway.CreateAsset(ctx, newJPEGUpload(t), nil)
	require.NoError(t, err)

	assoc, err := gateway.Attach(ctx, owner, created, false)
	require.NoError(t, err)
	assert.False(t, assoc.Primary)

	primary, err := gateway.PrimaryAsset(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, primary)
	assert.Nil(t, owner.projected)
}

func TestAttachPrimaryAssetTo(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()
	owner := &company{id: 12}

	created, err := gateway.AttachPrimaryAssetTo(ctx, owner, newJPEGUpload(t), nil)
	require.NoError(t, err)

	primary, err := gateway.PrimaryAsset(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, created.ID, primary.ID)
}

func TestFindAssetDocument(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	created, err := gateway.CreateAsset(ctx, newJPEGUpload(t), nil)
	require.NoError(t, err)

	doc, err := gateway.FindAssetDocument(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, created.DocumentID, doc.GetID())
	assert.Equal(t, models.DocumentTypeImage, doc.DocumentType())
}
