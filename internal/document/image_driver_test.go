package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/internal/manipulator"
	"github.com/coreux/asset-gateway/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageDriverCreateProducesFourVariants(t *testing.T) {
	stack := newTestStack(t, nil, nil)
	ctx := context.Background()

	// 客户端声明 octet-stream，嗅探为 JPEG，图片驱动被选中
	upload := newJPEGUpload(t, "application/octet-stream")
	driver, err := stack.registry.ResolveUpload(upload)
	require.NoError(t, err)
	require.Equal(t, models.DocumentTypeImage, driver.DocumentType())

	doc, err := driver.Create(ctx, upload, &manipulator.Options{})
	require.NoError(t, err)

	img, ok := doc.(*models.Image)
	require.True(t, ok)
	assert.Equal(t, "photo.jpg", img.Title)

	// 四个变体各自指向不同的文件记录
	ids := []uint{img.ImageID, img.SmallID, img.MediumID, img.LargeID}
	seen := map[uint]bool{}
	for _, id := range ids {
		assert.NotZero(t, id)
		assert.False(t, seen[id], "duplicate stored file id %d", id)
		seen[id] = true
	}

	// 每条文件记录都有格式正确的 URL
	var fileRows []models.File
	require.NoError(t, stack.db.Find(&fileRows, ids).Error)
	require.Len(t, fileRows, 4)
	for _, row := range fileRows {
		assert.True(t, strings.HasPrefix(row.URL, "https://cdn.test/docs/"), "unexpected url %s", row.URL)
		assert.True(t, strings.HasSuffix(row.URL, ".jpg"), "unexpected url %s", row.URL)
		assert.Equal(t, "photo.jpg", row.OriginalName)
	}
}

func TestImageDriverStorageFailureCreatesNoDocument(t *testing.T) {
	stack := newTestStack(t, failingProvider{}, nil)
	ctx := context.Background()

	upload := newJPEGUpload(t, "image/jpeg")
	driver, err := stack.registry.Resolve("image/jpeg")
	require.NoError(t, err)

	_, err = driver.Create(ctx, upload, &manipulator.Options{})
	assert.ErrorIs(t, err, filestore.ErrStorageUnavailable)

	var imageCount, fileCount int64
	require.NoError(t, stack.db.Model(&models.Image{}).Count(&imageCount).Error)
	require.NoError(t, stack.db.Model(&models.File{}).Count(&fileCount).Error)
	assert.Zero(t, imageCount)
	assert.Zero(t, fileCount)

	// 补偿清理收到了全部候选 key
	assert.Len(t, stack.cleaner.Keys(), 4)
}

func TestImageDriverTitleFromOptions(t *testing.T) {
	stack := newTestStack(t, nil, nil)

	driver, err := stack.registry.Resolve("image/jpeg")
	require.NoError(t, err)

	doc, err := driver.Create(context.Background(), newJPEGUpload(t, "image/jpeg"), &manipulator.Options{Title: "Team offsite"})
	require.NoError(t, err)

	img := doc.(*models.Image)
	assert.Equal(t, "Team offsite", img.Title)
}

func TestImageDriverCropValidationWritesNothing(t *testing.T) {
	// 企业标志处理器作为默认处理器，坐标为零时拒绝
	assetsCfg := config.DefaultAssetsConfig()
	imageDriver := assetsCfg.Drivers[config.DriverImage]
	imageDriver.DefaultManipulator = config.ManipulatorCompanyLogo
	assetsCfg.Drivers[config.DriverImage] = imageDriver
	stack := newTestStack(t, nil, assetsCfg)

	driver, err := stack.registry.Resolve("image/jpeg")
	require.NoError(t, err)

	_, err = driver.Create(context.Background(), newJPEGUpload(t, "image/jpeg"), &manipulator.Options{Width: 0, Height: 200})
	assert.ErrorIs(t, err, manipulator.ErrInvalidDimensions)

	var fileCount int64
	require.NoError(t, stack.db.Model(&models.File{}).Count(&fileCount).Error)
	assert.Zero(t, fileCount)
}

func TestImageDriverIgnoresExtraSizeLabels(t *testing.T) {
	// 处理器多配一档尺寸，文档行引用不到的变体不落库也不上传
	assetsCfg := config.DefaultAssetsConfig()
	imageDriver := assetsCfg.Drivers[config.DriverImage]
	profile := imageDriver.Manipulators[config.ManipulatorImageProfile]
	sizes := map[string]config.SizeBox{"xlarge": {X: 900}}
	for label, box := range profile.Sizes {
		sizes[label] = box
	}
	profile.Sizes = sizes
	imageDriver.Manipulators[config.ManipulatorImageProfile] = profile
	assetsCfg.Drivers[config.DriverImage] = imageDriver

	local, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "durable"))
	require.NoError(t, err)
	counting := &countingProvider{Provider: local}
	stack := newTestStack(t, counting, assetsCfg)

	driver, err := stack.registry.Resolve("image/jpeg")
	require.NoError(t, err)

	doc, err := driver.Create(context.Background(), newJPEGUpload(t, "image/jpeg"), &manipulator.Options{})
	require.NoError(t, err)

	img := doc.(*models.Image)
	assert.NotZero(t, img.ImageID)

	var fileCount int64
	require.NoError(t, stack.db.Model(&models.File{}).Count(&fileCount).Error)
	assert.Equal(t, int64(4), fileCount)
	assert.Equal(t, 4, counting.SaveCount())
}

func TestImageDriverGetOrFail(t *testing.T) {
	stack := newTestStack(t, nil, nil)
	ctx := context.Background()

	driver, err := stack.registry.Resolve("image/jpeg")
	require.NoError(t, err)

	created, err := driver.Create(ctx, newJPEGUpload(t, "image/jpeg"), &manipulator.Options{})
	require.NoError(t, err)

	found, err := driver.GetOrFail(ctx, created.GetID())
	require.NoError(t, err)

	img := found.(*models.Image)
	require.NotNil(t, img.ImageFile)
	assert.NotEmpty(t, img.ImageFile.URL)
	require.NotNil(t, img.SmallFile)
	require.NotNil(t, img.MediumFile)
	require.NotNil(t, img.LargeFile)

	_, err = driver.GetOrFail(ctx, created.GetID()+1000)
	assert.Error(t, err)
}

func TestImageDriverParallelCreates(t *testing.T) {
	stack := newTestStack(t, nil, nil)
	driver, err := stack.registry.Resolve("image/jpeg")
	require.NoError(t, err)

	const n = 4
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		upload := newJPEGUpload(t, "image/jpeg")
		go func() {
			_, err := driver.Create(context.Background(), upload, &manipulator.Options{})
			errCh <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errCh, fmt.Sprintf("create %d failed", i))
	}

	var imageCount int64
	require.NoError(t, stack.db.Model(&models.Image{}).Count(&imageCount).Error)
	assert.Equal(t, int64(n), imageCount)
}
