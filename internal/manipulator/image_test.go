package manipulator

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStagedPNG(t *testing.T, dir string, width, height int) *filestore.StagedFile {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	staged := &filestore.StagedFile{
		Folder:       dir,
		Name:         "source",
		Extension:    "png",
		MimeType:     "image/png",
		OriginalName: "source.png",
	}

	f, err := os.Create(staged.LocalPath())
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	info, err := os.Stat(staged.LocalPath())
	require.NoError(t, err)
	staged.Size = info.Size()
	return staged
}

func profileConfig() config.ManipulatorConfig {
	return config.ManipulatorConfig{
		Impl: config.ManipulatorImageProfile,
		Sizes: map[string]config.SizeBox{
			"large":  {X: 700, Y: 0},
			"medium": {X: 400, Y: 0},
			"small":  {X: 100, Y: 0},
		},
	}
}

func logoConfig() config.ManipulatorConfig {
	return config.ManipulatorConfig{
		Impl: config.ManipulatorCompanyLogo,
		Sizes: map[string]config.SizeBox{
			"large":  {X: 500, Y: 500},
			"medium": {X: 250, Y: 250},
			"small":  {X: 100, Y: 100},
		},
	}
}

func dirEntryCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestCompanyLogoRejectsZeroCropCoordinate(t *testing.T) {
	dir := t.TempDir()
	staged := writeStagedPNG(t, dir, 600, 400)
	originalSize := staged.Size

	m, err := NewCompanyLogo("LogoManipulator", logoConfig(), NewNativeEngine())
	require.NoError(t, err)

	_, err = m.Manipulate(context.Background(), staged, &Options{Width: 0, Height: 200, X: 0, Y: 0})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	// 校验失败必须发生在任何文件写入之前
	assert.Equal(t, 1, dirEntryCount(t, dir))
	info, statErr := os.Stat(staged.LocalPath())
	require.NoError(t, statErr)
	assert.Equal(t, originalSize, info.Size())
}

func TestBannerRequiresAllCropCoordinates(t *testing.T) {
	dir := t.TempDir()
	staged := writeStagedPNG(t, dir, 600, 400)

	bannerCfg := config.ManipulatorConfig{
		Impl: config.ManipulatorBanner,
		Sizes: map[string]config.SizeBox{
			"large": {X: 1000, Y: 563},
		},
	}
	m, err := NewBanner("BannerImages", bannerCfg, NewNativeEngine())
	require.NoError(t, err)

	_, err = m.Manipulate(context.Background(), staged, &Options{Width: 300, Height: 150, X: 10, Y: 0})
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	assert.Equal(t, 1, dirEntryCount(t, dir))
}

func TestImageProfileSkipsCropWithoutOptions(t *testing.T) {
	dir := t.TempDir()
	staged := writeStagedPNG(t, dir, 600, 400)
	originalSize := staged.Size

	m, err := NewImageProfile("ImageProfiles", profileConfig(), NewNativeEngine())
	require.NoError(t, err)

	bag, err := m.Manipulate(context.Background(), staged, &Options{})
	require.NoError(t, err)

	// 原件未被修改
	info, err := os.Stat(staged.LocalPath())
	require.NoError(t, err)
	assert.Equal(t, originalSize, info.Size())

	// 全部尺寸变体都已派生
	require.Len(t, bag.Variants, 4)
	for _, label := range []string{VariantOriginal, "small", "medium", "large"} {
		variant, ok := bag.Variants[label]
		require.True(t, ok, "missing variant %s", label)
		assert.FileExists(t, variant.LocalPath())
	}

	// 变体与原件同目录、同扩展名，文件名互不相同
	seen := map[string]bool{}
	for _, variant := range bag.Variants {
		assert.Equal(t, dir, variant.Folder)
		assert.Equal(t, "png", variant.Extension)
		assert.False(t, seen[variant.Name], "duplicate variant name %s", variant.Name)
		seen[variant.Name] = true
	}
}

func TestImageProfileRejectsNonSquareCrop(t *testing.T) {
	dir := t.TempDir()
	staged := writeStagedPNG(t, dir, 600, 400)

	m, err := NewImageProfile("ImageProfiles", profileConfig(), NewNativeEngine())
	require.NoError(t, err)

	_, err = m.Manipulate(context.Background(), staged, &Options{Width: 300, Height: 200, X: 10, Y: 10})
	assert.ErrorIs(t, err, ErrInvalidAspectRatio)
	assert.Equal(t, 1, dirEntryCount(t, dir))
}

func TestImageProfileAppliesSquareCrop(t *testing.T) {
	dir := t.TempDir()
	staged := writeStagedPNG(t, dir, 600, 400)

	m, err := NewImageProfile("ImageProfiles", profileConfig(), NewNativeEngine())
	require.NoError(t, err)

	bag, err := m.Manipulate(context.Background(), staged, &Options{Width: 200, Height: 200, X: 50, Y: 50})
	require.NoError(t, err)
	require.Len(t, bag.Variants, 4)

	// 裁剪后的原件是 200x200
	f, err := os.Open(staged.LocalPath())
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestNativeEngineFitDoesNotUpscale(t *testing.T) {
	dir := t.TempDir()
	staged := writeStagedPNG(t, dir, 80, 60)

	engine := NewNativeEngine()
	dst := filepath.Join(dir, "fitted.png")
	require.NoError(t, engine.Fit(context.Background(), staged.LocalPath(), dst, 700, 0))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}

func TestNativeEngineFitFillsBox(t *testing.T) {
	dir := t.TempDir()
	staged := writeStagedPNG(t, dir, 600, 400)

	engine := NewNativeEngine()
	dst := filepath.Join(dir, "banner.png")
	require.NoError(t, engine.Fit(context.Background(), staged.LocalPath(), dst, 400, 225))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 225, img.Bounds().Dy())
}

func TestNewImageManipulatorRequiresSizes(t *testing.T) {
	_, err := NewImageProfile("ImageProfiles", config.ManipulatorConfig{}, NewNativeEngine())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
