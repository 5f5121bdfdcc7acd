package document

import (
	"context"
	"fmt"
	"os"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/database/repo/documents"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/internal/manipulator"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// 图片文档的固定变体标签
const (
	variantSmall  = "small"
	variantMedium = "medium"
	variantLarge  = "large"
)

// imageVariants 图片文档行引用的全部变体
// 处理器多配出来的尺寸不会被持久化，只会随本地暂存一起清理。
var imageVariants = []string{
	manipulator.VariantOriginal,
	variantSmall,
	variantMedium,
	variantLarge,
}

// ImageDriver 图片文档驱动
// 一次 create 产出裁剪后的原图与三个尺寸变体，四个文件记录
// 和图片文档行在同一事务中写入。
type ImageDriver struct {
	name               string
	mimes              []string
	defaultManipulator string
	manipulators       map[string]manipulator.Manipulator
	gateway            *filestore.Gateway
	repo               *documents.ImageRepository
	cleaner            BlobCleaner
}

// NewImageDriver 创建图片文档驱动
func NewImageDriver(name string, dc config.DriverConfig, manipulators map[string]manipulator.Manipulator, gateway *filestore.Gateway, repo *documents.ImageRepository, cleaner BlobCleaner) (*ImageDriver, error) {
	if dc.DefaultManipulator == "" {
		return nil, fmt.Errorf("driver '%s' has no default manipulator configured", name)
	}
	if _, ok := manipulators[dc.DefaultManipulator]; !ok {
		return nil, fmt.Errorf("driver '%s' default manipulator '%s' is not configured", name, dc.DefaultManipulator)
	}

	return &ImageDriver{
		name:               name,
		mimes:              dc.Mimes,
		defaultManipulator: dc.DefaultManipulator,
		manipulators:       manipulators,
		gateway:            gateway,
		repo:               repo,
		cleaner:            cleaner,
	}, nil
}

// Name 返回驱动名称
func (d *ImageDriver) Name() string {
	return d.name
}

// DocumentType 返回文档类型判别值
func (d *ImageDriver) DocumentType() string {
	return models.DocumentTypeImage
}

// Accepts 判断驱动是否接受该 MIME
func (d *ImageDriver) Accepts(mimeType string) bool {
	for _, m := range d.mimes {
		if m == mimeType {
			return true
		}
	}
	return false
}

// Create 从上传文件创建图片文档
// 变体上传并行执行；任何一步失败都不会留下部分文档，
// 已上传的对象交给补偿清理异步删除。
func (d *ImageDriver) Create(ctx context.Context, upload *filestore.Upload, opts *manipulator.Options) (models.AssetDocument, error) {
	manip, err := selectManipulator(d.manipulators, d.defaultManipulator, opts)
	if err != nil {
		return nil, err
	}

	staged, err := d.gateway.StageUpload(ctx, upload)
	if err != nil {
		return nil, err
	}

	bag, err := manip.Manipulate(ctx, staged, opts)
	if err != nil {
		d.discardVariants(bag, staged)
		return nil, err
	}

	if err := d.requireVariants(bag); err != nil {
		d.discardVariants(bag, staged)
		return nil, err
	}
	labels := imageVariants

	// 存储 key 由暂存文件确定，失败补偿直接重算，无需收集
	keys := make(map[string]string, len(labels))
	for _, label := range labels {
		keys[label] = d.gateway.StorageKey(bag.Variants[label])
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, label := range labels {
		variant := bag.Variants[label]
		group.Go(func() error {
			_, err := d.gateway.UploadBlob(groupCtx, variant)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		d.compensate(keys)
		d.discardVariants(bag, staged)
		return nil, err
	}

	image := &models.Image{Title: titleFor(opts, staged.OriginalName)}
	err = d.repo.Transaction(func(tx *gorm.DB) error {
		fileIDs := make(map[string]uint, len(labels))
		for _, label := range labels {
			file, err := d.gateway.RecordTx(ctx, tx, bag.Variants[label], keys[label])
			if err != nil {
				return err
			}
			fileIDs[label] = file.ID
		}

		image.ImageID = fileIDs[manipulator.VariantOriginal]
		image.SmallID = fileIDs[variantSmall]
		image.MediumID = fileIDs[variantMedium]
		image.LargeID = fileIDs[variantLarge]
		return tx.WithContext(ctx).Create(image).Error
	})
	if err != nil {
		d.compensate(keys)
		d.discardVariants(bag, staged)
		return nil, fmt.Errorf("failed to create image document: %w", err)
	}

	for _, variant := range bag.Variants {
		d.gateway.DiscardLocal(variant)
	}
	return image, nil
}

// GetOrFail 获取图片文档（含变体文件）
func (d *ImageDriver) GetOrFail(ctx context.Context, id uint) (models.AssetDocument, error) {
	return d.repo.GetWithFiles(ctx, id)
}

// requireVariants 校验处理结果包含图片文档需要的全部变体
func (d *ImageDriver) requireVariants(bag *manipulator.Bag) error {
	for _, label := range imageVariants {
		if _, ok := bag.Variants[label]; !ok {
			return fmt.Errorf("manipulator produced no '%s' variant", label)
		}
	}
	return nil
}

// compensate 异步删除已上传的对象
func (d *ImageDriver) compensate(keys map[string]string) {
	if d.cleaner == nil || len(keys) == 0 {
		return
	}
	list := make([]string, 0, len(keys))
	for _, key := range keys {
		list = append(list, key)
	}
	d.cleaner.CleanupBlobs(list)
}

// discardVariants 删除本地暂存的原件与变体
func (d *ImageDriver) discardVariants(bag *manipulator.Bag, staged *filestore.StagedFile) {
	_ = os.Remove(staged.LocalPath())
	if bag == nil {
		return
	}
	for label, variant := range bag.Variants {
		if label == manipulator.VariantOriginal {
			continue
		}
		_ = os.Remove(variant.LocalPath())
	}
}
