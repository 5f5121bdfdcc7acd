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
	"gorm.io/gorm"
)

// GenericDriver 通用文档驱动
// 文档本体总是新上传；缩略图按分类复用已入库文件或拉取后入库。
// 驱动不限定 MIME（Accepts 对空列表恒假），靠默认驱动兜底接住所有类型。
type GenericDriver struct {
	name               string
	mimes              []string
	defaultManipulator string
	manipulators       map[string]manipulator.Manipulator
	gateway            *filestore.Gateway
	repo               *documents.GenericRepository
	cleaner            BlobCleaner
}

// NewGenericDriver 创建通用文档驱动
func NewGenericDriver(name string, dc config.DriverConfig, manipulators map[string]manipulator.Manipulator, gateway *filestore.Gateway, repo *documents.GenericRepository, cleaner BlobCleaner) (*GenericDriver, error) {
	if dc.DefaultManipulator == "" {
		return nil, fmt.Errorf("driver '%s' has no default manipulator configured", name)
	}
	if _, ok := manipulators[dc.DefaultManipulator]; !ok {
		return nil, fmt.Errorf("driver '%s' default manipulator '%s' is not configured", name, dc.DefaultManipulator)
	}

	return &GenericDriver{
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
func (d *GenericDriver) Name() string {
	return d.name
}

// DocumentType 返回文档类型判别值
func (d *GenericDriver) DocumentType() string {
	return models.DocumentTypeGeneric
}

// Accepts 判断驱动是否接受该 MIME
func (d *GenericDriver) Accepts(mimeType string) bool {
	for _, m := range d.mimes {
		if m == mimeType {
			return true
		}
	}
	return false
}

// Create 从上传文件创建通用文档
// 文档记录、缩略图记录（如需新建）与文档行在同一事务中写入。
func (d *GenericDriver) Create(ctx context.Context, upload *filestore.Upload, opts *manipulator.Options) (models.AssetDocument, error) {
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
		_ = os.Remove(staged.LocalPath())
		return nil, err
	}

	uploads := []*filestore.StagedFile{bag.Document}
	if bag.Thumbnail != nil && bag.Thumbnail.Staged != nil {
		uploads = append(uploads, bag.Thumbnail.Staged)
	}

	keys := make(map[*filestore.StagedFile]string, len(uploads))
	for _, sf := range uploads {
		key, err := d.gateway.UploadBlob(ctx, sf)
		if err != nil {
			d.compensate(keys)
			d.discard(uploads)
			return nil, err
		}
		keys[sf] = key
	}

	doc := &models.GenericDocument{Title: titleFor(opts, staged.OriginalName)}
	err = d.repo.Transaction(func(tx *gorm.DB) error {
		file, err := d.gateway.RecordTx(ctx, tx, bag.Document, keys[bag.Document])
		if err != nil {
			return err
		}
		doc.DocumentID = file.ID

		switch {
		case bag.Thumbnail != nil && bag.Thumbnail.ExistingID != nil:
			doc.ThumbnailID = *bag.Thumbnail.ExistingID
		case bag.Thumbnail != nil && bag.Thumbnail.Staged != nil:
			thumb, err := d.gateway.RecordTx(ctx, tx, bag.Thumbnail.Staged, keys[bag.Thumbnail.Staged])
			if err != nil {
				return err
			}
			doc.ThumbnailID = thumb.ID
		default:
			return fmt.Errorf("manipulator produced no thumbnail reference")
		}

		return tx.WithContext(ctx).Create(doc).Error
	})
	if err != nil {
		d.compensate(keys)
		d.discard(uploads)
		return nil, fmt.Errorf("failed to create generic document: %w", err)
	}

	for _, sf := range uploads {
		d.gateway.DiscardLocal(sf)
	}
	return doc, nil
}

// GetOrFail 获取通用文档（含文件）
func (d *GenericDriver) GetOrFail(ctx context.Context, id uint) (models.AssetDocument, error) {
	return d.repo.GetWithFiles(ctx, id)
}

// compensate 异步删除已上传的对象
func (d *GenericDriver) compensate(keys map[*filestore.StagedFile]string) {
	if d.cleaner == nil || len(keys) == 0 {
		return
	}
	list := make([]string, 0, len(keys))
	for _, key := range keys {
		list = append(list, key)
	}
	d.cleaner.CleanupBlobs(list)
}

// discard 删除本地暂存副本
func (d *GenericDriver) discard(uploads []*filestore.StagedFile) {
	for _, sf := range uploads {
		_ = os.Remove(sf.LocalPath())
	}
}
