// Package documents 提供文档记录（图片/通用文档）的仓库
package documents

import (
	"context"
	"errors"

	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/database/repo/base"
	"gorm.io/gorm"
)

// ErrDocumentNotFound 文档不存在
var ErrDocumentNotFound = errors.New("document not found")

// ImageRepository 图片文档仓库
type ImageRepository struct {
	*base.Repository[models.Image]
}

// NewImageRepository 创建图片文档仓库
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{Repository: base.NewRepository[models.Image](db)}
}

// GetOrFail 获取图片文档，未找到时返回 ErrDocumentNotFound
func (r *ImageRepository) GetOrFail(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB().WithContext(ctx).First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &image, nil
}

// GetWithFiles 获取图片文档并预加载全部变体文件
func (r *ImageRepository) GetWithFiles(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB().WithContext(ctx).
		Preload("ImageFile").
		Preload("SmallFile").
		Preload("MediumFile").
		Preload("LargeFile").
		First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &image, nil
}

// GenericRepository 通用文档仓库
type GenericRepository struct {
	*base.Repository[models.GenericDocument]
}

// NewGenericRepository 创建通用文档仓库
func NewGenericRepository(db *gorm.DB) *GenericRepository {
	return &GenericRepository{Repository: base.NewRepository[models.GenericDocument](db)}
}

// GetOrFail 获取通用文档，未找到时返回 ErrDocumentNotFound
func (r *GenericRepository) GetOrFail(ctx context.Context, id uint) (*models.GenericDocument, error) {
	var doc models.GenericDocument
	err := r.DB().WithContext(ctx).First(&doc, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// GetWithFiles 获取通用文档并预加载缩略图和文档文件
func (r *GenericRepository) GetWithFiles(ctx context.Context, id uint) (*models.GenericDocument, error) {
	var doc models.GenericDocument
	err := r.DB().WithContext(ctx).
		Preload("ThumbnailFile").
		Preload("DocumentFile").
		First(&doc, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}
