// Package files 提供已持久化文件元数据的仓库
package files

import (
	"context"

	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/database/repo/base"
	"gorm.io/gorm"
)

// Repository 文件仓库
type Repository struct {
	*base.Repository[models.File]
}

// NewRepository 创建文件仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Repository: base.NewRepository[models.File](db)}
}

// GetByIDs 批量获取文件记录
func (r *Repository) GetByIDs(ctx context.Context, ids []uint) ([]models.File, error) {
	var result []models.File
	if len(ids) == 0 {
		return result, nil
	}
	err := r.DB().WithContext(ctx).Where("id IN ?", ids).Find(&result).Error
	return result, err
}

// SoftDeleteByIDs 批量软删除文件记录，行保留
func (r *Repository) SoftDeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.DB().WithContext(ctx).Where("id IN ?", ids).Delete(&models.File{}).Error
}
