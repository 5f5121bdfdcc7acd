// Package assets 提供资产与 resource_asset 关联的仓库
package assets

import (
	"context"
	"errors"
	"strings"

	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/database/repo/base"
	"gorm.io/gorm"
)

// ErrAssetNotFound 资产不存在
var ErrAssetNotFound = errors.New("asset not found")

// Repository 资产仓库
type Repository struct {
	*base.Repository[models.Asset]
}

// NewRepository 创建资产仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Repository: base.NewRepository[models.Asset](db)}
}

// GetOrFail 获取资产，未找到时返回 ErrAssetNotFound
func (r *Repository) GetOrFail(ctx context.Context, id uint) (*models.Asset, error) {
	var asset models.Asset
	err := r.DB().WithContext(ctx).First(&asset, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// AssociationRepository resource_asset 关联仓库
type AssociationRepository struct {
	db *gorm.DB
}

// NewAssociationRepository 创建关联仓库
func NewAssociationRepository(db *gorm.DB) *AssociationRepository {
	return &AssociationRepository{db: db}
}

// maxAttachRetries 主资产提升的冲突重试上限
const maxAttachRetries = 3

// EnsurePrimaryIndex 创建单主资产的部分唯一索引
// 这是单主不变量的最终防线：同一 (resource_id, resource_type) 下
// primary = true 的行最多一行，并发提升冲突时由数据库拒绝第二行。
func (r *AssociationRepository) EnsurePrimaryIndex() error {
	return r.db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_resource_primary ON resource_asset (resource_id, resource_type) WHERE "primary"`,
	).Error
}

// Attach 插入一条普通关联行，不触发主资产切换
func (r *AssociationRepository) Attach(ctx context.Context, resourceID uint, resourceType string, assetID uint) (*models.AssetAssociation, error) {
	assoc := &models.AssetAssociation{
		ResourceID:   resourceID,
		ResourceType: resourceType,
		AssetID:      assetID,
		Primary:      false,
	}
	if err := r.db.WithContext(ctx).Create(assoc).Error; err != nil {
		return nil, err
	}
	return assoc, nil
}

// AttachPrimary 提升协议：降级当前主关联并插入新的主关联
// 两步在同一事务中执行；并发提升同一 owner 时由部分唯一索引兜底，
// 冲突方降级重试，保证任意交错下恰好一行 primary = true。
func (r *AssociationRepository) AttachPrimary(ctx context.Context, resourceID uint, resourceType string, assetID uint) (*models.AssetAssociation, error) {
	var assoc *models.AssetAssociation
	var lastErr error

	for attempt := 0; attempt < maxAttachRetries; attempt++ {
		assoc = &models.AssetAssociation{
			ResourceID:   resourceID,
			ResourceType: resourceType,
			AssetID:      assetID,
			Primary:      true,
		}

		lastErr = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.AssetAssociation{}).
				Where(map[string]interface{}{
					"resource_id":   resourceID,
					"resource_type": resourceType,
					"primary":       true,
				}).
				Update("primary", false).Error; err != nil {
				return err
			}
			return tx.Create(assoc).Error
		})

		if lastErr == nil {
			return assoc, nil
		}
		retryable := errors.Is(lastErr, gorm.ErrDuplicatedKey) || isUniqueViolation(lastErr) || isBusy(lastErr)
		if !retryable {
			return nil, lastErr
		}
		// 唯一索引冲突：另一个提升先落地，重试走降级路径
	}

	return nil, lastErr
}

// GetPrimary 获取 owner 当前的主关联，未找到时返回 (nil, nil)
func (r *AssociationRepository) GetPrimary(ctx context.Context, resourceID uint, resourceType string) (*models.AssetAssociation, error) {
	var assoc models.AssetAssociation
	err := r.db.WithContext(ctx).
		Where(map[string]interface{}{
			"resource_id":   resourceID,
			"resource_type": resourceType,
			"primary":       true,
		}).
		First(&assoc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assoc, nil
}

// ListByResource 列出 owner 的全部关联行，历史保留
func (r *AssociationRepository) ListByResource(ctx context.Context, resourceID uint, resourceType string) ([]models.AssetAssociation, error) {
	var result []models.AssetAssociation
	err := r.db.WithContext(ctx).
		Where("resource_id = ? AND resource_type = ?", resourceID, resourceType).
		Order("id").
		Find(&result).Error
	return result, err
}

// CountPrimary 统计 owner 的主关联行数，仅用于一致性检查
func (r *AssociationRepository) CountPrimary(ctx context.Context, resourceID uint, resourceType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AssetAssociation{}).
		Where(map[string]interface{}{
			"resource_id":   resourceID,
			"resource_type": resourceType,
			"primary":       true,
		}).
		Count(&count).Error
	return count, err
}

// isUniqueViolation 判断驱动层的唯一约束错误
// sqlite 与 postgres 驱动返回的错误类型不同，统一按消息匹配
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// isBusy sqlite 写锁等待超时，重试即可
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
