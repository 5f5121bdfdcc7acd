// Package asset 资产网关：文档包装、owner 关联与主资产提升
package asset

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/coreux/asset-gateway/cache"
	"github.com/coreux/asset-gateway/database/models"
	assetsrepo "github.com/coreux/asset-gateway/database/repo/assets"
	"github.com/coreux/asset-gateway/internal/document"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/internal/manipulator"
)

// CreateOptions 资产创建选项
type CreateOptions struct {
	Manipulation manipulator.Options
	UserID       uint
	Order        int
}

// Gateway 资产网关
// 对外暴露资产的创建、查询与关联操作，文档的产出交给驱动注册表。
type Gateway struct {
	registry     *document.Registry
	assets       *assetsrepo.Repository
	associations *assetsrepo.AssociationRepository
	cache        cache.Provider
	cacheTTL     time.Duration
}

// NewGateway 创建资产网关
func NewGateway(registry *document.Registry, assets *assetsrepo.Repository, associations *assetsrepo.AssociationRepository, cacheProvider cache.Provider, cacheTTL time.Duration) *Gateway {
	return &Gateway{
		registry:     registry,
		assets:       assets,
		associations: associations,
		cache:        cacheProvider,
		cacheTTL:     cacheTTL,
	}
}

// CreateAsset 从上传文件创建资产
// 按有效 MIME 解析驱动产出文档，再包装为资产记录。
func (g *Gateway) CreateAsset(ctx context.Context, upload *filestore.Upload, opts *CreateOptions) (*models.Asset, error) {
	if opts == nil {
		opts = &CreateOptions{}
	}

	driver, err := g.registry.ResolveUpload(upload)
	if err != nil {
		return nil, err
	}

	doc, err := driver.Create(ctx, upload, &opts.Manipulation)
	if err != nil {
		return nil, err
	}

	asset := &models.Asset{
		Order:        opts.Order,
		DocumentID:   doc.GetID(),
		DocumentType: doc.DocumentType(),
		Active:       true,
		UserID:       opts.UserID,
	}
	if err := g.assets.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to create asset for document %d: %w", doc.GetID(), err)
	}
	return asset, nil
}

// Find 按 ID 查询资产，结果走缓存
func (g *Gateway) Find(ctx context.Context, id uint) (*models.Asset, error) {
	key := cache.AssetKey.BuildID(id)

	if g.cache != nil {
		var cached models.Asset
		if err := g.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !cache.IsCacheMiss(err) {
			log.Printf("[Asset] Cache read failed for %s: %v", key, err)
		}
	}

	asset, err := g.assets.GetOrFail(ctx, id)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, asset, g.cacheTTL); err != nil {
			log.Printf("[Asset] Cache write failed for %s: %v", key, err)
		}
	}
	return asset, nil
}

// FindWithDocument 查询资产及其背后的具体文档
func (g *Gateway) FindWithDocument(ctx context.Context, id uint) (*models.Asset, models.AssetDocument, error) {
	asset, err := g.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	doc, err := g.FindAssetDocument(ctx, asset)
	if err != nil {
		return nil, nil, err
	}
	return asset, doc, nil
}

// FindAssetDocument 按判别值查询资产背后的具体文档
func (g *Gateway) FindAssetDocument(ctx context.Context, asset *models.Asset) (models.AssetDocument, error) {
	return g.registry.FindDocument(ctx, asset.DocumentType, asset.DocumentID)
}

// Attach 将资产关联到 owner
// primary 为真时执行提升协议：降级当前主关联、插入新的主关联，
// 并把主资产的变体 URL 投影到 owner 顶层；为假时只插入普通关联行。
func (g *Gateway) Attach(ctx context.Context, owner models.HasAssets, asset *models.Asset, primary bool) (*models.AssetAssociation, error) {
	if owner == nil {
		return nil, fmt.Errorf("%w: owner is nil", document.ErrMissingCapability)
	}

	if !primary {
		return g.associations.Attach(ctx, owner.AssetOwnerID(), owner.AssetOwnerType(), asset.ID)
	}

	assoc, err := g.associations.AttachPrimary(ctx, owner.AssetOwnerID(), owner.AssetOwnerType(), asset.ID)
	if err != nil {
		return nil, err
	}

	g.invalidatePrimary(ctx, owner)

	if projector, ok := owner.(models.PrimaryAssetProjector); ok {
		urls, err := g.projectURLs(ctx, asset)
		if err != nil {
			log.Printf("[Asset] Failed to project primary asset urls for %s/%d: %v", owner.AssetOwnerType(), owner.AssetOwnerID(), err)
		} else {
			projector.ApplyPrimaryAssetURLs(urls)
		}
	}
	return assoc, nil
}

// AttachPrimaryAssetTo 一步完成：创建资产并作为主资产关联到 owner
func (g *Gateway) AttachPrimaryAssetTo(ctx context.Context, owner models.HasAssets, upload *filestore.Upload, opts *CreateOptions) (*models.Asset, error) {
	if owner == nil {
		return nil, fmt.Errorf("%w: owner is nil", document.ErrMissingCapability)
	}
	if opts == nil {
		opts = &CreateOptions{}
	}
	if opts.Manipulation.Model == nil {
		opts.Manipulation.Model = owner
	}

	asset, err := g.CreateAsset(ctx, upload, opts)
	if err != nil {
		return nil, err
	}

	if _, err := g.Attach(ctx, owner, asset, true); err != nil {
		return nil, err
	}
	return asset, nil
}

// PrimaryAsset 查询 owner 当前的主资产，无主关联时返回 nil
func (g *Gateway) PrimaryAsset(ctx context.Context, owner models.HasAssets) (*models.Asset, error) {
	key := cache.PrimaryAssetKey.Build(owner.AssetOwnerType(), fmt.Sprint(owner.AssetOwnerID()))

	if g.cache != nil {
		var cached models.Asset
		if err := g.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	assoc, err := g.associations.GetPrimary(ctx, owner.AssetOwnerID(), owner.AssetOwnerType())
	if err != nil {
		return nil, err
	}
	if assoc == nil {
		return nil, nil
	}

	asset, err := g.assets.GetOrFail(ctx, assoc.AssetID)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, asset, g.cacheTTL); err != nil {
			log.Printf("[Asset] Cache write failed for %s: %v", key, err)
		}
	}
	return asset, nil
}

// ListAssociations 列出 owner 的全部关联
func (g *Gateway) ListAssociations(ctx context.Context, owner models.HasAssets) ([]models.AssetAssociation, error) {
	return g.associations.ListByResource(ctx, owner.AssetOwnerID(), owner.AssetOwnerType())
}

// projectURLs 从资产背后的文档构建顶层 URL 投影
func (g *Gateway) projectURLs(ctx context.Context, asset *models.Asset) (models.PrimaryURLSet, error) {
	doc, err := g.FindAssetDocument(ctx, asset)
	if err != nil {
		return models.PrimaryURLSet{}, err
	}

	switch d := doc.(type) {
	case *models.Image:
		return models.PrimaryURLSet{
			OriginalURL: fileURL(d.ImageFile),
			SmallURL:    fileURL(d.SmallFile),
			MediumURL:   fileURL(d.MediumFile),
			LargeURL:    fileURL(d.LargeFile),
		}, nil
	case *models.GenericDocument:
		return models.PrimaryURLSet{
			DocumentURL:  fileURL(d.DocumentFile),
			ThumbnailURL: fileURL(d.ThumbnailFile),
		}, nil
	default:
		return models.PrimaryURLSet{}, fmt.Errorf("unknown document type %T", doc)
	}
}

// invalidatePrimary 失效 owner 的主资产缓存
func (g *Gateway) invalidatePrimary(ctx context.Context, owner models.HasAssets) {
	if g.cache == nil {
		return
	}
	key := cache.PrimaryAssetKey.Build(owner.AssetOwnerType(), fmt.Sprint(owner.AssetOwnerID()))
	if err := g.cache.Delete(ctx, key); err != nil {
		log.Printf("[Asset] Cache invalidation failed for %s: %v", key, err)
	}
}

func fileURL(f *models.File) string {
	if f == nil {
		return ""
	}
	return f.URL
}
