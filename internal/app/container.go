// Package app 依赖装配容器
package app

import (
	"fmt"
	"time"

	"github.com/coreux/asset-gateway/cache"
	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/database"
	assetsrepo "github.com/coreux/asset-gateway/database/repo/assets"
	"github.com/coreux/asset-gateway/database/repo/documents"
	"github.com/coreux/asset-gateway/database/repo/files"
	"github.com/coreux/asset-gateway/internal/asset"
	"github.com/coreux/asset-gateway/internal/document"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/internal/manipulator"
	"github.com/coreux/asset-gateway/internal/worker"
	"github.com/coreux/asset-gateway/storage"
	"gorm.io/gorm"
)

// Container 进程级依赖容器
// Init 按依赖顺序装配：数据库 → 存储 → 缓存 → 文件网关 → 驱动注册表 → 资产网关。
type Container struct {
	cfg *config.Config

	db             *gorm.DB
	storageFactory *storage.Factory
	cacheProvider  cache.Provider
	fileGateway    *filestore.Gateway
	registry       *document.Registry
	assetGateway   *asset.Gateway
	pool           *worker.Pool
	janitor        *worker.Janitor

	associations *assetsrepo.AssociationRepository
}

// NewContainer 创建容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{cfg: cfg}
}

// Init 装配全部依赖
func (c *Container) Init() error {
	db, err := database.NewDB(c.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	c.associations = assetsrepo.NewAssociationRepository(db)
	if err := c.associations.EnsurePrimaryIndex(); err != nil {
		return fmt.Errorf("failed to ensure primary index: %w", err)
	}

	c.storageFactory, err = storage.NewFactory(c.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	c.cacheProvider, err = cache.NewProvider(c.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	filesRepo := files.NewRepository(db)
	c.fileGateway, err = filestore.NewGateway(c.cfg, c.storageFactory.GetDefault(), filesRepo)
	if err != nil {
		return fmt.Errorf("failed to initialize file gateway: %w", err)
	}

	c.pool = worker.NewPool(c.cfg.GetWorkerCount(), 1000)
	c.pool.Start()
	cleaner := worker.NewBlobCleaner(c.pool, c.fileGateway)
	c.janitor = worker.NewJanitor(c.fileGateway, c.cfg.StagingMaxAge, time.Hour)

	engine, err := manipulator.NewEngine(c.cfg)
	if err != nil {
		return err
	}

	assetsConfig, err := config.LoadAssetsConfig(c.cfg)
	if err != nil {
		return fmt.Errorf("failed to load assets config: %w", err)
	}

	c.registry, err = document.BuildRegistry(
		assetsConfig,
		engine,
		c.fileGateway,
		documents.NewImageRepository(db),
		documents.NewGenericRepository(db),
		cleaner,
	)
	if err != nil {
		return fmt.Errorf("failed to build driver registry: %w", err)
	}

	cacheTTL := time.Duration(c.cfg.CacheAssetTTL) * time.Second
	c.assetGateway = asset.NewGateway(
		c.registry,
		assetsrepo.NewRepository(db),
		c.associations,
		c.cacheProvider,
		cacheTTL,
	)
	return nil
}

// Shutdown 停止后台组件并释放连接
func (c *Container) Shutdown() {
	if c.pool != nil {
		c.pool.Stop()
	}
	if c.cacheProvider != nil {
		_ = c.cacheProvider.Close()
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// DB 返回数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// StorageFactory 返回存储工厂
func (c *Container) StorageFactory() *storage.Factory {
	return c.storageFactory
}

// Cache 返回缓存提供者
func (c *Container) Cache() cache.Provider {
	return c.cacheProvider
}

// FileGateway 返回文件网关
func (c *Container) FileGateway() *filestore.Gateway {
	return c.fileGateway
}

// Registry 返回文档驱动注册表
func (c *Container) Registry() *document.Registry {
	return c.registry
}

// AssetGateway 返回资产网关
func (c *Container) AssetGateway() *asset.Gateway {
	return c.assetGateway
}

// Janitor 返回暂存区清理器
func (c *Container) Janitor() *worker.Janitor {
	return c.janitor
}
