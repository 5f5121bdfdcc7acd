// Package core HTTP 服务装配与生命周期
package core

import (
	"context"
	"net/http"
	"time"

	"github.com/coreux/asset-gateway/api/common"
	assetsHandler "github.com/coreux/asset-gateway/api/handler/assets"
	"github.com/coreux/asset-gateway/api/middleware"
	"github.com/coreux/asset-gateway/cache"
	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/internal/asset"
	"github.com/coreux/asset-gateway/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var startTime = time.Now()

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	DB             *gorm.DB
	StorageFactory *storage.Factory
	Cache          cache.Provider
	AssetGateway   *asset.Gateway
}

// setupRouter 装配 gin 路由
func setupRouter(deps *ServerDependencies) *gin.Engine {
	cfg := config.Get()
	router := gin.New()

	// 仅在开发版本时启用 gin 日志
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.ServerDomain},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.SetTrustedProxies(nil)
	router.MaxMultipartMemory = int64(cfg.UploadMaxSizeMB) << 20

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst)

	router.GET("/health", func(c *gin.Context) {
		health := gin.H{
			"status":  "ok",
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": config.Version,
			"checks": gin.H{
				"database": checkDatabaseHealth(deps.DB),
				"cache":    checkCacheHealth(deps.Cache),
				"storage":  checkStorageHealth(deps.StorageFactory),
			},
		}
		httpStatus := http.StatusOK
		for _, checkResult := range health["checks"].(gin.H) {
			if result, ok := checkResult.(string); ok && result != "ok" {
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(httpStatus, health)
	})
	router.GET("/version", func(c *gin.Context) {
		common.RespondSuccess(c, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	handler := assetsHandler.NewHandler(deps.AssetGateway)

	api := router.Group("/api")
	{
		v1 := api.Group("/v1")
		v1.Use(rateLimiter.Middleware())
		{
			assetsGroup := v1.Group("/assets")
			{
				assetsGroup.POST("", handler.UploadAsset)             // POST /api/v1/assets
				assetsGroup.GET("/:id", handler.GetAsset)             // GET /api/v1/assets/{id}
				assetsGroup.POST("/:id/attach", handler.AttachAsset)  // POST /api/v1/assets/{id}/attach
			}

			resourcesGroup := v1.Group("/resources")
			{
				resourcesGroup.GET("/:type/:id/assets", handler.ListResourceAssets)        // GET /api/v1/resources/{type}/{id}/assets
				resourcesGroup.GET("/:type/:id/assets/primary", handler.GetPrimaryAsset)   // GET /api/v1/resources/{type}/{id}/assets/primary
			}
		}
	}

	return router
}

// StartServer 创建 http.Server
func StartServer(deps *ServerDependencies) *http.Server {
	cfg := config.Get()
	router := setupRouter(deps)

	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}
}

// checkDatabaseHealth 数据库健康检查
func checkDatabaseHealth(db *gorm.DB) string {
	if db == nil {
		return "not configured"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "error: " + err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

// checkCacheHealth 缓存健康检查
func checkCacheHealth(provider cache.Provider) string {
	if provider == nil {
		return "not configured"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := provider.Exists(ctx, "health_check"); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

// checkStorageHealth 存储健康检查
func checkStorageHealth(factory *storage.Factory) string {
	if factory == nil {
		return "not configured"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := factory.GetDefault().Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
