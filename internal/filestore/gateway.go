// Package filestore 文件网关：本地暂存 + 持久化存储 + URL 构建
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/database/repo/files"
	"github.com/coreux/asset-gateway/storage"
	"github.com/coreux/asset-gateway/utils/generator"
	"github.com/coreux/asset-gateway/utils/mime"
	"gorm.io/gorm"
)

var (
	// ErrInvalidConfig 文件网关配置校验失败
	ErrInvalidConfig = errors.New("file gateway configuration is invalid")
	// ErrStorageUnavailable 持久化上传失败
	ErrStorageUnavailable = errors.New("durable storage unavailable")
	// ErrStaging 本地暂存写入失败
	ErrStaging = errors.New("failed to stage file locally")
)

// 配置缺失时的兜底值
const (
	defaultBaseURL       = "https://checkconfigforfilegateway.now"
	defaultStorageFolder = "documents"
)

// Gateway 文件网关
// Stage 只做廉价的本地写入，Persist 负责唯一一次可能失败的远端上传，
// 两步分离让处理器可以反复派生变体而不触碰持久化存储。
type Gateway struct {
	cfg      *config.Config
	provider storage.Provider
	repo     *files.Repository
}

// NewGateway 创建文件网关，配置校验失败时不产生任何副作用
func NewGateway(cfg *config.Config, provider storage.Provider, repo *files.Repository) (*Gateway, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.LocalDocumentFolder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory '%s': %w", cfg.LocalDocumentFolder, err)
	}

	return &Gateway{
		cfg:      cfg,
		provider: provider,
		repo:     repo,
	}, nil
}

// NewStagingGateway 创建只维护本地暂存区的文件网关
// 不接持久化存储与数据库，持久化一族的方法在这种网关上直接报错。
func NewStagingGateway(cfg *config.Config) (*Gateway, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.LocalDocumentFolder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory '%s': %w", cfg.LocalDocumentFolder, err)
	}

	return &Gateway{cfg: cfg}, nil
}

// validateConfig 校验文件网关配置
func validateConfig(cfg *config.Config) error {
	if cfg.LocalDriver == "" {
		return fmt.Errorf("%w: local_driver is required", ErrInvalidConfig)
	}
	if cfg.LocalDocumentFolder == "" {
		return fmt.Errorf("%w: local_document_folder is required", ErrInvalidConfig)
	}
	if cfg.LocalDocumentFolderName == "" {
		return fmt.Errorf("%w: local_document_folder_name is required", ErrInvalidConfig)
	}
	return nil
}

// Stage 将内容写入本地暂存区
// 文件名由时间与原始名派生，抗冲突；失败时返回 ErrStaging。
func (g *Gateway) Stage(ctx context.Context, r io.Reader, originalName string) (*StagedFile, error) {
	name := generator.FileName("staging", originalName)
	ext := ExtensionOf(originalName)

	staged := &StagedFile{
		Folder:       g.cfg.LocalDocumentFolder,
		Name:         name,
		Extension:    ext,
		OriginalName: originalName,
	}

	dst, err := os.Create(staged.LocalPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStaging, err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, r)
	if err != nil {
		_ = os.Remove(staged.LocalPath())
		return nil, fmt.Errorf("%w: %v", ErrStaging, err)
	}
	staged.Size = size

	if _, err := dst.Seek(0, io.SeekStart); err == nil {
		if sniffed, err := mime.SniffContentType(dst); err == nil {
			staged.MimeType = sniffed
		}
	}

	return staged, nil
}

// StageUpload 将上传文件移入本地暂存区
func (g *Gateway) StageUpload(ctx context.Context, upload *Upload) (*StagedFile, error) {
	src, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStaging, err)
	}
	defer src.Close()

	staged, err := g.Stage(ctx, src, upload.OriginalName)
	if err != nil {
		return nil, err
	}
	if upload.SniffedMimeType != "" {
		staged.MimeType = upload.SniffedMimeType
	}
	return staged, nil
}

// Persist 持久化暂存文件并写入 files 记录
func (g *Gateway) Persist(ctx context.Context, staged *StagedFile) (*models.File, error) {
	if g.repo == nil {
		return nil, fmt.Errorf("%w: gateway has no file repository", ErrInvalidConfig)
	}
	return g.PersistTx(ctx, g.repo.DB(), staged)
}

// PersistTx 在给定事务中持久化暂存文件
// 上传失败时返回 ErrStorageUnavailable 且不插入任何记录（全有或全无）。
// 成功后若配置不保留本地副本则删除暂存文件，删除失败只记录日志。
func (g *Gateway) PersistTx(ctx context.Context, tx *gorm.DB, staged *StagedFile) (*models.File, error) {
	key, err := g.UploadBlob(ctx, staged)
	if err != nil {
		return nil, err
	}

	file, err := g.RecordTx(ctx, tx, staged, key)
	if err != nil {
		return nil, err
	}

	g.DiscardLocal(staged)
	return file, nil
}

// UploadBlob 将暂存文件上传到持久化存储，返回存储 key
// 只做上传，不触碰数据库；失败时返回 ErrStorageUnavailable。
func (g *Gateway) UploadBlob(ctx context.Context, staged *StagedFile) (string, error) {
	if g.provider == nil {
		return "", fmt.Errorf("%w: no durable storage configured", ErrStorageUnavailable)
	}
	key := g.StorageKey(staged)

	src, err := os.Open(staged.LocalPath())
	if err != nil {
		return "", fmt.Errorf("failed to open staged file '%s': %w", staged.LocalPath(), err)
	}

	err = g.provider.SaveWithContext(ctx, key, src)
	src.Close()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return key, nil
}

// RecordTx 在给定事务中为已上传的对象写入 files 记录
func (g *Gateway) RecordTx(ctx context.Context, tx *gorm.DB, staged *StagedFile, key string) (*models.File, error) {
	file := &models.File{
		Mime:         staged.MimeType,
		Size:         staged.Size,
		OriginalName: staged.OriginalName,
		URL:          g.BuildURL(key),
		Extension:    staged.Extension,
	}
	if err := tx.WithContext(ctx).Create(file).Error; err != nil {
		return nil, fmt.Errorf("failed to insert file record for '%s': %w", key, err)
	}
	return file, nil
}

// DiscardLocal 按配置清理暂存副本，删除失败只记录日志
func (g *Gateway) DiscardLocal(staged *StagedFile) {
	if g.cfg.KeepLocalCopy {
		return
	}
	if err := os.Remove(staged.LocalPath()); err != nil && !os.IsNotExist(err) {
		log.Printf("[FileStore] Failed to remove staged copy '%s': %v", staged.LocalPath(), err)
	}
}

// StorageKey 计算暂存文件的持久化存储 key
func (g *Gateway) StorageKey(staged *StagedFile) string {
	return g.StorageFolder() + "/" + staged.Name + "." + staged.Extension
}

// BuildURL 构建对象的公开访问 URL
func (g *Gateway) BuildURL(key string) string {
	return g.BaseURL() + "/" + key
}

// BaseURL 解析基础 URL：配置值 → 环境变量 → 兜底默认值
func (g *Gateway) BaseURL() string {
	if g.cfg.CloudBaseURL != "" {
		return g.cfg.CloudBaseURL
	}
	if env := os.Getenv("CLOUD_STORAGE_BASE_URL"); env != "" {
		return env
	}
	return defaultBaseURL
}

// StorageFolder 解析存储目录：配置值 → 环境变量 → 兜底默认值
func (g *Gateway) StorageFolder() string {
	if g.cfg.CloudFolder != "" {
		return g.cfg.CloudFolder
	}
	if env := os.Getenv("CLOUD_FOLDER"); env != "" {
		return env
	}
	return defaultStorageFolder
}

// DeleteBlob 删除持久化存储中的对象，供补偿清理使用
func (g *Gateway) DeleteBlob(ctx context.Context, key string) error {
	if g.provider == nil {
		return fmt.Errorf("%w: no durable storage configured", ErrStorageUnavailable)
	}
	return g.provider.DeleteWithContext(ctx, key)
}

// StagingDir 返回暂存目录
func (g *Gateway) StagingDir() string {
	return g.cfg.LocalDocumentFolder
}

// StagingJanitor 清理超过 maxAge 的暂存文件，返回清理数量
func (g *Gateway) StagingJanitor(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(g.cfg.LocalDocumentFolder)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(g.cfg.LocalDocumentFolder, entry.Name())); err != nil {
			log.Printf("[FileStore] Janitor failed to remove '%s': %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}
