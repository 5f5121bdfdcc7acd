// Package document 文档驱动：按 MIME 分派的文档创建与查询
package document

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/internal/manipulator"
)

var (
	// ErrDriverNotFound 没有驱动接受该 MIME 且配置为严格匹配
	ErrDriverNotFound = errors.New("no document driver accepts this mime type")
	// ErrMissingCapability owner 模型缺少资产能力
	ErrMissingCapability = errors.New("model does not support assets")
	// ErrManipulatorNotFound 驱动配置中找不到请求的处理器
	ErrManipulatorNotFound = errors.New("manipulator not configured for driver")
)

// Driver 文档驱动
// Create 从上传文件产出完整文档（含全部派生文件），要么全部落库要么全不落库。
type Driver interface {
	Name() string
	DocumentType() string
	Accepts(mimeType string) bool
	Create(ctx context.Context, upload *filestore.Upload, opts *manipulator.Options) (models.AssetDocument, error)
	GetOrFail(ctx context.Context, id uint) (models.AssetDocument, error)
}

// BlobCleaner 失败补偿：异步删除已上传但未落库的对象
type BlobCleaner interface {
	CleanupBlobs(keys []string)
}

// selectManipulator 解析本次处理使用的处理器
// opts.Model 非空时必须具备资产能力；实现了 ManipulatorSelector 且声明的
// 处理器在驱动配置中存在时优先使用，否则回落到驱动默认处理器。
func selectManipulator(manipulators map[string]manipulator.Manipulator, defaultName string, opts *manipulator.Options) (manipulator.Manipulator, error) {
	name := defaultName

	if opts != nil && opts.Model != nil {
		if _, ok := opts.Model.(models.HasAssets); !ok {
			return nil, fmt.Errorf("%w: %T", ErrMissingCapability, opts.Model)
		}
		if selector, ok := opts.Model.(models.ManipulatorSelector); ok {
			if preferred := selector.Manipulator(); preferred != "" {
				if _, ok := manipulators[preferred]; ok {
					name = preferred
				} else {
					log.Printf("[Document] Model %T prefers manipulator '%s' which is not configured, using '%s'", opts.Model, preferred, defaultName)
				}
			}
		}
	}

	m, ok := manipulators[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrManipulatorNotFound, name)
	}
	return m, nil
}

// titleFor 解析文档标题：调用方提供的优先，否则用原始文件名
func titleFor(opts *manipulator.Options, originalName string) string {
	if opts != nil && opts.Title != "" {
		return opts.Title
	}
	return originalName
}
