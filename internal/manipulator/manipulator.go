// Package manipulator 文档处理器：从暂存原件派生变体与缩略图
package manipulator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/internal/filestore"
)

var (
	// ErrInvalidDimensions 裁剪坐标缺失或为零
	ErrInvalidDimensions = errors.New("invalid crop dimensions")
	// ErrInvalidAspectRatio 裁剪框宽高不一致
	ErrInvalidAspectRatio = errors.New("invalid crop aspect ratio")
	// ErrInvalidConfig 处理器配置校验失败
	ErrInvalidConfig = errors.New("manipulator configuration is invalid")
	// ErrThumbnailFetch 缩略图拉取失败
	ErrThumbnailFetch = errors.New("failed to fetch thumbnail")
)

// Options 单次处理的调用方选项
// 裁剪坐标的解释由各处理器自行决定，0 视为未提供。
type Options struct {
	Width  int
	Height int
	X      int
	Y      int
	Title  string
	Model  any
}

// hasAllCropCoords 四个裁剪坐标是否全部提供
func (o *Options) hasAllCropCoords() bool {
	if o == nil {
		return false
	}
	return o.Width != 0 && o.Height != 0 && o.X != 0 && o.Y != 0
}

// ThumbnailRef 缩略图引用
// 复用已入库文件时只携带 ID，新拉取时携带暂存文件。
type ThumbnailRef struct {
	ExistingID *uint
	Staged     *filestore.StagedFile
}

// Bag 处理结果袋
// 图片处理器填充 Variants（含 original 键），
// 通用文档处理器填充 Document、Thumbnail 与 Category。
type Bag struct {
	Variants  map[string]*filestore.StagedFile
	Document  *filestore.StagedFile
	Thumbnail *ThumbnailRef
	Category  string
}

// VariantOriginal 原件在结果袋中的键
const VariantOriginal = "original"

// Manipulator 文档处理器
type Manipulator interface {
	// Name 返回处理器名称
	Name() string
	// Manipulate 处理暂存文件，派生出的文件均落在同一暂存目录
	Manipulate(ctx context.Context, staged *filestore.StagedFile, opts *Options) (*Bag, error)
}

// Stager 本地暂存能力，由文件网关实现
type Stager interface {
	Stage(ctx context.Context, r io.Reader, originalName string) (*filestore.StagedFile, error)
}

// New 根据配置构建处理器实例
func New(name string, mc config.ManipulatorConfig, engine Engine, stager Stager) (Manipulator, error) {
	impl := mc.Impl
	if impl == "" {
		impl = name
	}

	switch impl {
	case config.ManipulatorImageProfile:
		return NewImageProfile(name, mc, engine)
	case config.ManipulatorBanner:
		return NewBanner(name, mc, engine)
	case config.ManipulatorCompanyLogo:
		return NewCompanyLogo(name, mc, engine)
	case config.ManipulatorGenericDocument:
		return NewGenericDocument(name, mc, stager)
	default:
		return nil, fmt.Errorf("%w: unknown manipulator impl '%s'", ErrInvalidConfig, impl)
	}
}
