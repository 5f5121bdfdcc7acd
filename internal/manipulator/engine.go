package manipulator

import (
	"context"
	"fmt"

	"github.com/coreux/asset-gateway/config"
)

// Engine 图片处理引擎
// Crop 原地裁剪，Fit 将原图缩放进目标框并写入新文件。
// boxY 为 0 时按宽度等比缩放，否则填满目标框（居中裁剪），均不放大。
type Engine interface {
	Crop(ctx context.Context, path string, width, height, x, y int) error
	Fit(ctx context.Context, srcPath, dstPath string, boxX, boxY int) error
	Name() string
}

// NewEngine 根据配置选择图片处理引擎
func NewEngine(cfg *config.Config) (Engine, error) {
	switch cfg.ImageEngine {
	case "vips", "":
		return NewVipsEngine(), nil
	case "native":
		return NewNativeEngine(), nil
	default:
		return nil, fmt.Errorf("%w: unknown image engine '%s'", ErrInvalidConfig, cfg.ImageEngine)
	}
}
