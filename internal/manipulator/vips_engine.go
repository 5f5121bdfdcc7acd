package manipulator

import (
	"context"
	"fmt"
	"os"

	"github.com/davidbyttow/govips/v2/vips"
)

// VipsEngine 基于 libvips 的图片引擎
// 适合生产环境的大图处理，内存占用与速度都优于纯 Go 实现。
type VipsEngine struct{}

// NewVipsEngine 创建 vips 引擎，调用方需保证 vips.Startup 已执行
func NewVipsEngine() *VipsEngine {
	return &VipsEngine{}
}

// Name 返回引擎名称
func (e *VipsEngine) Name() string {
	return "vips"
}

// Crop 原地裁剪图片，裁剪框超出边界时收缩到图片范围内
func (e *VipsEngine) Crop(ctx context.Context, path string, width, height, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := vips.NewImageFromFile(path)
	if err != nil {
		return fmt.Errorf("failed to load image '%s': %w", path, err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return fmt.Errorf("failed to autorotate image '%s': %w", path, err)
	}

	x, y, width, height = clampRect(img.Width(), img.Height(), x, y, width, height)
	if err := img.ExtractArea(x, y, width, height); err != nil {
		return fmt.Errorf("failed to crop image '%s': %w", path, err)
	}

	return e.writeBack(img, path)
}

// Fit 将原图缩放进目标框并写入 dstPath
func (e *VipsEngine) Fit(ctx context.Context, srcPath, dstPath string, boxX, boxY int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := vips.NewImageFromFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to load image '%s': %w", srcPath, err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return fmt.Errorf("failed to autorotate image '%s': %w", srcPath, err)
	}

	width := img.Width()
	height := img.Height()

	switch {
	case boxY <= 0:
		// 等比缩放，不放大
		if width > boxX {
			targetHeight := height * boxX / width
			if targetHeight < 1 {
				targetHeight = 1
			}
			if err := img.Thumbnail(boxX, targetHeight, vips.InterestingNone); err != nil {
				return fmt.Errorf("failed to resize image '%s': %w", srcPath, err)
			}
		}
	case width > boxX || height > boxY:
		// 填满目标框，居中裁剪
		if err := img.Thumbnail(boxX, boxY, vips.InterestingCentre); err != nil {
			return fmt.Errorf("failed to resize image '%s': %w", srcPath, err)
		}
	}

	return e.writeBack(img, dstPath)
}

// writeBack 按原生格式导出并写入目标路径
func (e *VipsEngine) writeBack(img *vips.ImageRef, path string) error {
	buf, _, err := img.ExportNative()
	if err != nil {
		return fmt.Errorf("failed to export image '%s': %w", path, err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("failed to write image '%s': %w", path, err)
	}
	return nil
}

// clampRect 将裁剪框收缩到图片边界内
func clampRect(imgW, imgH, x, y, w, h int) (int, int, int, int) {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= imgW {
		x = imgW - 1
	}
	if y >= imgH {
		y = imgH - 1
	}
	if x+w > imgW {
		w = imgW - x
	}
	if y+h > imgH {
		h = imgH - y
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return x, y, w, h
}
