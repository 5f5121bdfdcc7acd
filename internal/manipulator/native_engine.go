package manipulator

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// NativeEngine 纯 Go 图片引擎
// 无 cgo 依赖，供缺少 libvips 的环境（含测试）使用。
type NativeEngine struct{}

// NewNativeEngine 创建纯 Go 引擎
func NewNativeEngine() *NativeEngine {
	return &NativeEngine{}
}

// Name 返回引擎名称
func (e *NativeEngine) Name() string {
	return "native"
}

// Crop 原地裁剪图片，裁剪框超出边界时收缩到图片范围内
func (e *NativeEngine) Crop(ctx context.Context, path string, width, height, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := decodeFile(path)
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	x, y, width, height = clampRect(bounds.Dx(), bounds.Dy(), x, y, width, height)
	rect := image.Rect(bounds.Min.X+x, bounds.Min.Y+y, bounds.Min.X+x+width, bounds.Min.Y+y+height)

	cropped := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Copy(cropped, image.Point{}, img, rect, draw.Src, nil)

	return encodeFile(cropped, path)
}

// Fit 将原图缩放进目标框并写入 dstPath
func (e *NativeEngine) Fit(ctx context.Context, srcPath, dstPath string, boxX, boxY int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := decodeFile(srcPath)
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var out image.Image
	switch {
	case boxY <= 0:
		if width <= boxX {
			out = img
			break
		}
		targetHeight := height * boxX / width
		if targetHeight < 1 {
			targetHeight = 1
		}
		out = scale(img, boxX, targetHeight)
	case width <= boxX && height <= boxY:
		out = img
	default:
		out = coverCrop(img, boxX, boxY)
	}

	return encodeFile(out, dstPath)
}

// scale 缩放到指定尺寸
func scale(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// coverCrop 缩放到覆盖目标框后居中裁剪
func coverCrop(img image.Image, boxX, boxY int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// 先按较大的比例缩放，保证两个维度都覆盖目标框
	scaleW := float64(boxX) / float64(width)
	scaleH := float64(boxY) / float64(height)
	factor := scaleW
	if scaleH > factor {
		factor = scaleH
	}

	scaledW := int(float64(width)*factor + 0.5)
	scaledH := int(float64(height)*factor + 0.5)
	if scaledW < boxX {
		scaledW = boxX
	}
	if scaledH < boxY {
		scaledH = boxY
	}
	scaled := scale(img, scaledW, scaledH)

	offsetX := (scaledW - boxX) / 2
	offsetY := (scaledH - boxY) / 2
	dst := image.NewRGBA(image.Rect(0, 0, boxX, boxY))
	draw.Copy(dst, image.Point{}, scaled, image.Rect(offsetX, offsetY, offsetX+boxX, offsetY+boxY), draw.Src, nil)
	return dst
}

// decodeFile 解码本地图片文件
func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image '%s': %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image '%s': %w", path, err)
	}
	return img, nil
}

// encodeFile 按扩展名编码写入目标路径
func encodeFile(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image '%s': %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		err = png.Encode(f, img)
	case "gif":
		err = gif.Encode(f, img, nil)
	default:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return fmt.Errorf("failed to encode image '%s': %w", path, err)
	}
	return nil
}
