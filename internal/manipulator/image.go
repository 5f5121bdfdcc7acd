package manipulator

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/utils/generator"
)

// cropPolicy 裁剪坐标的校验策略
type cropPolicy int

const (
	// cropRequired 四个坐标必须全部非零，否则拒绝处理
	cropRequired cropPolicy = iota
	// cropSquareOptional 坐标可缺省（跳过裁剪），提供时宽高必须一致
	cropSquareOptional
)

// imageManipulator 图片处理器
// 先按策略裁剪原件，再为每个配置尺寸派生一个变体文件。
type imageManipulator struct {
	name   string
	policy cropPolicy
	sizes  map[string]config.SizeBox
	engine Engine
}

// NewImageProfile 创建头像处理器
// 裁剪坐标可缺省；提供时必须是正方形裁剪框。
func NewImageProfile(name string, mc config.ManipulatorConfig, engine Engine) (Manipulator, error) {
	return newImageManipulator(name, cropSquareOptional, mc, engine)
}

// NewBanner 创建横幅处理器，裁剪坐标必须全部提供
func NewBanner(name string, mc config.ManipulatorConfig, engine Engine) (Manipulator, error) {
	return newImageManipulator(name, cropRequired, mc, engine)
}

// NewCompanyLogo 创建企业标志处理器，裁剪坐标必须全部提供
func NewCompanyLogo(name string, mc config.ManipulatorConfig, engine Engine) (Manipulator, error) {
	return newImageManipulator(name, cropRequired, mc, engine)
}

func newImageManipulator(name string, policy cropPolicy, mc config.ManipulatorConfig, engine Engine) (Manipulator, error) {
	if len(mc.Sizes) == 0 {
		return nil, fmt.Errorf("%w: manipulator '%s' has no sizes configured", ErrInvalidConfig, name)
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: manipulator '%s' requires an image engine", ErrInvalidConfig, name)
	}
	return &imageManipulator{
		name:   name,
		policy: policy,
		sizes:  mc.Sizes,
		engine: engine,
	}, nil
}

// Name 返回处理器名称
func (m *imageManipulator) Name() string {
	return m.name
}

// Manipulate 裁剪原件并派生全部尺寸变体
// 裁剪校验失败时不产生任何文件；变体派生失败时清理已产生的兄弟文件。
func (m *imageManipulator) Manipulate(ctx context.Context, staged *filestore.StagedFile, opts *Options) (*Bag, error) {
	crop, err := m.resolveCrop(opts)
	if err != nil {
		return nil, err
	}

	if crop {
		if err := m.engine.Crop(ctx, staged.LocalPath(), opts.Width, opts.Height, opts.X, opts.Y); err != nil {
			return nil, err
		}
		if info, err := os.Stat(staged.LocalPath()); err == nil {
			staged.Size = info.Size()
		}
	}

	bag := &Bag{
		Variants: map[string]*filestore.StagedFile{
			VariantOriginal: staged,
		},
	}

	for _, label := range m.sizeLabels() {
		box := m.sizes[label]
		variant := &filestore.StagedFile{
			Folder:       staged.Folder,
			Name:         generator.FileName(label, staged.OriginalName),
			Extension:    staged.Extension,
			MimeType:     staged.MimeType,
			OriginalName: staged.OriginalName,
		}

		if err := m.engine.Fit(ctx, staged.LocalPath(), variant.LocalPath(), box.X, box.Y); err != nil {
			m.cleanup(bag)
			return nil, fmt.Errorf("failed to derive '%s' variant: %w", label, err)
		}
		if info, err := os.Stat(variant.LocalPath()); err == nil {
			variant.Size = info.Size()
		}
		bag.Variants[label] = variant
	}

	return bag, nil
}

// resolveCrop 按策略校验裁剪坐标，返回是否执行裁剪
func (m *imageManipulator) resolveCrop(opts *Options) (bool, error) {
	switch m.policy {
	case cropRequired:
		if !opts.hasAllCropCoords() {
			return false, fmt.Errorf("%w: manipulator '%s' requires non-zero width, height, x and y", ErrInvalidDimensions, m.name)
		}
		return true, nil
	case cropSquareOptional:
		if !opts.hasAllCropCoords() {
			return false, nil
		}
		if opts.Width != opts.Height {
			return false, fmt.Errorf("%w: manipulator '%s' requires a square crop box, got %dx%d", ErrInvalidAspectRatio, m.name, opts.Width, opts.Height)
		}
		return true, nil
	default:
		return false, nil
	}
}

// sizeLabels 返回稳定排序的尺寸标签
func (m *imageManipulator) sizeLabels() []string {
	labels := make([]string, 0, len(m.sizes))
	for label := range m.sizes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// cleanup 删除失败前已派生的变体文件，保留原件
func (m *imageManipulator) cleanup(bag *Bag) {
	for label, variant := range bag.Variants {
		if label == VariantOriginal {
			continue
		}
		_ = os.Remove(variant.LocalPath())
	}
}
