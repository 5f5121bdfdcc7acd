package document

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/database/repo/documents"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/internal/manipulator"
)

// Registry 文档驱动注册表
// 按驱动名排序遍历，首个接受该 MIME 的驱动胜出，保证同一 MIME
// 被多个驱动声明时分派结果稳定。
type Registry struct {
	names         []string
	byName        map[string]Driver
	defaultDriver string
	strict        bool
}

// NewRegistry 创建空注册表
func NewRegistry(defaultDriver string, strict bool) *Registry {
	return &Registry{
		byName:        make(map[string]Driver),
		defaultDriver: defaultDriver,
		strict:        strict,
	}
}

// Register 注册驱动，重名时覆盖并记录日志
func (r *Registry) Register(d Driver) {
	if _, exists := r.byName[d.Name()]; exists {
		log.Printf("[Document] Driver '%s' registered twice, keeping the last registration", d.Name())
	} else {
		r.names = append(r.names, d.Name())
		sort.Strings(r.names)
	}
	r.byName[d.Name()] = d
}

// Resolve 按 MIME 解析驱动
// 无驱动接受时：严格模式返回 ErrDriverNotFound，否则回落到默认驱动。
func (r *Registry) Resolve(mimeType string) (Driver, error) {
	for _, name := range r.names {
		if r.byName[name].Accepts(mimeType) {
			return r.byName[name], nil
		}
	}

	if r.strict {
		return nil, fmt.Errorf("%w: '%s'", ErrDriverNotFound, mimeType)
	}

	fallback, ok := r.byName[r.defaultDriver]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' and default driver '%s' is not registered", ErrDriverNotFound, mimeType, r.defaultDriver)
	}
	return fallback, nil
}

// ResolveUpload 按上传文件的有效 MIME 解析驱动
// 客户端声明为 octet-stream 时采用内容嗅探结果。
func (r *Registry) ResolveUpload(upload *filestore.Upload) (Driver, error) {
	return r.Resolve(upload.EffectiveMimeType())
}

// Driver 按名称获取驱动
func (r *Registry) Driver(name string) (Driver, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: driver '%s' is not registered", ErrDriverNotFound, name)
	}
	return d, nil
}

// ByDocumentType 按文档类型判别值获取驱动
func (r *Registry) ByDocumentType(documentType string) (Driver, error) {
	for _, name := range r.names {
		if r.byName[name].DocumentType() == documentType {
			return r.byName[name], nil
		}
	}
	return nil, fmt.Errorf("%w: no driver for document type '%s'", ErrDriverNotFound, documentType)
}

// FindDocument 按判别值定位驱动并查询文档
func (r *Registry) FindDocument(ctx context.Context, documentType string, id uint) (models.AssetDocument, error) {
	d, err := r.ByDocumentType(documentType)
	if err != nil {
		return nil, err
	}
	return d.GetOrFail(ctx, id)
}

// Drivers 返回稳定排序的已注册驱动
func (r *Registry) Drivers() []Driver {
	drivers := make([]Driver, 0, len(r.names))
	for _, name := range r.names {
		drivers = append(drivers, r.byName[name])
	}
	return drivers
}

// BuildRegistry 按资产配置树构建注册表
// 每个驱动的处理器集合独立构建，任何一处配置不合法都让启动失败。
func BuildRegistry(assets *config.AssetsConfig, engine manipulator.Engine, gateway *filestore.Gateway, images *documents.ImageRepository, generics *documents.GenericRepository, cleaner BlobCleaner) (*Registry, error) {
	registry := NewRegistry(assets.DefaultDriver, assets.StrictDriverMatch)

	names := make([]string, 0, len(assets.Drivers))
	for name := range assets.Drivers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dc := assets.Drivers[name]

		manipulators := make(map[string]manipulator.Manipulator, len(dc.Manipulators))
		for mName, mc := range dc.Manipulators {
			m, err := manipulator.New(mName, mc, engine, gateway)
			if err != nil {
				return nil, fmt.Errorf("driver '%s': %w", name, err)
			}
			manipulators[mName] = m
		}

		impl := dc.Impl
		if impl == "" {
			impl = name
		}

		var (
			driver Driver
			err    error
		)
		switch impl {
		case config.DriverImage:
			driver, err = NewImageDriver(name, dc, manipulators, gateway, images, cleaner)
		case config.DriverGenericDocument:
			driver, err = NewGenericDriver(name, dc, manipulators, gateway, generics, cleaner)
		default:
			err = fmt.Errorf("unknown driver impl '%s'", impl)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build driver '%s': %w", name, err)
		}
		registry.Register(driver)
	}

	if _, ok := registry.byName[registry.defaultDriver]; !ok {
		return nil, fmt.Errorf("default driver '%s' is not configured", registry.defaultDriver)
	}
	return registry, nil
}
