package manipulator

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"
	"time"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/database/models"
	"github.com/coreux/asset-gateway/internal/filestore"
)

// genericManipulator 通用文档处理器
// 按 MIME 归类文档并解析出缩略图：已入库的直接复用 ID，否则从配置 URL 拉取后暂存。
type genericManipulator struct {
	name       string
	thumbnails map[string]config.ThumbnailDescriptor
	mimes      map[string][]string
	stager     Stager
	client     *http.Client
}

// NewGenericDocument 创建通用文档处理器
func NewGenericDocument(name string, mc config.ManipulatorConfig, stager Stager) (Manipulator, error) {
	if len(mc.Thumbnails) == 0 {
		return nil, fmt.Errorf("%w: manipulator '%s' has no thumbnails configured", ErrInvalidConfig, name)
	}
	if _, ok := mc.Thumbnails[models.DocumentCategoryGeneric]; !ok {
		return nil, fmt.Errorf("%w: manipulator '%s' is missing the '%s' thumbnail fallback", ErrInvalidConfig, name, models.DocumentCategoryGeneric)
	}
	if stager == nil {
		return nil, fmt.Errorf("%w: manipulator '%s' requires a stager", ErrInvalidConfig, name)
	}

	return &genericManipulator{
		name:       name,
		thumbnails: mc.Thumbnails,
		mimes:      mc.Mimes,
		stager:     stager,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name 返回处理器名称
func (m *genericManipulator) Name() string {
	return m.name
}

// Manipulate 归类文档并解析缩略图
func (m *genericManipulator) Manipulate(ctx context.Context, staged *filestore.StagedFile, opts *Options) (*Bag, error) {
	category := m.categoryFor(staged.MimeType)

	thumbnail, err := m.resolveThumbnail(ctx, category)
	if err != nil {
		return nil, err
	}

	return &Bag{
		Document:  staged,
		Thumbnail: thumbnail,
		Category:  category,
	}, nil
}

// categoryFor 按配置的 MIME 列表归类，未命中时落入 generic
func (m *genericManipulator) categoryFor(mimeType string) string {
	categories := make([]string, 0, len(m.mimes))
	for category := range m.mimes {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, candidate := range m.mimes[category] {
			if candidate == mimeType {
				return category
			}
		}
	}
	return models.DocumentCategoryGeneric
}

// resolveThumbnail 解析分类对应的缩略图引用
func (m *genericManipulator) resolveThumbnail(ctx context.Context, category string) (*ThumbnailRef, error) {
	desc, ok := m.thumbnails[category]
	if !ok {
		desc = m.thumbnails[models.DocumentCategoryGeneric]
	}

	if desc.ID != nil {
		return &ThumbnailRef{ExistingID: desc.ID}, nil
	}

	staged, err := m.fetchThumbnail(ctx, desc.URL)
	if err != nil {
		return nil, err
	}
	return &ThumbnailRef{Staged: staged}, nil
}

// fetchThumbnail 拉取缩略图并写入本地暂存区
func (m *genericManipulator) fetchThumbnail(ctx context.Context, url string) (*filestore.StagedFile, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty thumbnail url", ErrThumbnailFetch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrThumbnailFetch, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrThumbnailFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from '%s'", ErrThumbnailFetch, resp.StatusCode, url)
	}

	name := path.Base(url)
	if name == "." || name == "/" {
		name = "thumbnail.png"
	}
	return m.stager.Stage(ctx, resp.Body, name)
}
