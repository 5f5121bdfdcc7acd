package models

// 文档类型判别值，持久化在 assets.document_type 列
const (
	DocumentTypeImage   = "image"
	DocumentTypeGeneric = "document"
)

// AssetDocument 资产文档的闭合多态接口
// 实现：Image、GenericDocument。判别字段用于存储，不使用继承。
type AssetDocument interface {
	GetID() uint
	DocumentType() string
}

// HasAssets 拥有资产的模型能力接口
// 资产网关只依赖该接口，从不依赖具体的 owner 类型。
type HasAssets interface {
	AssetOwnerID() uint
	AssetOwnerType() string
}

// ManipulatorSelector owner 模型可选实现，声明偏好的处理器
type ManipulatorSelector interface {
	Manipulator() string
}

// PrimaryURLSet 主资产 URL 的顶层投影
// 图片文档填充四个变体 URL，通用文档填充本体与缩略图 URL。
type PrimaryURLSet struct {
	OriginalURL  string `json:"original_url,omitempty"`
	SmallURL     string `json:"small_url,omitempty"`
	MediumURL    string `json:"medium_url,omitempty"`
	LargeURL     string `json:"large_url,omitempty"`
	DocumentURL  string `json:"document_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// PrimaryAssetProjector owner 模型可选实现，接收主资产 URL 投影
// 投影随 owner 自身的更新持久化，资产网关只负责填充。
type PrimaryAssetProjector interface {
	ApplyPrimaryAssetURLs(urls PrimaryURLSet)
}
