package models

import "gorm.io/gorm"

// 通用文档缩略图分类
const (
	DocumentCategoryWord    = "word"
	DocumentCategoryExcel   = "excel"
	DocumentCategoryGeneric = "generic"
)

// GenericDocument 通用文档
// 缩略图和文档本体各持有一个文件引用。
type GenericDocument struct {
	gorm.Model
	Title       string `gorm:"not null"`
	ThumbnailID uint   `gorm:"column:thumbnail_id;not null"`
	DocumentID  uint   `gorm:"column:document_id;not null"`

	ThumbnailFile *File `gorm:"foreignKey:ThumbnailID"`
	DocumentFile  *File `gorm:"foreignKey:DocumentID"`
}

// TableName 指定表名
func (GenericDocument) TableName() string {
	return "generic_documents"
}

func (d *GenericDocument) GetID() uint {
	return d.ID
}

func (d *GenericDocument) DocumentType() string {
	return DocumentTypeGeneric
}
