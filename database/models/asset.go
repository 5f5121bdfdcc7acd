package models

import "gorm.io/gorm"

// Asset 资产记录
// 让任意 owner 模型通过多态判别字段引用文档，而不依赖具体文档类型。
type Asset struct {
	gorm.Model
	Order        int    `gorm:"column:order;default:0"`
	DocumentID   uint   `gorm:"column:document_id;index:idx_document,priority:2"`
	DocumentType string `gorm:"column:document_type;size:50;index:idx_document,priority:1"`
	Active       bool   `gorm:"default:true;not null"`
	UserID       uint   `gorm:"index"`
}

// TableName 指定表名
func (Asset) TableName() string {
	return "assets"
}
