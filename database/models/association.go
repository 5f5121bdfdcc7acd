package models

import "time"

// AssetAssociation resource_asset 多态多对多关联
// 不变量：同一 (resource_id, resource_type) 下最多一行 primary = true。
// attach 流程不会删除历史行，primary 是唯一可变字段。
type AssetAssociation struct {
	ID           uint   `gorm:"primarykey"`
	ResourceID   uint   `gorm:"column:resource_id;not null;index:idx_resource,priority:1"`
	ResourceType string `gorm:"column:resource_type;size:100;not null;index:idx_resource,priority:2"`
	AssetID      uint   `gorm:"column:asset_id;not null;index"`
	Primary      bool   `gorm:"column:primary;default:false;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 指定表名
func (AssetAssociation) TableName() string {
	return "resource_asset"
}
