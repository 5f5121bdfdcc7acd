package models

import "gorm.io/gorm"

// File 已持久化文件的元数据
// 由文件网关在每次成功上传后创建，创建后不可变，清理时软删除。
type File struct {
	gorm.Model
	Mime         string `gorm:"not null"`
	Size         int64  `gorm:"not null"`
	OriginalName string `gorm:"not null"`
	URL          string `gorm:"not null"`
	Extension    string `gorm:"not null"`
}

// TableName 指定表名
func (File) TableName() string {
	return "files"
}
