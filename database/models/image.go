package models

import "gorm.io/gorm"

// Image 图片文档
// 一次 create 产出四个变体文件引用，全部必填，创建后只读。
type Image struct {
	gorm.Model
	Title    string `gorm:"not null"`
	ImageID  uint   `gorm:"column:image_id;not null"`
	SmallID  uint   `gorm:"column:small_id;not null"`
	MediumID uint   `gorm:"column:medium_id;not null"`
	LargeID  uint   `gorm:"column:large_id;not null"`

	ImageFile  *File `gorm:"foreignKey:ImageID"`
	SmallFile  *File `gorm:"foreignKey:SmallID"`
	MediumFile *File `gorm:"foreignKey:MediumID"`
	LargeFile  *File `gorm:"foreignKey:LargeID"`
}

// TableName 指定表名
func (Image) TableName() string {
	return "images"
}

func (i *Image) GetID() uint {
	return i.ID
}

func (i *Image) DocumentType() string {
	return DocumentTypeImage
}
