package model

import (
	"gorm.io/datatypes"
)

type ColumnKind string

const (
	ColumnBranch  ColumnKind = "branch"
	ColumnContent ColumnKind = "content"
)

// RootColumnTitle 根分支列的固定标题
const RootColumnTitle = "Syllabus"

// swagger:model LearningPath
type LearningPath struct {
	UUIDBase
	OwnerID        string  `gorm:"size:64;index;not null" json:"ownerId"`
	Title          string  `gorm:"size:255;not null" json:"title"`
	Subtitle       string  `gorm:"type:text" json:"subtitle"`
	IsPublic       bool    `gorm:"default:false" json:"isPublic"`
	IsMajor        bool    `gorm:"default:false" json:"isMajor"`
	OriginalPathID *string `gorm:"type:varchar(36);index" json:"originalPathId,omitempty"`
	SourceKey      string  `gorm:"size:255" json:"sourceKey,omitempty"` // 原始资料在对象存储中的 key
}

func (LearningPath) TableName() string {
	return "learning_paths"
}

// Column 分支列存放 Item, 内容列存放 ContentSection; ParentItemID 为空表示根列
// swagger:model Column
type Column struct {
	UUIDBase
	PathID       string     `gorm:"type:varchar(36);index;not null" json:"pathId"`
	ParentItemID *string    `gorm:"type:varchar(36);index" json:"parentItemId"`
	Title        string     `gorm:"size:255" json:"title"`
	Kind         ColumnKind `gorm:"size:20;not null" json:"kind"`
	OrderIndex   int        `gorm:"default:0" json:"orderIndex"`
}

func (Column) TableName() string {
	return "path_columns"
}

// swagger:model Item
type Item struct {
	UUIDBase
	ColumnID   string `gorm:"type:varchar(36);index;not null" json:"columnId"`
	Title      string `gorm:"size:255;not null" json:"title"`
	OrderIndex int    `gorm:"default:0" json:"orderIndex"`
}

func (Item) TableName() string {
	return "path_items"
}

type SectionType string

const (
	SectionHeading   SectionType = "heading"
	SectionParagraph SectionType = "paragraph"
	SectionCode      SectionType = "code"
	SectionList      SectionType = "list"
	SectionRichText  SectionType = "rich-text"
	SectionImage     SectionType = "image"
	SectionVideo     SectionType = "video"
	SectionLink      SectionType = "link"
	SectionQnA       SectionType = "qna"
)

// swagger:model ContentSection
type ContentSection struct {
	UUIDBase
	ColumnID   string         `gorm:"type:varchar(36);index;not null" json:"columnId"`
	Type       SectionType    `gorm:"size:30;not null" json:"type"`
	Content    datatypes.JSON `json:"content"`
	OrderIndex int            `gorm:"default:0" json:"orderIndex"`
}

func (ContentSection) TableName() string {
	return "content_sections"
}
