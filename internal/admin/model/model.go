package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lwlgate/internal/pkg"
)

// --- Capture 存档模型 ---

// CaptureRecord 是归档的一次转储抓取
// 注意：json 标签是为了与前端/API 规范一致，bson 标签是为了 MongoDB
type CaptureRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Source     string             `bson:"source" json:"source"`
	Remote     string             `bson:"remote,omitempty" json:"remote,omitempty"`
	Note       string             `bson:"note,omitempty" json:"note,omitempty"`
	Text       string             `bson:"text" json:"text"`
	EntryCount int                `bson:"entryCount" json:"entryCount"`
	ImageLen   int                `bson:"imageLen" json:"imageLen"`
	HasFault   bool               `bson:"hasFault" json:"hasFault"`
	Fault      *pkg.FaultInfo     `bson:"fault,omitempty" json:"fault,omitempty"`
	CreatedAt  primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt  primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}

// CaptureListItem for listing captures without the dump text.
type CaptureListItem struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	Source     string             `bson:"source" json:"source"`
	Remote     string             `bson:"remote,omitempty" json:"remote,omitempty"`
	Note       string             `bson:"note,omitempty" json:"note,omitempty"`
	EntryCount int                `bson:"entryCount" json:"entryCount"`
	ImageLen   int                `bson:"imageLen" json:"imageLen"`
	HasFault   bool               `bson:"hasFault" json:"hasFault"`
	CreatedAt  primitive.DateTime `bson:"createdAt" json:"createdAt"`
}

// --- Catalog 模型 ---

// CatalogDocument 是条目 ID 名称目录，整库只维护一份
// IDs 的键是条目 ID 的十进制字符串 (BSON 的 map 键必须是字符串)
type CatalogDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string             `bson:"name" json:"name"`
	IDs       map[string]string  `bson:"ids" json:"ids"`
	UpdatedAt primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}
