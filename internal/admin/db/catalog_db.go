package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lwlgate/internal/admin/model"
)

// 目录整库只维护一份，固定用这个名字定位
const catalogName = "default"

// 获取目录集合 (返回 *mongo.Collection)
func catalogCollection() *mongo.Collection {
	return getCollection("catalog")
}

// GetCatalog 获取条目名称目录，不存在时返回 nil 而不是错误
func GetCatalog() (*model.CatalogDocument, error) {
	collection := catalogCollection()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var catalog model.CatalogDocument
	err := collection.FindOne(ctx, bson.M{"name": catalogName}).Decode(&catalog)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("获取目录失败: %w", err)
	}
	return &catalog, nil
}

// UpsertCatalog 整体替换条目名称目录，不存在时创建
func UpsertCatalog(ids map[string]string) (*model.CatalogDocument, error) {
	collection := catalogCollection()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"name":      catalogName,
			"ids":       ids,
			"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var catalog model.CatalogDocument
	err := collection.FindOneAndUpdate(ctx, bson.M{"name": catalogName}, update, opts).Decode(&catalog)
	if err != nil {
		return nil, fmt.Errorf("更新目录失败: %w", err)
	}
	return &catalog, nil
}
