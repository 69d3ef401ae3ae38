package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lwlgate/internal/admin/model"
)

// 获取抓取存档集合 (返回 *mongo.Collection)
func captureCollection() *mongo.Collection {
	return getCollection("captures")
}

// GetCaptures 获取所有抓取存档的列表视图，不含转储文本
func GetCaptures() ([]model.CaptureListItem, error) {
	collection := captureCollection()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 列表不带 text 字段，转储文本可能很大
	opts := options.Find().
		SetProjection(bson.M{"text": 0, "fault": 0}).
		SetSort(bson.M{"createdAt": -1})
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var captures []model.CaptureListItem
	if err = cursor.All(ctx, &captures); err != nil {
		return nil, err
	}
	// 返回空切片而不是 nil
	if captures == nil {
		captures = []model.CaptureListItem{}
	}
	return captures, nil
}

// CreateCapture 归档一次抓取
func CreateCapture(capture *model.CaptureRecord) (*model.CaptureRecord, error) {
	collection := captureCollection()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := primitive.NewDateTimeFromTime(time.Now())
	capture.CreatedAt = now
	capture.UpdatedAt = now
	capture.ID = primitive.NilObjectID // 让 MongoDB 生成 ID

	result, err := collection.InsertOne(ctx, capture)
	if err != nil {
		return nil, err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		capture.ID = oid
		return capture, nil
	}
	return nil, errors.New("无法获取插入的存档 ID")
}

// GetCaptureByID 根据 ID 获取抓取存档
func GetCaptureByID(id string) (*model.CaptureRecord, error) {
	collection := captureCollection()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.New("无效的存档 ID 格式")
	}

	var capture model.CaptureRecord
	err = collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&capture)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &capture, nil
}

// DeleteCapture 删除抓取存档
func DeleteCapture(id string) error {
	collection := captureCollection()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("无效的存档 ID 格式")
	}

	result, err := collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}

	if result.DeletedCount == 0 {
		return errors.New("未找到要删除的存档")
	}

	return nil
}
