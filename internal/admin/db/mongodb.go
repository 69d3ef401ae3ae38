package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var ( // 使用包变量来持有数据库连接
	MongoClient *mongo.Client
	AdminDB     *mongo.Database
)

// InitMongoDB 初始化 MongoDB 连接
func InitMongoDB(connectionString, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(connectionString)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Printf("连接 MongoDB 失败: %v\n", err)
		return fmt.Errorf("连接 MongoDB 失败: %w", err)
	}

	// 检查连接
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		log.Printf("Ping MongoDB 失败: %v\n", err)
		return fmt.Errorf("ping MongoDB 失败: %w", err)
	}

	MongoClient = client
	AdminDB = client.Database(dbName)
	fmt.Println("成功连接到 MongoDB!")
	return nil
}

// CloseMongoDB 关闭 MongoDB 连接
func CloseMongoDB() {
	if MongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := MongoClient.Disconnect(ctx); err != nil {
			log.Printf("关闭 MongoDB 连接失败: %v\n", err)
		} else {
			fmt.Println("MongoDB 连接已关闭.")
		}
	}
}

// GetCaptureCollection 获取用于存储转储抓取存档的 MongoDB 集合
func GetCaptureCollection() *mongo.Collection {
	if AdminDB == nil {
		log.Fatal("MongoDB 数据库未初始化！")
	}
	return AdminDB.Collection("captures")
}

// GetCatalogCollection 获取用于存储条目名称目录的 MongoDB 集合
func GetCatalogCollection() *mongo.Collection {
	if AdminDB == nil {
		log.Fatal("MongoDB 数据库未初始化！")
	}
	return AdminDB.Collection("catalog")
}

// getCollection 获取指定名称的集合
func getCollection(collectionName string) *mongo.Collection {
	if MongoClient == nil {
		log.Fatal("MongoDB client尚未初始化")
		return nil
	}
	return MongoClient.Database(AdminDB.Name()).Collection(collectionName)
}
