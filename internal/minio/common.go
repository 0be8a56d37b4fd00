// internal/minio/common.go
//
// Общие определения для клиента MinIO

package minio

import (
	"context"
	"io"
	"time"
)

// Config для MinIO-клиента.
type Config struct {
	Endpoint        string `validate:"required"` // Например: "minio:9000" (без http://)
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string // По умолчанию "us-east-1"
}

// ObjectInfo информация об объекте
type ObjectInfo struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
}

// ClientInterface — операции с хранилищем, которые нужны сервису.
type ClientInterface interface {
	// PutObject загружает объект в MinIO
	PutObject(ctx context.Context, bucket, object string, data io.Reader, size int64, contentType string) error

	// GetObject скачивает объект из MinIO
	GetObject(ctx context.Context, bucket, object string) ([]byte, error)

	// ListObjects возвращает список объектов с префиксом (новые — первыми)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
