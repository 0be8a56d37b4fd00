// internal/minio/client.go
//
// MinIO Client на основе официальной библиотеки github.com/minio/minio-go/v7

package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound возвращается, когда объекта нет в бакете.
var ErrObjectNotFound = errors.New("object not found")

// Client — клиент MinIO на основе официальной библиотеки.
type Client struct {
	client *minio.Client
	config Config

	bucketsMu sync.Mutex
	buckets   map[string]bool // бакеты, существование которых уже проверено
}

var _ ClientInterface = (*Client)(nil)

// NewClient создаёт новый MinIO клиент.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		client:  client,
		config:  cfg,
		buckets: make(map[string]bool),
	}, nil
}

// ensureBucket создаёт бакет, если он не существует.
func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	c.bucketsMu.Lock()
	defer c.bucketsMu.Unlock()
	if c.buckets[bucket] {
		return nil
	}

	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err = c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	c.buckets[bucket] = true
	return nil
}

// PutObject загружает объект в MinIO.
func (c *Client) PutObject(ctx context.Context, bucket, object string, data io.Reader, size int64, contentType string) error {
	if err := c.ensureBucket(ctx, bucket); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	_, err := c.client.PutObject(ctx, bucket, object, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, object, err)
	}
	return nil
}

// GetObject скачивает объект из MinIO.
func (c *Client) GetObject(ctx context.Context, bucket, object string) ([]byte, error) {
	reader, err := c.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	// Ошибка «нет ключа» у minio-go проявляется только при чтении.
	data, err := io.ReadAll(reader)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// ListObjects возвращает список объектов с префиксом.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if err := c.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	var objects []ObjectInfo
	for object := range c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects failed: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			LastModified: object.LastModified,
			Size:         object.Size,
		})
	}

	// Сортируем по времени (новые — первыми)
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}
