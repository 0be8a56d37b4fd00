package spatialanalyst

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"multiverse-spatial/internal/minio"
	"multiverse-spatial/internal/reasoning"
	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/schema"
)

// Archive хранит отчёты и снимки сцены в MinIO.
type Archive struct {
	objects minio.ClientInterface
	bucket  string
	logger  *zap.Logger
}

func NewArchive(objects minio.ClientInterface, bucket string, logger *zap.Logger) *Archive {
	return &Archive{objects: objects, bucket: bucket, logger: logger}
}

func reportKey(r reasoning.ThreatReport) string {
	return path.Join("reports", r.ViewpointID, r.ID+".json")
}

func snapshotKey(worldID string, at time.Time) string {
	return path.Join("snapshots", worldID, at.UTC().Format("20060102T150405.000Z")+".json")
}

// SaveReport сохраняет отчёт по ключу reports/<viewpoint>/<report>.json.
func (a *Archive) SaveReport(ctx context.Context, report reasoning.ThreatReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", report.ID, err)
	}
	key := reportKey(report)
	if err := a.objects.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return err
	}
	a.logger.Debug("threat report archived", zap.String("key", key))
	return nil
}

// Reports возвращает архивные отчёты точки обзора, новые первыми.
func (a *Archive) Reports(ctx context.Context, viewpointID string) ([]minio.ObjectInfo, error) {
	return a.objects.ListObjects(ctx, a.bucket, path.Join("reports", viewpointID)+"/")
}

// Report читает один архивный отчёт.
func (a *Archive) Report(ctx context.Context, viewpointID, reportID string) ([]byte, error) {
	return a.objects.GetObject(ctx, a.bucket, reportKey(reasoning.ThreatReport{ID: reportID, ViewpointID: viewpointID}))
}

// LoadScene читает документ сцены из бакета; формат определяется по имени объекта.
func (a *Archive) LoadScene(ctx context.Context, object string, v *schema.Validator) ([]*scenegraph.Node, error) {
	data, err := a.objects.GetObject(ctx, a.bucket, object)
	if err != nil {
		return nil, err
	}
	_, nodes, err := scenegraph.DecodeDocument(data, scenegraph.DetectFormat(object), v)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", object, err)
	}
	return nodes, nil
}

// SaveSnapshot сохраняет текущее состояние сцены и возвращает ключ объекта.
func (a *Archive) SaveSnapshot(ctx context.Context, worldID string, nodes []*scenegraph.Node) (string, error) {
	data, err := scenegraph.EncodeDocument(worldID, nodes, scenegraph.FormatJSON)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := snapshotKey(worldID, time.Now())
	if err := a.objects.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", err
	}
	a.logger.Info("scene snapshot saved", zap.String("key", key), zap.Int("nodes", len(nodes)))
	return key, nil
}
