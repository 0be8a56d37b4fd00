package spatialanalyst

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"multiverse-spatial/internal/eventbus"
	"multiverse-spatial/internal/minio"
	"multiverse-spatial/internal/reasoning"
	"multiverse-spatial/internal/scenegraph"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte)}
}

func (m *memoryObjects) PutObject(ctx context.Context, bucket, object string, data io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+object] = b
	return nil
}

func (m *memoryObjects) GetObject(ctx context.Context, bucket, object string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", minio.ErrObjectNotFound, bucket, object)
	}
	return b, nil
}

func (m *memoryObjects) ListObjects(ctx context.Context, bucket, prefix string) ([]minio.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []minio.ObjectInfo
	for key, b := range m.objects {
		name := strings.TrimPrefix(key, bucket+"/")
		if name != key && strings.HasPrefix(name, prefix) {
			out = append(out, minio.ObjectInfo{Key: name, LastModified: time.Now(), Size: int64(len(b))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryObjects) keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

type fakeBus struct {
	mu         sync.Mutex
	published  map[string][]eventbus.Event
	subscribed []string
	closed     bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(map[string][]eventbus.Event)}
}

func (b *fakeBus) Publish(ctx context.Context, topic string, ev eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = append(b.published[topic], ev)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, topic, groupID string, handler func(eventbus.Event)) {
	b.mu.Lock()
	b.subscribed = append(b.subscribed, topic)
	b.mu.Unlock()
	<-ctx.Done()
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBus) events(topic string) []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventbus.Event(nil), b.published[topic]...)
}

type fakeExporter struct {
	mu       sync.Mutex
	nodes    map[string]bool
	rels     []reasoning.SpatialRelationship
	closed   bool
	failNext error
}

func newFakeExporter() *fakeExporter {
	return &fakeExporter{nodes: make(map[string]bool)}
}

func (f *fakeExporter) UpsertNode(ctx context.Context, n *scenegraph.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[n.ID] = true
	return nil
}

func (f *fakeExporter) RemoveNode(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes, id)
	return nil
}

func (f *fakeExporter) ExportRelationships(ctx context.Context, rels []reasoning.SpatialRelationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	f.rels = append(f.rels, rels...)
	return nil
}

func (f *fakeExporter) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
