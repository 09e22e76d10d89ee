package api

import (
	"context"
	"errors"
	"testing"

	"carousel/internal/queue"
)

type fakeQueueReader struct {
	items []*queue.Item
	err   error
}

func (f *fakeQueueReader) List(_ context.Context, statuses ...queue.Status) ([]*queue.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(statuses) == 0 {
		return f.items, nil
	}
	var out []*queue.Item
	for _, item := range f.items {
		for _, status := range statuses {
			if item.Status == status {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

func (f *fakeQueueReader) Stats(context.Context) (map[queue.Status]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	stats := make(map[queue.Status]int)
	for _, item := range f.items {
		stats[item.Status]++
	}
	return stats, nil
}

func (f *fakeQueueReader) GetByID(_ context.Context, id int64) (*queue.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, item := range f.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, nil
}

func TestQueueServiceListFiltersByStatus(t *testing.T) {
	reader := &fakeQueueReader{items: []*queue.Item{
		{ID: 1, ExportName: "a", Status: queue.StatusPending},
		{ID: 2, ExportName: "b", Status: queue.StatusCompleted},
	}}
	svc := NewQueueService(reader)

	items, err := svc.List(context.Background(), queue.StatusCompleted)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != 2 {
		t.Fatalf("unexpected filtered items: %#v", items)
	}
}

func TestQueueServiceDescribeMissing(t *testing.T) {
	svc := NewQueueService(&fakeQueueReader{})
	item, err := svc.Describe(context.Background(), 99)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil for unknown id, got %#v", item)
	}
}

func TestQueueServicePropagatesErrors(t *testing.T) {
	boom := errors.New("db locked")
	svc := NewQueueService(&fakeQueueReader{err: boom})
	if _, err := svc.List(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := svc.Stats(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestNewQueueServiceNilStore(t *testing.T) {
	if svc := NewQueueService(nil); svc != nil {
		t.Fatal("expected nil service for nil store")
	}
}
