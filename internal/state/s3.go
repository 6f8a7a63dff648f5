package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"tasnim.dev/iamctl/internal/aws/s3"
)

// ObjectStore is the subset of the S3 client the backend needs.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]s3.S3Object, error)
}

// S3Backend stores each stack as one JSON document at <prefix>/<stack>.json.
type S3Backend struct {
	store  ObjectStore
	bucket string
	prefix string
}

func NewS3Backend(store ObjectStore, bucket, prefix string) *S3Backend {
	return &S3Backend{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (b *S3Backend) key(stack string) string {
	if b.prefix == "" {
		return stack + ".json"
	}
	return path.Join(b.prefix, stack+".json")
}

func (b *S3Backend) Load(ctx context.Context, stack string) (*Snapshot, error) {
	data, err := b.store.GetObject(ctx, b.bucket, b.key(stack))
	if err != nil {
		if errors.Is(err, s3.ErrNoSuchKey) {
			return NewSnapshot(stack), nil
		}
		return nil, fmt.Errorf("loading stack %s: %w", stack, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding stack %s: %w", stack, err)
	}
	if snap.Stack == "" {
		snap.Stack = stack
	}
	snap.ensure()
	return &snap, nil
}

func (b *S3Backend) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding stack %s: %w", snap.Stack, err)
	}
	if err := b.store.PutObject(ctx, b.bucket, b.key(snap.Stack), data, "application/json"); err != nil {
		return fmt.Errorf("saving stack %s: %w", snap.Stack, err)
	}
	return nil
}

func (b *S3Backend) Stacks(ctx context.Context) ([]string, error) {
	prefix := ""
	if b.prefix != "" {
		prefix = b.prefix + "/"
	}
	objects, err := b.store.ListObjects(ctx, b.bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing stacks: %w", err)
	}

	var names []string
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (b *S3Backend) Close() error { return nil }
