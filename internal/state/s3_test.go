package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/iamctl/internal/aws/s3"
)

// memS3 is an in-memory bucket speaking the SDK's S3 API shape.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newMemS3() *memS3 { return &memS3{objects: map[string][]byte{}} }

func (m *memS3) GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[awssdk.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (m *memS3) PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[awssdk.ToString(params.Key)] = data
	return &awss3.PutObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &awss3.ListObjectsV2Output{}
	for k := range m.objects {
		if strings.HasPrefix(k, awssdk.ToString(params.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: awssdk.String(k)})
		}
	}
	return out, nil
}

func TestS3Backend_LoadMissing(t *testing.T) {
	b := NewS3Backend(s3.NewClient(newMemS3()), "iam-state", "prod")
	snap, err := b.Load(context.Background(), StackUsers)
	require.NoError(t, err)
	assert.Equal(t, StackUsers, snap.Stack)
	assert.Empty(t, snap.Resources)
}

func TestS3Backend_SaveLoad(t *testing.T) {
	mem := newMemS3()
	b := NewS3Backend(s3.NewClient(mem), "iam-state", "/prod/")
	ctx := context.Background()
	want := sampleSnapshot()
	require.NoError(t, b.Save(ctx, want))

	assert.Contains(t, mem.objects, "prod/users.json")

	got, err := b.Load(ctx, StackUsers)
	require.NoError(t, err)
	assert.Equal(t, want.Users["alice"], got.Users["alice"])
	assert.Equal(t, want.Resources, got.Resources)
	assert.Equal(t, want.Outputs, got.Outputs)
	assert.Equal(t, want.History, got.History)
}

func TestS3Backend_NoPrefix(t *testing.T) {
	mem := newMemS3()
	b := NewS3Backend(s3.NewClient(mem), "iam-state", "")
	require.NoError(t, b.Save(context.Background(), NewSnapshot(StackGroups)))
	assert.Contains(t, mem.objects, "groups.json")
}

func TestS3Backend_Stacks(t *testing.T) {
	mem := newMemS3()
	b := NewS3Backend(s3.NewClient(mem), "iam-state", "prod")
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, NewSnapshot(StackUsers)))
	require.NoError(t, b.Save(ctx, NewSnapshot(StackGroups)))
	mem.objects["prod/archive/old.json"] = []byte("{}")
	mem.objects["prod/notes.txt"] = []byte("x")

	stacks, err := b.Stacks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{StackGroups, StackUsers}, stacks)
}

func TestS3Backend_LoadError(t *testing.T) {
	mem := newMemS3()
	mem.getErr = fmt.Errorf("access denied")
	b := NewS3Backend(s3.NewClient(mem), "iam-state", "")

	_, err := b.Load(context.Background(), StackUsers)
	require.Error(t, err)
	assert.False(t, errors.Is(err, s3.ErrNoSuchKey))
}
