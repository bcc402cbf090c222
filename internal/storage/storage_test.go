package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeyLayout(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "SocialApp/u1/profile/1700000000123-me.png", objectKey("SocialApp", "u1/profile", "me.png", at))
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("App")

	a, err := store.Upload(ctx, File{Name: "a.png", Body: strings.NewReader("a")}, "u1")
	require.NoError(t, err)
	b, err := store.Upload(ctx, File{Name: "a.png", Body: strings.NewReader("b")}, "u1")
	require.NoError(t, err)

	assert.NotEqual(t, a.Key, b.Key)
	assert.True(t, strings.HasPrefix(a.Key, "App/u1/"))
	assert.True(t, strings.HasPrefix(a.URL, "memory://"))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.DeleteMany(ctx, []string{a.Key, b.Key}))
	assert.Equal(t, 0, store.Len())
}

type failingStore struct {
	*MemoryStore
	failOn int
	calls  int
}

func (f *failingStore) Upload(ctx context.Context, file File, prefix string) (Object, error) {
	f.calls++
	if f.calls == f.failOn {
		return Object{}, errors.New("boom")
	}
	return f.MemoryStore.Upload(ctx, file, prefix)
}

func TestUploadAllRollsBackOnFailure(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore("App"), failOn: 3}
	files := []File{
		{Name: "1.png", Body: strings.NewReader("1")},
		{Name: "2.png", Body: strings.NewReader("2")},
		{Name: "3.png", Body: strings.NewReader("3")},
	}

	_, err := UploadAll(context.Background(), store, files, "posts")
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len(), "earlier uploads are removed")
}
