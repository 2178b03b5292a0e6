package filesystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/docrag/blob"
)

func TestBlobStore(t *testing.T) {
	assert := assert.New(t)

	store, err := NewBlobStore(t.TempDir())
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	ctx := context.Background()

	err = store.Put(ctx, "abc_notes.txt", []byte("hello"))
	assert.NoError(err)

	data, err := store.Get(ctx, "abc_notes.txt")
	assert.NoError(err)
	assert.Equal("hello", string(data))

	removed, err := store.Delete(ctx, "abc_notes.txt")
	assert.NoError(err)
	assert.True(removed)

	removed, err = store.Delete(ctx, "abc_notes.txt")
	assert.NoError(err)
	assert.False(removed)

	_, err = store.Get(ctx, "abc_notes.txt")
	assert.ErrorIs(err, blob.ErrNotFound)

	assert.Equal("local", store.Type())
}

func TestBlobStoreRejectsEscapingPaths(t *testing.T) {
	assert := assert.New(t)

	store, err := NewBlobStore(t.TempDir())
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	err = store.Put(context.Background(), "../outside.txt", []byte("x"))
	assert.ErrorIs(err, blob.ErrInvalidPath)

	_, err = store.Get(context.Background(), "/etc/passwd")
	assert.ErrorIs(err, blob.ErrInvalidPath)
}
