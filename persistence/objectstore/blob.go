package objectstore

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/flarexio/docrag/blob"
)

const DefaultBucket = "docrag"

// NewBlobStore keeps uploads in a JetStream object store bucket.
func NewBlobStore(ctx context.Context, nc *nats.Conn, bucket string) (blob.Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}

	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "uploaded documents",
	})
	if err != nil {
		return nil, err
	}

	return &blobStore{store}, nil
}

type blobStore struct {
	store jetstream.ObjectStore
}

func (s *blobStore) Put(ctx context.Context, path string, data []byte) error {
	_, err := s.store.PutBytes(ctx, path, data)
	return err
}

func (s *blobStore) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := s.store.GetBytes(ctx, path)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, blob.ErrNotFound
		}

		return nil, err
	}

	return data, nil
}

func (s *blobStore) Delete(ctx context.Context, path string) (bool, error) {
	err := s.store.Delete(ctx, path)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (s *blobStore) Type() string {
	return "nats"
}
