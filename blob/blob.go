package blob

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidPath = errors.New("invalid blob path")
)

type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderNATS  Provider = "nats"
)

type Config struct {
	Provider Provider `yaml:"provider"`
	Path     string   `yaml:"path"`
	Bucket   string   `yaml:"bucket"`
}

// Store keeps raw uploaded bytes under an opaque path.
type Store interface {
	Put(ctx context.Context, path string, data []byte) error

	// Get returns ErrNotFound when nothing is stored under path.
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete reports whether something was removed. Deleting a missing
	// path is not an error.
	Delete(ctx context.Context, path string) (bool, error)

	Type() string
}
