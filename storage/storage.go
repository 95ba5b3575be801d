// Package storage persists entities as JSON documents in named collections.
// A Backend only moves bytes; Collection adds typed encoding on top so the
// repositories never see the concrete engine.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("storage: record not found")
	ErrExists      = errors.New("storage: record already exists")
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// Backend is a keyed byte store partitioned into collections. Implementations
// must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// Scan returns the records whose id starts with prefix, ordered by id.
	Scan(ctx context.Context, collection, prefix string) ([][]byte, error)
	Put(ctx context.Context, collection, id string, data []byte) error
	// Insert stores a record only if the id is free, otherwise ErrExists.
	Insert(ctx context.Context, collection, id string, data []byte) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

type Collection[T any] struct {
	backend Backend
	name    string
}

func NewCollection[T any](backend Backend, name string) *Collection[T] {
	return &Collection[T]{backend: backend, name: name}
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	data, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return out, nil
}

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	return c.ListPrefix(ctx, "")
}

func (c *Collection[T]) ListPrefix(ctx context.Context, prefix string) ([]T, error) {
	rows, err := c.backend.Scan(ctx, c.name, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := json.Unmarshal(row, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) Put(ctx context.Context, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	return c.backend.Put(ctx, c.name, id, data)
}

func (c *Collection[T]) Insert(ctx context.Context, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	return c.backend.Insert(ctx, c.name, id, data)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.backend.Delete(ctx, c.name, id)
}
