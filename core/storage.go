package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// Namespace prefixes keys so components sharing one Storage never collide.
type Namespace string

func (n Namespace) Key(name string) string {
	return string(n) + name
}

// GetJSON decodes the value stored at key into v.
// A missing key is reported as ErrStorageNotFound.
func GetJSON(ctx context.Context, s Storage, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Storage, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
