package objstore

import (
	"context"
	"time"
)

// Store calls get a short bounded retry before the caller makes its
// drop-or-discard decision; MinIO hiccups are usually over within a second.
const (
	retryAttempts = 3
	retryBackoff  = 200 * time.Millisecond
)

// PutWithRetry uploads with bounded exponential backoff.
func PutWithRetry(ctx context.Context, s Store, bucket, key string, data []byte) error {
	var lastErr error
	backoff := retryBackoff
	for i := 0; i < retryAttempts; i++ {
		if lastErr = s.Put(ctx, bucket, key, data); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i < retryAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

// GetWithRetry downloads with bounded exponential backoff.
func GetWithRetry(ctx context.Context, s Store, bucket, key string) ([]byte, error) {
	var (
		out     []byte
		lastErr error
	)
	backoff := retryBackoff
	for i := 0; i < retryAttempts; i++ {
		if out, lastErr = s.Get(ctx, bucket, key); lastErr == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i < retryAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, lastErr
}
