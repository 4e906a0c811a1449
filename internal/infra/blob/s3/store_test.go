package s3

import (
	"context"
	"testing"
)

func TestMockStoreSetGetRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests("kv/")

	if _, ok, err := store.Get(ctx, "agromix:calculation:u1"); err != nil || ok {
		t.Fatalf("expected missing object, got ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "agromix:calculation:u1", `[{"id":"c1"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "agromix:calculation:u1", `[{"id":"c2"},{"id":"c1"}]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := store.Get(ctx, "agromix:calculation:u1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if v != `[{"id":"c2"},{"id":"c1"}]` {
		t.Fatalf("unexpected value %q", v)
	}

	keys, err := store.Keys(ctx, "agromix:")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "agromix:calculation:u1" {
		t.Fatalf("unexpected keys %v", keys)
	}

	if err := store.Remove(ctx, "agromix:calculation:u1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(ctx, "agromix:calculation:u1"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "agromix:calculation:u1"); ok {
		t.Fatalf("expected object removed")
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	store := NewMockForTests("")
	if err := store.Set(context.Background(), " ", "x"); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	store, err := New(context.Background(), Config{
		Bucket:          "b",
		Endpoint:        "http://127.0.0.1:9000",
		PathStyle:       true,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.bucket != "b" {
		t.Fatalf("unexpected bucket %s", store.bucket)
	}
}

func TestDecodeChunked(t *testing.T) {
	body, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:abc\r\n\r\n"))
	if !ok || string(body) != "hello" {
		t.Fatalf("unexpected decode %q %v", body, ok)
	}
	if _, ok := decodeChunked([]byte(`{"plain":true}`)); ok {
		t.Fatalf("plain body should not decode")
	}
}
