package memory

import (
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "path/page.html", "text/html", payload)
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://path/page.html" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored := string(store.data["path/page.html"])
	if stored != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
}

func TestBlobStorePutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, err := store.PutObject(context.Background(), "", "text/html", []byte("x")); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestBlobStoreObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, ok := store.Object("missing"); ok {
		t.Fatal("expected miss for unknown path")
	}
	if _, err := store.PutObject(context.Background(), "snap.html", "text/html", []byte("body")); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	got, ok := store.Object("snap.html")
	if !ok || string(got) != "body" {
		t.Fatalf("Object() = %q, %v", got, ok)
	}
	got[0] = 'B'
	again, _ := store.Object("snap.html")
	if string(again) != "body" {
		t.Fatal("expected Object() to return a copy")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 object, got %d", store.Len())
	}
}
