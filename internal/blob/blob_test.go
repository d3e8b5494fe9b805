package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[*input.Key] = data
	m.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	data, ok := m.objects[*input.Key]
	m.mu.Unlock()
	if !ok {
		return nil, io.EOF
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func testStore() (*Store, *mockS3Client) {
	mock := newMockS3()
	return &Store{client: mock, bucket: "test"}, mock
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := testStore()

	data := []byte("encrypted audio bytes")
	ref, err := store.Put(context.Background(), data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(ref, "sha256/") {
		t.Errorf("ref = %q, want sha256/ prefix", ref)
	}
	if !ValidRef(ref) {
		t.Errorf("ValidRef(%q) = false", ref)
	}

	got, err := store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestPutIsContentAddressed(t *testing.T) {
	store, _ := testStore()

	ref1, err := store.Put(context.Background(), []byte("same bytes"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	ref2, err := store.Put(context.Background(), []byte("same bytes"))
	if err != nil {
		t.Fatalf("put again: %v", err)
	}
	if ref1 != ref2 {
		t.Errorf("refs differ for identical content: %q vs %q", ref1, ref2)
	}

	ref3, err := store.Put(context.Background(), []byte("other bytes"))
	if err != nil {
		t.Fatalf("put other: %v", err)
	}
	if ref3 == ref1 {
		t.Error("distinct content produced the same ref")
	}
}

func TestGetDetectsCorruption(t *testing.T) {
	store, mock := testStore()

	ref, err := store.Put(context.Background(), []byte("original"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	mock.mu.Lock()
	mock.objects[ref] = []byte("tampered")
	mock.mu.Unlock()

	if _, err := store.Get(context.Background(), ref); err == nil {
		t.Error("expected integrity error for tampered blob")
	}
}

func TestGetRejectsMalformedRef(t *testing.T) {
	store, _ := testStore()

	for _, ref := range []string{"", "sha256/short", "md5/abc", "../../etc/passwd"} {
		if _, err := store.Get(context.Background(), ref); err == nil {
			t.Errorf("expected error for ref %q", ref)
		}
	}
}
