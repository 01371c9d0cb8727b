package photo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type mockS3Client struct {
	putKeys    []string
	putTypes   []string
	getKey     string
	deleteKeys []string
	getBody    string
	failPut    bool
}

func (m *mockS3Client) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.failPut {
		return nil, errors.New("put failed")
	}
	m.putKeys = append(m.putKeys, *input.Key)
	m.putTypes = append(m.putTypes, *input.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.getKey = *input.Key
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(strings.NewReader(m.getBody)),
		ContentType: aws.String("image/jpeg"),
	}, nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.deleteKeys = append(m.deleteKeys, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func testStore(mock *mockS3Client) *Store {
	return &Store{
		cfg: Config{
			Endpoint: "https://s3.example.com",
			Bucket:   "farthing-photos",
			Region:   "us-east-1",
		},
		client: mock,
	}
}

func TestUploadKeyLayout(t *testing.T) {
	mock := &mockS3Client{}
	s := testStore(mock)

	url, err := s.Upload(context.Background(), 7, 42, "image/png", bytes.NewReader([]byte("img")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(mock.putKeys) != 1 {
		t.Fatalf("expected 1 put, got %d", len(mock.putKeys))
	}

	key := mock.putKeys[0]
	if !strings.HasPrefix(key, "photos/7/42/") {
		t.Errorf("key = %q, want photos/7/42/ prefix", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("key = %q, want .png suffix", key)
	}
	if mock.putTypes[0] != "image/png" {
		t.Errorf("content type = %q", mock.putTypes[0])
	}
	if !strings.Contains(url, key) {
		t.Errorf("url %q does not contain key %q", url, key)
	}
}

func TestUploadUnknownTypeDefaultsToJPEG(t *testing.T) {
	mock := &mockS3Client{}
	s := testStore(mock)

	if _, err := s.Upload(context.Background(), 1, 1, "application/octet-stream", bytes.NewReader(nil)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasSuffix(mock.putKeys[0], ".jpg") {
		t.Errorf("key = %q, want .jpg fallback", mock.putKeys[0])
	}
}

func TestUploadNotConfigured(t *testing.T) {
	s := NewStore(Config{})
	if s.Configured() {
		t.Fatal("store without credentials should not be configured")
	}

	_, err := s.Upload(context.Background(), 1, 1, "image/jpeg", bytes.NewReader(nil))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestURLFor(t *testing.T) {
	s := testStore(nil)

	// Path-style against a custom endpoint.
	got := s.URLFor("photos/1/2/x.jpg")
	want := "https://s3.example.com/farthing-photos/photos/1/2/x.jpg"
	if got != want {
		t.Errorf("url = %q, want %q", got, want)
	}

	// Public base URL wins when set.
	s.cfg.PublicBaseURL = "https://photos.farthing.family/"
	got = s.URLFor("photos/1/2/x.jpg")
	want = "https://photos.farthing.family/photos/1/2/x.jpg"
	if got != want {
		t.Errorf("url = %q, want %q", got, want)
	}

	// AWS virtual-hosted style when no endpoint at all.
	s.cfg.PublicBaseURL = ""
	s.cfg.Endpoint = ""
	got = s.URLFor("photos/1/2/x.jpg")
	want = "https://farthing-photos.s3.us-east-1.amazonaws.com/photos/1/2/x.jpg"
	if got != want {
		t.Errorf("url = %q, want %q", got, want)
	}
}

func TestKeyFromURL(t *testing.T) {
	s := testStore(nil)

	key := s.KeyFromURL("https://s3.example.com/farthing-photos/photos/1/2/x.jpg")
	if key != "photos/1/2/x.jpg" {
		t.Errorf("key = %q", key)
	}

	if key := s.KeyFromURL("https://elsewhere.example.com/other/thing.jpg"); key != "" {
		t.Errorf("foreign url produced key %q", key)
	}
}

func TestFetchAndDelete(t *testing.T) {
	mock := &mockS3Client{getBody: "image-bytes"}
	s := testStore(mock)

	body, contentType, err := s.Fetch(context.Background(), "photos/1/2/x.jpg")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "image-bytes" {
		t.Errorf("body = %q", data)
	}
	if contentType != "image/jpeg" {
		t.Errorf("content type = %q", contentType)
	}
	if mock.getKey != "photos/1/2/x.jpg" {
		t.Errorf("get key = %q", mock.getKey)
	}

	if err := s.Delete(context.Background(), "photos/1/2/x.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(mock.deleteKeys) != 1 || mock.deleteKeys[0] != "photos/1/2/x.jpg" {
		t.Errorf("delete keys = %v", mock.deleteKeys)
	}
}
