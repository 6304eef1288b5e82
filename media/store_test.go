package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body        string
	contentType string
}

type fakeGetter struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	bucket  string
}

func (g *fakeGetter) GetObject(ctx context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bucket = aws.ToString(input.Bucket)
	obj, ok := g.objects[aws.ToString(input.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(obj.body)),
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.body))),
	}, nil
}

func TestStoreOpen(t *testing.T) {
	g := &fakeGetter{objects: map[string]fakeObject{
		"announcements/summer.jpg": {body: "jpegbytes", contentType: "image/jpeg"},
	}}
	s := &Store{client: g, bucket: "marquee-media"}

	body, contentType, length, err := s.Open(context.Background(), "announcements/summer.jpg")
	require.NoError(t, err)
	defer body.Close()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(got))
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, int64(9), length)
	assert.Equal(t, "marquee-media", g.bucket)
}

func TestStoreOpenError(t *testing.T) {
	g := &fakeGetter{}
	s := &Store{client: g, bucket: "marquee-media"}

	_, _, _, err := s.Open(context.Background(), "missing.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.jpg")
}

func TestStorageKey(t *testing.T) {
	tests := []struct {
		mediaURL string
		key      string
		ok       bool
	}{
		{"announcements/summer.jpg", "announcements/summer.jpg", true},
		{"/announcements/summer.jpg", "announcements/summer.jpg", true},
		{"announcements/summer.jpg?v=2", "announcements/summer.jpg", true},
		{"a/./b.mp4", "a/b.mp4", true},
		{"../../etc/passwd", "etc/passwd", true},
		{"", "", false},
		{"/", "", false},
		{"https://cdn.example.com/a.jpg", "", false},
		{"http://cdn.example.com/a.jpg", "", false},
		{"//cdn.example.com/a.jpg", "", false},
		{"data:image/png;base64,xyz", "", false},
	}
	for _, tt := range tests {
		key, ok := StorageKey(tt.mediaURL)
		assert.Equal(t, tt.ok, ok, tt.mediaURL)
		assert.Equal(t, tt.key, key, tt.mediaURL)
	}
}
