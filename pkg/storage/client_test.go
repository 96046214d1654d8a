package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fly-io/update-agent/pkg/artifact"
	"github.com/fly-io/update-agent/pkg/security"
)

type fakeS3 struct {
	objects map[string][]byte
	pages   [][]string
	getErr  error
	gets    int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := 0
	if in.ContinuationToken != nil {
		page = int(aws.ToString(in.ContinuationToken)[0] - '0')
	}
	out := &s3.ListObjectsV2Output{}
	for _, k := range f.pages[page] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if page+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('0' + page + 1)))
	}
	return out, nil
}

func TestClient_Fetch(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{
		"fw/good.bin":  {10, 20, 30, 60},
		"fw/empty.bin": {},
		"fw/big.bin":   make([]byte, 100),
	}}
	c := newClient(api, "updates", security.NewValidator(16))

	data, err := c.Fetch(context.Background(), "fw/good.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 4 {
		t.Errorf("size = %d, want 4", len(data))
	}

	if _, err := c.Fetch(context.Background(), "fw/missing.bin"); !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Fetch(context.Background(), "fw/empty.bin"); !errors.Is(err, artifact.ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
	if _, err := c.Fetch(context.Background(), "fw/big.bin"); !errors.Is(err, security.ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}

	gets := api.gets
	if _, err := c.Fetch(context.Background(), "../secret"); !errors.Is(err, security.ErrInvalidIdentity) {
		t.Errorf("expected ErrInvalidIdentity, got %v", err)
	}
	if api.gets != gets {
		t.Error("invalid key should be rejected before calling S3")
	}
}

func TestClient_FetchTransportError(t *testing.T) {
	api := &fakeS3{getErr: errors.New("connection reset")}
	c := newClient(api, "updates", security.NewValidator(16))

	_, err := c.Fetch(context.Background(), "fw.bin")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, artifact.ErrNotFound) {
		t.Error("transport errors should not be reported as not found")
	}
}

func TestClient_ListObjects(t *testing.T) {
	api := &fakeS3{pages: [][]string{{"a.bin", "b.bin"}, {"c.bin"}}}
	c := newClient(api, "updates", security.NewValidator(16))

	keys, err := c.ListObjects(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 3 || keys[2] != "c.bin" {
		t.Errorf("keys = %v", keys)
	}
}

func TestClient_Exists(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{"fw.bin": {0}}}
	c := newClient(api, "updates", security.NewValidator(16))

	ok, err := c.Exists(context.Background(), "fw.bin")
	if err != nil || !ok {
		t.Errorf("Exists(fw.bin) = %v, %v", ok, err)
	}
	ok, err = c.Exists(context.Background(), "nope.bin")
	if err != nil || ok {
		t.Errorf("Exists(nope.bin) = %v, %v", ok, err)
	}
}
