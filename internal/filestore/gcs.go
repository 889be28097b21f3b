package filestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsPublicHost = "https://storage.googleapis.com/"

type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS uses application default credentials unless credentialsFile is set.
func NewGCS(ctx context.Context, bucket string, credentialsFile string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	opts := make([]option.ClientOption, 0, 1)
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Save(ctx context.Context, dir string, name string, data []byte, contentType string) (string, error) {
	key := objectKey(dir, name)
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return g.publicURL(key), nil
}

func (g *GCS) Delete(ctx context.Context, ref string) error {
	key, ok := g.keyOf(ref)
	if !ok {
		return nil
	}
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCS) publicURL(key string) string {
	return gcsPublicHost + g.bucket + "/" + key
}

func (g *GCS) keyOf(ref string) (string, bool) {
	prefix := gcsPublicHost + g.bucket + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, prefix), true
}
