// Package blob stores uploaded file and image payloads in object storage.
// Block rows only carry the resulting URL, name and size in their metadata.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"handbook/api/internal/util"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Storage struct {
	client *minio.Client
	bucket string
	useSSL bool
}

// UploadResult is what block metadata stores for file/image blocks.
type UploadResult struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	storage := &Storage{client: client, bucket: cfg.Bucket, useSSL: cfg.UseSSL}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
	}
	return storage, nil
}

// Put uploads one object under a random key and returns the public URL the
// client embeds in block metadata.
func (s *Storage) Put(ctx context.Context, r io.Reader, size int64, name, contentType string) (UploadResult, error) {
	key := util.NewID("upl") + "/" + sanitizeName(name)

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("put object: %w", err)
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	objectURL := fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, key)

	return UploadResult{URL: objectURL, Name: sanitizeName(name), Size: info.Size}, nil
}

func (s *Storage) Remove(ctx context.Context, objectURL string) error {
	parsed, err := url.Parse(objectURL)
	if err != nil {
		return fmt.Errorf("parse object url: %w", err)
	}
	key := strings.TrimPrefix(parsed.Path, "/"+s.bucket+"/")
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func sanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "" || base == "." || base == "/" {
		return "upload"
	}
	return base
}
