package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/andresuchdata/autoreorder/internal/config"
	"github.com/andresuchdata/autoreorder/internal/ingest"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient implements ObjectStorage on any S3-compatible service and
// serves as an ingest.RemoteSource over its configured prefix.
type MinioClient struct {
	client *minio.Client
	bucket string
	prefix string
}

var (
	_ ObjectStorage       = (*MinioClient)(nil)
	_ ingest.RemoteSource = (*MinioClient)(nil)
)

func NewMinioClient(cfg config.StorageConfig) (*MinioClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket must be provided")
	}

	endpoint, secure := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &MinioClient{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// normalizeEndpoint strips a URL scheme, which minio expects as a flag
// rather than part of the host.
func normalizeEndpoint(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "//"), "/"), useSSL
	}
}

func (c *MinioClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return out, nil
}

func (c *MinioClient) DownloadObject(ctx context.Context, key string, destPath string) error {
	if err := c.client.FGetObject(ctx, c.bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	return nil
}

func (c *MinioClient) UploadObject(ctx context.Context, key string, data []byte) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// ListFiles lists supported exports under the configured prefix.
func (c *MinioClient) ListFiles(ctx context.Context) ([]ingest.RemoteFile, error) {
	prefix := c.prefix
	if prefix != "" {
		prefix += "/"
	}
	objects, err := c.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	archive := c.ArchivePrefix() + "/"
	var files []ingest.RemoteFile
	for _, o := range objects {
		if !ingest.Supported(o.Key) || strings.HasPrefix(o.Key, archive) {
			continue
		}
		files = append(files, ingest.RemoteFile{ID: o.Key, Name: o.Key, ModTime: o.LastModified})
	}
	return files, nil
}

func (c *MinioClient) Download(ctx context.Context, file ingest.RemoteFile, w io.Writer) error {
	obj, err := c.client.GetObject(ctx, c.bucket, file.ID, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.ID, err)
	}
	defer obj.Close()

	if _, err := io.Copy(w, obj); err != nil {
		return fmt.Errorf("failed to read %s: %w", file.ID, err)
	}
	return nil
}

// ArchivePrefix is the key prefix for archived uploads. ListFiles skips it.
func (c *MinioClient) ArchivePrefix() string {
	return path.Join(c.prefix, "archive")
}

// ArchiveKey is where an uploaded snapshot is kept, keyed by its identity so
// re-uploads of the same file overwrite one object.
func (c *MinioClient) ArchiveKey(name, identity string) string {
	short := identity
	if len(short) > 16 {
		short = short[:16]
	}
	return path.Join(c.ArchivePrefix(), short+"-"+path.Base(name))
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
