// FilePath: internal/s3upload/s3upload.go

// Package s3upload pushes assets to an S3-compatible object store and
// computes the public URL recorded back on the asset row.
package s3upload

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
)

// Uploader owns a single client against the configured endpoint.
type Uploader struct {
	cfg    config.S3UploadConfig
	client *minio.Client
}

func New(cfg config.S3UploadConfig) (*Uploader, error) {
	endpoint := cfg.Host
	if cfg.Port != 0 {
		endpoint = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.TLS,
		Region: cfg.Region,
	}
	if cfg.TLS && cfg.CertBypass {
		opts.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &Uploader{cfg: cfg, client: client}, nil
}

// Upload stores localFile at key and returns the public URL.
func (u *Uploader) Upload(ctx context.Context, localFile, key string) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(localFile))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	putOpts := minio.PutObjectOptions{
		ContentType:  contentType,
		StorageClass: u.cfg.StorageClass,
	}
	if u.cfg.ACL != "" {
		putOpts.UserMetadata = map[string]string{"x-amz-acl": u.cfg.ACL}
	}

	info, err := u.client.FPutObject(ctx, u.cfg.Bucket, key, localFile, putOpts)
	if err != nil {
		return "", fmt.Errorf("s3 upload of %s failed: %w", localFile, err)
	}

	url := u.ObjectURL(key)
	nuts.L.Infof("[s3] uploaded %s to %s (%d bytes)", localFile, url, info.Size)
	return url, nil
}

// Delete removes an object; missing objects are not an error.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	err := u.client.RemoveObject(ctx, u.cfg.Bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("s3 delete of %s failed: %w", key, err)
	}
	nuts.L.Infof("[s3] deleted %s", key)
	return nil
}

// ObjectURL expands the configured URL template for a key. The
// template understands {bucket}, {region} and {host}.
func (u *Uploader) ObjectURL(key string) string {
	base := u.cfg.URLTemplate
	base = strings.ReplaceAll(base, "{bucket}", u.cfg.Bucket)
	base = strings.ReplaceAll(base, "{region}", u.cfg.Region)
	base = strings.ReplaceAll(base, "{host}", u.cfg.Host)
	return base + "/" + path.Clean(key)
}
