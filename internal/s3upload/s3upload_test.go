// FilePath: internal/s3upload/s3upload_test.go
package s3upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LowellObservatory/indi-allsky/internal/config"
)

func TestObjectURLTemplate(t *testing.T) {
	u, err := New(config.S3UploadConfig{
		Host:        "amazonaws.com",
		Bucket:      "allsky-archive",
		Region:      "us-east-2",
		AccessKey:   "key",
		SecretKey:   "secret",
		TLS:         true,
		URLTemplate: "https://{bucket}.s3.{region}.{host}",
	})
	require.NoError(t, err)

	assert.Equal(t,
		"https://allsky-archive.s3.us-east-2.amazonaws.com/ccd_x/20240315/frame.jpg",
		u.ObjectURL("ccd_x/20240315/frame.jpg"))
}

func TestObjectURLCleansKey(t *testing.T) {
	u, err := New(config.S3UploadConfig{
		Host:        "minio.local",
		Bucket:      "allsky",
		AccessKey:   "key",
		SecretKey:   "secret",
		URLTemplate: "https://{host}/{bucket}",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://minio.local/allsky/a/b.jpg", u.ObjectURL("./a//b.jpg"))
}
