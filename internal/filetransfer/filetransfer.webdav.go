// FilePath: internal/filetransfer/filetransfer.webdav.go
package filetransfer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"path"

	"github.com/studio-b12/gowebdav"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
)

type webdavClient struct {
	cfg config.FileTransferConfig
	uri string

	client *gowebdav.Client
}

func newWebDAVClient(cfg config.FileTransferConfig, port int) *webdavClient {
	scheme := "https"
	if port == 80 {
		scheme = "http"
	}
	return &webdavClient{
		cfg: cfg,
		uri: fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, port),
	}
}

func (c *webdavClient) Connect(ctx context.Context) error {
	client := gowebdav.NewClient(c.uri, c.cfg.Username, c.cfg.Password)
	client.SetTimeout(c.cfg.Timeout)

	if c.cfg.CertBypass {
		client.SetTransport(&http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		})
	}

	if err := client.Connect(); err != nil {
		return newTransferError(classifyWebDAVError(err), c.cfg.Host, err)
	}

	c.client = client
	nuts.L.Debugf("[webdav] connected to %s", c.uri)
	return nil
}

func (c *webdavClient) Put(ctx context.Context, localFile, remoteDir, remoteFile string) error {
	if c.client == nil {
		return newTransferError(FailureConnection, c.cfg.Host, fmt.Errorf("not connected"))
	}

	local, err := os.Open(localFile)
	if err != nil {
		return newTransferError(FailureTransfer, c.cfg.Host, err)
	}
	defer local.Close()

	if remoteDir != "" {
		if err := c.client.MkdirAll(remoteDir, 0o755); err != nil {
			return newTransferError(FailurePermission, c.cfg.Host, err)
		}
	}

	remotePath := path.Join(remoteDir, remoteFile)
	if err := c.client.WriteStream(remotePath, local, 0o644); err != nil {
		return newTransferError(classifyWebDAVError(err), c.cfg.Host, err)
	}

	nuts.L.Infof("[webdav] uploaded %s to %s", localFile, remotePath)
	return nil
}

func (c *webdavClient) Close() error {
	c.client = nil
	return nil
}

func classifyWebDAVError(err error) FailureKind {
	if err == nil {
		return FailureTransfer
	}
	switch {
	case containsAny(err.Error(), "401", "unauthorized"):
		return FailureAuthentication
	case containsAny(err.Error(), "403", "forbidden"):
		return FailurePermission
	default:
		return FailureConnection
	}
}
