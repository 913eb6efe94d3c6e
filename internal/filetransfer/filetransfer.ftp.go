// FilePath: internal/filetransfer/filetransfer.ftp.go
package filetransfer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/textproto"
	"os"
	"path"
	"strings"

	"github.com/jlaffaye/ftp"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
)

type ftpClient struct {
	cfg      config.FileTransferConfig
	protocol Protocol
	addr     string

	conn *ftp.ServerConn
}

func newFTPClient(cfg config.FileTransferConfig, protocol Protocol, port int) *ftpClient {
	return &ftpClient{
		cfg:      cfg,
		protocol: protocol,
		addr:     fmt.Sprintf("%s:%d", cfg.Host, port),
	}
}

func (c *ftpClient) Connect(ctx context.Context) error {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(c.cfg.Timeout),
	}

	tlsConfig := &tls.Config{
		ServerName:         c.cfg.Host,
		InsecureSkipVerify: c.cfg.CertBypass,
	}
	switch c.protocol {
	case ProtocolFTPS:
		opts = append(opts, ftp.DialWithTLS(tlsConfig))
	case ProtocolFTPES:
		opts = append(opts, ftp.DialWithExplicitTLS(tlsConfig))
	}

	conn, err := ftp.Dial(c.addr, opts...)
	if err != nil {
		return newTransferError(FailureConnection, c.cfg.Host, err)
	}

	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		conn.Quit()
		return newTransferError(FailureAuthentication, c.cfg.Host, err)
	}

	c.conn = conn
	nuts.L.Debugf("[%s] connected to %s", c.protocol, c.addr)
	return nil
}

func (c *ftpClient) Put(ctx context.Context, localFile, remoteDir, remoteFile string) error {
	if c.conn == nil {
		return newTransferError(FailureConnection, c.cfg.Host, fmt.Errorf("not connected"))
	}

	local, err := os.Open(localFile)
	if err != nil {
		return newTransferError(FailureTransfer, c.cfg.Host, err)
	}
	defer local.Close()

	if remoteDir != "" {
		c.makeDirAll(remoteDir)
	}

	remotePath := path.Join(remoteDir, remoteFile)
	if err := c.conn.Stor(remotePath, local); err != nil {
		return newTransferError(classifyFTPError(err), c.cfg.Host, err)
	}

	nuts.L.Infof("[%s] uploaded %s to %s", c.protocol, localFile, remotePath)
	return nil
}

// makeDirAll creates each path segment in turn. Already-existing
// directories answer with an error the server is free to phrase any
// way it likes, so failures here are ignored and Stor decides.
func (c *ftpClient) makeDirAll(remoteDir string) {
	segments := strings.Split(path.Clean(remoteDir), "/")
	current := ""
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		current = path.Join(current, segment)
		_ = c.conn.MakeDir(current)
	}
}

func (c *ftpClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Quit()
	c.conn = nil
	return err
}

func classifyFTPError(err error) FailureKind {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case ftp.StatusNotLoggedIn:
			return FailureAuthentication
		case ftp.StatusFileUnavailable, ftp.StatusBadFileName:
			return FailurePermission
		}
	}
	return FailureTransfer
}
