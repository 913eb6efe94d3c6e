// FilePath: internal/filetransfer/filetransfer.sftp.go
package filetransfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
)

type sftpClient struct {
	cfg  config.FileTransferConfig
	addr string

	sshConn *ssh.Client
	client  *sftp.Client
}

func newSFTPClient(cfg config.FileTransferConfig, port int) *sftpClient {
	return &sftpClient{
		cfg:  cfg,
		addr: fmt.Sprintf("%s:%d", cfg.Host, port),
	}
}

func (c *sftpClient) Connect(ctx context.Context) error {
	authMethods, err := c.authMethods()
	if err != nil {
		return err
	}

	sshConfig := &ssh.ClientConfig{
		User: c.cfg.Username,
		Auth: authMethods,
		// Host keys are not pinned; the nodes upload to hosts they
		// already trust at the network level.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.cfg.Timeout,
	}

	sshConn, err := ssh.Dial("tcp", c.addr, sshConfig)
	if err != nil {
		return newTransferError(classifySSHError(err), c.cfg.Host, err)
	}

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return newTransferError(FailureConnection, c.cfg.Host, err)
	}

	c.sshConn = sshConn
	c.client = client
	nuts.L.Debugf("[sftp] connected to %s", c.addr)
	return nil
}

func (c *sftpClient) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if c.cfg.PrivateKey != "" {
		keyBytes, err := os.ReadFile(c.cfg.PrivateKey)
		if err != nil {
			return nil, newTransferError(FailureAuthentication, c.cfg.Host, err)
		}

		var signer ssh.Signer
		if c.cfg.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(c.cfg.Password))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, newTransferError(FailureAuthentication, c.cfg.Host, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	} else if c.cfg.Password != "" {
		methods = append(methods, ssh.Password(c.cfg.Password))
	}

	if len(methods) == 0 {
		return nil, newTransferError(FailureAuthentication, c.cfg.Host, fmt.Errorf("no sftp credentials configured"))
	}
	return methods, nil
}

func (c *sftpClient) Put(ctx context.Context, localFile, remoteDir, remoteFile string) error {
	if c.client == nil {
		return newTransferError(FailureConnection, c.cfg.Host, fmt.Errorf("not connected"))
	}

	local, err := os.Open(localFile)
	if err != nil {
		return newTransferError(FailureTransfer, c.cfg.Host, err)
	}
	defer local.Close()

	if remoteDir != "" {
		if err := c.client.MkdirAll(remoteDir); err != nil {
			return newTransferError(FailurePermission, c.cfg.Host, err)
		}
	}

	remotePath := path.Join(remoteDir, remoteFile)
	remote, err := c.client.Create(remotePath)
	if err != nil {
		return newTransferError(FailurePermission, c.cfg.Host, err)
	}

	if _, err := io.Copy(remote, local); err != nil {
		remote.Close()
		return newTransferError(FailureTransfer, c.cfg.Host, err)
	}
	if err := remote.Close(); err != nil {
		return newTransferError(FailureTransfer, c.cfg.Host, err)
	}

	// World readable so a web server on the remote side can serve it.
	if err := c.client.Chmod(remotePath, 0o644); err != nil {
		nuts.L.Warnf("[sftp] chmod %s failed: %v", remotePath, err)
	}

	nuts.L.Infof("[sftp] uploaded %s to %s", localFile, remotePath)
	return nil
}

func (c *sftpClient) Close() error {
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	if c.sshConn != nil {
		err := c.sshConn.Close()
		c.sshConn = nil
		return err
	}
	return nil
}

func classifySSHError(err error) FailureKind {
	// ssh reports bad credentials as "unable to authenticate".
	if err != nil && containsAny(err.Error(), "unable to authenticate", "permission denied") {
		return FailureAuthentication
	}
	return FailureConnection
}
