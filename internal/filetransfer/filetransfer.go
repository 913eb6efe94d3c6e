// FilePath: internal/filetransfer/filetransfer.go

// Package filetransfer implements the file upload clients used by the
// task workers. The protocol set is closed: sftp, ftp, ftps, ftpes and
// webdav. Unknown protocol names are a configuration error, not a
// dynamic lookup.
package filetransfer

import (
	"context"
	"fmt"

	"github.com/LowellObservatory/indi-allsky/internal/config"
)

// Protocol identifies a transfer client implementation.
type Protocol string

const (
	ProtocolSFTP   Protocol = "sftp"
	ProtocolFTP    Protocol = "ftp"
	ProtocolFTPS   Protocol = "ftps"  // implicit TLS
	ProtocolFTPES  Protocol = "ftpes" // explicit TLS upgrade
	ProtocolWebDAV Protocol = "webdav"
)

// Client moves a single local file to a remote location. Connect must
// be called before Put; Close releases the connection and is safe to
// call after a failed Connect.
type Client interface {
	Connect(ctx context.Context) error
	Put(ctx context.Context, localFile, remoteDir, remoteFile string) error
	Close() error
}

// defaultPorts per protocol, used when the configured port is zero.
var defaultPorts = map[Protocol]int{
	ProtocolSFTP:   22,
	ProtocolFTP:    21,
	ProtocolFTPS:   990,
	ProtocolFTPES:  21,
	ProtocolWebDAV: 443,
}

// New builds a transfer client for the configured protocol.
func New(cfg config.FileTransferConfig) (Client, error) {
	protocol := Protocol(cfg.ClassName)

	port := cfg.Port
	if port == 0 {
		port = defaultPorts[protocol]
	}

	switch protocol {
	case ProtocolSFTP:
		return newSFTPClient(cfg, port), nil
	case ProtocolFTP, ProtocolFTPS, ProtocolFTPES:
		return newFTPClient(cfg, protocol, port), nil
	case ProtocolWebDAV:
		return newWebDAVClient(cfg, port), nil
	default:
		return nil, fmt.Errorf("unknown file transfer protocol %q", cfg.ClassName)
	}
}
