// FilePath: internal/filetransfer/filetransfer.mqtt.go
package filetransfer

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

// MQTTPublisher pushes the latest image and its metadata to a broker.
// The image goes to {base_topic}/latest as raw bytes; each metadata
// value goes to {base_topic}/{key}. Messages are retained so late
// subscribers immediately see the current sky.
type MQTTPublisher struct {
	cfg    config.MQTTPublishConfig
	client mqtt.Client
}

func NewMQTTPublisher(cfg config.MQTTPublishConfig) *MQTTPublisher {
	return &MQTTPublisher{cfg: cfg}
}

func (p *MQTTPublisher) brokerURL() string {
	scheme := "tcp"
	if p.cfg.Transport == "websockets" {
		scheme = "ws"
		if p.cfg.TLS {
			scheme = "wss"
		}
	} else if p.cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, p.cfg.Host, p.cfg.Port)
}

func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(p.brokerURL()).
		SetClientID(fmt.Sprintf("indi-allsky-%s", nuts.NID("mqtt", 8))).
		SetCleanSession(true)

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	if p.cfg.TLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: p.cfg.CertBypass})
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		// stop the network goroutines paho started for the attempt
		client.Disconnect(0)
		return newTransferError(FailureConnection, p.cfg.Host, err)
	}

	p.client = client
	nuts.L.Debugf("[mqtt] connected to %s", p.brokerURL())
	return nil
}

// PublishImage sends the image file followed by its metadata values.
func (p *MQTTPublisher) PublishImage(ctx context.Context, localFile string, metadata models.JSONMap) error {
	if p.client == nil {
		return newTransferError(FailureConnection, p.cfg.Host, fmt.Errorf("not connected"))
	}

	data, err := os.ReadFile(localFile)
	if err != nil {
		return newTransferError(FailureTransfer, p.cfg.Host, err)
	}

	imageTopic := fmt.Sprintf("%s/latest", p.cfg.BaseTopic)
	if err := p.publish(imageTopic, data); err != nil {
		return err
	}

	for key, value := range metadata {
		topic := fmt.Sprintf("%s/%s", p.cfg.BaseTopic, key)
		if err := p.publish(topic, []byte(fmt.Sprintf("%v", value))); err != nil {
			return err
		}
	}

	nuts.L.Infof("[mqtt] published %s and %d metadata values under %s", localFile, len(metadata), p.cfg.BaseTopic)
	return nil
}

func (p *MQTTPublisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.cfg.QOS, true, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return newTransferError(FailureTransfer, p.cfg.Host, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
	return nil
}
