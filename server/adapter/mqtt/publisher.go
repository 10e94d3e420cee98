package adaptermqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"ironveil/domain"
)

const connectTimeout = 5 * time.Second

// Publisher は外部MQTTブローカーへのfire-and-forget配信です。
// 接続断は自動再接続に任せ、Publishの失敗で呼び出し元を止めません。
type Publisher struct {
	client mqtt.Client
}

func NewPublisher(brokerURL, clientID string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("mqtt: connection lost", "err", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt: connect timeout to %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect failed: %w", err)
	}
	return &Publisher{client: client}, nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt: not connected")
	}
	// QoS0・非同期。tokenの完了は待たない。
	p.client.Publish(topic, 0, false, payload)
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

var _ domain.EventBus = (*Publisher)(nil)
