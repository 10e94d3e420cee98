package domain

import (
	"context"
	"log/slog"
	"sync"
)

//go:generate go tool mockgen -destination=./mocks/pubsub_mock.go -package=mocks . PubSub

type Topic string

// SessionTopic はセッション宛メッセージのトピックを返します。
func SessionTopic(id SessionID) Topic {
	return Topic("session:" + id.String())
}

// Message はpubsub上を流れる1件のメッセージです。
type Message struct {
	SessionID SessionID
	Data      []byte
}

// PubSub はプロセス内のトピック配送を担当します。
type PubSub interface {
	Publish(ctx context.Context, topic Topic, msg Message)
	Subscribe(topic Topic) <-chan Message
	Unsubscribe(topic Topic, ch <-chan Message)
}

const subscriberBuffer = 256

// SimplePubSub はmapベースのインメモリPubSubです。
// 購読チャネルが満杯の場合メッセージは破棄されます（配送保証なし）。
type SimplePubSub struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Message
}

func NewSimplePubSub() *SimplePubSub {
	return &SimplePubSub{
		subs: make(map[Topic][]chan Message),
	}
}

func (p *SimplePubSub) Publish(ctx context.Context, topic Topic, msg Message) {
	p.mu.RLock()
	chans := p.subs[topic]
	p.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- msg:
		default:
			slog.WarnContext(ctx, "pubsub: subscriber full, message dropped", "topic", topic)
		}
	}
}

func (p *SimplePubSub) Subscribe(topic Topic) <-chan Message {
	ch := make(chan Message, subscriberBuffer)
	p.mu.Lock()
	p.subs[topic] = append(p.subs[topic], ch)
	p.mu.Unlock()
	return ch
}

func (p *SimplePubSub) Unsubscribe(topic Topic, ch <-chan Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	chans := p.subs[topic]
	for i, c := range chans {
		if c == ch {
			p.subs[topic] = append(chans[:i], chans[i+1:]...)
			close(c)
			break
		}
	}
	if len(p.subs[topic]) == 0 {
		delete(p.subs, topic)
	}
}

var _ PubSub = (*SimplePubSub)(nil)
