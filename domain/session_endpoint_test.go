package domain_test

import (
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"ironveil/domain"
	"ironveil/domain/mocks"
)

// 初期化時にリソースが正しくセットアップされることを確認
func TestNewSessionEndpoint_InitializesDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := domain.NewSession()
	tr := mocks.NewMockTransport(ctrl)
	c := domain.NewConnection(s.ID(), tr)
	ps := mocks.NewMockPubSub(ctrl)
	gw := mocks.NewMockGateway(ctrl)

	se, err := domain.NewSessionEndpoint(s, c, ps, gw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if se == nil {
		t.Fatalf("endpoint is nil")
	}
}

func TestNewSessionEndpoint_NilDependencies(t *testing.T) {
	if _, err := domain.NewSessionEndpoint(nil, nil, nil, nil); !errors.Is(err, domain.ErrInitializationFailed) {
		t.Errorf("expected ErrInitializationFailed, got %v", err)
	}
}

// 読み取りエラーで終了する経路でも、暗黙的なleave（Disconnect）が必ず呼ばれることを確認
func TestSessionEndpoint_RunDisconnectsOnReadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := domain.NewSession()
	tr := mocks.NewMockTransport(ctrl)
	c := domain.NewConnection(s.ID(), tr)
	ps := mocks.NewMockPubSub(ctrl)
	gw := mocks.NewMockGateway(ctrl)

	msgCh := make(chan domain.Message)
	ps.EXPECT().Subscribe(domain.SessionTopic(s.ID())).Return((<-chan domain.Message)(msgCh))
	ps.EXPECT().Unsubscribe(domain.SessionTopic(s.ID()), gomock.Any())

	tr.EXPECT().Read(gomock.Any()).Return(nil, errors.New("connection reset")).AnyTimes()
	tr.EXPECT().Close(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	gw.EXPECT().Disconnect(gomock.Any(), s.ID())

	se, err := domain.NewSessionEndpoint(s, c, ps, gw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := se.Run(); err != nil {
		t.Errorf("Run returned error: %v", err)
	}
	if !s.IsClosed() {
		t.Errorf("session should be closed after read error")
	}
}
