package domain

import (
	"testing"
	"time"
)

// TestNewSession_InitializesTimestamps は NewSession がタイムスタンプを初期化することを確認します。
func TestNewSession_InitializesTimestamps(t *testing.T) {
	s := NewSession()

	if s.lastRead.Load() == 0 {
		t.Errorf("lastRead is not initialized")
	}
	if s.lastWrite.Load() == 0 {
		t.Errorf("lastWrite is not initialized")
	}
	if s.ID().IsEmpty() {
		t.Errorf("session id is empty")
	}
}

// TestSession_Close は初回のCloseのみtrueを返すことを確認します。
func TestSession_Close(t *testing.T) {
	s := NewSession()

	if !s.Close() {
		t.Errorf("first close should return true")
	}
	if s.Close() {
		t.Errorf("second close should return false")
	}
	if !s.IsClosed() {
		t.Errorf("session should be closed")
	}
}

func TestSession_IsIdle(t *testing.T) {
	s := NewSession()

	idle, reason := s.IsIdle(time.Hour)
	if idle {
		t.Errorf("fresh session should not be idle, reason=%v", reason)
	}

	idle, reason = s.IsIdle(0)
	if idle {
		t.Errorf("timeout 0 disables idle check")
	}
	if reason != IdleDisabled {
		t.Errorf("expected IdleDisabled, got %v", reason)
	}
}
