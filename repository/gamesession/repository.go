package gamesession

import (
	"context"
	"errors"
	"time"
)

//go:generate go tool mockgen -destination=./mocks/repository_mock.go -package=mocks . Repository

// ErrNotFound は該当コードのセッションが存在しない場合に返されるエラーです。
var ErrNotFound = errors.New("gamesession: not found")

// Session は永続層が保持するルームの記録です。ライブな戦闘状態は含みません。
type Session struct {
	ID         string
	Code       string
	Name       string
	MaxPlayers int
	IsPublic   bool
	Status     string
	CreatedAt  time.Time
}

// Repository は永続セッションストアとの境界です。
// ルームの初回参照時のハイドレートと状態遷移のミラーにのみ使います。
type Repository interface {
	GetByCode(ctx context.Context, code string) (*Session, error)
	UpdateStatus(ctx context.Context, id string, status string) error
}
