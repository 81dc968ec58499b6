// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/repository"
)

// HeroDeleter はプロフィールの削除インターフェース。
type HeroDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) (bool, error)
}

// SessionNotifier はユーザー単位でセッション状態の変化を通知する。
// session.Hubが実装する。
type SessionNotifier interface {
	ClearUser(userID string)
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	heroDeleter HeroDeleter
	notifier    SessionNotifier
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	heroDeleter HeroDeleter,
	notifier SessionNotifier,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		heroDeleter: heroDeleter,
		notifier:    notifier,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: heroes → sessions → user（+ CASCADE: identities）
// 完了後、接続中のゲートへ匿名確定を通知する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
		slog.String("clan_id", user.ClanID),
	)

	if s.heroDeleter != nil {
		if _, err := s.heroDeleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
		}
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ClearUser(userID)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
