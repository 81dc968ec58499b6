package clan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/repository"
)

// MembershipNotifier は所属変更後のユーザーを購読者へ通知する。
// session.Hubが実装する。
type MembershipNotifier interface {
	SettleUser(user *model.User)
}

// Service はクラン一覧と所属変更を扱う。
type Service struct {
	clanRepo repository.ClanRepository
	userRepo repository.UserRepository
	notifier MembershipNotifier
}

// NewService はServiceを生成する。notifierはnilでもよい。
func NewService(clanRepo repository.ClanRepository, userRepo repository.UserRepository, notifier MembershipNotifier) *Service {
	return &Service{clanRepo: clanRepo, userRepo: userRepo, notifier: notifier}
}

// List は全クランを返す。
func (s *Service) List(ctx context.Context) ([]model.Clan, error) {
	clans, err := s.clanRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("クラン一覧の取得に失敗しました: %w", err)
	}
	return clans, nil
}

// Get は解決済みのクランIDに対応するクランを返す。
// Absentの場合はCLAN_NOT_SETを返す。
func (s *Service) Get(ctx context.Context, v Value) (*model.Clan, error) {
	if !v.Present {
		return nil, model.NewClanNotSetError()
	}
	c, err := s.clanRepo.FindByID(ctx, v.ID)
	if err != nil {
		return nil, fmt.Errorf("クランの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewClanNotFoundError(v.ID)
	}
	return c, nil
}

// Join はユーザーの所属クランを変更する。clanIDが空の場合は脱退する。
// 更新後のユーザーを返し、同じユーザーの全セッションへ通知する。
// 所属が変わると旧クランのヒーロープロフィールは削除される。
// 現在と同じクランを指定した場合は何も変更しない。
func (s *Service) Join(ctx context.Context, user *model.User, clanID string) (*model.User, error) {
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}
	if clanID == user.ClanID {
		unchanged := *user
		return &unchanged, nil
	}

	if clanID != "" {
		c, err := s.clanRepo.FindByID(ctx, clanID)
		if err != nil {
			return nil, fmt.Errorf("クランの取得に失敗しました: %w", err)
		}
		if c == nil {
			return nil, model.NewClanNotFoundError(clanID)
		}
	}

	if err := s.userRepo.UpdateClan(ctx, user.ID, clanID); err != nil {
		return nil, fmt.Errorf("所属クランの更新に失敗しました: %w", err)
	}

	updated := *user
	updated.ClanID = clanID

	if s.notifier != nil {
		s.notifier.SettleUser(&updated)
	}

	slog.Info("所属クランを変更しました",
		slog.String("user_id", user.ID),
		slog.String("from", user.ClanID),
		slog.String("to", clanID),
	)

	return &updated, nil
}
