// Package auth はOAuth認証フロー、セッション管理、セッション状態の解決を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/repository"
	"github.com/hitoshi/clanhub/internal/session"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google", "github" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// SessionNotifier はセッション状態の変化を購読者へ通知する。
// session.Hubが実装する。
type SessionNotifier interface {
	Clear(sessionID string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	notifier    SessionNotifier
	config      ServiceConfig
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		logger:      slog.Default(),
	}
}

// WithNotifier はログアウト時にセッション状態を通知する先を設定する。
func (s *Service) WithNotifier(n SessionNotifier) *Service {
	s.notifier = n
	return s
}

// WithLogger はロガーを差し替える。
func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成する。
// 登録済みユーザーの場合はidentitiesテーブルで既存ユーザーを特定しログインする。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identitiesテーブルで既存ユーザーを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string

	if identity != nil {
		// 3a. 既存ユーザー: identityからユーザーIDを取得
		userID = identity.UserID
		s.logger.Info("existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		// 3b. 新規ユーザー: usersレコードとidentitiesレコードを同時に作成
		newUserID := uuid.New().String()
		newIdentityID := uuid.New().String()
		now := time.Now()

		newUser := &model.User{
			ID:        newUserID,
			Email:     userInfo.Email,
			Name:      userInfo.Name,
			CreatedAt: now,
			UpdatedAt: now,
		}

		newIdentity := &model.Identity{
			ID:             newIdentityID,
			UserID:         newUserID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}

		if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		userID = newUserID
		s.logger.Info("new user created",
			slog.String("user_id", userID),
			slog.String("email", userInfo.Email),
			slog.String("provider", userInfo.Provider),
		)
	}

	// 4. セッションを発行
	sess, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return sess, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Clear(sessionID)
	}

	s.logger.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// Resolve はセッションIDからセッション状態を解決する。
// セッションIDが空、期限切れ、ユーザー削除済みの場合は匿名として確定する。
// バックエンドの障害時は未確定のまま返し、ゲートはリダイレクトしない。
func (s *Service) Resolve(ctx context.Context, sessionID string) session.State {
	if sessionID == "" {
		return session.Anonymous
	}

	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to resolve session",
			slog.String("error", err.Error()),
		)
		return session.Unresolved
	}
	if sess == nil {
		return session.Anonymous
	}

	user, err := s.userRepo.FindByID(ctx, sess.UserID)
	if err != nil {
		s.logger.Error("failed to resolve session user",
			slog.String("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
		return session.Unresolved
	}
	if user == nil {
		return session.Anonymous
	}

	return session.Authenticated(user)
}

// ExpiresAt は有効なセッションの期限を返す。
// セッションが存在しない、期限切れ、または取得に失敗した場合はfalseを返す。
func (s *Service) ExpiresAt(ctx context.Context, sessionID string) (time.Time, bool) {
	if sessionID == "" {
		return time.Time{}, false
	}
	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		s.logger.Warn("failed to look up session expiry",
			slog.String("error", err.Error()),
		)
		return time.Time{}, false
	}
	if sess == nil {
		return time.Time{}, false
	}
	return sess.ExpiresAt, true
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	sess := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var _ session.Resolver = (*Service)(nil)
