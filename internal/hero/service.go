// Package hero はクラン内の出会い募集プロフィール（ヒーロー）を扱う。
package hero

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/clanhub/internal/clan"
	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/repository"
	"github.com/hitoshi/clanhub/internal/security"
)

const (
	maxNicknameLength = 32
	maxIntroLength    = 1000
	minAge            = 18
	maxAge            = 100
)

// Input はプロフィール登録の入力。
type Input struct {
	Nickname   string
	Gender     model.Gender
	BirthYear  int
	Education  model.Education
	Intro      string
	PhotoURL   string
	Status     model.HeroStatus
	Preference model.HeroPreference
}

// Sanitizer は自由入力テキストの無害化インターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service はヒーロープロフィールのビジネスロジックを提供する。
type Service struct {
	repo      repository.HeroRepository
	sanitizer Sanitizer
	photos    security.PhotoURLChecker
	probe     bool
	now       func() time.Time
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithPhotoProbe は写真URLの到達確認を有効にする。
func WithPhotoProbe(enabled bool) Option {
	return func(s *Service) { s.probe = enabled }
}

// WithClock は年齢計算に使う現在時刻を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService はServiceを生成する。
func NewService(repo repository.HeroRepository, sanitizer Sanitizer, photos security.PhotoURLChecker, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		sanitizer: sanitizer,
		photos:    photos,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List は現在のクランのプロフィールを返す。statusが空なら全件。
func (s *Service) List(ctx context.Context, current clan.Value, status string) ([]model.Hero, error) {
	if !current.Present {
		return nil, model.NewClanNotSetError()
	}
	st := model.HeroStatus(status)
	if st != "" && !st.Valid() {
		return nil, model.NewInvalidStatusError(status)
	}

	heroes, err := s.repo.ListByClan(ctx, current.ID, st)
	if err != nil {
		return nil, fmt.Errorf("プロフィール一覧の取得に失敗しました: %w", err)
	}
	return heroes, nil
}

// Mine は指定ユーザーのプロフィールを返す。
func (s *Service) Mine(ctx context.Context, userID string) (*model.Hero, error) {
	h, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if h == nil {
		return nil, model.NewHeroNotFoundError()
	}
	return h, nil
}

// Upsert は現在のクランにユーザーのプロフィールを登録または置き換える。
func (s *Service) Upsert(ctx context.Context, current clan.Value, userID string, in Input) (*model.Hero, error) {
	if !current.Present {
		return nil, model.NewClanNotSetError()
	}

	h, err := s.build(in)
	if err != nil {
		return nil, err
	}

	if h.PhotoURL != "" && s.photos != nil {
		if err := s.photos.Validate(h.PhotoURL); err != nil {
			return nil, model.NewInvalidPhotoURLError(err.Error())
		}
		if s.probe {
			if err := s.photos.Probe(ctx, h.PhotoURL); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil, err
				}
				return nil, model.NewInvalidPhotoURLError(err.Error())
			}
		}
	}

	now := s.now()
	h.ID = uuid.New().String()
	h.ClanID = current.ID
	h.UserID = userID
	h.CreatedAt = now
	h.UpdatedAt = now

	if err := s.repo.Upsert(ctx, h); err != nil {
		return nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}

	slog.Info("プロフィールを登録しました",
		slog.String("user_id", userID),
		slog.String("clan_id", current.ID),
		slog.String("status", string(h.Status)),
	)
	return h, nil
}

// UpdateStatus はユーザーのプロフィールのステータスを変更する。
func (s *Service) UpdateStatus(ctx context.Context, userID, status string) error {
	st := model.HeroStatus(status)
	if !st.Valid() {
		return model.NewInvalidStatusError(status)
	}

	ok, err := s.repo.UpdateStatus(ctx, userID, st)
	if err != nil {
		return fmt.Errorf("ステータスの更新に失敗しました: %w", err)
	}
	if !ok {
		return model.NewHeroNotFoundError()
	}
	return nil
}

// Delete はユーザーのプロフィールを削除する。
func (s *Service) Delete(ctx context.Context, userID string) error {
	ok, err := s.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewHeroNotFoundError()
	}
	return nil
}

// build は入力を検証し、無害化したプロフィールを組み立てる。
func (s *Service) build(in Input) (*model.Hero, error) {
	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		return nil, model.NewInvalidHeroError("ニックネームを入力してください")
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLength {
		return nil, model.NewInvalidHeroError(fmt.Sprintf("ニックネームは%d文字以内で入力してください", maxNicknameLength))
	}
	if !in.Gender.Valid() {
		return nil, model.NewInvalidHeroError("性別の値が不正です")
	}
	if !in.Education.Valid() {
		return nil, model.NewInvalidHeroError("学歴の値が不正です")
	}

	age := s.now().Year() - in.BirthYear
	if age < minAge || age > maxAge {
		return nil, model.NewInvalidHeroError(fmt.Sprintf("生まれ年は%d歳から%d歳の範囲で入力してください", minAge, maxAge))
	}

	status := in.Status
	if status == "" {
		status = model.HeroStatusAvailable
	}
	if !status.Valid() {
		return nil, model.NewInvalidStatusError(string(status))
	}

	if err := validatePreference(in.Preference); err != nil {
		return nil, err
	}

	intro := in.Intro
	if s.sanitizer != nil {
		intro = s.sanitizer.Sanitize(intro)
	}
	if utf8.RuneCountInString(intro) > maxIntroLength {
		return nil, model.NewInvalidHeroError(fmt.Sprintf("自己紹介は%d文字以内で入力してください", maxIntroLength))
	}

	return &model.Hero{
		Nickname:   nickname,
		Gender:     in.Gender,
		BirthYear:  in.BirthYear,
		Education:  in.Education,
		Intro:      intro,
		PhotoURL:   strings.TrimSpace(in.PhotoURL),
		Status:     status,
		Preference: in.Preference,
	}, nil
}

// validatePreference はお相手の条件を検証する。ゼロ値は「指定なし」。
func validatePreference(p model.HeroPreference) error {
	if p.MinAge < 0 || p.MaxAge < 0 {
		return model.NewInvalidHeroError("希望年齢は0以上で入力してください")
	}
	if p.MinAge > maxAge || p.MaxAge > maxAge {
		return model.NewInvalidHeroError(fmt.Sprintf("希望年齢は%d歳以下で入力してください", maxAge))
	}
	if p.MinAge > 0 && p.MaxAge > 0 && p.MinAge > p.MaxAge {
		return model.NewInvalidHeroError("希望年齢の下限が上限を超えています")
	}
	if p.MinEducation != "" && !p.MinEducation.Valid() {
		return model.NewInvalidHeroError("希望学歴の値が不正です")
	}
	if p.Gender != "" && !p.Gender.Valid() {
		return model.NewInvalidHeroError("希望性別の値が不正です")
	}
	return nil
}
