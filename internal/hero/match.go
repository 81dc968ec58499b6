package hero

import (
	"context"
	"time"

	"github.com/hitoshi/clanhub/internal/clan"
	"github.com/hitoshi/clanhub/internal/model"
)

// Matches は候補者hがお相手の条件prefを満たすかどうかを返す。
// 条件のゼロ値の項目は判定に使わない。
func Matches(pref model.HeroPreference, h model.Hero, now time.Time) bool {
	if pref.Gender != "" && h.Gender != pref.Gender {
		return false
	}
	if !h.Education.AtLeast(pref.MinEducation) {
		return false
	}
	age := now.Year() - h.BirthYear
	if pref.MinAge > 0 && age < pref.MinAge {
		return false
	}
	if pref.MaxAge > 0 && age > pref.MaxAge {
		return false
	}
	return true
}

// ListMatches は現在のクランのプロフィールのうち、呼び出し元の条件を満たすものを返す。
// 呼び出し元自身は含めない。
func (s *Service) ListMatches(ctx context.Context, current clan.Value, userID, status string) ([]model.Hero, error) {
	mine, err := s.Mine(ctx, userID)
	if err != nil {
		return nil, err
	}
	heroes, err := s.List(ctx, current, status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	matched := make([]model.Hero, 0, len(heroes))
	for _, h := range heroes {
		if h.UserID == userID {
			continue
		}
		if Matches(mine.Preference, h, now) {
			matched = append(matched, h)
		}
	}
	return matched, nil
}
