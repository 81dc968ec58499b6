package hero

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/hitoshi/clanhub/internal/clan"
	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/repository"
	"github.com/hitoshi/clanhub/internal/security"
)

// --- モック ---

type mockHeroRepo struct {
	findByUserIDFn   func(ctx context.Context, userID string) (*model.Hero, error)
	listByClanFn     func(ctx context.Context, clanID string, status model.HeroStatus) ([]model.Hero, error)
	upsertFn         func(ctx context.Context, h *model.Hero) error
	updateStatusFn   func(ctx context.Context, userID string, status model.HeroStatus) (bool, error)
	deleteByUserIDFn func(ctx context.Context, userID string) (bool, error)
}

func (m *mockHeroRepo) FindByUserID(ctx context.Context, userID string) (*model.Hero, error) {
	if m.findByUserIDFn != nil {
		return m.findByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockHeroRepo) ListByClan(ctx context.Context, clanID string, status model.HeroStatus) ([]model.Hero, error) {
	if m.listByClanFn != nil {
		return m.listByClanFn(ctx, clanID, status)
	}
	return nil, nil
}

func (m *mockHeroRepo) Upsert(ctx context.Context, h *model.Hero) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, h)
	}
	return nil
}

func (m *mockHeroRepo) UpdateStatus(ctx context.Context, userID string, status model.HeroStatus) (bool, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, userID, status)
	}
	return false, nil
}

func (m *mockHeroRepo) DeleteByUserID(ctx context.Context, userID string) (bool, error) {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return false, nil
}

type mockPhotoChecker struct {
	validateFn func(rawURL string) error
	probeFn    func(ctx context.Context, rawURL string) error
	probed     int
}

func (m *mockPhotoChecker) Validate(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

func (m *mockPhotoChecker) Probe(ctx context.Context, rawURL string) error {
	m.probed++
	if m.probeFn != nil {
		return m.probeFn(ctx, rawURL)
	}
	return nil
}

var (
	_ repository.HeroRepository = (*mockHeroRepo)(nil)
	_ security.PhotoURLChecker  = (*mockPhotoChecker)(nil)
)

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func validInput() Input {
	return Input{
		Nickname:  "  タンク好き  ",
		Gender:    model.GenderMale,
		BirthYear: 1996,
		Education: model.EducationBachelor,
		Intro:     "<b>よろしく</b>お願いします",
		PhotoURL:  "https://images.example.com/me.png",
		Preference: model.HeroPreference{
			MinAge: 25, MaxAge: 35, MinEducation: model.EducationAssociate, Gender: model.GenderFemale,
		},
	}
}

func apiCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func TestService_Upsert_Success(t *testing.T) {
	var saved *model.Hero
	repo := &mockHeroRepo{
		upsertFn: func(ctx context.Context, h *model.Hero) error {
			saved = h
			return nil
		},
	}
	photos := &mockPhotoChecker{}
	svc := NewService(repo, security.NewTextSanitizer(), photos, WithClock(func() time.Time { return fixedNow }), WithPhotoProbe(true))

	got, err := svc.Upsert(context.Background(), clan.Of("clan-7"), "user-1", validInput())
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	want := &model.Hero{
		ClanID:    "clan-7",
		UserID:    "user-1",
		Nickname:  "タンク好き",
		Gender:    model.GenderMale,
		BirthYear: 1996,
		Education: model.EducationBachelor,
		Intro:     "よろしくお願いします",
		PhotoURL:  "https://images.example.com/me.png",
		Status:    model.HeroStatusAvailable,
		Preference: model.HeroPreference{
			MinAge: 25, MaxAge: 35, MinEducation: model.EducationAssociate, Gender: model.GenderFemale,
		},
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.Hero{}, "ID")); diff != "" {
		t.Errorf("Upsert() mismatch (-want +got):\n%s", diff)
	}
	if got.ID == "" {
		t.Error("expected generated ID")
	}
	if saved != got {
		t.Error("expected the returned hero to be the one persisted")
	}
	if photos.probed != 1 {
		t.Errorf("probed = %d, want 1", photos.probed)
	}
}

func TestService_Upsert_NoClan(t *testing.T) {
	svc := NewService(&mockHeroRepo{
		upsertFn: func(ctx context.Context, h *model.Hero) error {
			t.Fatal("must not persist without a clan")
			return nil
		},
	}, nil, nil)

	_, err := svc.Upsert(context.Background(), clan.Absent, "user-1", validInput())
	if apiCode(err) != model.ErrCodeClanNotSet {
		t.Errorf("Upsert() error = %v, want CLAN_NOT_SET", err)
	}
}

func TestService_Upsert_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(in *Input)
		wantCode string
	}{
		{"empty nickname", func(in *Input) { in.Nickname = "   " }, model.ErrCodeInvalidHero},
		{"long nickname", func(in *Input) { in.Nickname = string(make([]rune, 40)) + "x" }, model.ErrCodeInvalidHero},
		{"unknown gender", func(in *Input) { in.Gender = "OTHER" }, model.ErrCodeInvalidHero},
		{"unknown education", func(in *Input) { in.Education = "KINDERGARTEN" }, model.ErrCodeInvalidHero},
		{"too young", func(in *Input) { in.BirthYear = 2015 }, model.ErrCodeInvalidHero},
		{"too old", func(in *Input) { in.BirthYear = 1900 }, model.ErrCodeInvalidHero},
		{"unknown status", func(in *Input) { in.Status = "married" }, model.ErrCodeInvalidStatus},
		{"negative age", func(in *Input) { in.Preference.MinAge = -1 }, model.ErrCodeInvalidHero},
		{"inverted ages", func(in *Input) { in.Preference.MinAge, in.Preference.MaxAge = 40, 30 }, model.ErrCodeInvalidHero},
		{"unknown min education", func(in *Input) { in.Preference.MinEducation = "PHD" }, model.ErrCodeInvalidHero},
		{"unknown pref gender", func(in *Input) { in.Preference.Gender = "ANY" }, model.ErrCodeInvalidHero},
		{"private photo", func(in *Input) { in.PhotoURL = "https://10.0.0.1/me.png" }, model.ErrCodeInvalidPhotoURL},
		{"http photo", func(in *Input) { in.PhotoURL = "http://images.example.com/me.png" }, model.ErrCodeInvalidPhotoURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&mockHeroRepo{}, security.NewTextSanitizer(), security.NewPhotoGuard(time.Second),
				WithClock(func() time.Time { return fixedNow }))

			in := validInput()
			tt.mutate(&in)

			_, err := svc.Upsert(context.Background(), clan.Of("clan-7"), "user-1", in)
			if got := apiCode(err); got != tt.wantCode {
				t.Errorf("Upsert() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestService_Upsert_OpenEndedPreference(t *testing.T) {
	svc := NewService(&mockHeroRepo{}, nil, nil, WithClock(func() time.Time { return fixedNow }))

	in := validInput()
	in.Preference = model.HeroPreference{MinAge: 30}
	if _, err := svc.Upsert(context.Background(), clan.Of("clan-7"), "user-1", in); err != nil {
		t.Errorf("Upsert() with only MinAge error = %v", err)
	}
}

func TestService_Upsert_ProbeFailure(t *testing.T) {
	photos := &mockPhotoChecker{
		probeFn: func(ctx context.Context, rawURL string) error {
			return security.ErrNotImage
		},
	}
	svc := NewService(&mockHeroRepo{}, nil, photos, WithPhotoProbe(true), WithClock(func() time.Time { return fixedNow }))

	_, err := svc.Upsert(context.Background(), clan.Of("clan-7"), "user-1", validInput())
	if apiCode(err) != model.ErrCodeInvalidPhotoURL {
		t.Errorf("Upsert() error = %v, want INVALID_PHOTO_URL", err)
	}
}

func TestService_Upsert_ProbeDisabled(t *testing.T) {
	photos := &mockPhotoChecker{}
	svc := NewService(&mockHeroRepo{}, nil, photos, WithClock(func() time.Time { return fixedNow }))

	if _, err := svc.Upsert(context.Background(), clan.Of("clan-7"), "user-1", validInput()); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if photos.probed != 0 {
		t.Errorf("probed = %d, want 0 when disabled", photos.probed)
	}
}

func TestService_List(t *testing.T) {
	var gotClan string
	var gotStatus model.HeroStatus
	repo := &mockHeroRepo{
		listByClanFn: func(ctx context.Context, clanID string, status model.HeroStatus) ([]model.Hero, error) {
			gotClan, gotStatus = clanID, status
			return []model.Hero{{ID: "h1"}}, nil
		},
	}
	svc := NewService(repo, nil, nil)

	heroes, err := svc.List(context.Background(), clan.Of("clan-7"), "talking")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(heroes) != 1 || gotClan != "clan-7" || gotStatus != model.HeroStatusTalking {
		t.Errorf("List() = %v (clan=%s status=%s)", heroes, gotClan, gotStatus)
	}

	if _, err := svc.List(context.Background(), clan.Absent, ""); apiCode(err) != model.ErrCodeClanNotSet {
		t.Errorf("List(Absent) error = %v, want CLAN_NOT_SET", err)
	}
	if _, err := svc.List(context.Background(), clan.Of("clan-7"), "nope"); apiCode(err) != model.ErrCodeInvalidStatus {
		t.Errorf("List(nope) error = %v, want INVALID_STATUS", err)
	}
}

func TestService_UpdateStatusAndDelete(t *testing.T) {
	exists := true
	repo := &mockHeroRepo{
		updateStatusFn: func(ctx context.Context, userID string, status model.HeroStatus) (bool, error) {
			return exists, nil
		},
		deleteByUserIDFn: func(ctx context.Context, userID string) (bool, error) {
			return exists, nil
		},
	}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	if err := svc.UpdateStatus(ctx, "user-1", "taken"); err != nil {
		t.Errorf("UpdateStatus() error = %v", err)
	}
	if err := svc.UpdateStatus(ctx, "user-1", "gone"); apiCode(err) != model.ErrCodeInvalidStatus {
		t.Errorf("UpdateStatus(gone) error = %v, want INVALID_STATUS", err)
	}
	if err := svc.Delete(ctx, "user-1"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	exists = false
	if err := svc.UpdateStatus(ctx, "user-1", "taken"); apiCode(err) != model.ErrCodeHeroNotFound {
		t.Errorf("UpdateStatus() on missing error = %v, want HERO_NOT_FOUND", err)
	}
	if err := svc.Delete(ctx, "user-1"); apiCode(err) != model.ErrCodeHeroNotFound {
		t.Errorf("Delete() on missing error = %v, want HERO_NOT_FOUND", err)
	}
}
