package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/clanhub/internal/clan"
	"github.com/hitoshi/clanhub/internal/hero"
	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/session"
)

// HeroServiceInterface はヒーローハンドラーが必要とするサービスインターフェース。
type HeroServiceInterface interface {
	List(ctx context.Context, current clan.Value, status string) ([]model.Hero, error)
	ListMatches(ctx context.Context, current clan.Value, userID, status string) ([]model.Hero, error)
	Mine(ctx context.Context, userID string) (*model.Hero, error)
	Upsert(ctx context.Context, current clan.Value, userID string, in hero.Input) (*model.Hero, error)
	UpdateStatus(ctx context.Context, userID, status string) error
	Delete(ctx context.Context, userID string) error
}

// RegistrationRecorder はプロフィール登録の計測先。
type RegistrationRecorder interface {
	RecordHeroRegistration()
}

// HeroHandler はヒーロープロフィールのHTTPハンドラー。
// 対象のクランは常にクランアクセサで解決する。
type HeroHandler struct {
	service HeroServiceInterface
	metrics RegistrationRecorder
}

// NewHeroHandler はHeroHandlerを生成する。metricsはnilでもよい。
func NewHeroHandler(service HeroServiceInterface, metrics RegistrationRecorder) *HeroHandler {
	return &HeroHandler{service: service, metrics: metrics}
}

type preferenceBody struct {
	MinAge       int    `json:"min_age,omitempty"`
	MaxAge       int    `json:"max_age,omitempty"`
	MinEducation string `json:"min_education,omitempty"`
	Gender       string `json:"gender,omitempty"`
}

type upsertHeroRequest struct {
	Nickname   string         `json:"nickname"`
	Gender     string         `json:"gender"`
	BirthYear  int            `json:"birth_year"`
	Education  string         `json:"education"`
	Intro      string         `json:"intro"`
	PhotoURL   string         `json:"photo_url"`
	Status     string         `json:"status"`
	Preference preferenceBody `json:"preference"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type heroResponse struct {
	ID          string         `json:"id"`
	ClanID      string         `json:"clan_id"`
	UserID      string         `json:"user_id"`
	Nickname    string         `json:"nickname"`
	Gender      string         `json:"gender"`
	BirthYear   int            `json:"birth_year"`
	Education   string         `json:"education"`
	Intro       string         `json:"intro"`
	PhotoURL    string         `json:"photo_url,omitempty"`
	Status      string         `json:"status"`
	StatusLabel string         `json:"status_label"`
	Preference  preferenceBody `json:"preference"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func currentClan(r *http.Request) clan.Value {
	src, _ := session.SourceFromContext(r.Context())
	return clan.Current(r.Context(), src)
}

// ListHeroes は現在のクランのプロフィール一覧を返す。
// match=trueの場合は自分の希望条件に合うプロフィールだけを返す。
// GET /api/heroes?status=&match=
func (h *HeroHandler) ListHeroes(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var (
		heroes []model.Hero
		err    error
	)
	if q.Get("match") == "true" {
		heroes, err = h.service.ListMatches(r.Context(), currentClan(r), user.ID, q.Get("status"))
	} else {
		heroes, err = h.service.List(r.Context(), currentClan(r), q.Get("status"))
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]heroResponse, len(heroes))
	for i := range heroes {
		resp[i] = toHeroResponse(&heroes[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMyHero はログインユーザー自身のプロフィールを返す。
// GET /api/heroes/me
func (h *HeroHandler) GetMyHero(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	mine, err := h.service.Mine(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHeroResponse(mine))
}

// UpsertHero は現在のクランにプロフィールを登録または置き換える。
// POST /api/heroes
func (h *HeroHandler) UpsertHero(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req upsertHeroRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	saved, err := h.service.Upsert(r.Context(), currentClan(r), user.ID, hero.Input{
		Nickname:  req.Nickname,
		Gender:    model.Gender(req.Gender),
		BirthYear: req.BirthYear,
		Education: model.Education(req.Education),
		Intro:     req.Intro,
		PhotoURL:  req.PhotoURL,
		Status:    model.HeroStatus(req.Status),
		Preference: model.HeroPreference{
			MinAge:       req.Preference.MinAge,
			MaxAge:       req.Preference.MaxAge,
			MinEducation: model.Education(req.Preference.MinEducation),
			Gender:       model.Gender(req.Preference.Gender),
		},
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordHeroRegistration()
	}
	writeJSON(w, http.StatusCreated, toHeroResponse(saved))
}

// UpdateMyStatus はログインユーザーのプロフィールのステータスを変更する。
// PUT /api/heroes/me/status
func (h *HeroHandler) UpdateMyStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.UpdateStatus(r.Context(), user.ID, req.Status); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMyHero はログインユーザーのプロフィールを削除する。
// DELETE /api/heroes/me
func (h *HeroHandler) DeleteMyHero(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), user.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toHeroResponse(h *model.Hero) heroResponse {
	return heroResponse{
		ID:          h.ID,
		ClanID:      h.ClanID,
		UserID:      h.UserID,
		Nickname:    h.Nickname,
		Gender:      string(h.Gender),
		BirthYear:   h.BirthYear,
		Education:   string(h.Education),
		Intro:       h.Intro,
		PhotoURL:    h.PhotoURL,
		Status:      string(h.Status),
		StatusLabel: h.Status.Label(),
		Preference: preferenceBody{
			MinAge:       h.Preference.MinAge,
			MaxAge:       h.Preference.MaxAge,
			MinEducation: string(h.Preference.MinEducation),
			Gender:       string(h.Preference.Gender),
		},
		UpdatedAt: h.UpdatedAt,
	}
}
