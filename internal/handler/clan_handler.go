package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/clanhub/internal/clan"
	"github.com/hitoshi/clanhub/internal/middleware"
	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/session"
)

// ClanServiceInterface はクランハンドラーが必要とするサービスインターフェース。
type ClanServiceInterface interface {
	List(ctx context.Context) ([]model.Clan, error)
	Get(ctx context.Context, v clan.Value) (*model.Clan, error)
	Join(ctx context.Context, user *model.User, clanID string) (*model.User, error)
}

// ClanHandler はクラン関連のHTTPハンドラー。
type ClanHandler struct {
	service ClanServiceInterface
}

// NewClanHandler はClanHandlerを生成する。
func NewClanHandler(service ClanServiceInterface) *ClanHandler {
	return &ClanHandler{service: service}
}

type clanResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

type joinClanRequest struct {
	ClanID string `json:"clan_id"`
}

type membershipResponse struct {
	UserID string `json:"user_id"`
	ClanID string `json:"clan_id"`
}

// ListClans はクラン一覧を返す。
// GET /api/clans
func (h *ClanHandler) ListClans(w http.ResponseWriter, r *http.Request) {
	clans, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]clanResponse, len(clans))
	for i, c := range clans {
		resp[i] = toClanResponse(&c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CurrentClan は閲覧者の現在のクランを返す。
// クラン未所属の場合は404 CLAN_NOT_SET。
// GET /api/clans/current
func (h *ClanHandler) CurrentClan(w http.ResponseWriter, r *http.Request) {
	src, _ := session.SourceFromContext(r.Context())
	current := clan.Current(r.Context(), src)
	if !current.Present {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewClanNotSetError())
		return
	}

	c, err := h.service.Get(r.Context(), current)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClanResponse(c))
}

// JoinClan はログインユーザーの所属クランを変更する。clan_idが空なら脱退する。
// PUT /api/users/me/clan
func (h *ClanHandler) JoinClan(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req joinClanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.Join(r.Context(), user, req.ClanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipResponse{UserID: updated.ID, ClanID: updated.ClanID})
}

func toClanResponse(c *model.Clan) clanResponse {
	return clanResponse{ID: c.ID, Name: c.Name, Tag: c.Tag}
}
