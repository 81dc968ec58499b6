package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/clanhub/internal/gate"
	"github.com/hitoshi/clanhub/internal/middleware"
	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// navItem は下部ナビゲーションの1項目。
type navItem struct {
	Key     string
	Label   string
	Path    string
	Current bool
}

// navItems はすべてのページで共通の下部ナビゲーション。
var navItems = []navItem{
	{Key: "home", Label: "ホーム", Path: "/"},
	{Key: "vote", Label: "投票", Path: "/vote"},
	{Key: "auction", Label: "オークション", Path: "/auction"},
	{Key: "heroes", Label: "ヒーロー", Path: "/heroes"},
}

var loginErrorMessages = map[string]string{
	"invalid_state": "ログインの有効期限が切れました。もう一度お試しください。",
	"missing_code":  "ログインがキャンセルされました。",
	"auth_failed":   "ログインに失敗しました。しばらく待ってから再度お試しください。",
}

// pageData はページテンプレートに渡す値。
type pageData struct {
	Title     string
	Active    string
	Refresh   int
	LoginPath string
	Nav       []navItem
	User      *model.User
	Clan      *model.Clan
	Clans     []model.Clan
	Heroes    []model.Hero
	Error     string
}

// PageHandler はサーバー描画のHTMLページを提供する。
// すべてのページは共通のシェル（下部ナビゲーション）で描画する。
type PageHandler struct {
	clans     ClanServiceInterface
	heroes    HeroServiceInterface
	loginPath string
	pages     map[string]*template.Template
}

// NewPageHandler はPageHandlerを生成する。テンプレートの解析に失敗した場合はエラーを返す。
func NewPageHandler(clans ClanServiceInterface, heroes HeroServiceInterface, loginPath string) (*PageHandler, error) {
	if loginPath == "" {
		loginPath = gate.DefaultLoginPath
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"login", "home", "heroes", "loading", "notfound"} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &PageHandler{
		clans:     clans,
		heroes:    heroes,
		loginPath: loginPath,
		pages:     pages,
	}, nil
}

// Login はログイン画面を描画する。ログイン済みの場合はホームへ移動する。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.CurrentUser(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.render(w, r, http.StatusOK, "login", pageData{
		Title:  "ログイン",
		Active: "login",
		Error:  loginErrorMessages[r.URL.Query().Get("error")],
	})
}

// Home はホーム画面を描画する。認証ゲートの内側に置く。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "ホーム", Active: "home"}

	current := currentClan(r)
	if current.Present {
		c, err := h.clans.Get(r.Context(), current)
		if err != nil {
			slog.Warn("failed to load current clan", slog.String("clan_id", current.ID), slog.String("error", err.Error()))
		}
		data.Clan = c
	}
	if data.Clan == nil {
		clans, err := h.clans.List(r.Context())
		if err != nil {
			slog.Warn("failed to list clans", slog.String("error", err.Error()))
		}
		data.Clans = clans
	}

	h.render(w, r, http.StatusOK, "home", data)
}

// Heroes は現在のクランのヒーロー一覧を描画する。認証ゲートの内側に置く。
// GET /heroes
func (h *PageHandler) Heroes(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "ヒーロー", Active: "heroes"}

	current := currentClan(r)
	if current.Present {
		c, err := h.clans.Get(r.Context(), current)
		if err != nil {
			slog.Warn("failed to load current clan", slog.String("clan_id", current.ID), slog.String("error", err.Error()))
			h.render(w, r, http.StatusOK, "heroes", data)
			return
		}
		heroes, err := h.heroes.List(r.Context(), current, string(model.HeroStatusAvailable))
		if err != nil {
			handlePageError(w, err)
			return
		}
		data.Clan = c
		data.Heroes = heroes
	}

	h.render(w, r, http.StatusOK, "heroes", data)
}

// NotFound は存在しないルートに対する404ページを描画する。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", pageData{Title: "ページが見つかりません"})
}

// RenderLoading は認証ゲートのローディング表示を共通シェルで描画する。
// ステータスコードは呼び出し側で設定済みのものを使う。
func (h *PageHandler) RenderLoading(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.pages["loading"].ExecuteTemplate(&buf, "layout", h.withShell(r, pageData{Title: "読み込み中", Refresh: 1})); err != nil {
		slog.Error("failed to render loading page", slog.String("error", err.Error()))
		return
	}
	buf.WriteTo(w)
}

// withShell は共通シェルに必要な値を埋める。
func (h *PageHandler) withShell(r *http.Request, data pageData) pageData {
	data.LoginPath = h.loginPath
	data.Nav = make([]navItem, len(navItems))
	for i, item := range navItems {
		item.Current = item.Key == data.Active
		data.Nav[i] = item
	}

	src, _ := session.SourceFromContext(r.Context())
	if st := src.Snapshot(r.Context()); st.Resolved() {
		data.User = st.User
	}
	return data
}

// render はテンプレートをバッファに描画してから書き込む。
// 描画に失敗した場合は途中までのHTMLを返さない。
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", h.withShell(r, data)); err != nil {
		slog.Error("failed to render page", slog.String("page", name), slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// handlePageError はHTMLページ向けにエラーを返す。
func handlePageError(w http.ResponseWriter, err error) {
	slog.Error("failed to render page data", slog.String("error", err.Error()))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
