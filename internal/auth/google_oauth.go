package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	providerGoogle = "google"

	defaultOAuthTimeout = 10 * time.Second
	// maxOAuthResponseBytes はIdPレスポンスの読み込み上限。
	maxOAuthResponseBytes = 1 << 20
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient が nil の場合はタイムアウト付きのクライアントを使う。
	HTTPClient *http.Client
}

// GoogleOAuthProvider はGoogle OAuth 2.0による認証を提供する。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig
	client *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultOAuthTimeout}
	}
	return &GoogleOAuthProvider{config: config, client: client}
}

// GetLoginURL はGoogle OAuthの認証URLを生成する。
// ログイン画面で毎回アカウントを選べるよう prompt=select_account を付与する。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
		"prompt":        {"select_account"},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}
	tokenReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	tokenReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token googleTokenResponse
	if err := p.doJSON(tokenReq, &token); err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("failed to exchange token: empty access token in response")
	}

	infoReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	infoReq.Header.Set("Authorization", "Bearer "+token.AccessToken)

	var info googleUserInfo
	if err := p.doJSON(infoReq, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("failed to fetch user info: empty sub in response")
	}

	return &OAuthUserInfo{
		ProviderUserID: info.Sub,
		Email:          info.Email,
		Name:           info.Name,
		Provider:       providerGoogle,
	}, nil
}

// doJSON はリクエストを送信し、200以外をエラーとしてJSONをデコードする。
func (p *GoogleOAuthProvider) doJSON(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOAuthResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
