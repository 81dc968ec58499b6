// Package security はプロフィール入力の安全性検証を提供する。
package security

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var (
	// ErrBlockedPhotoURL はスキームや宛先が許可されていない写真URLを表す。
	ErrBlockedPhotoURL = errors.New("blocked photo url")
	// ErrPhotoUnreachable は写真URLへの到達確認に失敗したことを表す。
	ErrPhotoUnreachable = errors.New("photo url unreachable")
	// ErrNotImage は写真URLが画像を返さないことを表す。
	ErrNotImage = errors.New("photo url is not an image")
)

// maxPhotoURLLength は写真URLの最大長。
const maxPhotoURLLength = 2048

// PhotoURLChecker はプロフィール写真URLの検証インターフェース。
type PhotoURLChecker interface {
	// Validate はDNS解決を伴わない静的な検証を行う。
	Validate(rawURL string) error
	// Probe は写真URLへHEADリクエストを送り、画像が取得できるかを確認する。
	Probe(ctx context.Context, rawURL string) error
}

// blockedNetworks は静的検証でブロックするネットワーク範囲。
// 実際の接続時はsafeurlがDNS解決後のIPを再検証する。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	// クラウドメタデータIP (169.254.169.254) を含む
	"169.254.0.0/16",
	"0.0.0.0/8",
	"100.64.0.0/10",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %s: %v", cidr, err))
		}
		nets = append(nets, network)
	}
	return nets
}

// PhotoGuard はhttpsの公開ホストのみを許可する写真URL検証器。
type PhotoGuard struct {
	client *http.Client
}

// NewPhotoGuard はsafeurlのクライアントを使うPhotoGuardを生成する。
// プライベートIP、ループバック、リンクローカルへの接続はDial時に拒否される。
func NewPhotoGuard(timeout time.Duration) *PhotoGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return &PhotoGuard{client: safeurl.Client(config).Client}
}

// Validate は写真URLの静的な検証を行う。
func (g *PhotoGuard) Validate(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty URL", ErrBlockedPhotoURL)
	}
	if len(rawURL) > maxPhotoURLLength {
		return fmt.Errorf("%w: URL too long", ErrBlockedPhotoURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedPhotoURL, err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("%w: scheme %q is not allowed", ErrBlockedPhotoURL, parsed.Scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("%w: credentials in URL", ErrBlockedPhotoURL)
	}
	if port := parsed.Port(); port != "" && port != "443" {
		return fmt.Errorf("%w: port %s is not allowed", ErrBlockedPhotoURL, port)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedPhotoURL)
	}
	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("%w: address %s", ErrBlockedPhotoURL, ip)
			}
		}
		return nil
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || strings.HasSuffix(lower, ".internal") {
		return fmt.Errorf("%w: host %s", ErrBlockedPhotoURL, host)
	}

	return nil
}

// Probe は写真URLが画像を返すことを確認する。
func (g *PhotoGuard) Probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedPhotoURL, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPhotoUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrPhotoUnreachable, resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: content type %q", ErrNotImage, resp.Header.Get("Content-Type"))
	}

	return nil
}

// compile-time interface check
var _ PhotoURLChecker = (*PhotoGuard)(nil)
