// Package security はメール送信まわりのSSRF防止とHTMLサニタイズを提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuard は外部のメール配信APIへ安全に接続するためのインターフェース。
type SSRFGuard interface {
	// NewSafeClient はプライベートIPやメタデータIPへの接続を拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は接続前にURLを静的に検証する。
	ValidateURL(rawURL string) error
}

var allowedSchemes = []string{"http", "https"}

// defaultPorts は追加指定がない場合に許可するポート。
var defaultPorts = []int{80, 443}

var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16", // 169.254.169.254 を含む
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

type ssrfGuard struct {
	ports []int
}

var _ SSRFGuard = (*ssrfGuard)(nil)

// NewSSRFGuard はSSRFGuardを生成する。extraPortsは80/443以外に許可するポート。
func NewSSRFGuard(extraPorts ...int) *ssrfGuard {
	ports := append([]int{}, defaultPorts...)
	ports = append(ports, extraPorts...)
	return &ssrfGuard{ports: ports}
}

// NewSafeClient はsafeurlのクライアントを返す。
// 接続時にDNS解決後のIPアドレスも検証される。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム、ホスト、ポートを検証する。DNS解決は行わない。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if p := parsed.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || !g.allowedPort(port) {
			return fmt.Errorf("disallowed port: %s", p)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func (g *ssrfGuard) allowedPort(port int) bool {
	for _, p := range g.ports {
		if p == port {
			return true
		}
	}
	return false
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
