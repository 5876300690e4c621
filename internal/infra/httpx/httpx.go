package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultUserAgent 标识本工具；catalog 服务不需要伪装浏览器。
const DefaultUserAgent = "charcards/1.0 (+https://github.com/John-Robertt/charcards)"

// Transport 给每个请求补齐默认 header（User-Agent / Accept），其余交给 Base。
//
// 约束：
// - 不重试、不缓存、不限速：一次调用就是一次网络请求
// - 不修改调用方传入的 *http.Request（先 Clone 再改）
type Transport struct {
	Base http.RoundTripper

	UserAgent string
	Accept    string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" && t.UserAgent != "" {
		r.Header.Set("User-Agent", t.UserAgent)
	}
	if r.Header.Get("Accept") == "" && t.Accept != "" {
		r.Header.Set("Accept", t.Accept)
	}
	return t.Base.RoundTrip(r)
}

// CloseIdleConnections 透传给 Base，使 http.Client.CloseIdleConnections 生效。
func (t *Transport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.Base.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}

// NewCatalogClient 构造用于请求 catalog 服务的 HTTP client。
//
// 规则：
// - proxyURL 非空：走该代理；为空时沿用环境变量代理（http.ProxyFromEnvironment）
// - timeout<=0：不设置总超时（沿用平台默认行为）
// - 固定 Accept: application/json
func NewCatalogClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()

	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy url 缺少 scheme 或 host")
		}
		base.Proxy = http.ProxyURL(u)
	}

	c := &http.Client{
		Transport: &Transport{
			Base:      base,
			UserAgent: DefaultUserAgent,
			Accept:    "application/json",
		},
	}
	if timeout > 0 {
		c.Timeout = timeout
	}
	return c, nil
}
