package api

import (
	"net"
	"net/http"
	"strings"
)

// 文档注释：获取客户端 IP
// 背景：多层代理环境下，allowParam 为真时优先显式参数 ip，其次常见反向代理头，最后回退远端地址。
// 约束：代理头可被伪造；用于粗定位与访客去重，不用于鉴权。
func clientIP(r *http.Request, allowParam bool) string {
	if allowParam {
		if q := r.URL.Query().Get("ip"); q != "" {
			return q
		}
	}
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"cf-connecting-ip", "x-real-ip", "x-client-ip"} {
		if x := h.Get(k); x != "" {
			return x
		}
	}
	if x := h.Get("forwarded"); x != "" {
		i := strings.Index(strings.ToLower(x), "for=")
		if i >= 0 {
			y := x[i+4:]
			if p := strings.IndexByte(y, ';'); p >= 0 {
				y = y[:p]
			}
			if p := strings.IndexByte(y, ','); p >= 0 {
				y = y[:p]
			}
			return strings.Trim(y, "\" []")
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
