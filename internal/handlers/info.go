// internal/handlers/info.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/openrally/rally/internal/config"
)

// ServerInfo describes how to reach this process, for clients that want to
// show a join URL or QR code. The public variants substitute a LAN address
// when the server binds all interfaces.
type ServerInfo struct {
	BindHost      string `json:"bindHost"`
	PublicHost    string `json:"publicHost"`
	Port          string `json:"port"`
	HTTPURL       string `json:"httpURL"`
	HTTPURLPublic string `json:"httpURLPublic"`
	WSURL         string `json:"wsURL"`
	WSURLPublic   string `json:"wsURLPublic"`
}

// ComputeServerInfo resolves the advertised URLs from the bind config.
func ComputeServerInfo(cfg config.Config) ServerInfo {
	publicHost := cfg.Host
	if cfg.Host == "0.0.0.0" || cfg.Host == "::" {
		publicHost = detectLANIPv4()
	}
	return ServerInfo{
		BindHost:      cfg.Host,
		PublicHost:    publicHost,
		Port:          cfg.Port,
		HTTPURL:       fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port),
		HTTPURLPublic: fmt.Sprintf("http://%s:%s", publicHost, cfg.Port),
		WSURL:         fmt.Sprintf("ws://%s:%s/ws", cfg.Host, cfg.Port),
		WSURLPublic:   fmt.Sprintf("ws://%s:%s/ws", publicHost, cfg.Port),
	}
}

// detectLANIPv4 picks the first non-loopback IPv4 address, falling back to
// localhost when none is up.
func detectLANIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "localhost"
}

// ServerInfoHandler returns the connection metadata as JSON.
func ServerInfoHandler(cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ComputeServerInfo(cfg))
	}
}

// QRHandler renders a QR code SVG for the join URL (?url= overrides the
// default public HTTP URL). On encode failure it serves a plain SVG with
// the URL as text so the client page never breaks.
func QRHandler(cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			target = ComputeServerInfo(cfg).HTTPURLPublic
		}
		w.Header().Set("Content-Type", "image/svg+xml")

		q, err := qrcode.New(target, qrcode.Medium)
		if err != nil {
			fmt.Fprint(w, fallbackSVG(target))
			return
		}
		fmt.Fprint(w, renderQRSVG(q.Bitmap()))
	}
}

// renderQRSVG draws the module bitmap as white squares on a transparent
// background, mirroring the dark-theme client.
func renderQRSVG(bitmap [][]bool) string {
	const scale = 4
	size := len(bitmap) * scale

	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?><svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, size, size, size, size)
	for y, row := range bitmap {
		for x, set := range row {
			if set {
				fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="#ffffff"/>`, x*scale, y*scale, scale, scale)
			}
		}
	}
	b.WriteString("</svg>")
	return b.String()
}

func fallbackSVG(target string) string {
	esc := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(target)
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><svg xmlns="http://www.w3.org/2000/svg" width="180" height="180" viewBox="0 0 180 180"><rect width="100%%" height="100%%" fill="#111"/><text x="90" y="90" fill="#fff" font-size="12" text-anchor="middle" dominant-baseline="middle">QR unavailable</text><text x="90" y="160" fill="#aaa" font-size="10" text-anchor="middle">%s</text></svg>`, esc)
}
