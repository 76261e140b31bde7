package website

import (
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"github.com/rs/cors"
)

/*
The browser origins allowed to call the API: anything on the local machine,
for development, plus the configured front end hosts.
*/
func corsPolicy(hostUrls []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowOriginFunc: originAllowed(hostUrls),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: true,
	})
}

func originAllowed(hostUrls []string) func(origin string) bool {
	allowed := make(map[string]bool, len(hostUrls))
	for _, host := range hostUrls {
		allowed[normalizeOrigin(host)] = true
	}

	return func(origin string) bool {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}

		hostname := u.Hostname()
		if strings.EqualFold(hostname, "localhost") {
			return true
		}
		if addr, err := netip.ParseAddr(hostname); err == nil && addr.IsLoopback() {
			return true
		}

		return allowed[normalizeOrigin(origin)]
	}
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
}
