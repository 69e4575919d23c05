package presence

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultAPIURL = "http://localhost:8080"
	SocketPath    = "/ws"
)

// ResolveEndpoint turns the coordinator base address into the socket URL:
// http becomes ws, https becomes wss, and the path gets /ws appended.
func ResolveEndpoint(apiURL string) (string, error) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("api url %q has no host", apiURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + SocketPath
	u.RawQuery, u.Fragment = "", ""
	return u.String(), nil
}
