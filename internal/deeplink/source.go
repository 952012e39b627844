package deeplink

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Location is the part of an inbound URL the router classifies.
// Path keeps its percent-encoding; Query is decoded.
type Location struct {
	Path  string
	Query url.Values
}

// URLSource turns a raw inbound URL into a Location. Which implementation
// is used is decided once, at composition time.
type URLSource interface {
	Extract(ctx context.Context, rawURL string) (Location, error)
}

// NativeSource parses app links and web URLs directly.
type NativeSource struct{}

func (NativeSource) Extract(_ context.Context, rawURL string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Location{}, fmt.Errorf("failed to parse %q: %w", rawURL, err)
	}

	var path string
	switch scheme := strings.ToLower(u.Scheme); {
	case scheme == "" || scheme == "http" || scheme == "https":
		path = u.EscapedPath()
	case u.Opaque != "":
		// vitrine:a/slug
		path = u.Opaque
	default:
		// vitrine://a/slug: the authority is the first path segment.
		path = u.Host + u.EscapedPath()
	}

	return Location{Path: path, Query: u.Query()}, nil
}

// locationFromHref parses a document location (pathname + search).
func locationFromHref(href string) (Location, error) {
	u, err := url.Parse(href)
	if err != nil {
		return Location{}, fmt.Errorf("failed to parse document location %q: %w", href, err)
	}
	return Location{Path: u.EscapedPath(), Query: u.Query()}, nil
}
