// Package deeplink turns inbound URLs into in-app navigation.
package deeplink

import (
	"context"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"vitrine/internal/domain"
)

// DefaultInternalMarker is the reserved segment of URLs that mirror in-app
// navigation state rather than external links.
const DefaultInternalMarker = "(tabs)"

var namedScreens = map[string]domain.ScreenName{
	"login":    domain.ScreenLogin,
	"register": domain.ScreenRegister,
	"settings": domain.ScreenSettings,
}

// Result is the outcome of routing one URL.
type Result struct {
	Destination         domain.RouteDestination
	ShouldMarkProcessed bool
}

func unhandled() Result {
	return Result{Destination: domain.UnhandledDestination()}
}

// Router classifies inbound URLs. It holds no state of its own; the
// processed set is passed in by the caller.
type Router struct {
	source URLSource
	marker string
	log    logrus.FieldLogger
}

func NewRouter(source URLSource, internalMarker string, logger logrus.FieldLogger) *Router {
	if internalMarker == "" {
		internalMarker = DefaultInternalMarker
	}
	return &Router{
		source: source,
		marker: internalMarker,
		log:    logger.WithField("component", "deeplink_router"),
	}
}

// Route maps rawURL to a destination. It never fails: anything it cannot
// classify is Unhandled.
func (r *Router) Route(ctx context.Context, rawURL string, processed *ProcessedSet) Result {
	if rawURL == "" {
		return unhandled()
	}
	log := r.log.WithField("url", rawURL)

	if processed != nil && processed.Contains(rawURL) {
		log.Debug("Deep link already processed")
		return unhandled()
	}

	loc, err := r.source.Extract(ctx, rawURL)
	if err != nil {
		log.WithError(err).Info("Deep link could not be read")
		return unhandled()
	}

	path := strings.Trim(loc.Path, "/")
	if path == "" {
		log.Debug("Root path is not a deep link target")
		return unhandled()
	}

	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if decoded, err := url.PathUnescape(seg); seg == r.marker || (err == nil && decoded == r.marker) {
			log.Debug("Internal navigation URL ignored")
			return unhandled()
		}
	}

	dest := r.classify(segments, loc.Query)
	if !dest.IsHandled() {
		log.WithField("path", path).Info("Deep link did not match any route")
		return unhandled()
	}

	log.WithFields(logrus.Fields{
		"destination": dest.Kind.String(),
		"slug":        dest.Slug,
		"screen":      dest.Screen,
	}).Info("Deep link routed")
	return Result{Destination: dest, ShouldMarkProcessed: true}
}

func (r *Router) classify(segments []string, query url.Values) domain.RouteDestination {
	switch segments[0] {
	case "a":
		if slug := extractSlug(segments, query, "annonceSlug"); slug != "" {
			return domain.AnnonceDestination(slug)
		}
		return domain.UnhandledDestination()
	case "v":
		if slug := extractSlug(segments, query, "vitrineSlug"); slug != "" {
			return domain.VitrineDestination(slug)
		}
		return domain.UnhandledDestination()
	}

	if screen, ok := namedScreens[strings.ToLower(segments[0])]; ok {
		return domain.ScreenDestination(screen)
	}
	return domain.UnhandledDestination()
}

// extractSlug prefers the path segment after the prefix and falls back to
// the "slug" query parameter, then to the kind-specific one.
func extractSlug(segments []string, query url.Values, specificParam string) string {
	if len(segments) > 1 {
		if slug := cleanSlug(segments[1], true); slug != "" {
			return slug
		}
	}
	for _, param := range []string{"slug", specificParam} {
		if slug := cleanSlug(query.Get(param), false); slug != "" {
			return slug
		}
	}
	return ""
}

// cleanSlug drops query or fragment remnants and percent-decodes path
// segments. Case is preserved.
func cleanSlug(raw string, escaped bool) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if escaped {
		if decoded, err := url.PathUnescape(raw); err == nil {
			raw = decoded
		}
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			raw = raw[:i]
		}
	}
	return strings.TrimSpace(raw)
}
