package deeplink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// documentLocator opens a URL and reports where the document ended up,
// as pathname + search.
type documentLocator interface {
	Locate(ctx context.Context, rawURL string) (string, error)
	Close() error
}

// ErrHostNotAllowed is returned for links outside the web app's own hosts.
// They are never opened in the browser.
var ErrHostNotAllowed = errors.New("host not allowed for web deep links")

// BrowserSource is the web URL source: the link is opened in a headless
// browser and the resulting document location is classified, so
// client-side redirects of the web app are honoured. Only http(s) links to
// the configured hosts are opened.
type BrowserSource struct {
	locator documentLocator
	hosts   map[string]struct{}
	log     logrus.FieldLogger
}

// NewBrowserSource launches a headless browser for the web source.
func NewBrowserSource(logger logrus.FieldLogger, allowedHosts []string, pageTimeout time.Duration) (*BrowserSource, error) {
	log := logger.WithField("component", "browser_source")

	path, exists := launcher.LookPath()
	if !exists {
		log.Error("Cannot find browser executable for rod")
		return nil, errors.New("rod browser dependency not found")
	}
	u, err := launcher.New().Bin(path).Launch()
	if err != nil {
		log.WithError(err).Error("Failed to launch rod browser")
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		log.WithError(err).Error("Failed to connect to rod browser")
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	log.Info("Headless browser ready for web deep links")

	return newBrowserSource(&rodLocator{browser: browser, timeout: pageTimeout, log: log}, allowedHosts, log), nil
}

func newBrowserSource(locator documentLocator, allowedHosts []string, log logrus.FieldLogger) *BrowserSource {
	hosts := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = struct{}{}
		}
	}
	return &BrowserSource{locator: locator, hosts: hosts, log: log}
}

func (s *BrowserSource) Extract(ctx context.Context, rawURL string) (Location, error) {
	if err := s.checkHost(rawURL); err != nil {
		s.log.WithError(err).WithField("url", rawURL).Warn("Refusing to open link in browser")
		return Location{}, err
	}
	href, err := s.locator.Locate(ctx, rawURL)
	if err != nil {
		return Location{}, err
	}
	s.log.WithFields(logrus.Fields{"url": rawURL, "location": href}).Debug("Resolved document location")
	return locationFromHref(href)
}

func (s *BrowserSource) checkHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q: %w", u.Scheme, ErrHostNotAllowed)
	}
	host := strings.ToLower(u.Hostname())
	if _, ok := s.hosts[host]; !ok {
		return fmt.Errorf("%q: %w", host, ErrHostNotAllowed)
	}
	return nil
}

func (s *BrowserSource) Close() error {
	return s.locator.Close()
}

type rodLocator struct {
	browser *rod.Browser
	timeout time.Duration
	log     logrus.FieldLogger
}

func (l *rodLocator) Locate(ctx context.Context, rawURL string) (href string, err error) {
	log := l.log.WithField("url", rawURL)

	page, err := l.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		log.WithError(err).Error("Failed to create rod page")
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Error closing rod page")
		}
	}()

	pageCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	page = page.Context(pageCtx)

	if err := page.Navigate(rawURL); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", rawURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			log.WithError(pageCtx.Err()).Warn("Page load timed out")
			return "", fmt.Errorf("page load timed out for %s: %w", rawURL, pageCtx.Err())
		}
		return "", fmt.Errorf("failed waiting for page load: %w", err)
	}

	res, err := page.Eval(`() => location.pathname + location.search`)
	if err != nil {
		return "", fmt.Errorf("failed to read document location: %w", err)
	}
	return res.Value.Str(), nil
}

func (l *rodLocator) Close() error {
	return l.browser.Close()
}
