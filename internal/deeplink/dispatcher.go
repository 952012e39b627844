package deeplink

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"vitrine/internal/domain"
)

// DefaultDispatchDelay leaves the navigation container time to mount
// before the first reset.
const DefaultDispatchDelay = 300 * time.Millisecond

// Navigator replaces the navigation stack of one app instance.
type Navigator interface {
	Reset(ctx context.Context, state domain.NavigationState) error
}

type pendingLink struct {
	ctx  context.Context
	raw  string
	dest domain.RouteDestination
}

// Dispatcher routes inbound URLs and performs the resulting navigation
// resets after a delay. URLs that arrive before Ready are held back.
type Dispatcher struct {
	router    *Router
	processed *ProcessedSet
	nav       Navigator
	delay     time.Duration
	log       logrus.FieldLogger

	mu       sync.Mutex
	ready    bool
	queued   []pendingLink
	lastDest domain.RouteDestination
	lastAt   time.Time
	now      func() time.Time

	inflight sync.WaitGroup
}

func NewDispatcher(router *Router, processed *ProcessedSet, nav Navigator, delay time.Duration, logger logrus.FieldLogger) *Dispatcher {
	if delay < 0 {
		delay = 0
	}
	return &Dispatcher{
		router:    router,
		processed: processed,
		nav:       nav,
		delay:     delay,
		log:       logger.WithField("component", "deeplink_dispatcher"),
		now:       time.Now,
	}
}

// Handle routes rawURL and schedules its navigation. It reports whether a
// dispatch was scheduled; unroutable and duplicate links are dropped.
func (d *Dispatcher) Handle(ctx context.Context, rawURL string) bool {
	res := d.router.Route(ctx, rawURL, d.processed)
	if !res.Destination.IsHandled() {
		return false
	}

	// The dispatch outlives the event that delivered the link.
	link := pendingLink{ctx: context.WithoutCancel(ctx), raw: rawURL, dest: res.Destination}

	d.mu.Lock()
	if !d.ready {
		d.queued = append(d.queued, link)
		d.mu.Unlock()
		d.log.WithField("url", rawURL).Debug("Navigation not ready, deep link queued")
		return true
	}
	d.mu.Unlock()

	d.schedule(link)
	return true
}

// Ready signals that the navigation container is mounted and releases any
// queued links.
func (d *Dispatcher) Ready() {
	d.mu.Lock()
	if d.ready {
		d.mu.Unlock()
		return
	}
	d.ready = true
	queued := d.queued
	d.queued = nil
	d.mu.Unlock()

	for _, link := range queued {
		d.schedule(link)
	}
}

// Wait blocks until every scheduled dispatch has fired.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) schedule(link pendingLink) {
	d.inflight.Add(1)
	time.AfterFunc(d.delay, func() {
		defer d.inflight.Done()
		d.fire(link)
	})
}

// fire re-checks the processed set when the timer expires, so two
// deliveries scheduled in the same window navigate only once.
func (d *Dispatcher) fire(link pendingLink) {
	log := d.log.WithFields(logrus.Fields{
		"url":         link.raw,
		"destination": link.dest.Kind.String(),
	})

	d.mu.Lock()
	now := d.now()
	if d.lastDest == link.dest && now.Sub(d.lastAt) < d.delay {
		d.mu.Unlock()
		log.Info("Same destination dispatched moments ago, deep link dropped")
		return
	}
	if !d.processed.MarkIfAbsent(link.raw) {
		d.mu.Unlock()
		log.Debug("Deep link processed while waiting, dispatch dropped")
		return
	}
	d.lastDest, d.lastAt = link.dest, now
	d.mu.Unlock()

	if err := d.nav.Reset(link.ctx, domain.ResetStateFor(link.dest)); err != nil {
		d.processed.forget(link.raw)
		d.mu.Lock()
		if d.lastDest == link.dest {
			d.lastDest = domain.RouteDestination{}
		}
		d.mu.Unlock()
		log.WithError(err).Error("Navigation reset failed")
		return
	}
	log.Info("Navigation reset dispatched")
}
