package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voicecouncil/council/internal/clog"
)

// Analytics is C9: it records unified request/tool/synthesis metrics
// into OpenTelemetry instruments, keeps a short rolling window of each
// metric's recent samples for synchronous alert evaluation and trend
// projection, and runs the engine's named event bus.
type Analytics struct {
	rec *recorder
	bus *EventBus
	log *clog.Logger

	mu     sync.Mutex
	rings  map[string]*ring
	rules  map[string]AlertRule
	active map[string]*Alert // keyed by metric; one active alert per metric at a time

	retention time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds an Analytics instance. serviceName scopes the OpenTelemetry
// meter; eventBufferSize bounds each event subscriber's channel;
// retention is how long rolling samples are kept before a sweep drops
// them (zero disables the retention cutoff, keeping only the ring's
// fixed sample-count cap).
func New(serviceName string, eventBufferSize int, retention time.Duration) *Analytics {
	return &Analytics{
		rec:       newRecorder(serviceName),
		bus:       newEventBus(eventBufferSize),
		log:       clog.New("analytics"),
		rings:     make(map[string]*ring),
		rules:     make(map[string]AlertRule),
		active:    make(map[string]*Alert),
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the periodic rollup sweep until ctx is done or Stop is
// called. Safe to call at most once per Analytics instance.
func (a *Analytics) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.stopCh:
				return
			case <-ticker.C:
				a.sweep()
			}
		}
	}()
}

// Stop ends the rollup loop and waits for it to exit.
func (a *Analytics) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()
}

func (a *Analytics) sweep() {
	if a.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-a.retention)
	a.mu.Lock()
	rings := make([]*ring, 0, len(a.rings))
	for _, r := range a.rings {
		rings = append(rings, r)
	}
	a.mu.Unlock()
	for _, r := range rings {
		r.sweep(cutoff)
	}
}

func (a *Analytics) ringFor(metric string) *ring {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.rings[metric]
	if !ok {
		r = newRing()
		a.rings[metric] = r
	}
	return r
}

// Publish fans out e to its event type's subscribers.
func (a *Analytics) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	a.bus.Publish(e)
}

// Subscribe returns a channel receiving every future event of typ.
func (a *Analytics) Subscribe(typ EventType) <-chan Event {
	return a.bus.Subscribe(typ)
}

// Unsubscribe detaches ch from typ's subscriber list.
func (a *Analytics) Unsubscribe(typ EventType, ch <-chan Event) {
	a.bus.Unsubscribe(typ, ch)
}

// RecordMetric records value into metric's OTel histogram and rolling
// ring, then evaluates any AlertRule registered for metric.
func (a *Analytics) RecordMetric(ctx context.Context, metric string, value float64) {
	a.rec.observe(ctx, metric, value)
	r := a.ringFor(metric)
	r.add(value, time.Now())
	a.evaluate(metric, r)
}

// RecordRequest mirrors the teacher's unified request metric: a
// duration histogram plus a status-labeled counter.
func (a *Analytics) RecordRequest(ctx context.Context, operation string, durationMs float64, success bool) {
	a.rec.observe(ctx, "request.duration_ms", durationMs, statusAttr(success))
	a.rec.incr(ctx, "request.total", statusAttr(success))
	a.RecordMetric(ctx, "request.duration_ms."+operation, durationMs)
}

// RecordToolCall mirrors the teacher's unified tool-call metric.
func (a *Analytics) RecordToolCall(ctx context.Context, capability string, durationMs float64, success bool) {
	a.rec.observe(ctx, "tool.call.duration_ms", durationMs, statusAttr(success))
	a.rec.incr(ctx, "tool.call.total", statusAttr(success))
	typ := EventVoiceMCPSuccess
	if !success {
		typ = EventVoiceMCPError
	}
	a.Publish(Event{Type: typ, Source: capability, Data: map[string]any{"duration_ms": durationMs}})
}

// RecordSynthesis records a synthesis round's duration and publishes
// the matching lifecycle event.
func (a *Analytics) RecordSynthesis(ctx context.Context, sessionID string, durationMs float64, success bool) {
	a.rec.observe(ctx, "synthesis.duration_ms", durationMs, statusAttr(success))
	a.rec.incr(ctx, "synthesis.total", statusAttr(success))
	typ := EventSynthesisCompleted
	a.Publish(Event{Type: typ, Source: sessionID, Data: map[string]any{"duration_ms": durationMs, "success": success}})
}

// AddAlertRule registers (or replaces) the AlertRule watching metric.
func (a *Analytics) AddAlertRule(rule AlertRule) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rules[rule.Metric] = rule
}

func (a *Analytics) evaluate(metric string, r *ring) {
	a.mu.Lock()
	rule, ok := a.rules[metric]
	if !ok {
		a.mu.Unlock()
		return
	}
	_, alreadyActive := a.active[metric]
	a.mu.Unlock()
	if alreadyActive {
		return
	}

	avg, n := r.windowAverage(time.Now(), rule.Window)
	if n == 0 {
		return
	}

	breached := false
	switch rule.Comparator {
	case ComparatorLessThan:
		breached = avg < rule.Threshold
	default: // greater-than
		breached = avg > rule.Threshold
	}
	if !breached {
		return
	}

	alert := &Alert{
		ID:        uuid.NewString(),
		Metric:    metric,
		Severity:  rule.Severity,
		Message:   rule.Message,
		Value:     avg,
		Threshold: rule.Threshold,
		CreatedAt: time.Now(),
	}
	a.mu.Lock()
	a.active[metric] = alert
	a.mu.Unlock()

	a.log.Warn("alert threshold crossed", clog.Fields{"metric": metric, "value": avg, "threshold": rule.Threshold})
	a.Publish(Event{Type: EventAlertCreated, Source: metric, Data: map[string]any{"alert": alert}})
}

// AcknowledgeAlert clears the active alert for metric, if any, and
// publishes EventAlertAcknowledged. Acknowledging allows the rule to
// fire again on a fresh breach.
func (a *Analytics) AcknowledgeAlert(metric string) bool {
	a.mu.Lock()
	alert, ok := a.active[metric]
	if ok {
		alert.Acknowledged = true
		delete(a.active, metric)
	}
	a.mu.Unlock()
	if !ok {
		return false
	}
	a.Publish(Event{Type: EventAlertAcknowledged, Source: metric, Data: map[string]any{"alert": alert}})
	return true
}

// ActiveAlerts returns a snapshot of every currently unacknowledged alert.
func (a *Analytics) ActiveAlerts() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Alert, 0, len(a.active))
	for _, al := range a.active {
		out = append(out, *al)
	}
	return out
}

// Project fits a linear trend through metric's rolling samples and
// extrapolates horizon into the future. If an AlertRule is registered
// for metric, ProjectedBreach reports when that trend would cross the
// rule's threshold, nil if it never would (flat or receding trend).
func (a *Analytics) Project(metric string, horizon time.Duration) Projection {
	r := a.ringFor(metric)
	latest, slope := r.linearTrend()

	proj := Projection{
		Metric:         metric,
		CurrentValue:   latest,
		Slope:          slope,
		Horizon:        horizon,
		ProjectedValue: latest + slope*horizon.Seconds(),
	}

	a.mu.Lock()
	rule, ok := a.rules[metric]
	a.mu.Unlock()
	if !ok || slope == 0 {
		return proj
	}

	secondsToBreach := (rule.Threshold - latest) / slope
	if rule.Comparator == ComparatorGreaterThan && slope > 0 && secondsToBreach > 0 {
		t := time.Now().Add(time.Duration(secondsToBreach * float64(time.Second)))
		proj.ProjectedBreach = &t
	}
	if rule.Comparator == ComparatorLessThan && slope < 0 && secondsToBreach > 0 {
		t := time.Now().Add(time.Duration(secondsToBreach * float64(time.Second)))
		proj.ProjectedBreach = &t
	}
	return proj
}
