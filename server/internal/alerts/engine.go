package alerts

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cocoaplant/cocoaplant/pkg/rules"
	"github.com/cocoaplant/cocoaplant/pkg/types"
	"github.com/cocoaplant/cocoaplant/server/internal/config"
	"github.com/cocoaplant/cocoaplant/server/internal/metrics"
)

const defaultCooldown = 15 * time.Minute

// Event kinds published to listeners.
const (
	EventAlert        = "alert"
	EventNotification = "notification"
	EventPopup        = "popup"
	EventResolved     = "alert_resolved"
)

// Event is a feed change published to listeners such as the WebSocket hub.
type Event struct {
	Kind string
	Data any
}

// Engine evaluates the operational rules, keeps the alert and notification
// feeds (newest first), and delivers webhooks for High and Critical alerts.
//
// Engine is safe for concurrent use.
type Engine struct {
	webhooks   []config.WebhookConfig
	cooldown   time.Duration // <= 0 disables suppression
	maxHistory int           // 0 keeps everything
	metrics    *metrics.Registry
	client     *http.Client
	now        func() time.Time

	mu            sync.Mutex
	rules         *rules.Engine
	lastFire      map[string]time.Time // key: finding key
	alerts        []types.Alert
	notifications []types.Notification
	popup         *types.Popup
	listeners     []func(Event)

	deliveries sync.WaitGroup
}

// New creates an Engine. A zero cooldown takes the 15 minute default; a
// negative one disables suppression.
func New(cfg config.AlertsConfig, th rules.Thresholds, reg *metrics.Registry) *Engine {
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = defaultCooldown
	}
	return &Engine{
		webhooks:   cfg.Webhooks,
		cooldown:   cooldown,
		maxHistory: cfg.MaxHistory,
		metrics:    reg,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		rules:      rules.New(th),
		lastFire:   make(map[string]time.Time),
	}
}

// SetThresholds swaps the rule thresholds, e.g. after a config reload.
func (e *Engine) SetThresholds(th rules.Thresholds) {
	r := rules.New(th)
	e.mu.Lock()
	e.rules = r
	e.mu.Unlock()
	slog.Info("alerts: rule thresholds updated",
		"moisture_margin", th.MoistureMargin,
		"defect_rate_limit", th.DefectRateLimit,
		"consecutive_batches", th.ConsecutiveBatches,
		"predicted_quality_floor", th.PredictedQualityFloor,
	)
}

// Thresholds returns the thresholds currently in force.
func (e *Engine) Thresholds() rules.Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rules.Thresholds()
}

// OnEvent registers fn to receive every recorded alert, notification, popup
// and resolution. fn is called synchronously outside the engine's lock.
func (e *Engine) OnEvent(fn func(Event)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// Evaluate runs the rules against the given state and records what they
// find. Findings whose key fired within the cooldown are suppressed. The
// returned Result holds only what was recorded.
func (e *Engine) Evaluate(drying []types.DryingBatch, history []types.BatchData, predicted float64) rules.Result {
	return e.Record(e.Preview(drying, history, predicted))
}

// Preview runs the rules with the current thresholds and returns every
// finding. Nothing is recorded and cooldown is not consulted.
func (e *Engine) Preview(drying []types.DryingBatch, history []types.BatchData, predicted float64) rules.Result {
	e.mu.Lock()
	eng := e.rules
	e.mu.Unlock()
	return eng.Evaluate(drying, history, predicted)
}

// Record applies cooldown suppression to a rule result and records what is
// left into the feeds.
func (e *Engine) Record(res rules.Result) rules.Result {
	now := e.now()
	out := rules.Result{
		Alerts:        []types.Alert{},
		Notifications: []types.Notification{},
		Findings:      []rules.Finding{},
	}

	e.mu.Lock()

	// Decide once per key so an alert and its companion notification are
	// admitted or suppressed together.
	admitted := make(map[string]bool)
	for _, f := range res.Findings {
		if _, seen := admitted[f.Key]; seen {
			continue
		}
		last, fired := e.lastFire[f.Key]
		admitted[f.Key] = e.cooldown <= 0 || !fired || now.Sub(last) > e.cooldown
	}

	// The popup describes the first moisture batch that got past cooldown,
	// so a suppressed batch never headlines it.
	var popup *types.Popup
	for _, f := range res.Findings {
		if !admitted[f.Key] {
			e.metrics.Inc(metrics.SuppressedTotal, "rule", string(f.Rule))
			continue
		}
		e.lastFire[f.Key] = now
		out.Findings = append(out.Findings, f)
		if f.Alert != nil {
			out.Alerts = append(out.Alerts, *f.Alert)
		}
		if popup == nil && f.Popup != nil {
			p := *f.Popup
			popup = &p
		}
		if f.Notification != nil {
			out.Notifications = append(out.Notifications, *f.Notification)
		}
	}
	if popup != nil {
		out.Popup = popup
		stored := *popup
		e.popup = &stored
	}

	e.alerts = prepend(e.alerts, out.Alerts, e.maxHistory)
	e.notifications = prepend(e.notifications, out.Notifications, e.maxHistory)
	listeners := append([]func(Event){}, e.listeners...)

	e.mu.Unlock()

	for _, a := range out.Alerts {
		e.metrics.Inc(metrics.AlertsTotal, "severity", a.Severity)
		slog.Warn("alerts: alert fired",
			"id", a.ID,
			"type", a.Type,
			"severity", a.Severity,
			"location", a.Location,
		)
		emit(listeners, Event{Kind: EventAlert, Data: a})
		if a.Severity == types.SeverityHigh || a.Severity == types.SeverityCritical {
			alertCopy := a
			e.deliveries.Add(1)
			go func() {
				defer e.deliveries.Done()
				e.deliver(&alertCopy)
			}()
		}
	}
	for _, n := range out.Notifications {
		e.metrics.Inc(metrics.NotificationsTotal, "type", n.Type)
		slog.Info("alerts: notification raised", "id", n.ID, "title", n.Title, "source", n.Source)
		emit(listeners, Event{Kind: EventNotification, Data: n})
	}
	if out.Popup != nil {
		emit(listeners, Event{Kind: EventPopup, Data: *out.Popup})
	}

	return out
}

// Alerts returns a copy of the alert feed, newest first.
func (e *Engine) Alerts() []types.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Alert{}, e.alerts...)
}

// Active returns the alerts that have not been resolved, newest first.
func (e *Engine) Active() []types.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []types.Alert{}
	for _, a := range e.alerts {
		if a.Status == types.AlertActive {
			out = append(out, a)
		}
	}
	return out
}

// Notifications returns a copy of the notification feed, newest first.
func (e *Engine) Notifications() []types.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Notification{}, e.notifications...)
}

// Popup returns the most recent popup and whether one has been raised.
func (e *Engine) Popup() (types.Popup, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.popup == nil {
		return types.Popup{}, false
	}
	return *e.popup, true
}

// DismissPopup clears the current popup.
func (e *Engine) DismissPopup() {
	e.mu.Lock()
	e.popup = nil
	e.mu.Unlock()
}

// Resolve replaces the alert with the given ID by a resolved copy. It
// reports false when no such alert exists.
func (e *Engine) Resolve(id string) (types.Alert, bool) {
	e.mu.Lock()
	idx := -1
	for i, a := range e.alerts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return types.Alert{}, false
	}
	resolved := e.alerts[idx]
	resolved.Status = types.AlertResolved

	next := append([]types.Alert(nil), e.alerts...)
	next[idx] = resolved
	e.alerts = next
	listeners := append([]func(Event){}, e.listeners...)
	e.mu.Unlock()

	slog.Info("alerts: alert resolved", "id", id)
	emit(listeners, Event{Kind: EventResolved, Data: resolved})
	return resolved, true
}

// MarkRead replaces the notification with the given ID by a read copy.
func (e *Engine) MarkRead(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, n := range e.notifications {
		if n.ID == id {
			next := append([]types.Notification(nil), e.notifications...)
			n.Read = true
			next[i] = n
			e.notifications = next
			return true
		}
	}
	return false
}

// Wait blocks until all in-flight webhook deliveries have finished.
func (e *Engine) Wait() {
	e.deliveries.Wait()
}

// prepend returns a new slice with items ahead of list, trimmed to max
// entries when max > 0.
func prepend[T any](list, items []T, max int) []T {
	if len(items) == 0 {
		return list
	}
	next := make([]T, 0, len(items)+len(list))
	next = append(next, items...)
	next = append(next, list...)
	if max > 0 && len(next) > max {
		next = next[:max]
	}
	return next
}

func emit(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}
