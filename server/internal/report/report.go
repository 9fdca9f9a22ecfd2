package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/cocoaplant/cocoaplant/server/internal/metrics"
)

// Type selects the report template.
type Type string

const (
	DailySummary Type = "DAILY_SUMMARY"
	Quality      Type = "QUALITY"
	Forecast     Type = "FORECAST"
	Maintenance  Type = "MAINTENANCE"
	Custom       Type = "CUSTOM"
)

// ParseType accepts a report type name. Unknown names map to Custom.
func ParseType(s string) Type {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case DailySummary, Quality, Forecast, Maintenance:
		return t
	default:
		return Custom
	}
}

// Fallback texts returned in place of generated content.
const (
	EmptyReportText = "Unable to generate report at this time."
	ErrorReportText = "Error: Could not connect to AI service. Please check API Key configuration."
	EmptyChatText   = "I'm having trouble processing that right now."
	ErrorChatText   = "I'm sorry, I encountered an error. Please try again later."
)

// minCacheable is the length a report must exceed to be cached.
const minCacheable = 50

// Turn is one prior message of a chat conversation.
type Turn struct {
	Role string `json:"role"` // user | model
	Text string `json:"text"`
}

// Options configures a Service.
type Options struct {
	CacheTTL    time.Duration
	Timeout     time.Duration
	MinInterval time.Duration
	Metrics     *metrics.Registry
}

// Service generates reports and chat replies through a Generator.
type Service struct {
	gen     Generator
	cache   *Cache
	ttl     time.Duration
	timeout time.Duration
	limiter *rate.Limiter
	group   singleflight.Group
	metrics *metrics.Registry
	now     func() time.Time
}

// NewService creates a Service around gen. A zero MinInterval disables rate
// limiting; a zero CacheTTL disables caching.
func NewService(gen Generator, opts Options) *Service {
	if gen == nil {
		gen = Static{}
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Service{
		gen:     gen,
		cache:   NewCache(),
		ttl:     opts.CacheTTL,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(limit, 1),
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

// Cache returns the report cache, e.g. to run its eviction loop.
func (s *Service) Cache() *Cache { return s.cache }

// Report generates a narrative report of type t over data. custom is the
// user's request and is only used for Custom reports. Reports are cached for
// the current hour of day; concurrent requests for the same key share one
// generation call. The shared call does not stop when one caller gives up;
// that caller alone gets the error text.
func (s *Service) Report(ctx context.Context, t Type, data any, custom string) string {
	key := fmt.Sprintf("REPORT_%s_%d", t, s.now().Hour())
	if text, ok := s.cache.Get(key); ok {
		slog.Debug("report: cache hit", "key", key)
		s.metrics.Inc(metrics.ReportsTotal, "type", string(t), "outcome", "cached")
		return text
	}

	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		system, prompt, err := buildPrompt(t, data, custom)
		if err != nil {
			slog.Error("report: encode data context", "type", t, "err", err)
			s.metrics.Inc(metrics.ReportsTotal, "type", string(t), "outcome", "fallback")
			return ErrorReportText, nil
		}

		text, err := s.generate(shared, system, prompt)
		if err != nil {
			slog.Error("report: generation failed", "type", t, "err", err)
			s.metrics.Inc(metrics.ReportsTotal, "type", string(t), "outcome", "fallback")
			return ErrorReportText, nil
		}
		if text == "" {
			s.metrics.Inc(metrics.ReportsTotal, "type", string(t), "outcome", "fallback")
			return EmptyReportText, nil
		}
		if len(text) > minCacheable && s.ttl > 0 {
			s.cache.Set(key, text, s.ttl)
		}
		s.metrics.Inc(metrics.ReportsTotal, "type", string(t), "outcome", "generated")
		slog.Info("report: generated", "type", t, "chars", len(text))
		return text, nil
	})

	select {
	case r := <-ch:
		return r.Val.(string)
	case <-ctx.Done():
		slog.Debug("report: caller gave up", "type", t, "err", ctx.Err())
		return ErrorReportText
	}
}

// Chat answers message as the plant assistant for a user in role viewing
// view. Prior turns are replayed ahead of the message.
func (s *Service) Chat(ctx context.Context, message, role, view string, history []Turn) string {
	if role == "" {
		role = "Operator"
	}
	if view == "" {
		view = "Dashboard"
	}

	text, err := s.generate(ctx, chatInstruction(role, view), chatPrompt(message, history))
	if err != nil {
		slog.Error("report: chat failed", "err", err)
		return ErrorChatText
	}
	if text == "" {
		return EmptyChatText
	}
	return text
}

// generate waits for the rate limiter and calls the generator under the
// configured timeout. The call itself ignores ctx cancellation; its result
// may be shared by several singleflight callers.
func (s *Service) generate(ctx context.Context, system, prompt string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("report: rate limit: %w", err)
	}
	callCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, s.timeout)
		defer cancel()
	}
	return s.gen.Generate(callCtx, system, prompt)
}

var instructions = map[Type]string{
	DailySummary: "You are the Plant Manager. Generate a 'Daily Processing Executive Summary'. " +
		"Focus on total intake volume, processing throughput, key downtime events, and overall efficiency. " +
		"Keep it under 200 words.",
	Quality: "You are the QA Director. Generate a 'Daily Quality Assurance Report'. " +
		"Highlight average quality scores, defect rates, specific batches that were rejected or require review, " +
		"and sensory profile trends.",
	Forecast: "You are a Supply Chain Analyst. Generate a '7-Day Production Forecast'. " +
		"Analyze the provided trend data to predict potential bottlenecks and suggest resource allocation adjustments.",
	Maintenance: "You are the Chief Engineer. Generate a 'Critical Maintenance & Safety Report'. " +
		"Summarize active machine alerts, health scores, and safety risks. Prioritize urgent actions.",
	Custom: "You are an AI Assistant for a Cocoa Plant.",
}

var promptLeads = map[Type]string{
	DailySummary: "Analyze this daily data: ",
	Quality:      "Analyze this quality data: ",
	Forecast:     "Analyze this forecast data: ",
	Maintenance:  "Analyze this machine/safety data: ",
}

func buildPrompt(t Type, data any, custom string) (system, prompt string, err error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", "", err
	}
	lead, ok := promptLeads[t]
	if !ok {
		return instructions[Custom], fmt.Sprintf("Context: %s. User Request: %s", raw, custom), nil
	}
	return instructions[t], lead + string(raw), nil
}

func chatInstruction(role, view string) string {
	return fmt.Sprintf(`You are the CocoaInsight Assistant, an operational guide for the Cocoa Processing Dashboard.

CONTEXT:
- User Role: %s
- Current Module: %s

RULES:
- If the user asks for help, explain the features available in the current module (%s).
- If they ask to perform an action (like "Import data"), guide them to the button in the header.
- Maintain a professional, helpful, yet technically accurate tone.
- Address safety risks immediately if mentioned in the context data.
- Never mention that you are an AI or a language model unless directly asked about your nature.`,
		role, view, view)
}

func chatPrompt(message string, history []Turn) string {
	if len(history) == 0 {
		return message
	}
	var b strings.Builder
	for _, t := range history {
		role := t.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Text)
	}
	fmt.Fprintf(&b, "user: %s", message)
	return b.String()
}
