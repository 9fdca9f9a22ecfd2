package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

const webhookSource = "cocoaplant"

// severityStyle is how a severity is shown in chat webhooks.
type severityStyle struct {
	label string
	color string
}

var severityStyles = map[string]severityStyle{
	types.SeverityCritical: {"[CRITICAL]", "FF4F6A"},
	types.SeverityHigh:     {"[HIGH]", "FFAB40"},
	types.SeverityMedium:   {"[MEDIUM]", "00D4FF"},
}

var defaultStyle = severityStyle{"[INFO]", "00D4FF"}

func styleOf(severity string) severityStyle {
	if s, ok := severityStyles[severity]; ok {
		return s
	}
	return defaultStyle
}

func severityLabel(s string) string { return styleOf(s).label }
func severityColor(s string) string { return styleOf(s).color }

// payloads builds the request body for each webhook type.
var payloads = map[string]func(a *types.Alert) any{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http": func(a *types.Alert) any {
		return map[string]any{"source": webhookSource, "alert": a}
	},
}

func slackPayload(a *types.Alert) any {
	st := styleOf(a.Severity)
	return map[string]any{
		"text": fmt.Sprintf("*%s* %s at %s", st.label, a.Type, a.Location),
		"attachments": []map[string]any{{
			"color":  "#" + st.color,
			"text":   a.Description,
			"footer": a.ID + " | " + a.Timestamp,
		}},
	}
}

func teamsPayload(a *types.Alert) any {
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity),
		"summary":    a.Type,
		"title":      fmt.Sprintf("Plant Alert: %s at %s", a.Type, a.Location),
		"text":       a.Description,
		"sections": []map[string]any{{
			"facts": []map[string]string{
				{"name": "Severity", "value": a.Severity},
				{"name": "Alert", "value": a.ID},
				{"name": "Raised", "value": a.Timestamp},
			},
		}},
	}
}

// deliver posts a to every configured webhook with a resolvable URL.
// Failures are logged per target; one failing target does not stop the rest.
func (e *Engine) deliver(a *types.Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		build, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		if err := e.post(url, build(a)); err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "alert", a.ID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "alert", a.ID)
	}
}

func (e *Engine) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookSource+"-alerts")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
