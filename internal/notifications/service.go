package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"nativize/internal/config"
)

const userAgent = "Nativize-Go/0.1.0"

// Event identifies a notification category that can be toggled in config.
type Event string

const (
	EventJobSubmitted Event = "job_submitted"
	EventReviewReady  Event = "review_ready"
	EventJobComplete  Event = "job_complete"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event-specific fields used to render the message.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		enabled:     enabledEvents(cfg),
		dedupWindow: time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		recent:      make(map[string]time.Time),
		now:         time.Now,
	}
}

func enabledEvents(cfg *config.Config) map[Event]bool {
	return map[Event]bool{
		EventJobSubmitted: cfg.Notifications.Submitted,
		EventReviewReady:  cfg.Notifications.Review,
		EventJobComplete:  cfg.Notifications.Completion,
		EventError:        cfg.Notifications.Errors,
		EventTest:         true,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	enabled     map[Event]bool
	dedupWindow time.Duration
	mu          sync.Mutex
	recent      map[string]time.Time
	now         func() time.Time
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	if n.suppressed(event, msg.body) {
		return nil
	}
	return n.send(ctx, msg)
}

// suppressed reports whether an identical notification fired inside the
// dedup window, and records this one otherwise.
func (n *ntfyService) suppressed(event Event, body string) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	key := string(event) + "|" + body
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.recent[key]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	n.recent[key] = now
	for k, t := range n.recent {
		if now.Sub(t) >= n.dedupWindow {
			delete(n.recent, k)
		}
	}
	return false
}

func render(event Event, payload Payload) (message, bool) {
	title := strings.TrimSpace(stringField(payload, "title"))
	language := strings.TrimSpace(stringField(payload, "language"))

	switch event {
	case EventJobSubmitted:
		return message{
			title: "Nativize - Job Submitted",
			body:  fmt.Sprintf("Localization started: %s (%s)", title, language),
			tags:  []string{"nativize", "job", "submitted"},
		}, true
	case EventReviewReady:
		return message{
			title:    "Nativize - Review Ready",
			body:     fmt.Sprintf("Translations ready for review: %s (%s)", title, language),
			tags:     []string{"nativize", "review"},
			priority: "high",
		}, true
	case EventJobComplete:
		body := fmt.Sprintf("Localized video ready: %s (%s)", title, language)
		if words, ok := payload["words_localized"].(int); ok && words > 0 {
			body = fmt.Sprintf("%s\n%d words localized", body, words)
		}
		return message{
			title:    "Nativize - Complete",
			body:     body,
			tags:     []string{"nativize", "job", "completed"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if contextLabel := strings.TrimSpace(stringField(payload, "context")); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if err, ok := payload["error"].(error); ok && err != nil {
			builder.WriteString(strings.TrimSpace(err.Error()))
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Nativize - Error",
			body:     builder.String(),
			tags:     []string{"nativize", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Nativize - Test",
			body:     "Notification system test",
			tags:     []string{"nativize", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func stringField(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		tags := append([]string(nil), data.tags...)
		sort.Strings(tags)
		req.Header.Set("Tags", strings.Join(tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// NewNop returns a notification service that drops everything, for tests
// and wiring code that cannot fail.
func NewNop() Service { return noopService{} }
