// Package notify delivers scan lifecycle events to external channels
// (Telegram, Discord). Events can be filtered by type so operators receive
// only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/trustscope/trustscope/internal/pipeline"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier formats scan events and dispatches them to the registered
// senders. It maintains a set of allowed event types; events not in the set
// are dropped. Delivery runs in a background goroutine so the pipeline never
// blocks on a slow webhook.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	timeout time.Duration
	logger  *slog.Logger
}

var _ pipeline.Notifier = (*Notifier)(nil)

// New creates a Notifier that delivers to the given senders. Only events
// whose type appears in the events slice are forwarded; an empty slice
// allows all event types.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		timeout: 10 * time.Second,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// ScanEvent receives a pipeline event, renders it into a human-readable
// message and dispatches it asynchronously.
func (n *Notifier) ScanEvent(ctx context.Context, event string, payload any) {
	if len(n.senders) == 0 {
		return
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return
	}

	title, message := render(event, payload)

	go func() {
		// Detached from the request context so a finished scan still delivers.
		sendCtx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		n.dispatch(sendCtx, title, message)
	}()
}

// dispatch iterates over all senders. A single sender failure does not
// prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.Debug("notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}

// render turns a pipeline event into a notification title and body.
func render(event string, payload any) (string, string) {
	resp, _ := payload.(*pipeline.Response)

	var title string
	switch event {
	case "high_risk":
		title = "High Risk Verdict"
	case "degraded":
		title = "Degraded Scan"
	case "scan_completed":
		title = "Scan Completed"
	default:
		title = event
	}

	if resp == nil || resp.Data == nil {
		return title, fmt.Sprintf("event: %s", event)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "chain: %s (%s)\n", resp.Data.ChainName, resp.Data.ChainID)
	fmt.Fprintf(&b, "query: %s\n", resp.Data.Query)
	fmt.Fprintf(&b, "trust score: %d (%s)\n", resp.Refinement.TrustScore, resp.Refinement.RiskLevel)
	if resp.Refinement.Summary != "" {
		fmt.Fprintf(&b, "summary: %s\n", resp.Refinement.Summary)
	}
	if !resp.Validation.OK {
		fmt.Fprintf(&b, "missing fields: %s\n", strings.Join(resp.Validation.Missing, ", "))
	}
	fmt.Fprintf(&b, "scan id: %s", resp.ScanID)

	return title, b.String()
}
