// Package notify delivers user-facing notifications derived from change
// events.
package notify

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"github.com/statuswatch/statuswatch/internal/dispatch"
	"github.com/statuswatch/statuswatch/internal/pkg/logger"
)

// Notifier is a sink for notifications.
type Notifier interface {
	Notify(n dispatch.Notification)
}

// Terminal renders notifications to a writer with severity colors.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer

	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
	infoStyle    lipgloss.Style
}

// NewTerminal creates a terminal notifier writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{
		w:            w,
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
}

func (t *Terminal) Notify(n dispatch.Notification) {
	var style lipgloss.Style
	switch n.Severity {
	case dispatch.SeverityError:
		style = t.errorStyle
	case dispatch.SeveritySuccess:
		style = t.successStyle
	default:
		style = t.infoStyle
	}

	line := fmt.Sprintf("%s  %s %s",
		time.Now().Format("15:04:05"),
		style.Render(fmt.Sprintf("[%s]", n.Severity)),
		n.Text,
	)

	t.mu.Lock()
	fmt.Fprintln(t.w, line)
	t.mu.Unlock()
}

// Log emits notifications through the structured logger.
type Log struct {
	log *logger.Logger
}

// NewLog creates a logging notifier.
func NewLog(log *logger.Logger) *Log {
	return &Log{log: log.WithComponent("notify")}
}

func (l *Log) Notify(n dispatch.Notification) {
	switch n.Severity {
	case dispatch.SeverityError:
		l.log.Error(n.Text)
	case dispatch.SeveritySuccess:
		l.log.Info(n.Text, "severity", "success")
	default:
		l.log.Info(n.Text)
	}
}

// RateLimited wraps a notifier and drops notifications beyond the
// configured rate. An event storm must not flood the terminal.
type RateLimited struct {
	next    Notifier
	limiter *rate.Limiter
	dropped atomic.Int64
}

// NewRateLimited caps delivery at perSecond with the given burst.
// perSecond <= 0 disables limiting.
func NewRateLimited(next Notifier, perSecond float64, burst int) *RateLimited {
	var limiter *rate.Limiter
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return &RateLimited{next: next, limiter: limiter}
}

func (r *RateLimited) Notify(n dispatch.Notification) {
	if r.limiter != nil && !r.limiter.Allow() {
		r.dropped.Add(1)
		return
	}
	r.next.Notify(n)
}

// Dropped returns how many notifications were discarded.
func (r *RateLimited) Dropped() int64 {
	return r.dropped.Load()
}
