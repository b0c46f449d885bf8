package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voyago/voyago-travel-assistant/pkg/logging"
)

// AlertSeverity represents the urgency of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert describes a resilience event worth operator attention
type Alert struct {
	ID        string                 `json:"id"`
	Severity  AlertSeverity          `json:"severity"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Service   string                 `json:"service,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// AlertHandler delivers alerts to a destination
type AlertHandler interface {
	HandleAlert(ctx context.Context, alert Alert) error
	Name() string
}

// AlertManager fans alerts out to registered handlers, deduplicating
// repeats inside a cooldown window.
type AlertManager struct {
	mu       sync.Mutex
	handlers []AlertHandler
	lastSent map[string]time.Time
	cooldown time.Duration
	logger   *logging.Logger
}

// NewAlertManager creates a manager with the given repeat-suppression
// cooldown. A non-positive cooldown defaults to five minutes.
func NewAlertManager(cooldown time.Duration) *AlertManager {
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &AlertManager{
		lastSent: make(map[string]time.Time),
		cooldown: cooldown,
		logger:   logging.GetLogger(),
	}
}

// AddHandler registers an alert destination
func (m *AlertManager) AddHandler(handler AlertHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Send delivers an alert to every handler unless the same alert ID was
// sent within the cooldown window.
func (m *AlertManager) Send(ctx context.Context, alert Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	m.mu.Lock()
	if last, ok := m.lastSent[alert.ID]; ok && time.Since(last) < m.cooldown {
		m.mu.Unlock()
		return
	}
	m.lastSent[alert.ID] = time.Now()
	handlers := make([]AlertHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, handler := range handlers {
		if err := handler.HandleAlert(ctx, alert); err != nil {
			m.logger.Error("Failed to deliver alert",
				"handler", handler.Name(),
				"alert_id", alert.ID,
				"error", err,
			)
		}
	}
}

// CriticalFailure raises an alert for a non-recoverable provider error
func (m *AlertManager) CriticalFailure(ctx context.Context, service string, opErr *OperationError) {
	m.Send(ctx, Alert{
		ID:       fmt.Sprintf("critical-failure-%s", service),
		Severity: AlertSeverityCritical,
		Title:    "Critical provider failure",
		Message:  opErr.Message,
		Service:  service,
		Metadata: map[string]interface{}{
			"method":   opErr.Method,
			"severity": opErr.Severity.String(),
		},
	})
}

// BreakerOpened raises an alert when a circuit breaker trips open
func (m *AlertManager) BreakerOpened(ctx context.Context, service string, failures uint32) {
	m.Send(ctx, Alert{
		ID:       fmt.Sprintf("breaker-open-%s", service),
		Severity: AlertSeverityWarning,
		Title:    "Circuit breaker opened",
		Message:  fmt.Sprintf("circuit breaker for %s opened after %d failures", service, failures),
		Service:  service,
		Metadata: map[string]interface{}{
			"failures": failures,
		},
	})
}

// LoggingAlertHandler writes alerts to the structured log. It is the
// default destination when no external alerting is configured.
type LoggingAlertHandler struct {
	logger *logging.Logger
}

func NewLoggingAlertHandler(logger *logging.Logger) *LoggingAlertHandler {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &LoggingAlertHandler{logger: logger}
}

func (h *LoggingAlertHandler) Name() string { return "logging" }

func (h *LoggingAlertHandler) HandleAlert(ctx context.Context, alert Alert) error {
	fields := []interface{}{
		"alert_id", alert.ID,
		"severity", string(alert.Severity),
		"service", alert.Service,
	}
	switch alert.Severity {
	case AlertSeverityCritical:
		h.logger.Error(alert.Title+": "+alert.Message, fields...)
	case AlertSeverityWarning:
		h.logger.Warn(alert.Title+": "+alert.Message, fields...)
	default:
		h.logger.Info(alert.Title+": "+alert.Message, fields...)
	}
	return nil
}
