// Package dispatch fans a verified-hazard alert out to the notification
// channels and records one immutable AlertLog per attempt.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/tidewatch/tidewatch/internal/database"
	"github.com/tidewatch/tidewatch/internal/notify"
	"github.com/tidewatch/tidewatch/internal/observability"
)

// DefaultChannelTimeout bounds each channel send when no timeout is configured
const DefaultChannelTimeout = 10 * time.Second

// Config controls dispatch behavior
type Config struct {
	// ChannelTimeout is the per-channel send deadline. Exceeding it fails
	// that channel only; siblings keep running.
	ChannelTimeout time.Duration

	// RealertVerified allows a report that already produced an alert to
	// alert again on re-verification. Off by default: repeat transitions
	// to Verified are deduped by report id.
	RealertVerified bool
}

// ChannelOutcome is the result of one channel attempt
type ChannelOutcome struct {
	Channel     string
	Destination string
	Sent        bool
	Err         string
}

// Result aggregates one dispatch attempt. Dispatch always produces a
// Result; individual channel failures never surface as errors.
type Result struct {
	Message  string
	Severity database.AlertSeverity
	Outcomes []ChannelOutcome
	Overall  database.AlertStatus
	Push     notify.MulticastResult

	// Deduped is true when the re-alert policy suppressed the dispatch;
	// no channels were attempted and no AlertLog was written.
	Deduped bool

	Log *database.AlertLog
}

// Dispatcher coordinates the concurrent channel fan-out
type Dispatcher struct {
	sms   notify.Sender
	email notify.Sender
	chat  notify.Sender
	push  notify.Multicaster // optional

	resolver *Resolver
	logs     *database.AlertLogStore
	cfg      Config
	clock    clockwork.Clock
	metrics  *observability.Metrics
}

// New creates a dispatcher. push may be nil when push delivery is not
// configured; metrics may be nil to disable instrumentation.
func New(sms, email, chat notify.Sender, push notify.Multicaster, resolver *Resolver,
	logs *database.AlertLogStore, cfg Config, clock clockwork.Clock, metrics *observability.Metrics) *Dispatcher {
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = DefaultChannelTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		sms:      sms,
		email:    email,
		chat:     chat,
		push:     push,
		resolver: resolver,
		logs:     logs,
		cfg:      cfg,
		clock:    clock,
		metrics:  metrics,
	}
}

// Dispatch sends the alert for a verified report across all channels and
// appends one AlertLog. The returned error is non-nil only for persistence
// failures (the dedupe lookup or the log write); channel failures live in
// the Result and the AlertLog.
func (d *Dispatcher) Dispatch(ctx context.Context, report *database.Report, actor uint) (*Result, error) {
	if !d.cfg.RealertVerified {
		exists, err := d.logs.ExistsForReport(report.ID)
		if err != nil {
			return nil, fmt.Errorf("re-alert check for report %s: %w", report.UUID, err)
		}
		if exists {
			log.Printf("Alert for report %s already dispatched, skipping", report.UUID)
			d.count("deduped")
			return &Result{Deduped: true}, nil
		}
	}

	result := &Result{
		Message:  AlertMessage(report),
		Severity: severityFor(report),
	}
	recipients := d.resolver.Resolve(report)

	// The three direct channels run concurrently: each involves a network
	// round trip to an independent third party, and one slow or dead
	// channel must not stall the others.
	jobs := []struct {
		sender notify.Sender
		dest   string
	}{
		{d.sms, recipients.SMS},
		{d.email, recipients.Email},
		{d.chat, recipients.Chat},
	}

	outcomes := make([]ChannelOutcome, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, sender notify.Sender, dest string) {
			defer wg.Done()
			outcomes[i] = d.attempt(ctx, sender, dest, result.Message)
		}(i, job.sender, job.dest)
	}
	wg.Wait()

	result.Outcomes = outcomes
	result.Overall = database.AlertStatusSent
	for _, o := range outcomes {
		if !o.Sent {
			result.Overall = database.AlertStatusFailed
		}
		d.countChannel(o)
	}

	// Push is best-effort and does not factor into the overall status
	result.Push = d.multicast(ctx, recipients.PushTokens, report)

	entry := d.buildLog(report, actor, result)
	if err := d.logs.Append(entry); err != nil {
		return result, fmt.Errorf("write alert log for report %s: %w", report.UUID, err)
	}
	result.Log = entry
	d.count(string(result.Overall))

	log.Printf("Alert dispatched for report %s: %s", report.UUID, result.Overall)
	return result, nil
}

// attempt runs one channel send under its own deadline. The timeout context
// is detached from the caller so that no global cancellation can cut short
// sibling sends.
func (d *Dispatcher) attempt(ctx context.Context, sender notify.Sender, dest, message string) ChannelOutcome {
	outcome := ChannelOutcome{Channel: sender.Name(), Destination: dest}
	if dest == "" {
		outcome.Err = "no destination configured"
		return outcome
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.ChannelTimeout)
	defer cancel()

	if err := sender.Send(sendCtx, dest, message); err != nil {
		log.Printf("%s send failed: %v", sender.Name(), err)
		outcome.Err = err.Error()
		return outcome
	}
	outcome.Sent = true
	return outcome
}

func (d *Dispatcher) multicast(ctx context.Context, tokens []string, report *database.Report) notify.MulticastResult {
	if d.push == nil || len(tokens) == 0 {
		return notify.MulticastResult{}
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.ChannelTimeout)
	defer cancel()

	result, err := d.push.SendMulticast(pushCtx, tokens,
		"Hazard Alert",
		fmt.Sprintf("A hazard has been verified near you: %s", report.Text),
		map[string]string{
			"type":      "HAZARD_ALERT",
			"report_id": report.UUID,
			"lat":       fmt.Sprintf("%f", report.Lat),
			"lon":       fmt.Sprintf("%f", report.Lon),
		})
	if err != nil {
		log.Printf("Push multicast failed: %v", err)
		return notify.MulticastResult{}
	}
	return result
}

// buildLog assembles the immutable audit row. Successful destinations are
// recorded per channel even when the overall status is Failed.
func (d *Dispatcher) buildLog(report *database.Report, actor uint, result *Result) *database.AlertLog {
	entry := &database.AlertLog{
		UUID:        uuid.New().String(),
		Message:     result.Message,
		Severity:    result.Severity,
		ReportID:    report.ID,
		TriggeredBy: actor,
		Status:      result.Overall,
		PushSent:    result.Push.Success,
		CreatedAt:   d.clock.Now(),
	}
	for _, o := range result.Outcomes {
		if o.Sent {
			switch o.Channel {
			case notify.ChannelSMS:
				entry.SMSRecipients = append(entry.SMSRecipients, o.Destination)
			case notify.ChannelEmail:
				entry.EmailRecipients = append(entry.EmailRecipients, o.Destination)
			case notify.ChannelChat:
				entry.ChatRecipients = append(entry.ChatRecipients, o.Destination)
			}
		} else {
			entry.ChannelErrors = append(entry.ChannelErrors, fmt.Sprintf("%s: %s", o.Channel, o.Err))
		}
	}
	return entry
}

// AlertMessage composes the alert text for a verified hazard report
func AlertMessage(report *database.Report) string {
	return fmt.Sprintf("Ocean Hazard Verified: %s near [%.4f, %.4f]. Stay alert!",
		report.Text, report.Lat, report.Lon)
}

// severityFor grades an alert from the report's classification and score
func severityFor(report *database.Report) database.AlertSeverity {
	if report.Label == database.LabelPanic {
		return database.SeverityHigh
	}
	if report.PriorityScore >= 3 {
		return database.SeverityMedium
	}
	return database.SeverityLow
}

func (d *Dispatcher) count(status string) {
	if d.metrics != nil {
		d.metrics.AlertsDispatched.WithLabelValues(status).Inc()
	}
}

func (d *Dispatcher) countChannel(o ChannelOutcome) {
	if d.metrics == nil {
		return
	}
	outcome := "sent"
	if !o.Sent {
		outcome = "failed"
	}
	d.metrics.ChannelOutcomes.WithLabelValues(o.Channel, outcome).Inc()
}
