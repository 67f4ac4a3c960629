package alert

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat"

	"github.com/andresdiniz/wazeBR-sub001/internal/feed"
	"github.com/andresdiniz/wazeBR-sub001/internal/report"
)

// Transport delivers one rendered message. Retries, if any, belong to the
// implementation, not to the dispatch loop.
type Transport interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// RecipientSource resolves who receives alerts for a partner's feed.
type RecipientSource interface {
	RecipientsFor(ctx context.Context, partnerID int) ([]string, error)
}

// SpeedSource returns recent speed observations for an irregularity so the
// message can show an average instead of a single noisy sample.
type SpeedSource interface {
	RecentSpeeds(ctx context.Context, ir feed.Irregularity) ([]float64, error)
}

// Event is the record of one dispatched alert, published for live
// consumers.
type Event struct {
	Fingerprint    string    `json:"fingerprint"`
	IrregularityID string    `json:"irregularity_id"`
	Name           string    `json:"name"`
	JamLevel       int       `json:"jam_level"`
	PartnerID      int       `json:"partner_id"`
	SentAt         time.Time `json:"sent_at"`
}

// Publisher fans dispatched alerts out to live consumers. Best effort; a
// publish failure never affects the dispatch outcome.
type Publisher interface {
	PublishAlert(ctx context.Context, evt Event) error
}

// Summary counts what happened to one batch. NoRecipients counts sends
// whose cooldown window was claimed but which had nobody to deliver to.
type Summary struct {
	Processed    int
	Sent         int
	Suppressed   int
	Skipped      int
	Failed       int
	NoRecipients int
}

// Dispatcher runs the per-irregularity decision chain:
// fingerprint -> gate -> ledger commit -> compose -> transport.
//
// The ledger commit happens before the transport call. Claiming the
// cooldown window is the throttling event; a failed or timed-out send does
// not roll it back, and a failed conditional commit means a concurrent run
// already sent for this fingerprint.
type Dispatcher struct {
	Gate       *Gate
	Ledger     Ledger
	Transport  Transport
	Recipients RecipientSource
	Speeds     SpeedSource
	Publisher  Publisher
	Reporter   *report.Reporter

	Limiter     *rate.Limiter
	SendTimeout time.Duration
	Log         zerolog.Logger

	now func() time.Time
}

func (d *Dispatcher) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// Run evaluates every irregularity in the batch. Row failures are reported
// and never abort the remaining rows.
func (d *Dispatcher) Run(ctx context.Context, batch []feed.Irregularity) Summary {
	var sum Summary

	for _, ir := range batch {
		if ctx.Err() != nil {
			return sum
		}
		sum.Processed++

		if err := ir.Validate(); err != nil {
			sum.Skipped++
			d.Reporter.Recoverable(report.SeverityWarning, err, "skipping malformed irregularity", rowContext(ir))
			continue
		}

		fingerprint := Fingerprint(ir)

		decision, err := d.Gate.ShouldSend(ctx, fingerprint)
		if err != nil {
			// Fail closed: an unreadable ledger means no send.
			sum.Failed++
			d.Reporter.Recoverable(report.SeverityError, err, "gate check failed, denying send", rowContext(ir))
			continue
		}
		if !decision.Allowed {
			sum.Suppressed++
			continue
		}

		now := d.clock()
		committed, err := d.Ledger.CommitSend(ctx, fingerprint, now, now.Add(decision.NextCooldown), decision.Prev)
		if err != nil {
			sum.Failed++
			d.Reporter.Recoverable(report.SeverityError, err, "cooldown commit failed, denying send", rowContext(ir))
			continue
		}
		if !committed {
			// A concurrent run won the window between our lookup and commit.
			sum.Suppressed++
			d.Log.Debug().Str("fingerprint", fingerprint).Msg("cooldown window claimed concurrently")
			continue
		}

		d.deliver(ctx, ir, fingerprint, &sum)
	}

	return sum
}

func (d *Dispatcher) deliver(ctx context.Context, ir feed.Irregularity, fingerprint string, sum *Summary) {
	recipients, err := d.Recipients.RecipientsFor(ctx, ir.PartnerID)
	if err != nil {
		// The window is already claimed; losing this cycle's delivery is the
		// storm-safe direction.
		sum.Failed++
		d.Reporter.Recoverable(report.SeverityError, err, "recipient lookup failed", rowContext(ir))
		return
	}

	if len(recipients) == 0 {
		// The window is burned either way; make that visible to operators.
		sum.Sent++
		sum.NoRecipients++
		d.Log.Warn().
			Str("fingerprint", fingerprint).
			Str("id", ir.ID).
			Int("partner_id", ir.PartnerID).
			Msg("alert dispatched with no recipients")
		d.publish(ctx, ir, fingerprint)
		return
	}

	body := Compose(ir, d.averageSpeed(ctx, ir), ir.SubType)
	subject := Subject(ir)

	delivered := 0
	for _, rcpt := range recipients {
		if d.Limiter != nil {
			if err := d.Limiter.Wait(ctx); err != nil {
				d.Reporter.Recoverable(report.SeverityWarning, err, "send rate wait interrupted", rowContext(ir))
				break
			}
		}

		sendCtx := ctx
		cancel := func() {}
		if d.SendTimeout > 0 {
			sendCtx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		}
		err := d.Transport.Send(sendCtx, rcpt, subject, body)
		cancel()

		if err != nil {
			d.Reporter.Recoverable(report.SeverityError, err, "transport send failed", map[string]any{
				"id":        ir.ID,
				"recipient": rcpt,
			})
			continue
		}
		delivered++
	}

	sum.Sent++
	if delivered < len(recipients) {
		sum.Failed++
	}

	d.Log.Info().
		Str("fingerprint", fingerprint).
		Str("id", ir.ID).
		Int("jam_level", ir.JamLevel).
		Int("recipients", len(recipients)).
		Int("delivered", delivered).
		Msg("alert dispatched")

	d.publish(ctx, ir, fingerprint)
}

func (d *Dispatcher) publish(ctx context.Context, ir feed.Irregularity, fingerprint string) {
	if d.Publisher == nil {
		return
	}
	evt := Event{
		Fingerprint:    fingerprint,
		IrregularityID: ir.ID,
		Name:           ir.Name,
		JamLevel:       ir.JamLevel,
		PartnerID:      ir.PartnerID,
		SentAt:         d.clock(),
	}
	if err := d.Publisher.PublishAlert(ctx, evt); err != nil {
		d.Log.Warn().Err(err).Str("id", ir.ID).Msg("alert publish failed")
	}
}

// averageSpeed prefers the mean of recent samples and falls back to the
// current observation when history is missing or unreadable.
func (d *Dispatcher) averageSpeed(ctx context.Context, ir feed.Irregularity) float64 {
	if d.Speeds == nil {
		return ir.SpeedKMH
	}
	speeds, err := d.Speeds.RecentSpeeds(ctx, ir)
	if err != nil {
		d.Reporter.Recoverable(report.SeverityWarning, err, "speed history unavailable", rowContext(ir))
		return ir.SpeedKMH
	}
	if len(speeds) == 0 {
		return ir.SpeedKMH
	}
	return stat.Mean(speeds, nil)
}

func rowContext(ir feed.Irregularity) map[string]any {
	return map[string]any{
		"id":         ir.ID,
		"source_url": ir.SourceURL,
		"partner_id": ir.PartnerID,
	}
}
