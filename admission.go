package translation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ahasasjeb/OpenAI-translation/estimate"
)

// Request describes a pending translation to be gated.
// Exactly one of Text or Image should be set.
type Request struct {
	Model      string
	Text       string
	Image      *ImageSpec
	SourceLang string
	TargetLang string
}

// ImageSpec carries the dimensions and detail mode of an image request.
type ImageSpec struct {
	Width  int
	Height int
	Detail estimate.Detail
}

// Admission is a granted admission decision. The ID correlates the
// check with the later usage record in logs.
type Admission struct {
	ID       string
	Estimate estimate.Estimate
	Status   QuotaStatus
}

// Gate composes the estimator and the ledger into admission control:
// a request whose predicted cost exceeds the remaining budget is
// rejected before the expensive remote call.
//
// Admit and Complete are two separate operations around a long remote
// call, so two concurrent requests can both pass the check and jointly
// overshoot the limit. This is the accepted soft-limit design: overshoot
// is bounded by one in-flight request's tokens per concurrent racer.
type Gate struct {
	ledger    *Ledger
	estimator *estimate.Estimator
	meter     Meter
	clock     func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithMeter sets the observer for admission and record events.
func WithMeter(m Meter) GateOption {
	return func(g *Gate) { g.meter = m }
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) GateOption {
	return func(g *Gate) { g.clock = clock }
}

// NewGate creates a Gate.
func NewGate(ledger *Ledger, estimator *estimate.Estimator, opts ...GateOption) *Gate {
	g := &Gate{
		ledger:    ledger,
		estimator: estimator,
		meter:     &noopMeter{},
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit estimates the request and checks it against the remaining
// budget. It reserves nothing; the caller performs the remote call and
// then reports actual usage via Complete. Failed or aborted calls must
// simply never call Complete.
func (g *Gate) Admit(ctx context.Context, req Request) (Admission, error) {
	if req.Text == "" && req.Image == nil {
		return Admission{}, ErrInvalidRequest
	}

	est := g.estimateFor(req)
	id := uuid.New().String()

	st, err := g.ledger.EnsureAvailable(ctx, g.clock())
	if err != nil {
		g.meter.OnCheck(CheckEvent{
			RequestID:       id,
			Model:           req.Model,
			EstimatedTokens: est.TotalTokens,
			Remaining:       st.Remaining,
			Store:           st.Store,
			Degraded:        st.Degraded,
			Err:             err,
		})
		return Admission{}, err
	}

	allowed := est.TotalTokens <= st.Remaining
	g.meter.OnCheck(CheckEvent{
		RequestID:       id,
		Model:           req.Model,
		EstimatedTokens: est.TotalTokens,
		Remaining:       st.Remaining,
		Store:           st.Store,
		Degraded:        st.Degraded,
		Allowed:         allowed,
	})

	if !allowed {
		return Admission{}, &QuotaExhaustedError{Status: st}
	}

	return Admission{ID: id, Estimate: est, Status: st}, nil
}

// Complete durably records the usage billed by the upstream provider for
// an admitted request. The boolean reports whether this request is the
// one that exhausted the daily budget.
func (g *Gate) Complete(ctx context.Context, adm Admission, usage Usage, model string) (QuotaStatus, bool, error) {
	start := g.clock()
	st, exhausted, err := g.ledger.RecordUsage(ctx, float64(usage.TotalTokens), model, start)

	g.meter.OnRecord(RecordEvent{
		RequestID: adm.ID,
		Model:     model,
		Tokens:    usage.TotalTokens,
		Used:      st.Used,
		Remaining: st.Remaining,
		Exhausted: exhausted,
		Store:     st.Store,
		Degraded:  st.Degraded,
		Duration:  time.Since(start),
		Err:       err,
	})
	return st, exhausted, err
}

func (g *Gate) estimateFor(req Request) estimate.Estimate {
	if req.Image != nil {
		return g.estimator.Image(estimate.ImageRequest{
			Model:      req.Model,
			Width:      req.Image.Width,
			Height:     req.Image.Height,
			Detail:     req.Image.Detail,
			SourceLang: req.SourceLang,
			TargetLang: req.TargetLang,
		})
	}
	return g.estimator.Text(estimate.TextRequest{
		Model:      req.Model,
		Text:       req.Text,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
	})
}

// noopMeter is the default meter when none is configured.
type noopMeter struct{}

func (m *noopMeter) OnCheck(CheckEvent)   {}
func (m *noopMeter) OnRecord(RecordEvent) {}
