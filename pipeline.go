package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const DefaultSubmitTimeout = 10 * time.Second

type PipelineState int

const (
	StateIdle PipelineState = iota
	StateValidating
	StateRejected
	StateSubmitting
	StateDelivered
	StateFailed
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateRejected:
		return "rejected"
	case StateSubmitting:
		return "submitting"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s PipelineState) inFlight() bool {
	return s == StateValidating || s == StateSubmitting
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeValidationFailed
	OutcomeTransportFailed
	// OutcomeBusy is returned for a submit that arrived while another one
	// was still running. Nothing was sent.
	OutcomeBusy
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidationFailed:
		return "validation_failed"
	case OutcomeTransportFailed:
		return "transport_failed"
	case OutcomeBusy:
		return "busy"
	}
	return "unknown"
}

// Outcome is the result of one submit action.
type Outcome struct {
	Kind OutcomeKind

	// Set for OutcomeValidationFailed.
	Errors ValidationResult

	// Set for OutcomeTransportFailed. Reason is safe to log and report,
	// Cause is the raw transport error and must not reach the visitor.
	Reason string
	Cause  error

	// Set on success when the transport only composed a mail link.
	ComposeURL string
}

// ContactPipeline drives one contact form through validation and delivery.
// It is safe for concurrent use; a submit that overlaps another is a no-op.
type ContactPipeline struct {
	transport Transport
	reporter  Reporter
	metrics   *Metrics
	logger    *slog.Logger
	timeout   time.Duration

	mu     sync.Mutex
	state  PipelineState
	fields ContactSubmission
	// sending stays set until the transport call returns, even one that
	// already timed out.
	sending bool
}

type PipelineOption func(*ContactPipeline)

func WithSubmitTimeout(d time.Duration) PipelineOption {
	return func(p *ContactPipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithPipelineMetrics(m *Metrics) PipelineOption {
	return func(p *ContactPipeline) { p.metrics = m }
}

func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *ContactPipeline) { p.logger = l }
}

func NewContactPipeline(transport Transport, reporter Reporter, opts ...PipelineOption) *ContactPipeline {
	if reporter == nil {
		reporter = NopReporter{}
	}
	p := &ContactPipeline{
		transport: transport,
		reporter:  reporter,
		logger:    slog.Default(),
		timeout:   DefaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ContactPipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *ContactPipeline) Fields() ContactSubmission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fields
}

// Set edits one field. Editing after a finished attempt returns the form to
// idle. Edits are refused while an attempt is running.
func (p *ContactPipeline) Set(field, value string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.inFlight() {
		return false
	}
	if !p.fields.set(field, value) {
		return false
	}
	p.state = StateIdle
	return true
}

// Fill replaces every field at once, as a full form post does.
func (p *ContactPipeline) Fill(s ContactSubmission) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.inFlight() {
		return false
	}
	p.fields = s
	p.state = StateIdle
	return true
}

// Submit validates the current fields and, if they pass, hands them to the
// transport exactly once.
func (p *ContactPipeline) Submit(ctx context.Context) Outcome {
	p.mu.Lock()
	if p.busy() {
		p.mu.Unlock()
		return p.finish(ctx, Outcome{Kind: OutcomeBusy})
	}
	p.state = StateValidating
	sub := p.fields
	p.mu.Unlock()

	if res := Validate(sub); !res.Valid() {
		p.setState(StateRejected)
		return p.finish(ctx, Outcome{Kind: OutcomeValidationFailed, Errors: res})
	}

	p.mu.Lock()
	p.state = StateSubmitting
	p.sending = true
	p.mu.Unlock()
	delivery, err := p.deliver(ctx, sub)

	p.mu.Lock()
	if err != nil {
		p.state = StateFailed
	} else {
		p.state = StateDelivered
		p.fields = ContactSubmission{}
	}
	p.mu.Unlock()

	if err != nil {
		return p.finish(ctx, Outcome{Kind: OutcomeTransportFailed, Reason: failureReason(err), Cause: err})
	}
	return p.finish(ctx, Outcome{Kind: OutcomeSuccess, ComposeURL: delivery.ComposeURL})
}

// Busy reports whether a submit would be refused right now.
func (p *ContactPipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy()
}

func (p *ContactPipeline) busy() bool {
	return p.state.inFlight() || p.sending
}

func (p *ContactPipeline) setState(s PipelineState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

type deliveryResult struct {
	delivery Delivery
	err      error
}

// deliver bounds the transport call by the submit timeout. A transport that
// outlives the deadline keeps running and its result is dropped, but new
// submits stay refused until it returns.
func (p *ContactPipeline) deliver(ctx context.Context, sub ContactSubmission) (Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan deliveryResult, 1)
	go func() {
		var res deliveryResult
		defer func() {
			if r := recover(); r != nil {
				res = deliveryResult{err: fmt.Errorf("transport panic: %v", r)}
			}
			p.mu.Lock()
			p.sending = false
			p.mu.Unlock()
			done <- res
		}()
		d, err := p.transport.Deliver(ctx, sub)
		res = deliveryResult{delivery: d, err: err}
	}()

	select {
	case r := <-done:
		return r.delivery, r.err
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return err.Error()
}

func (p *ContactPipeline) finish(ctx context.Context, out Outcome) Outcome {
	if p.metrics != nil {
		p.metrics.ObserveSubmission(out.Kind)
	}

	switch out.Kind {
	case OutcomeBusy:
		p.logger.Debug("contact submit refused, previous attempt still running")
	case OutcomeSuccess:
		p.logger.Info("contact message delivered", "compose_only", out.ComposeURL != "")
		p.reporter.Report(ctx, Event{Action: "contact_submitted", Category: "contact", Label: "delivered"})
	case OutcomeValidationFailed:
		p.reporter.Report(ctx, Event{Action: "contact_rejected", Category: "contact", Label: strings.Join(out.Errors.Fields(), ",")})
	case OutcomeTransportFailed:
		p.logger.Error("contact delivery failed", "reason", out.Reason, "error", out.Cause)
		p.reporter.Report(ctx, Event{Action: "contact_failed", Category: "contact", Label: out.Reason})
	}
	return out
}
