package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type transportFunc func(ctx context.Context, s ContactSubmission) (Delivery, error)

func (f transportFunc) Deliver(ctx context.Context, s ContactSubmission) (Delivery, error) {
	return f(ctx, s)
}

func validSubmission() ContactSubmission {
	return ContactSubmission{Name: "Jo", Email: "a@b.com", Subject: "Hi", Message: "This is long enough."}
}

func TestPipelineDeliversValidSubmission(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)
	reporter := NewMockReporter(ctrl)

	sub := validSubmission()
	transport.EXPECT().Deliver(gomock.Any(), sub).Return(Delivery{}, nil).Times(1)
	reporter.EXPECT().Report(gomock.Any(), Event{Action: "contact_submitted", Category: "contact", Label: "delivered"}).Times(1)

	metrics := NewMetrics()
	p := NewContactPipeline(transport, reporter, WithPipelineMetrics(metrics))
	require.True(t, p.Fill(sub))

	out := p.Submit(context.Background())

	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, StateDelivered, p.State())
	assert.Equal(t, ContactSubmission{}, p.Fields(), "fields reset after success")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Submissions.WithLabelValues("success")))
}

func TestPipelineRejectsInvalidSubmission(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl) // no Deliver expected
	reporter := NewMockReporter(ctrl)
	reporter.EXPECT().Report(gomock.Any(), Event{Action: "contact_rejected", Category: "contact", Label: "email,message"})

	p := NewContactPipeline(transport, reporter)
	sub := ContactSubmission{Name: "Jo", Email: "bad", Subject: "Hi", Message: "short"}
	p.Fill(sub)

	out := p.Submit(context.Background())

	require.Equal(t, OutcomeValidationFailed, out.Kind)
	assert.Equal(t, ValidationResult{FieldEmail: msgInvalid, FieldMessage: msgTooShort}, out.Errors)
	assert.Equal(t, StateRejected, p.State())
	assert.Equal(t, sub, p.Fields(), "fields kept for correction")

	assert.True(t, p.Set(FieldEmail, "jo@example.com"))
	assert.Equal(t, StateIdle, p.State(), "editing after rejection returns to idle")
}

func TestPipelineRevalidatesEverythingOnResubmit(t *testing.T) {
	var calls atomic.Int32
	transport := transportFunc(func(context.Context, ContactSubmission) (Delivery, error) {
		calls.Add(1)
		return Delivery{}, nil
	})
	p := NewContactPipeline(transport, nil)

	p.Fill(ContactSubmission{Name: "Jo", Email: "bad", Subject: "Hi", Message: "This is long enough."})
	out := p.Submit(context.Background())
	require.Equal(t, OutcomeValidationFailed, out.Kind)

	// fix the email but break the subject
	p.Set(FieldEmail, "jo@example.com")
	p.Set(FieldSubject, " ")
	out = p.Submit(context.Background())
	require.Equal(t, OutcomeValidationFailed, out.Kind)
	assert.Equal(t, ValidationResult{FieldSubject: msgRequired}, out.Errors)

	p.Set(FieldSubject, "Hello")
	out = p.Submit(context.Background())
	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPipelineTransportFailureKeepsFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)
	reporter := NewMockReporter(ctrl)

	cause := errors.New("dial tcp: connection refused")
	sub := validSubmission()
	transport.EXPECT().Deliver(gomock.Any(), sub).Return(Delivery{}, cause).Times(1)
	reporter.EXPECT().Report(gomock.Any(), Event{Action: "contact_failed", Category: "contact", Label: cause.Error()})

	p := NewContactPipeline(transport, reporter)
	p.Fill(sub)

	out := p.Submit(context.Background())

	require.Equal(t, OutcomeTransportFailed, out.Kind)
	assert.ErrorIs(t, out.Cause, cause)
	assert.Equal(t, cause.Error(), out.Reason)
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, sub, p.Fields(), "input survives a failed submission")
}

func TestPipelineTransportPanicIsAFailure(t *testing.T) {
	transport := transportFunc(func(context.Context, ContactSubmission) (Delivery, error) {
		panic("boom")
	})
	p := NewContactPipeline(transport, nil)
	p.Fill(validSubmission())

	out := p.Submit(context.Background())

	require.Equal(t, OutcomeTransportFailed, out.Kind)
	assert.Contains(t, out.Reason, "boom")
	assert.Equal(t, validSubmission(), p.Fields())
}

func TestPipelineTimeout(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	transport := transportFunc(func(context.Context, ContactSubmission) (Delivery, error) {
		if calls.Add(1) == 1 {
			<-release // ignores ctx on purpose
		}
		return Delivery{}, nil
	})
	m := NewMetrics()
	p := NewContactPipeline(transport, nil, WithSubmitTimeout(20*time.Millisecond), WithPipelineMetrics(m))
	p.Fill(validSubmission())

	out := p.Submit(context.Background())

	require.Equal(t, OutcomeTransportFailed, out.Kind)
	assert.Equal(t, "timeout", out.Reason)
	assert.ErrorIs(t, out.Cause, context.DeadlineExceeded)
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, validSubmission(), p.Fields())

	// the abandoned send is still running, so a retry must not start a second one
	assert.True(t, p.Busy())
	assert.True(t, p.Fill(validSubmission()), "fields stay editable")
	assert.Equal(t, OutcomeBusy, p.Submit(context.Background()).Kind)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	require.Eventually(t, func() bool { return !p.Busy() }, time.Second, 5*time.Millisecond)

	assert.Equal(t, OutcomeSuccess, p.Submit(context.Background()).Kind)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("transport_failed")))
}

func TestPipelineIgnoresSubmitWhileInFlight(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	transport := transportFunc(func(context.Context, ContactSubmission) (Delivery, error) {
		calls.Add(1)
		close(started)
		<-release
		return Delivery{}, nil
	})

	p := NewContactPipeline(transport, nil)
	p.Fill(validSubmission())

	var wg sync.WaitGroup
	var first Outcome
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = p.Submit(context.Background())
	}()

	<-started
	assert.Equal(t, StateSubmitting, p.State())

	for i := 0; i < 5; i++ {
		assert.Equal(t, OutcomeBusy, p.Submit(context.Background()).Kind)
	}
	assert.False(t, p.Set(FieldName, "someone else"), "edits refused while sending")
	assert.False(t, p.Fill(ContactSubmission{}))

	close(release)
	wg.Wait()

	assert.Equal(t, OutcomeSuccess, first.Kind)
	assert.Equal(t, int32(1), calls.Load(), "exactly one transport invocation")
}

func TestPipelineConcurrentSubmitsDeliverOnce(t *testing.T) {
	var calls atomic.Int32
	transport := transportFunc(func(context.Context, ContactSubmission) (Delivery, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return Delivery{}, nil
	})
	p := NewContactPipeline(transport, nil)
	p.Fill(validSubmission())

	const clicks = 20
	outcomes := make(chan OutcomeKind, clicks)
	var wg sync.WaitGroup
	wg.Add(clicks)
	for i := 0; i < clicks; i++ {
		go func() {
			defer wg.Done()
			outcomes <- p.Submit(context.Background()).Kind
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[OutcomeKind]int{}
	for k := range outcomes {
		counts[k]++
	}
	// Late clicks may land after delivery reset the form and get rejected;
	// what matters is that only one message went out.
	assert.Equal(t, 1, counts[OutcomeSuccess])
	assert.Equal(t, int32(1), calls.Load())
}

func TestPipelineComposeOnlyDelivery(t *testing.T) {
	p := NewContactPipeline(MailtoTransport{To: "me@example.com"}, nil)
	p.Fill(validSubmission())

	out := p.Submit(context.Background())

	require.Equal(t, OutcomeSuccess, out.Kind)
	assert.Contains(t, out.ComposeURL, "mailto:me@example.com?")
	assert.Equal(t, ContactSubmission{}, p.Fields())
}

func TestPipelineSetUnknownField(t *testing.T) {
	p := NewContactPipeline(MailtoTransport{}, nil)
	assert.False(t, p.Set("phone", "555"))
	assert.True(t, p.Set(FieldMessage, "hello"))
	assert.Equal(t, "hello", p.Fields().Message)
}

func TestPipelineStateStrings(t *testing.T) {
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "transport_failed", OutcomeTransportFailed.String())
}
