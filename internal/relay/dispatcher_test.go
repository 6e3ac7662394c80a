package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/hooklinehq/hookline/internal/forward"
)

type forwardCall struct {
	dest      string
	body      string
	signature string
}

type fakeForwarder struct {
	mu      sync.Mutex
	calls   []forwardCall
	failFor map[string]error
}

func (f *fakeForwarder) Send(_ context.Context, dest forward.Destination, body []byte, signature string, _ http.Header) forward.Result {
	f.mu.Lock()
	f.calls = append(f.calls, forwardCall{dest: dest.Name, body: string(body), signature: signature})
	f.mu.Unlock()
	if err := f.failFor[dest.Name]; err != nil {
		return forward.Result{Destination: dest.Name, Err: err}
	}
	return forward.Result{Destination: dest.Name, Status: http.StatusOK}
}

func (f *fakeForwarder) callsFor(dest string) []forwardCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []forwardCall
	for _, call := range f.calls {
		if call.dest == dest {
			out = append(out, call)
		}
	}
	return out
}

type fakeMedia struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *fakeMedia) Process(_ context.Context, ev Event) error {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	return m.err
}

var (
	testPrimary   = forward.Destination{Name: "primary", URL: "https://primary.example.com/hook", IncludeSignature: true}
	testSecondary = forward.Destination{Name: "secondary", URL: "https://secondary.example.com/hook"}
)

func deliveryFromRaw(t *testing.T, raw string) Delivery {
	t.Helper()
	env, err := ParseEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	return Delivery{Raw: []byte(raw), Signature: "sig-1", Envelope: env}
}

func TestDispatchPlainTextForwardsToBoth(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	media := &fakeMedia{}
	d := NewDispatcher(nil, fwd, media, testPrimary, testSecondary)

	raw := `{"destination":"U1","events":[{"type":"message","replyToken":"rt","message":{"id":"m1","type":"text","text":"hello"}}]}`
	d.Dispatch(context.Background(), deliveryFromRaw(t, raw), http.Header{})

	primaryCalls := fwd.callsFor("primary")
	if len(primaryCalls) != 1 {
		t.Fatalf("expected one primary forward, got %d", len(primaryCalls))
	}
	secondaryCalls := fwd.callsFor("secondary")
	if len(secondaryCalls) != 1 {
		t.Fatalf("expected one secondary forward, got %d", len(secondaryCalls))
	}
	if primaryCalls[0].body != raw || secondaryCalls[0].body != raw {
		t.Fatal("expected destinations to receive the verbatim body")
	}
	if primaryCalls[0].signature != "sig-1" {
		t.Fatalf("unexpected signature: %q", primaryCalls[0].signature)
	}
	if len(media.events) != 0 {
		t.Fatalf("expected no media events, got %d", len(media.events))
	}
}

func TestDispatchBracketedTextStaysOnPrimary(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	d := NewDispatcher(nil, fwd, &fakeMedia{}, testPrimary, testSecondary)

	raw := `{"destination":"U1","events":[{"type":"message","replyToken":"rt","message":{"id":"m1","type":"text","text":"【社内連絡】"}}]}`
	d.Dispatch(context.Background(), deliveryFromRaw(t, raw), http.Header{})

	if len(fwd.callsFor("primary")) != 1 {
		t.Fatalf("expected one primary forward, got %d", len(fwd.callsFor("primary")))
	}
	if len(fwd.callsFor("secondary")) != 0 {
		t.Fatalf("expected no secondary forwards, got %d", len(fwd.callsFor("secondary")))
	}
}

func TestDispatchMediaEventEntersPipeline(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	media := &fakeMedia{}
	d := NewDispatcher(nil, fwd, media, testPrimary, testSecondary)

	raw := `{"destination":"U1","events":[{"type":"message","replyToken":"rt","message":{"id":"m9","type":"image"}}]}`
	d.Dispatch(context.Background(), deliveryFromRaw(t, raw), http.Header{})

	if len(media.events) != 1 {
		t.Fatalf("expected one media event, got %d", len(media.events))
	}
	if media.events[0].Message.ID != "m9" {
		t.Fatalf("unexpected media message id: %s", media.events[0].Message.ID)
	}
	if len(fwd.callsFor("secondary")) != 0 {
		t.Fatalf("expected no secondary forwards for media, got %d", len(fwd.callsFor("secondary")))
	}
	if len(fwd.callsFor("primary")) != 1 {
		t.Fatalf("expected one primary forward, got %d", len(fwd.callsFor("primary")))
	}
}

func TestDispatchMixedBatch(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	media := &fakeMedia{}
	d := NewDispatcher(nil, fwd, media, testPrimary, testSecondary)

	raw := `{"destination":"U1","events":[
		{"type":"message","replyToken":"rt-1","message":{"id":"m1","type":"text","text":"【伝言】"}},
		{"type":"message","replyToken":"rt-2","message":{"id":"m2","type":"text","text":"plain"}},
		{"type":"message","replyToken":"rt-3","message":{"id":"m3","type":"image"}},
		{"type":"follow","replyToken":"rt-4"}
	]}`
	d.Dispatch(context.Background(), deliveryFromRaw(t, raw), http.Header{})

	if len(fwd.callsFor("primary")) != 1 {
		t.Fatalf("expected exactly one primary forward, got %d", len(fwd.callsFor("primary")))
	}
	if len(fwd.callsFor("secondary")) != 1 {
		t.Fatalf("expected one secondary forward for the plain text event, got %d", len(fwd.callsFor("secondary")))
	}
	if len(media.events) != 1 {
		t.Fatalf("expected one media event, got %d", len(media.events))
	}
}

func TestDispatchMultipleTextEventsForwardSecondaryPerEvent(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	d := NewDispatcher(nil, fwd, &fakeMedia{}, testPrimary, testSecondary)

	raw := `{"destination":"U1","events":[
		{"type":"message","replyToken":"rt-1","message":{"id":"m1","type":"text","text":"one"}},
		{"type":"message","replyToken":"rt-2","message":{"id":"m2","type":"text","text":"two"}}
	]}`
	d.Dispatch(context.Background(), deliveryFromRaw(t, raw), http.Header{})

	if len(fwd.callsFor("primary")) != 1 {
		t.Fatalf("expected one primary forward, got %d", len(fwd.callsFor("primary")))
	}
	if len(fwd.callsFor("secondary")) != 2 {
		t.Fatalf("expected one secondary forward per text event, got %d", len(fwd.callsFor("secondary")))
	}
}

func TestDispatchPrimaryFailureDoesNotBlockSecondary(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{failFor: map[string]error{"primary": errors.New("connection refused")}}
	d := NewDispatcher(nil, fwd, &fakeMedia{}, testPrimary, testSecondary)

	raw := `{"destination":"U1","events":[{"type":"message","replyToken":"rt","message":{"id":"m1","type":"text","text":"hello"}}]}`
	d.Dispatch(context.Background(), deliveryFromRaw(t, raw), http.Header{})

	if len(fwd.callsFor("secondary")) != 1 {
		t.Fatalf("expected secondary forward despite primary failure, got %d", len(fwd.callsFor("secondary")))
	}
}

func TestDispatchMediaFailureIsIsolated(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	media := &fakeMedia{err: errors.New("fetch failed")}
	d := NewDispatcher(nil, fwd, media, testPrimary, testSecondary)

	raw := `{"destination":"U1","events":[
		{"type":"message","replyToken":"rt-1","message":{"id":"m1","type":"image"}},
		{"type":"message","replyToken":"rt-2","message":{"id":"m2","type":"text","text":"still here"}}
	]}`
	d.Dispatch(context.Background(), deliveryFromRaw(t, raw), http.Header{})

	if len(media.events) != 1 {
		t.Fatalf("expected the media event to be attempted, got %d", len(media.events))
	}
	if len(fwd.callsFor("secondary")) != 1 {
		t.Fatalf("expected text event to forward despite media failure, got %d", len(fwd.callsFor("secondary")))
	}
}

func TestDispatchEmptyEnvelopeStillForwardsPrimary(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	media := &fakeMedia{}
	d := NewDispatcher(nil, fwd, media, testPrimary, testSecondary)

	// A delivery whose body never parsed: no events, raw bytes only.
	dlv := Delivery{Raw: []byte("not-json"), Signature: "sig-1"}
	d.Dispatch(context.Background(), dlv, http.Header{})

	if len(fwd.callsFor("primary")) != 1 {
		t.Fatalf("expected one primary forward, got %d", len(fwd.callsFor("primary")))
	}
	if len(fwd.callsFor("secondary")) != 0 {
		t.Fatalf("expected no secondary forwards, got %d", len(fwd.callsFor("secondary")))
	}
	if len(media.events) != 0 {
		t.Fatalf("expected no media events, got %d", len(media.events))
	}
}
