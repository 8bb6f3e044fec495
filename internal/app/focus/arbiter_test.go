package focus

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingAuthority records calls made by the arbiter.
type countingAuthority struct {
	mu       sync.Mutex
	grant    bool
	requests int
	abandons int
	holder   Holder
}

func (a *countingAuthority) Request(h Holder) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests++
	if a.grant {
		a.holder = h
	}
	return a.grant
}

func (a *countingAuthority) Abandon(h Holder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abandons++
	a.holder = nil
}

func (a *countingAuthority) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests, a.abandons
}

func receive(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for focus change")
		return StateNone
	}
}

func TestArbiter_RequestIsIdempotent(t *testing.T) {
	auth := &countingAuthority{grant: true}
	a := NewArbiter(auth)
	defer a.Close()

	assert.True(t, a.Request())
	assert.True(t, a.Request())
	assert.True(t, a.Request())

	requests, _ := auth.counts()
	assert.Equal(t, 1, requests, "only one outstanding request reaches the authority")
	assert.Equal(t, StateGained, a.State())
	assert.True(t, a.Held())
}

func TestArbiter_Denied(t *testing.T) {
	auth := &countingAuthority{grant: false}
	a := NewArbiter(auth)
	defer a.Close()

	assert.False(t, a.Request())
	assert.False(t, a.Held())
	assert.Equal(t, StateNone, a.State())

	// A denied request is not outstanding, so the next one asks again.
	assert.False(t, a.Request())
	requests, _ := auth.counts()
	assert.Equal(t, 2, requests)
}

func TestArbiter_ReleaseIsIdempotent(t *testing.T) {
	auth := &countingAuthority{grant: true}
	a := NewArbiter(auth)
	defer a.Close()

	require.True(t, a.Request())
	a.Release()
	a.Release()

	_, abandons := auth.counts()
	assert.Equal(t, 1, abandons)
	assert.False(t, a.Held())

	require.True(t, a.Request())
	requests, _ := auth.counts()
	assert.Equal(t, 2, requests, "request after release asks the authority again")
}

func TestArbiter_ChangesAreOrdered(t *testing.T) {
	auth := NewSignalAuthority(false)
	a := NewArbiter(auth)
	defer a.Close()

	require.True(t, a.Request())

	sequence := []State{StateLostTransient, StateGained, StateLostTransientDuck, StateGained, StateLostPermanent}
	for _, s := range sequence {
		require.NoError(t, auth.Notify(s))
	}

	for _, want := range sequence {
		assert.Equal(t, want, receive(t, a.Changes()))
	}
	assert.False(t, a.Held(), "permanent loss clears the outstanding request")
	assert.Equal(t, StateLostPermanent, a.State())
}

func TestArbiter_RequestReportsCurrentGrant(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{name: "gained", state: StateGained, want: true},
		{name: "ducked", state: StateLostTransientDuck, want: true},
		{name: "transient loss", state: StateLostTransient, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &countingAuthority{grant: true}
			a := NewArbiter(auth)
			defer a.Close()

			require.True(t, a.Request())
			a.FocusChanged(tt.state)
			assert.Equal(t, tt.want, a.Request())
			assert.True(t, a.Held(), "the request stays outstanding")

			requests, _ := auth.counts()
			assert.Equal(t, 1, requests)
		})
	}
}

func TestArbiter_IgnoresChangesWithoutRequest(t *testing.T) {
	a := NewArbiter(&countingAuthority{grant: true})
	defer a.Close()

	a.FocusChanged(StateLostTransient)

	select {
	case s := <-a.Changes():
		t.Fatalf("unexpected change %s", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestArbiter_CloseReleasesAndClosesChanges(t *testing.T) {
	auth := &countingAuthority{grant: true}
	a := NewArbiter(auth)
	require.True(t, a.Request())

	a.Close()
	a.Close()

	_, abandons := auth.counts()
	assert.Equal(t, 1, abandons)
	_, ok := <-a.Changes()
	assert.False(t, ok)
	assert.False(t, a.Request(), "closed arbiter never grants")
}

func TestSignalAuthority(t *testing.T) {
	auth := NewSignalAuthority(false)
	assert.True(t, errors.Is(auth.Notify(StateGained), ErrNoHolder))

	a := NewArbiter(auth)
	defer a.Close()
	require.True(t, a.Request())
	require.NoError(t, auth.Notify(StateLostPermanent))
	assert.True(t, errors.Is(auth.Notify(StateGained), ErrNoHolder), "permanent loss detaches the holder")

	auth.SetDeny(true)
	assert.False(t, a.Request())
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in      string
		want    State
		wantErr bool
	}{
		{in: "gain", want: StateGained},
		{in: "LOSS", want: StateLostPermanent},
		{in: "loss_transient", want: StateLostTransient},
		{in: " duck ", want: StateLostTransientDuck},
		{in: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseState(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
