package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestChannel_DeliversInSubscriptionOrder(t *testing.T) {
	ch := NewChannel()
	var order []string
	ch.Subscribe(func(Notification) { order = append(order, "first") })
	ch.Subscribe(func(Notification) { order = append(order, "second") })

	Success(ch, "Saved", "")
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestChannel_StampsNotifications(t *testing.T) {
	ch := NewChannel()
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	ch.now = func() time.Time { return fixed }

	var got []Notification
	ch.Subscribe(func(n Notification) { got = append(got, n) })

	Error(ch, "Upload failed", "disk full")
	Error(ch, "Upload failed", "disk full")
	ch.Notify(Notification{Title: "Bare"})

	require.Len(t, got, 3)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID, "every notification gets its own id")
	assert.Equal(t, fixed, got[0].Timestamp)
	assert.Equal(t, SeverityError, got[0].Severity)
	assert.Equal(t, "disk full", got[0].Description)
	assert.Equal(t, SeverityInfo, got[2].Severity)
}

func TestChannel_Unsubscribe(t *testing.T) {
	ch := NewChannel()
	count := 0
	unsubscribe := ch.Subscribe(func(Notification) { count++ })

	Info(ch, "one", "")
	unsubscribe()
	unsubscribe()
	Info(ch, "two", "")
	assert.Equal(t, 1, count)
}

func TestToaster_StacksInInsertionOrder(t *testing.T) {
	ch := NewChannel()
	toaster := NewToaster(ch, time.Hour)
	defer toaster.Close()

	Success(ch, "first", "")
	Error(ch, "second", "")
	Info(ch, "third", "")

	active := toaster.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "first", active[0].Title)
	assert.Equal(t, "second", active[1].Title)
	assert.Equal(t, "third", active[2].Title)
}

func TestToaster_Dismiss(t *testing.T) {
	ch := NewChannel()
	toaster := NewToaster(ch, time.Hour)
	defer toaster.Close()

	Success(ch, "keep", "")
	Success(ch, "drop", "")
	active := toaster.Active()
	require.Len(t, active, 2)

	assert.True(t, toaster.Dismiss(active[1].ID))
	assert.False(t, toaster.Dismiss(active[1].ID))
	remaining := toaster.Active()
	require.Len(t, remaining, 1)
	assert.Equal(t, "keep", remaining[0].Title)
}

func TestToaster_Expires(t *testing.T) {
	ch := NewChannel()
	toaster := NewToaster(ch, 20*time.Millisecond)
	defer toaster.Close()

	Info(ch, "short lived", "")
	require.Len(t, toaster.Active(), 1)
	assert.Eventually(t, func() bool { return len(toaster.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestToaster_CloseDetaches(t *testing.T) {
	ch := NewChannel()
	toaster := NewToaster(ch, time.Hour)
	toaster.Close()

	Info(ch, "after close", "")
	assert.Empty(t, toaster.Active())
}

func TestToaster_Watch(t *testing.T) {
	ch := NewChannel()
	toaster := NewToaster(ch, time.Hour)
	defer toaster.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var last []Notification
	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		toaster.Watch(ctx, func(stack []Notification) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			last = stack
		})
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	}, time.Second, 5*time.Millisecond, "initial stack is delivered")

	Success(ch, "Repair sheet saved", "")
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 1 && last[0].Title == "Repair sheet saved"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSessions_Isolated(t *testing.T) {
	global := NewChannel()
	var logged []string
	global.Subscribe(func(n Notification) { logged = append(logged, n.Title) })
	sessions := NewSessions(global, time.Hour, time.Hour)
	defer sessions.Close()

	a := sessions.Get("a")
	b := sessions.Get("b")
	Error(a, "Missing information", "RO number")

	require.Len(t, a.Toaster().Active(), 1)
	assert.Empty(t, b.Toaster().Active(), "other browsers do not see the toast")
	assert.Equal(t, []string{"Missing information"}, logged, "session toasts reach the process channel")
	assert.Same(t, a, sessions.Get("a"))
}

func TestSessions_Lookup(t *testing.T) {
	sessions := NewSessions(nil, time.Hour, time.Hour)
	defer sessions.Close()

	_, ok := sessions.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, sessions.Len(), "lookup does not create")

	created := sessions.Get("known")
	found, ok := sessions.Lookup("known")
	require.True(t, ok)
	assert.Same(t, created, found)
}

func TestSessions_SweepKeepsWatched(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sessions := NewSessions(nil, time.Hour, time.Minute)
	sessions.now = func() time.Time { return now }
	defer sessions.Close()

	sessions.Get("idle")
	watched := sessions.Get("watched")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		watched.Toaster().Watch(ctx, func([]Notification) {})
	}()
	require.Eventually(t, func() bool { return watched.Toaster().Watchers() == 1 }, time.Second, 5*time.Millisecond)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, sessions.Sweep())
	_, ok := sessions.Lookup("idle")
	assert.False(t, ok)
	_, ok = sessions.Lookup("watched")
	assert.True(t, ok)

	cancel()
	<-done
}
