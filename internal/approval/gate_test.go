package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kapitalops/intakebot/internal/channel"
	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/internal/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRoles struct {
	admins []int64
}

func (f *fakeRoles) IsAdmin(_ context.Context, actorID int64) (bool, error) {
	for _, id := range f.admins {
		if id == actorID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoles) List(_ context.Context) ([]*domain.Admin, error) {
	out := make([]*domain.Admin, 0, len(f.admins))
	for _, id := range f.admins {
		out = append(out, &domain.Admin{ActorID: id})
	}
	return out, nil
}

type fakeMessenger struct {
	mu     sync.Mutex
	sent   map[int64]int
	failTo map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{sent: make(map[int64]int), failTo: make(map[int64]bool)}
}

func (f *fakeMessenger) SendText(_ context.Context, actorID int64, _ string, _ *channel.Keyboard) (channel.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[actorID] {
		return "", errors.New("channel blocked")
	}
	f.sent[actorID]++
	return "msg-1", nil
}

func (f *fakeMessenger) EditMessage(context.Context, channel.MessageRef, string, *channel.Keyboard) error {
	return nil
}

func (f *fakeMessenger) EditKeyboard(context.Context, channel.MessageRef, *channel.Keyboard) error {
	return nil
}

func newTestGate(roles *fakeRoles, msg channel.Messenger) *Gate {
	return NewGate(roles, msg, time.Hour, zap.NewNop())
}

func TestOpenFansOutToAllAdmins(t *testing.T) {
	roles := &fakeRoles{admins: []int64{1, 2, 3}}
	msg := newFakeMessenger()
	gate := newTestGate(roles, msg)

	key, err := gate.Open(context.Background(), &Request{Kind: KindOnboarding, RequesterID: 77}, "new actor")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, 1, gate.PendingCount())
	for _, id := range roles.admins {
		assert.Equal(t, 1, msg.sent[id], "admin %d", id)
	}
}

func TestOpenToleratesOneBlockedAdmin(t *testing.T) {
	roles := &fakeRoles{admins: []int64{1, 2}}
	msg := newFakeMessenger()
	msg.failTo[1] = true
	gate := newTestGate(roles, msg)

	_, err := gate.Open(context.Background(), &Request{Kind: KindOnboarding, RequesterID: 77}, "new actor")
	require.NoError(t, err)
	assert.Equal(t, 1, msg.sent[2])
}

func TestOpenWithNoReachableAdmin(t *testing.T) {
	roles := &fakeRoles{admins: []int64{1}}
	msg := newFakeMessenger()
	msg.failTo[1] = true
	gate := newTestGate(roles, msg)

	key, err := gate.Open(context.Background(), &Request{Kind: KindTransaction, RequesterID: 77}, "big spend")
	assert.ErrorIs(t, err, domain.ErrNoReachableAdmin)
	// The request stays pending for manual follow-up.
	assert.NotEmpty(t, key)
	assert.Equal(t, 1, gate.PendingCount())
}

func TestResolveExactlyOnce(t *testing.T) {
	roles := &fakeRoles{admins: []int64{1, 2}}
	gate := newTestGate(roles, newFakeMessenger())

	key, err := gate.Open(context.Background(), &Request{Kind: KindTransaction, RequesterID: 77}, "big spend")
	require.NoError(t, err)

	// Two admins race with opposite decisions.
	var wg sync.WaitGroup
	outcomes := make([]*Outcome, 2)
	errs := make([]error, 2)
	decisions := []bool{true, false}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = gate.Resolve(context.Background(), key, decisions[i], int64(i+1))
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	resolved := 0
	for i, out := range outcomes {
		if out.Status == Resolved {
			resolved++
			// The winning outcome carries whichever decision actually won.
			assert.Equal(t, decisions[i], out.Accepted)
			assert.Equal(t, int64(77), out.Request.RequesterID)
		} else {
			assert.Equal(t, AlreadyResolved, out.Status)
		}
	}
	assert.Equal(t, 1, resolved, "exactly one resolver must win")
	assert.Equal(t, 0, gate.PendingCount())
}

// slowSecondMessenger hands the first card's token to the test immediately
// and stalls every later send, so a decision can land mid fan-out.
type slowSecondMessenger struct {
	mu    sync.Mutex
	seq   int
	first chan string
}

func (f *slowSecondMessenger) SendText(_ context.Context, actorID int64, _ string, kb *channel.Keyboard) (channel.MessageRef, error) {
	f.mu.Lock()
	f.seq++
	n := f.seq
	f.mu.Unlock()
	if n == 1 {
		f.first <- kb.Rows[0][0].Token
	} else {
		time.Sleep(50 * time.Millisecond)
	}
	return channel.MessageRef(fmt.Sprintf("msg-%d", actorID)), nil
}

func (f *slowSecondMessenger) EditMessage(context.Context, channel.MessageRef, string, *channel.Keyboard) error {
	return nil
}

func (f *slowSecondMessenger) EditKeyboard(context.Context, channel.MessageRef, *channel.Keyboard) error {
	return nil
}

func TestResolveDuringFanOut(t *testing.T) {
	roles := &fakeRoles{admins: []int64{1, 2}}
	msg := &slowSecondMessenger{first: make(chan string, 1)}
	gate := newTestGate(roles, msg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := gate.Open(context.Background(), &Request{Kind: KindTransaction, RequesterID: 77}, "big spend")
		assert.NoError(t, err)
	}()

	// The first admin decides while the second admin's card is still in
	// flight; the fan-out bookkeeping must stay consistent.
	it, err := intent.Decode(<-msg.first)
	require.NoError(t, err)
	out, err := gate.Resolve(context.Background(), it.ApprovalKey, true, 1)
	require.NoError(t, err)
	assert.Equal(t, Resolved, out.Status)

	<-done
	assert.Equal(t, 0, gate.PendingCount())
}

func TestResolveUnknownKeyIsNoOp(t *testing.T) {
	gate := newTestGate(&fakeRoles{admins: []int64{1}}, newFakeMessenger())

	out, err := gate.Resolve(context.Background(), "no-such-key", true, 1)
	require.NoError(t, err)
	assert.Equal(t, AlreadyResolved, out.Status)
}

func TestResolveRequiresCurrentAdmin(t *testing.T) {
	roles := &fakeRoles{admins: []int64{1}}
	gate := newTestGate(roles, newFakeMessenger())

	key, err := gate.Open(context.Background(), &Request{Kind: KindOnboarding, RequesterID: 77}, "x")
	require.NoError(t, err)

	_, err = gate.Resolve(context.Background(), key, true, 99)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	// The request is still open for a real admin.
	assert.Equal(t, 1, gate.PendingCount())

	// Membership is live: revoking admin 1 now blocks its decision too.
	roles.admins = nil
	_, err = gate.Resolve(context.Background(), key, true, 1)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestExpiryFailsClosed(t *testing.T) {
	roles := &fakeRoles{admins: []int64{1}}
	gate := newTestGate(roles, newFakeMessenger())
	now := time.Now()
	gate.SetClock(func() time.Time { return now })

	key, err := gate.Open(context.Background(), &Request{Kind: KindTransaction, RequesterID: 77}, "x")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	out, err := gate.Resolve(context.Background(), key, true, 1)
	require.NoError(t, err)
	assert.Equal(t, AlreadyResolved, out.Status, "expired approval must not resolve")
	assert.Equal(t, 0, gate.PendingCount())
}

func TestSweepExpired(t *testing.T) {
	roles := &fakeRoles{admins: []int64{1}}
	gate := newTestGate(roles, newFakeMessenger())
	now := time.Now()
	gate.SetClock(func() time.Time { return now })

	_, err := gate.Open(context.Background(), &Request{Kind: KindOnboarding, RequesterID: 1}, "a")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = gate.Open(context.Background(), &Request{Kind: KindOnboarding, RequesterID: 2}, "b")
	require.NoError(t, err)

	// Opening already swept the first request.
	assert.Equal(t, 1, gate.PendingCount())
	assert.Equal(t, 0, gate.SweepExpired())
}
