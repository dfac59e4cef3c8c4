package midiclock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	gomidi "gitlab.com/gomidi/midi/v2"
)

const (
	statusClock = byte(0xf8)
	statusStart = byte(0xfa)
	statusStop  = byte(0xfc)
)

// fakeConn records the status byte of every send attempt.
type fakeConn struct {
	mu        sync.Mutex
	sent      []byte
	failClock bool
	closed    bool
}

func (f *fakeConn) Send(msg gomidi.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := byte(0)
	if len(msg) > 0 {
		status = msg[0]
	}

	f.sent = append(f.sent, status)

	if f.failClock && status == statusClock {
		return errors.New("port gone")
	}

	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

func (f *fakeConn) statuses() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]byte(nil), f.sent...)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

func (f *fakeConn) setFailClock(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failClock = fail
}

func (f *fakeConn) count(status byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, s := range f.sent {
		if s == status {
			n++
		}
	}

	return n
}

func newTestClock(conn Conn, bpm float64) *Clock {
	return newWithConn(conn, "fake port", bpm, zap.NewNop().Sugar())
}

func TestClampBPM(t *testing.T) {
	testCases := map[string]struct {
		bpm  float64
		want float64
	}{
		"below-minimum": {bpm: 10, want: MinBPM},
		"at-minimum":    {bpm: 30, want: 30},
		"nominal":       {bpm: 120, want: 120},
		"at-maximum":    {bpm: 300, want: 300},
		"above-maximum": {bpm: 1000, want: MaxBPM},
		"negative":      {bpm: -5, want: MinBPM},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			assert.Equal(t, testCase.want, clampBPM(testCase.bpm))
		})
	}
}

func TestIntervalFor(t *testing.T) {
	// 24 pulses per beat
	assert.Equal(t, time.Duration(20833333), intervalFor(120))
	assert.Equal(t, time.Duration(83333333), intervalFor(30))
	assert.Equal(t, time.Duration(8333333), intervalFor(300))
}

func TestSchedule_AdvanceIsAnchored(t *testing.T) {
	base := time.Unix(1000, 0)

	sched := newSchedule(120)
	sched.rebase(base)

	assert.False(t, sched.due(base))
	assert.True(t, sched.due(base.Add(sched.interval)))

	// late wakeups advance from the previous deadline, not from "now"
	for i := 0; i < 3; i++ {
		sched.advance()
	}

	assert.Equal(t, base.Add(4*sched.interval), sched.next)
}

func TestSchedule_SetRateKeepsDeadline(t *testing.T) {
	base := time.Unix(1000, 0)

	sched := newSchedule(120)
	sched.rebase(base)
	next := sched.next

	sched.setRate(60)

	assert.Equal(t, intervalFor(60), sched.interval)
	assert.Equal(t, next, sched.next)
}

func TestClock_StartThenImmediateStop(t *testing.T) {
	conn := &fakeConn{}

	// the slowest tempo leaves the widest gap before the first pulse
	clock := newTestClock(conn, MinBPM)
	clock.Start()
	clock.Stop()
	assert.NoError(t, clock.Close())

	assert.Equal(t, []byte{statusStart, statusStop}, conn.statuses())
	assert.True(t, conn.isClosed())
}

func TestClock_EmitsPulsesWhileRunning(t *testing.T) {
	conn := &fakeConn{}

	clock := newTestClock(conn, MaxBPM)
	clock.Start()

	// at 300 BPM a pulse lands every 8.3ms
	assert.Eventually(t, func() bool {
		return conn.count(statusClock) >= 3
	}, time.Second, time.Millisecond)

	assert.NoError(t, clock.Close())

	statuses := conn.statuses()
	assert.Equal(t, statusStart, statuses[0])
	assert.Equal(t, statusStop, statuses[len(statuses)-1])
}

func TestClock_CloseWhileRunningSendsFinalStop(t *testing.T) {
	conn := &fakeConn{}

	clock := newTestClock(conn, MinBPM)
	clock.Start()
	assert.NoError(t, clock.Close())

	assert.Equal(t, []byte{statusStart, statusStop}, conn.statuses())
}

func TestClock_IdleCloseSendsNothing(t *testing.T) {
	conn := &fakeConn{}

	clock := newTestClock(conn, 120)
	assert.NoError(t, clock.Close())

	assert.Empty(t, conn.statuses())
	assert.True(t, conn.isClosed())
}

func TestClock_PulseFailurePausesUntilRestarted(t *testing.T) {
	conn := &fakeConn{failClock: true}

	clock := newTestClock(conn, MaxBPM)
	clock.Start()

	// one failed pulse drops the clock back to idle, no retry storm
	assert.Eventually(t, func() bool {
		return conn.count(statusClock) == 1
	}, time.Second, time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, conn.count(statusClock))

	// a fresh start picks the pulse train back up
	conn.setFailClock(false)
	clock.Start()

	assert.Eventually(t, func() bool {
		return conn.count(statusClock) > 1
	}, time.Second, time.Millisecond)

	assert.NoError(t, clock.Close())
}

func TestClock_ClosedCommandChannelStopsSilently(t *testing.T) {
	conn := &fakeConn{}

	clock := newTestClock(conn, MinBPM)
	clock.Start()

	assert.Eventually(t, func() bool {
		return conn.count(statusStart) == 1
	}, time.Second, time.Millisecond)

	// owner disappearing without a shutdown command still releases the port,
	// but no stop marker goes out
	close(clock.cmds)
	<-clock.done

	assert.Zero(t, conn.count(statusStop))
	assert.True(t, conn.isClosed())
}

func TestClock_CommandsAfterCloseAreDropped(t *testing.T) {
	conn := &fakeConn{}

	clock := newTestClock(conn, 120)
	assert.NoError(t, clock.Close())

	clock.Start()
	clock.SetBPM(200)
	clock.Stop()

	assert.Empty(t, conn.statuses())
}
