package marketmaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
)

type fakeEngine struct {
	quiescent bool
	nextID    uint64
	submitted []OrderSpec
	pulled    []uint64
	failWith  error
}

func (f *fakeEngine) SubmitFor(handle Handle, spec OrderSpec) (uint64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	f.nextID++
	f.submitted = append(f.submitted, spec)
	return f.nextID, nil
}

func (f *fakeEngine) PullFor(id uint64) bool {
	f.pulled = append(f.pulled, id)
	return true
}

func (f *fakeEngine) Quiescent() bool { return f.quiescent }

type recordingParticipant struct {
	started  bool
	messages []book.Message
	api      LimitInserter
}

func (p *recordingParticipant) Start(api LimitInserter, impliedPrice, tickSize float64) {
	p.started = true
	p.api = api
}

func (p *recordingParticipant) OnMessage(msg book.Message, orderID uint64, price float64, size int64) {
	p.messages = append(p.messages, msg)
}

func TestAttachRequiresQuiescence(t *testing.T) {
	eng := &fakeEngine{quiescent: false}
	h := NewHost(eng, 0, 0, zeroLogger())

	_, err := h.Attach(&recordingParticipant{}, 100, 0.01)
	assert.ErrorIs(t, err, ErrNotQuiescent)
}

func TestAttachStartsParticipant(t *testing.T) {
	eng := &fakeEngine{quiescent: true}
	h := NewHost(eng, 0, 0, zeroLogger())

	p := &recordingParticipant{}
	handle, err := h.Attach(p, 100, 0.01)
	require.NoError(t, err)
	assert.True(t, p.started)
	assert.NotEqual(t, Handle{}, handle)
}

func TestDeliverTracksDepthAndRecovers(t *testing.T) {
	eng := &fakeEngine{quiescent: true}
	h := NewHost(eng, 5, 50, zeroLogger())

	p := &recordingParticipant{}
	handle, err := h.Attach(p, 100, 0.01)
	require.NoError(t, err)

	h.Deliver(handle, book.MsgFill, 1, 100, 10)
	assert.Equal(t, []book.Message{book.MsgFill}, p.messages)
	assert.Equal(t, 0, h.participants[handle].depth, "depth unwinds once the callback returns")
}

func TestSubmitOverflowsPastSoftLimitAndResets(t *testing.T) {
	eng := &fakeEngine{quiescent: true}
	h := NewHost(eng, 2, 50, zeroLogger())

	p := &recordingParticipant{}
	handle, err := h.Attach(p, 100, 0.01)
	require.NoError(t, err)

	e := h.participants[handle]
	e.depth = 3 // simulate a submit chain already past the soft limit

	_, err = p.api.SubmitLimit(book.Buy, 99, 1)
	assert.ErrorIs(t, err, ErrCallbackOverflow)
	assert.Equal(t, 0, e.depth, "depth resets so the participant can recover")
}

func TestDetachCancelsOutstandingOrders(t *testing.T) {
	eng := &fakeEngine{quiescent: true}
	h := NewHost(eng, 5, 50, zeroLogger())

	p := &recordingParticipant{}
	handle, err := h.Attach(p, 100, 0.01)
	require.NoError(t, err)

	id, err := p.api.SubmitLimit(book.Buy, 99, 1)
	require.NoError(t, err)

	require.NoError(t, h.Detach(handle))
	assert.Equal(t, []uint64{id}, eng.pulled, "detach pulls the participant's outstanding order")
	_, err = h.Attach(p, 100, 0.01)
	assert.NoError(t, err, "the same participant may be attached again after detach")
}
