package registry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ebridge/internal/adapters/memconn"
	"github.com/bft-labs/ebridge/internal/conn"
	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/pkg/framing"
	"github.com/bft-labs/ebridge/pkg/pipeline"
)

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func framed(in, out *pipeline.Pipeline) error {
	if err := in.Append(pipeline.NewSplitter(0)); err != nil {
		return err
	}
	return out.Append(pipeline.NewJoiner(0))
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() domain.ConnID {
		n++
		return domain.ConnID(fmt.Sprintf("c%d", n))
	})
}

type recorder struct {
	opened, closed []domain.ConnID
}

func (r *recorder) OnOpen(c *conn.Connection)  { r.opened = append(r.opened, c.ID()) }
func (r *recorder) OnClose(c *conn.Connection) { r.closed = append(r.closed, c.ID()) }

// accept registers n framed connections and returns the peer ends.
func accept(t *testing.T, r *Registry, n int) []*memconn.Transport {
	t.Helper()
	peers := make([]*memconn.Transport, n)
	for i := range peers {
		local, peer := memconn.Pipe("server", fmt.Sprintf("peer%d", i+1))
		_, err := r.Accept(local, now)
		require.NoError(t, err)
		peers[i] = peer
	}
	return peers
}

func drain(p *memconn.Transport) []string {
	var wire []byte
	for {
		chunk, _ := p.Recv()
		if chunk == nil {
			break
		}
		wire = append(wire, chunk...)
	}
	var out []string
	for {
		payload, n, ok := framing.Next(wire)
		if !ok {
			return out
		}
		out = append(out, string(payload))
		wire = wire[n:]
	}
}

func TestRegistry_FanInFanOut(t *testing.T) {
	r := New(framed, sequentialIDs())
	peers := accept(t, r, 3)

	_ = peers[0].Send(framing.Encode([]byte("a1"), []byte("a2")))
	_ = peers[1].Send(framing.Encode([]byte("b1")))
	_ = peers[2].Send(framing.Encode([]byte("c1"), []byte("c2")))
	assert.True(t, r.Drive(now))

	envs := r.CollectPending(-1)
	require.Len(t, envs, 5)
	got := make([]string, len(envs))
	for i, e := range envs {
		got[i] = fmt.Sprintf("%s:%s", e.ConnID, e.Block.Data)
	}
	assert.Equal(t, []string{"c1:a1", "c1:a2", "c2:b1", "c3:c1", "c3:c2"}, got)

	// route results back in a different order than collected
	rev := make([]domain.Envelope, len(envs))
	for i := range envs {
		rev[len(envs)-1-i] = envs[i]
	}
	assert.Zero(t, r.Dispatch(rev))
	r.Drive(now)

	assert.Equal(t, []string{"a2", "a1"}, drain(peers[0]))
	assert.Equal(t, []string{"b1"}, drain(peers[1]))
	assert.Equal(t, []string{"c2", "c1"}, drain(peers[2]))
}

func TestRegistry_CollectPendingLimit(t *testing.T) {
	r := New(framed, sequentialIDs())
	peers := accept(t, r, 2)
	_ = peers[0].Send(framing.Encode([]byte("x"), []byte("y")))
	_ = peers[1].Send(framing.Encode([]byte("z")))
	r.Drive(now)

	assert.Len(t, r.CollectPending(2), 2)
	rest := r.CollectPending(-1)
	require.Len(t, rest, 1)
	assert.Equal(t, domain.ConnID("c2"), rest[0].ConnID)
	assert.Empty(t, r.CollectPending(-1))
}

func TestRegistry_DispatchUnknownIsNoop(t *testing.T) {
	r := New(framed, sequentialIDs())
	accept(t, r, 1)

	dropped := r.Dispatch([]domain.Envelope{
		{ConnID: "gone", Block: domain.Block{Data: []byte("late")}},
		{ConnID: "gone", Block: domain.Block{Seq: 1, Data: []byte("later")}},
	})
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Drive(now))
}

func TestRegistry_DriveRemovesInvalid(t *testing.T) {
	rec := &recorder{}
	r := New(func(in, out *pipeline.Pipeline) error {
		in.MustAppend(pipeline.NewSplitter(8))
		out.MustAppend(pipeline.NewJoiner(8))
		return nil
	}, sequentialIDs(), WithListener(rec))
	peers := accept(t, r, 2)

	_ = peers[0].Send(make([]byte, 64))
	r.Drive(now)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []domain.ConnID{"c2"}, r.IDs())
	assert.Equal(t, []domain.ConnID{"c1", "c2"}, rec.opened)
	assert.Equal(t, []domain.ConnID{"c1"}, rec.closed)

	_, err := peers[0].Recv()
	assert.Error(t, err, "invalid connection's transport is closed")
}

func TestRegistry_Invalidate(t *testing.T) {
	r := New(framed, sequentialIDs())
	accept(t, r, 2)

	boom := fmt.Errorf("%w: decode", domain.ErrTransformFailure)
	r.Invalidate("c1", boom)
	r.Invalidate("missing", boom)

	c, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, conn.StateInvalid, c.State())
	assert.True(t, errors.Is(c.Err(), domain.ErrTransformFailure))

	r.Drive(now)
	_, ok = r.Get("c1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_AcceptFactoryError(t *testing.T) {
	r := New(func(in, out *pipeline.Pipeline) error {
		return errors.New("no codec")
	})
	local, _ := memconn.Pipe("server", "peer")

	_, err := r.Accept(local, now)
	require.Error(t, err)
	assert.True(t, local.Closed())
	assert.Zero(t, r.Len())
}

func TestRegistry_RemoveAndCloseAll(t *testing.T) {
	r := New(framed, sequentialIDs())
	peers := accept(t, r, 3)

	require.NoError(t, r.Remove("c2"))
	require.NoError(t, r.Remove("c2"))
	assert.Equal(t, []domain.ConnID{"c1", "c3"}, r.IDs())

	require.NoError(t, r.CloseAll())
	assert.Zero(t, r.Len())
	for _, p := range peers {
		_, err := p.Recv()
		assert.Error(t, err)
	}
}

func TestRegistry_UUIDs(t *testing.T) {
	r := New(framed)
	accept(t, r, 2)
	ids := r.IDs()
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Len(t, string(ids[0]), 36)
}

func TestRegistry_Stats(t *testing.T) {
	r := New(framed, sequentialIDs())
	peers := accept(t, r, 1)
	_ = peers[0].Send(framing.Encode([]byte("abcd")))
	r.Drive(now)

	stats := r.Stats(now)
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(8), stats[0].TotalIn)
	assert.Equal(t, "mem://peer1", stats[0].Remote)
}
