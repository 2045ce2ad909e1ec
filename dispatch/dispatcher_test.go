package dispatch

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/arloliu/go-devlink/wire"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, line string) *wire.Message {
	t.Helper()

	msg, err := wire.Decode(line)
	require.NoError(t, err)

	return msg
}

func TestDispatcher_Single(t *testing.T) {
	require := require.New(t)

	d := New()

	var gas1, gas2 []wire.Value
	var flame int
	require.NoError(d.Register(Single("Gas", func(v wire.Value) { gas1 = append(gas1, v) })))
	require.NoError(d.Register(Single("Gas", func(v wire.Value) { gas2 = append(gas2, v) })))
	require.NoError(d.Register(Single("Flame", func(wire.Value) { flame++ })))
	require.Equal(3, d.Len())

	d.Dispatch(decode(t, "Gas:n(420)|Flame:n(0)"))
	d.Dispatch(decode(t, "Gas:n(421)"))
	d.Dispatch(decode(t, "IUD:s(F93E13B4)"))

	require.Len(gas1, 2)
	require.Len(gas2, 2)
	require.True(gas1[0].Equal(wire.Number(420)))
	require.True(gas1[1].Equal(wire.Number(421)))
	require.Equal(1, flame)
}

func TestDispatcher_Group(t *testing.T) {
	require := require.New(t)

	d := New()

	var fired [][]wire.Value
	group := Group([]string{"right", "bottom"}, func(values []wire.Value) {
		fired = append(fired, values)
	})
	require.NoError(d.Register(group))

	d.Dispatch(decode(t, "right:n(1)"))
	require.Empty(fired)
	require.Equal(1, group.Buffer().Filled())

	d.Dispatch(decode(t, "bottom:n(2)"))
	require.Len(fired, 1)
	require.True(fired[0][0].Equal(wire.Number(1)))
	require.True(fired[0][1].Equal(wire.Number(2)))
	require.True(group.Buffer().IsEmpty())

	// reverse arrival order, values still delivered in key order
	d.Dispatch(decode(t, "bottom:n(20)|other:n(0)"))
	require.Len(fired, 1)
	d.Dispatch(decode(t, "right:n(10)"))
	require.Len(fired, 2)
	require.True(fired[1][0].Equal(wire.Number(10)))
	require.True(fired[1][1].Equal(wire.Number(20)))
	require.True(group.Buffer().IsEmpty())

	// both keys in one line fire exactly once
	d.Dispatch(decode(t, "right:n(5)|bottom:n(6)"))
	require.Len(fired, 3)

	// a repeated key overwrites the slot without firing
	d.Dispatch(decode(t, "right:n(7)"))
	d.Dispatch(decode(t, "right:n(8)"))
	require.Len(fired, 3)
	d.Dispatch(decode(t, "bottom:n(9)"))
	require.Len(fired, 4)
	require.True(fired[3][0].Equal(wire.Number(8)))

	// registering the same group again is rejected and leaves routing unchanged
	require.ErrorIs(d.Register(group), ErrInvalidRegistration)
	require.Equal(1, d.Len())

	d.Dispatch(decode(t, "right:n(1)|bottom:n(2)"))
	require.Len(fired, 5)
	require.True(group.Buffer().IsEmpty())

	d.Dispatch(decode(t, "bottom:n(3)"))
	require.Len(fired, 5)
	require.Equal(1, group.Buffer().Filled())
}

func TestDispatcher_RegisterTwice(t *testing.T) {
	require := require.New(t)

	d := New()

	hits := 0
	single := Single("temp", func(wire.Value) { hits++ })
	require.NoError(d.Register(single))
	require.ErrorIs(d.Register(single), ErrInvalidRegistration)

	// an equal but distinct registration is a new consumer
	require.NoError(d.Register(Single("temp", func(wire.Value) { hits++ })))

	d.Dispatch(decode(t, "temp:n(1)"))
	require.Equal(2, hits)
	require.Equal(2, d.Len())
}

func TestDispatcher_GroupsAreIndependent(t *testing.T) {
	require := require.New(t)

	d := New()

	var first, second int
	require.NoError(d.Register(Group([]string{"a", "b"}, func([]wire.Value) { first++ })))
	require.NoError(d.Register(Group([]string{"a", "b"}, func([]wire.Value) { second++ })))
	require.NoError(d.Register(Group([]string{"b", "c"}, func([]wire.Value) { second += 10 })))

	d.Dispatch(decode(t, "a:n(1)|b:n(2)"))
	require.Equal(1, first)
	require.Equal(1, second)

	d.Dispatch(decode(t, "c:n(3)"))
	require.Equal(11, second)
}

func TestDispatcher_RawHandler(t *testing.T) {
	require := require.New(t)

	d := New()

	var order []string
	require.NoError(d.Register(Single("Gas", func(wire.Value) { order = append(order, "Gas") })))
	d.SetRawHandler(func(msg *wire.Message) {
		order = append(order, "raw:"+strconv.Itoa(msg.Len()))
	})

	d.Dispatch(decode(t, "Gas:n(1)|Flame:n(0)"))
	require.Equal([]string{"Gas", "raw:2"}, order)

	d.SetRawHandler(nil)
	d.Dispatch(decode(t, "Flame:n(1)"))
	require.Equal([]string{"Gas", "raw:2"}, order)

	d.Dispatch(nil)
}

func TestDispatcher_Reset(t *testing.T) {
	require := require.New(t)

	d := New()

	fired := 0
	group := Group([]string{"x", "y"}, func([]wire.Value) { fired++ })
	require.NoError(d.Register(group))

	d.Dispatch(decode(t, "x:n(1)"))
	require.False(group.Buffer().IsEmpty())

	d.Reset()
	require.True(group.Buffer().IsEmpty())

	d.Dispatch(decode(t, "y:n(2)"))
	require.Equal(0, fired)
}

func TestDispatcher_InvalidRegistration(t *testing.T) {
	require := require.New(t)

	d := New()
	noop := func(wire.Value) {}
	noopGroup := func([]wire.Value) {}

	require.ErrorIs(d.Register(nil), ErrInvalidRegistration)
	require.ErrorIs(d.Register(Single("", noop)), ErrInvalidRegistration)
	require.ErrorIs(d.Register(Single("Gas", nil)), ErrInvalidRegistration)
	require.ErrorIs(d.Register(Group(nil, noopGroup)), ErrInvalidRegistration)
	require.ErrorIs(d.Register(Group([]string{"a", "a"}, noopGroup)), ErrInvalidRegistration)
	require.ErrorIs(d.Register(Group([]string{"a", ""}, noopGroup)), ErrInvalidRegistration)
	require.ErrorIs(d.Register(Group([]string{"a"}, nil)), ErrInvalidRegistration)
	require.Equal(0, d.Len())
}

func TestDispatcher_ConcurrentRegisterAndDispatch(t *testing.T) {
	require := require.New(t)

	d := New()

	var hits atomic.Int64
	require.NoError(d.Register(Single("k", func(wire.Value) { hits.Add(1) })))

	msg := decode(t, "k:n(1)|g1:n(2)|g2:n(3)")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			d.Dispatch(msg)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = d.Register(Single("k", func(wire.Value) {}))
			_ = d.Register(Group([]string{"g1", "g2"}, func([]wire.Value) {}))
		}
	}()
	wg.Wait()

	require.Equal(int64(500), hits.Load())
	require.Equal(201, d.Len())
}
