package ble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arloliu/go-devlink/transport"
	goble "github.com/go-ble/ble"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	profile     *goble.Profile
	discoverErr error
	value       []byte
	readErr     error

	written   [][]byte
	noRsp     []bool
	writeChar *goble.Characteristic
	readChar  *goble.Characteristic
	cancelled int
}

func (c *fakeClient) DiscoverProfile(bool) (*goble.Profile, error) {
	return c.profile, c.discoverErr
}

func (c *fakeClient) ReadCharacteristic(ch *goble.Characteristic) ([]byte, error) {
	c.readChar = ch
	return c.value, c.readErr
}

func (c *fakeClient) WriteCharacteristic(ch *goble.Characteristic, value []byte, noRsp bool) error {
	c.writeChar = ch
	c.written = append(c.written, value)
	c.noRsp = append(c.noRsp, noRsp)

	return nil
}

func (c *fakeClient) CancelConnection() error {
	c.cancelled++
	return nil
}

func newChar(uuid string, prop goble.Property) *goble.Characteristic {
	return &goble.Characteristic{UUID: goble.MustParse(uuid), Property: prop}
}

func withFakeClient(t *testing.T, c *fakeClient) *string {
	t.Helper()

	var dialed string
	orig := dial
	dial = func(_ context.Context, address string) (gattClient, error) {
		dialed = address
		return c, nil
	}
	t.Cleanup(func() { dial = orig })

	return &dialed
}

func TestOpen(t *testing.T) {
	t.Run("missing address", func(t *testing.T) {
		tr, err := New("")
		require.NoError(t, err)
		require.ErrorIs(t, tr.Open(context.Background()), ErrMissingAddress)
	})

	t.Run("selects first writable characteristic", func(t *testing.T) {
		require := require.New(t)

		notify := newChar("2a37", goble.CharNotify|goble.CharRead)
		data := newChar("ffe1", goble.CharRead|goble.CharWriteNR)
		other := newChar("ffe2", goble.CharWrite)
		client := &fakeClient{profile: &goble.Profile{Services: []*goble.Service{
			{UUID: goble.MustParse("180d"), Characteristics: []*goble.Characteristic{notify}},
			{UUID: goble.MustParse("ffe0"), Characteristics: []*goble.Characteristic{data, other}},
		}}}
		dialed := withFakeClient(t, client)

		tr, err := New("AA:BB:CC:DD:EE:FF")
		require.NoError(err)
		require.NoError(tr.Open(context.Background()))
		require.Equal("AA:BB:CC:DD:EE:FF", *dialed)
		require.Equal("ble:AA:BB:CC:DD:EE:FF", tr.String())

		require.NoError(tr.Write(context.Background(), []byte("led:n(1)")))
		require.Same(data, client.writeChar)
		require.Equal([]bool{true}, client.noRsp)
	})

	t.Run("write with response when supported", func(t *testing.T) {
		require := require.New(t)

		data := newChar("ffe1", goble.CharWrite|goble.CharWriteNR)
		client := &fakeClient{profile: &goble.Profile{Services: []*goble.Service{
			{Characteristics: []*goble.Characteristic{data}},
		}}}
		withFakeClient(t, client)

		tr, err := New("AA:BB")
		require.NoError(err)
		require.NoError(tr.Open(context.Background()))
		require.NoError(tr.Write(context.Background(), []byte("x")))
		require.Equal([]bool{false}, client.noRsp)
	})

	t.Run("no writable characteristic", func(t *testing.T) {
		require := require.New(t)

		client := &fakeClient{profile: &goble.Profile{Services: []*goble.Service{
			{Characteristics: []*goble.Characteristic{newChar("2a19", goble.CharRead)}},
		}}}
		withFakeClient(t, client)

		tr, err := New("AA:BB")
		require.NoError(err)

		err = tr.Open(context.Background())
		require.ErrorIs(err, ErrNoWritableCharacteristic)

		var opErr *transport.OpError
		require.ErrorAs(err, &opErr)
		require.Equal("discover", opErr.Op)
		require.Equal(1, client.cancelled)
	})

	t.Run("discovery failure releases link", func(t *testing.T) {
		require := require.New(t)

		client := &fakeClient{discoverErr: errors.New("att timeout")}
		withFakeClient(t, client)

		tr, err := New("AA:BB")
		require.NoError(err)
		require.ErrorContains(tr.Open(context.Background()), "ble:AA:BB discover: att timeout")
		require.Equal(1, client.cancelled)
	})

	t.Run("dial failure", func(t *testing.T) {
		orig := dial
		dial = func(context.Context, string) (gattClient, error) { return nil, context.DeadlineExceeded }
		defer func() { dial = orig }()

		tr, err := New("AA:BB", WithConnectTimeout(time.Second))
		require.NoError(t, err)
		require.ErrorIs(t, tr.Open(context.Background()), context.DeadlineExceeded)
	})
}

func TestReadLine(t *testing.T) {
	require := require.New(t)

	data := newChar("ffe1", goble.CharRead|goble.CharWrite)
	client := &fakeClient{profile: &goble.Profile{Services: []*goble.Service{
		{Characteristics: []*goble.Characteristic{data}},
	}}}
	withFakeClient(t, client)

	tr, err := New("AA:BB")
	require.NoError(err)

	_, err = tr.ReadLine(context.Background())
	require.ErrorIs(err, ErrNotOpen)

	require.NoError(tr.Open(context.Background()))

	client.value = []byte("temp:n(20)|")
	line, err := tr.ReadLine(context.Background())
	require.NoError(err)
	require.Equal("temp:n(20)|", string(line))
	require.Same(data, client.readChar)

	client.value = []byte(" \r\n")
	line, err = tr.ReadLine(context.Background())
	require.NoError(err)
	require.Nil(line)

	client.readErr = errors.New("link lost")
	_, err = tr.ReadLine(context.Background())
	require.ErrorContains(err, "ble:AA:BB read: link lost")

	require.NoError(tr.Close())
	require.NoError(tr.Close())
	require.Equal(1, client.cancelled)
}

func TestOptions(t *testing.T) {
	require := require.New(t)

	_, err := New("AA", WithConnectTimeout(time.Millisecond))
	require.Error(err)
	_, err = New("AA", WithConnectTimeout(time.Hour))
	require.Error(err)
	_, err = New("AA", WithLogger(nil))
	require.Error(err)
}

type fakeAdv struct {
	addr string
	name string
}

func (a fakeAdv) LocalName() string { return a.name }
func (a fakeAdv) Addr() goble.Addr  { return goble.NewAddr(a.addr) }

func TestScan(t *testing.T) {
	orig := scanFunc
	t.Cleanup(func() { scanFunc = orig })

	t.Run("collects unique peripherals", func(t *testing.T) {
		require := require.New(t)

		scanFunc = func(ctx context.Context, handle func(advertisement)) error {
			handle(fakeAdv{addr: "bb:00", name: "thermo"})
			handle(fakeAdv{addr: "aa:00", name: ""})
			handle(fakeAdv{addr: "aa:00", name: "logger"})
			handle(fakeAdv{addr: "bb:00", name: ""})
			<-ctx.Done()

			return ctx.Err()
		}

		found, err := Scan(context.Background(), 20*time.Millisecond)
		require.NoError(err)
		require.Equal([]Peripheral{
			{Address: "aa:00", Name: "logger"},
			{Address: "bb:00", Name: "thermo"},
		}, found)
	})

	t.Run("scan error", func(t *testing.T) {
		scanFunc = func(context.Context, func(advertisement)) error { return ErrUnsupportedPlatform }

		_, err := Scan(context.Background(), 10*time.Millisecond)
		require.ErrorIs(t, err, ErrUnsupportedPlatform)
	})

	t.Run("cancelled by caller", func(t *testing.T) {
		scanFunc = func(ctx context.Context, _ func(advertisement)) error {
			<-ctx.Done()
			return ctx.Err()
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Scan(ctx, time.Second)
		require.ErrorIs(t, err, context.Canceled)
	})
}
