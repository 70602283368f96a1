package netexp

import (
	"testing"

	"github.com/iti/evt/evtm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataRate(t *testing.T) {
	cases := map[string]float64{
		"2048bps": 2048.0,
		"1.5Mbps": 1.5e6,
		"4kbps":   4000.0,
		"1Gbps":   1e9,
		"2kB/s":   16000.0,
		"10B/s":   80.0,
		"500":     500.0,
		" 8bps ":  8.0,
	}
	for rate, want := range cases {
		got, err := ParseDataRate(rate)
		require.NoError(t, err, rate)
		assert.InDelta(t, want, got, 1e-9, rate)
	}

	for _, rate := range []string{"", "fast", "bps", "-3bps", "0kbps"} {
		_, err := ParseDataRate(rate)
		assert.Error(t, err, rate)
	}
}

func TestOnOffAppInterval(t *testing.T) {
	app := CreateOnOffApp(nil, nil, AddressForIndex(0), 9, 64, 2048.0)
	assert.InDelta(t, 0.25, app.Interval(), 1e-12)
}

// seqRecorder binds a socket that decodes each packet's header
func seqRecorder(t *testing.T, nw *Network, node *Node) *[]SeqTsHeader {
	hdrs := make([]SeqTsHeader, 0)
	_, err := nw.Bind(node, 9, func(evtMgr *evtm.EventManager, sock *Socket) {
		for pkt := sock.Recv(); pkt != nil; pkt = sock.Recv() {
			sth, err := pkt.RemoveSeqTsHeader()
			require.NoError(t, err)
			assert.Equal(t, 64-SeqTsHeaderSize, pkt.Size())
			hdrs = append(hdrs, sth)
		}
	})
	require.NoError(t, err)
	return &hdrs
}

func TestOnOffAppStopsAtStopTime(t *testing.T) {
	nw, sink, sender := pairNetwork(CSMA, CreateCsmaScheduler(6e6))
	hdrs := seqRecorder(t, nw, sink)

	app := CreateOnOffApp(nw, sender, sink.Addr, 9, 64, 2048.0)
	app.StartTime = 1.0
	app.StopTime = 2.0

	evtMgr := evtm.New()
	app.Start(evtMgr)
	evtMgr.Run(5.0)

	require.NoError(t, app.Err())
	assert.Equal(t, 4, app.Sent())
	require.Len(t, *hdrs, 4)
	for idx, sth := range *hdrs {
		assert.Equal(t, uint16(idx), sth.Seq)
		assert.Equal(t, uint32(sender.ID), sth.Sender)
		assert.InDelta(t, 1.0+0.25*float64(idx), sth.SendTs, 1e-6)
	}
}

func TestOnOffAppMaxPackets(t *testing.T) {
	nw, sink, sender := pairNetwork(CSMA, CreateCsmaScheduler(6e6))
	hdrs := seqRecorder(t, nw, sink)

	app := CreateOnOffApp(nw, sender, sink.Addr, 9, 64, 2048.0)
	app.StartTime = 1.0
	app.StopTime = 100.0
	app.MaxPackets = 3

	evtMgr := evtm.New()
	app.Start(evtMgr)
	evtMgr.Run(100.0)

	assert.Equal(t, 3, app.Sent())
	assert.Len(t, *hdrs, 3)
}

func TestOnOffAppNeverStarts(t *testing.T) {
	nw, sink, sender := pairNetwork(CSMA, CreateCsmaScheduler(6e6))
	app := CreateOnOffApp(nw, sender, sink.Addr, 9, 64, 2048.0)
	app.StartTime = 5.0
	app.StopTime = 5.0

	evtMgr := evtm.New()
	app.Start(evtMgr)
	evtMgr.Run(10.0)
	assert.Equal(t, 0, app.Sent())
}

func TestOnOffAppSendFailure(t *testing.T) {
	nw, _, sender := pairNetwork(CSMA, CreateCsmaScheduler(6e6))
	app := CreateOnOffApp(nw, sender, AddressForIndex(30), 9, 64, 2048.0)
	app.StartTime = 1.0
	app.StopTime = 3.0

	evtMgr := evtm.New()
	app.Start(evtMgr)
	evtMgr.Run(5.0)

	assert.ErrorIs(t, app.Err(), ErrNoSuchNode)
	assert.Equal(t, 0, app.Sent())
}
