package netexp

import (
	"testing"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stampedPacket builds a 64 byte packet whose header claims the given send time
func stampedPacket(t *testing.T, seq uint16, sendTs float64, from Address) *Packet {
	hdr, err := CreateSeqTsHeader(seq, sendTs, 1).Marshal()
	require.NoError(t, err)
	buf := make([]byte, 64)
	copy(buf, hdr)
	pkt := CreatePacket(buf)
	pkt.SetFrom(from)
	return pkt
}

// at runs fn as an event at simulated time when
func at(evtMgr *evtm.EventManager, when float64, fn func(*evtm.EventManager)) {
	evtMgr.Schedule(nil, nil, func(em *evtm.EventManager, context any, data any) any {
		fn(em)
		return nil
	}, vrtime.SecondsToTime(when))
}

func TestTxHookLatchesFirstTransmission(t *testing.T) {
	logger, _ := test.NewNullLogger()
	inst := CreateInstrumentation(CreateFlowCounters(), logger)
	node := &Node{ID: 1}

	evtMgr := evtm.New()
	at(evtMgr, 1.25, func(em *evtm.EventManager) { inst.TxHook(em, node, CreatePacket(make([]byte, 64))) })
	at(evtMgr, 2.0, func(em *evtm.EventManager) { inst.TxHook(em, node, CreatePacket(make([]byte, 64))) })
	evtMgr.Run(3.0)

	fc := inst.Counters()
	assert.Equal(t, uint64(2), fc.TxPackets())
	assert.Equal(t, uint64(128), fc.TxBytes())
	first, set := fc.FirstTxTime()
	assert.True(t, set)
	assert.InDelta(t, 1.25, first, 1e-9)
}

func TestRxHookDrainsSocket(t *testing.T) {
	logger, hook := test.NewNullLogger()
	inst := CreateInstrumentation(CreateFlowCounters(), logger)
	inst.KeepDelays = true
	sock := &Socket{node: &Node{ID: 0}, port: 9}
	sock.queue = []*Packet{stampedPacket(t, 0, 0.25, AddressForIndex(1)), stampedPacket(t, 1, 0.375, AddressForIndex(2))}

	evtMgr := evtm.New()
	at(evtMgr, 0.5, func(em *evtm.EventManager) { inst.RxHook(em, sock) })
	evtMgr.Run(1.0)

	fc := inst.Counters()
	assert.Equal(t, 0, sock.Pending())
	assert.Equal(t, uint64(2), fc.RxPackets())
	// sizes are measured with the header attached
	assert.Equal(t, uint64(128), fc.RxBytes())
	assert.InDelta(t, 0.375, fc.DelaySum(), 1e-5)
	last, set := fc.LastRxTime()
	assert.True(t, set)
	assert.InDelta(t, 0.5, last, 1e-9)
	require.Len(t, inst.Delays(), 2)
	assert.InDelta(t, 0.25, inst.Delays()[0], 1e-5)

	// quiet unless verbose
	assert.Empty(t, hook.AllEntries())
	assert.NoError(t, inst.Err())
}

func TestRxHookVerboseLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	inst := CreateInstrumentation(CreateFlowCounters(), logger)
	inst.Verbose = true
	inst.Protocol = "AODV"

	anonymous := stampedPacket(t, 1, 0.25, 0)
	anonymous.fromSet = false
	sock := &Socket{node: &Node{ID: 0}, port: 9}
	sock.queue = []*Packet{stampedPacket(t, 0, 0.25, AddressForIndex(1)), anonymous}

	evtMgr := evtm.New()
	at(evtMgr, 0.5, func(em *evtm.EventManager) { inst.RxHook(em, sock) })
	evtMgr.Run(1.0)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, "AODV 0.5 0 received one packet from 10.1.0.2", entries[0].Message)
	assert.Equal(t, "10.1.0.2", entries[0].Data["from"])
	assert.Equal(t, "AODV 0.5 0 received one packet!", entries[1].Message)
}

func TestRxHookMalformedHeader(t *testing.T) {
	logger, _ := test.NewNullLogger()
	inst := CreateInstrumentation(CreateFlowCounters(), logger)
	sock := &Socket{node: &Node{ID: 0}, port: 9}
	sock.queue = []*Packet{CreatePacket([]byte{1, 2, 3}), stampedPacket(t, 0, 0.25, AddressForIndex(1))}

	evtMgr := evtm.New()
	at(evtMgr, 0.5, func(em *evtm.EventManager) { inst.RxHook(em, sock) })
	evtMgr.Run(1.0)

	assert.ErrorIs(t, inst.Err(), ErrMalformedHeader)
	// the good packet behind the bad one is still counted
	assert.Equal(t, uint64(1), inst.Counters().RxPackets())
	assert.Equal(t, 0, sock.Pending())
}
