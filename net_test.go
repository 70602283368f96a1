package netexp

import (
	"testing"

	"github.com/iti/evt/evtm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddresses(t *testing.T) {
	assert.Equal(t, "10.1.0.1", AddressForIndex(0).String())
	assert.Equal(t, "10.1.0.10", AddressForIndex(9).String())
	assert.Equal(t, "10.1.1.0", AddressForIndex(255).String())
}

func TestAddNodeAndLookup(t *testing.T) {
	nw := CreateNetwork(testChannel(CSMA, FriisLoss), CreateCsmaScheduler(6e6))
	base := nw.AddNode(BaseStation, 50.0, 18.6, &ConstantPosition{Pos: BaseGridPosition(0)})
	node := nw.AddNode(SensorNode, 9.0, 14.6, &ConstantPosition{Pos: NodeGridPosition(0, 3000.0)})

	assert.Equal(t, 0, base.ID)
	assert.Equal(t, "base-0", base.Name)
	assert.Equal(t, 1, node.ID)
	assert.Equal(t, "node-1", node.Name)
	assert.Equal(t, Vector{X: 50.0, Y: 3000.0}, node.Position(12.0))

	found, err := nw.NodeByAddr(AddressForIndex(1))
	require.NoError(t, err)
	assert.Same(t, node, found)

	_, err = nw.NodeByAddr(AddressForIndex(7))
	assert.ErrorIs(t, err, ErrNoSuchNode)
}

func TestBindTwice(t *testing.T) {
	nw, sink, _ := pairNetwork(CSMA, CreateCsmaScheduler(6e6))
	sock, err := nw.Bind(sink, 9, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, sock.Port())
	assert.Same(t, sink, sock.Node())

	_, err = nw.Bind(sink, 9, nil)
	assert.ErrorIs(t, err, ErrPortInUse)

	_, err = nw.Bind(sink, 10, nil)
	assert.NoError(t, err)
}

func TestSendToUnknownAddress(t *testing.T) {
	nw, _, sender := pairNetwork(CSMA, CreateCsmaScheduler(6e6))
	called := 0
	nw.AddTxCallback(func(evtMgr *evtm.EventManager, node *Node, pkt *Packet) { called += 1 })

	err := nw.Send(evtm.New(), sender, AddressForIndex(40), 9, CreatePacket(make([]byte, 64)))
	assert.ErrorIs(t, err, ErrNoSuchNode)
	assert.Equal(t, 0, called)
	assert.Equal(t, 0, nw.Stats.Submitted)
}

func TestTxCallbackSeesUnmodifiedPacket(t *testing.T) {
	nw, sink, sender := pairNetwork(CSMA, CreateCsmaScheduler(6e6))
	sizes := make([]int, 0)
	nw.AddTxCallback(func(evtMgr *evtm.EventManager, node *Node, pkt *Packet) {
		assert.Same(t, sender, node)
		sizes = append(sizes, pkt.Size())
	})

	evtMgr := evtm.New()
	require.NoError(t, nw.Send(evtMgr, sender, sink.Addr, 9, CreatePacket(make([]byte, 64))))
	require.NoError(t, nw.Send(evtMgr, sender, sink.Addr, 9, CreatePacket(make([]byte, 100))))
	evtMgr.Run(1.0)

	assert.Equal(t, []int{64, 100}, sizes)
	// nothing bound on the sink
	assert.Equal(t, 2, nw.Stats.NoListener)
	assert.Equal(t, 0, nw.Stats.Delivered)
}

func TestOutOfRangeFramesDropped(t *testing.T) {
	nw := CreateNetwork(testChannel(TDMA, FriisLoss), CreateTdmaScheduler(3, 1e-3, 1e-4, 0.0, 6e6))
	sink := nw.AddNode(BaseStation, 50.0, 18.6, &ConstantPosition{})
	near := nw.AddNode(SensorNode, 9.0, 14.6, &ConstantPosition{Pos: Vector{X: 60.0}})
	far := nw.AddNode(SensorNode, 9.0, 14.6, &ConstantPosition{Pos: Vector{X: 600.0}})
	times := arrivalRecorder(t, nw, sink, 9)

	evtMgr := evtm.New()
	require.NoError(t, nw.Send(evtMgr, near, sink.Addr, 9, CreatePacket(make([]byte, 64))))
	require.NoError(t, nw.Send(evtMgr, far, sink.Addr, 9, CreatePacket(make([]byte, 64))))
	evtMgr.Run(1.0)

	assert.Len(t, *times, 1)
	assert.Equal(t, NetworkStats{Submitted: 2, Delivered: 1, OutOfRange: 1}, nw.Stats)
}

func TestSimultaneousArrivalsDrainedTogether(t *testing.T) {
	nw, sink, sender := pairNetwork(CSMA, CreateCsmaScheduler(6e6))
	notifications := 0
	drained := make([]*Packet, 0)
	_, err := nw.Bind(sink, 9, func(evtMgr *evtm.EventManager, sock *Socket) {
		notifications += 1
		assert.Equal(t, 2, sock.Pending())
		for pkt := sock.Recv(); pkt != nil; pkt = sock.Recv() {
			drained = append(drained, pkt)
		}
		assert.Nil(t, sock.Recv())
	})
	require.NoError(t, err)

	evtMgr := evtm.New()
	orig := CreatePacket([]byte{1, 2, 3})
	frameArrives(evtMgr, nw, &frame{src: sender, dst: sink, port: 9, pkt: orig})
	frameArrives(evtMgr, nw, &frame{src: sender, dst: sink, port: 9, pkt: CreatePacket([]byte{4})})
	evtMgr.Run(1.0)

	assert.Equal(t, 1, notifications)
	require.Len(t, drained, 2)
	from, found := drained[0].From()
	assert.True(t, found)
	assert.Equal(t, sender.Addr, from)

	// delivery hands the socket a copy
	drained[0].Bytes()[0] = 9
	assert.Equal(t, byte(1), orig.Bytes()[0])
	_, found = orig.From()
	assert.False(t, found)
}
