package netexp

// net.go holds the structs and methods that carry instrumented packets from a
// sending node to a socket bound on a receiving node.  A frame handed to
// Network.Send passes through the transmit callbacks, then the medium access
// scheduler, then the channel (which decides whether it is heard at all), and
// finally lands in the receive queue of the destination socket.

import (
	"errors"
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
	"math"
)

// ErrPortInUse is returned when a second socket is bound to a node's port
var ErrPortInUse = errors.New("port already bound")

// ErrNoSuchNode is returned when an address does not resolve to a node
var ErrNoSuchNode = errors.New("no node with address")

// Vector is a position (meters) or velocity (meters/sec) in the plane
type Vector struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the euclidean distance between two positions
func Distance(a, b Vector) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Address is an IPv4 address, held in host order
type Address uint32

// baseAddress is 10.1.0.0, the network the nodes are numbered in
const baseAddress Address = 10<<24 | 1<<16

// AddressForIndex gives the address assigned to the idx-th node created,
// 10.1.0.1 for the first
func AddressForIndex(idx int) Address {
	return baseAddress + Address(idx+1)
}

func (addr Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

// NodeRole distinguishes base stations from the mobile sensor nodes
type NodeRole int

const (
	BaseStation NodeRole = iota
	SensorNode
)

func (role NodeRole) String() string {
	if role == BaseStation {
		return "base"
	}
	return "node"
}

// Node is a host that can bind sockets and originate packets
type Node struct {
	ID            int     // unique, equal to the order of creation
	Name          string  // unique name
	Role          NodeRole
	Addr          Address
	AntennaHeight float64 // meters
	AntennaGain   float64 // dB, applied on transmit
	Mobility      MobilityModel
	Rngstrm       *rngstream.RngStream // every node has its own RNG stream

	sockets map[int]*Socket
}

// Position returns where the node is at simulated time now
func (node *Node) Position(now float64) Vector {
	if node.Mobility == nil {
		return Vector{}
	}
	return node.Mobility.Position(now)
}

// Packet is the unit the transport moves.  The byte slice holds whatever
// headers have been added in front of the payload
type Packet struct {
	buf     []byte
	from    Address
	fromSet bool
}

// CreatePacket is a constructor, the packet takes ownership of buf
func CreatePacket(buf []byte) *Packet {
	pkt := new(Packet)
	pkt.buf = buf
	return pkt
}

// Size is the number of bytes currently in the packet, headers included
func (pkt *Packet) Size() int {
	return len(pkt.buf)
}

func (pkt *Packet) Bytes() []byte {
	return pkt.buf
}

// Copy makes an independent duplicate, used when a frame is delivered
func (pkt *Packet) Copy() *Packet {
	cpy := new(Packet)
	cpy.buf = make([]byte, len(pkt.buf))
	copy(cpy.buf, pkt.buf)
	cpy.from = pkt.from
	cpy.fromSet = pkt.fromSet
	return cpy
}

// SetFrom tags the packet with the address of the node that sent it
func (pkt *Packet) SetFrom(addr Address) {
	pkt.from = addr
	pkt.fromSet = true
}

// From returns the sender tag, if the packet carries one
func (pkt *Packet) From() (Address, bool) {
	return pkt.from, pkt.fromSet
}

// RemoveSeqTsHeader decodes the sequence+timestamp header at the front of the
// packet and strips it off.  The packet is left untouched on error
func (pkt *Packet) RemoveSeqTsHeader() (SeqTsHeader, error) {
	sth, err := UnmarshalSeqTsHeader(pkt.buf)
	if err != nil {
		return sth, err
	}
	pkt.buf = pkt.buf[SeqTsHeaderSize:]
	return sth, nil
}

// RecvCallback is called when a socket becomes readable.  More than one
// packet may be waiting, the callback is expected to drain them with Recv
type RecvCallback func(evtMgr *evtm.EventManager, sock *Socket)

// Socket is a receive endpoint bound to a port on a node
type Socket struct {
	node     *Node
	port     int
	queue    []*Packet
	recvFunc RecvCallback
	notified bool // a readable notification is already scheduled
}

// Recv removes and returns the oldest waiting packet, nil when there is none
func (sock *Socket) Recv() *Packet {
	if len(sock.queue) == 0 {
		return nil
	}
	pkt := sock.queue[0]
	sock.queue = sock.queue[1:]
	return pkt
}

// Node returns the node the socket is bound on
func (sock *Socket) Node() *Node {
	return sock.node
}

func (sock *Socket) Port() int {
	return sock.port
}

// Pending is the number of packets waiting to be read
func (sock *Socket) Pending() int {
	return len(sock.queue)
}

// TxCallback is called with the unmodified packet each time an application
// hands a packet to the network for transmission
type TxCallback func(evtMgr *evtm.EventManager, node *Node, pkt *Packet)

// frame is one packet in flight between two nodes
type frame struct {
	src  *Node
	dst  *Node
	port int
	pkt  *Packet
}

// NetworkStats counts what happened to frames after they left the application
type NetworkStats struct {
	Submitted  int `json:"submitted" yaml:"submitted"`
	Delivered  int `json:"delivered" yaml:"delivered"`
	OutOfRange int `json:"outofrange" yaml:"outofrange"`
	NoListener int `json:"nolistener" yaml:"nolistener"`
}

// Network owns the nodes of one experiment run and moves frames among them
type Network struct {
	Nodes       []*Node
	nodeByAddr  map[Address]*Node
	medium      Medium
	channel     *Channel
	txCallbacks []TxCallback
	Stats       NetworkStats
}

// CreateNetwork is a constructor
func CreateNetwork(channel *Channel, medium Medium) *Network {
	nw := new(Network)
	nw.Nodes = make([]*Node, 0)
	nw.nodeByAddr = make(map[Address]*Node)
	nw.channel = channel
	nw.medium = medium
	nw.txCallbacks = make([]TxCallback, 0)
	return nw
}

// AddNode creates a node, gives it the next address, and remembers it
func (nw *Network) AddNode(role NodeRole, height, gain float64, mob MobilityModel) *Node {
	node := new(Node)
	node.ID = len(nw.Nodes)
	node.Name = fmt.Sprintf("%s-%d", role.String(), node.ID)
	node.Role = role
	node.Addr = AddressForIndex(node.ID)
	node.AntennaHeight = height
	node.AntennaGain = gain
	node.Mobility = mob
	node.Rngstrm = rngstream.New(node.Name)
	node.sockets = make(map[int]*Socket)

	nw.Nodes = append(nw.Nodes, node)
	nw.nodeByAddr[node.Addr] = node
	return node
}

// NodeByAddr resolves an address to the node holding it
func (nw *Network) NodeByAddr(addr Address) (*Node, error) {
	node, present := nw.nodeByAddr[addr]
	if !present {
		return nil, fmt.Errorf("%w %s", ErrNoSuchNode, addr.String())
	}
	return node, nil
}

// Bind creates a receive socket on the node's port
func (nw *Network) Bind(node *Node, port int, recv RecvCallback) (*Socket, error) {
	if _, present := node.sockets[port]; present {
		return nil, fmt.Errorf("%w: %s port %d", ErrPortInUse, node.Name, port)
	}
	sock := new(Socket)
	sock.node = node
	sock.port = port
	sock.queue = make([]*Packet, 0)
	sock.recvFunc = recv
	node.sockets[port] = sock
	return sock, nil
}

// AddTxCallback registers a function called on every packet sent
func (nw *Network) AddTxCallback(cb TxCallback) {
	nw.txCallbacks = append(nw.txCallbacks, cb)
}

// Send hands a packet from node src to the socket at dst:port.  The transmit
// callbacks see the packet before any delay is applied
func (nw *Network) Send(evtMgr *evtm.EventManager, src *Node, dst Address, port int, pkt *Packet) error {
	dstNode, err := nw.NodeByAddr(dst)
	if err != nil {
		return err
	}

	for _, cb := range nw.txCallbacks {
		cb(evtMgr, src, pkt)
	}

	fr := &frame{src: src, dst: dstNode, port: port, pkt: pkt}
	nw.Stats.Submitted += 1
	nw.medium.Submit(evtMgr, fr, nw, frameSent)
	return nil
}

// frameSent is scheduled by the medium when the last bit of a frame has left
// the sender.  The channel decides whether the frame is heard, and if so the
// arrival is scheduled after the propagation delay
func frameSent(evtMgr *evtm.EventManager, context any, data any) any {
	nw := context.(*Network)
	fr := data.(*frame)
	now := evtMgr.CurrentSeconds()

	d := Distance(fr.src.Position(now), fr.dst.Position(now))
	if !nw.channel.Receivable(fr.src, fr.dst, d) {
		nw.Stats.OutOfRange += 1
		return nil
	}
	evtMgr.Schedule(nw, fr, frameArrives, vrtime.SecondsToTime(nw.channel.PropagationDelay(d)))
	return nil
}

// frameArrives puts the frame in the destination socket's queue and makes
// sure a readable notification is pending
func frameArrives(evtMgr *evtm.EventManager, context any, data any) any {
	nw := context.(*Network)
	fr := data.(*frame)

	sock, present := fr.dst.sockets[fr.port]
	if !present {
		nw.Stats.NoListener += 1
		return nil
	}
	pkt := fr.pkt.Copy()
	pkt.SetFrom(fr.src.Addr)
	sock.queue = append(sock.queue, pkt)
	nw.Stats.Delivered += 1

	if !sock.notified {
		sock.notified = true
		evtMgr.Schedule(sock, nil, socketReadable, vrtime.SecondsToTime(0.0))
	}
	return nil
}

// socketReadable passes control to the socket's receive callback
func socketReadable(evtMgr *evtm.EventManager, context any, data any) any {
	sock := context.(*Socket)
	sock.notified = false
	if sock.recvFunc != nil {
		sock.recvFunc(evtMgr, sock)
	}
	return nil
}
