package netexp

// instrument.go holds the transmit and receive hooks that feed a run's
// FlowCounters.  The runner creates one Instrumentation per run and registers
// its methods with the network, so no state is shared between runs

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/sirupsen/logrus"
)

// Instrumentation observes packets as they are sent and received
type Instrumentation struct {
	counters *FlowCounters
	logger   *logrus.Logger
	Verbose  bool   // log every reception
	Protocol string // routing protocol name, prefixed to reception log lines

	// per-packet delays, kept only when KeepDelays is set
	KeepDelays bool
	delays     []float64

	err error // first fatal failure seen by a hook
}

// CreateInstrumentation is a constructor, binding the hooks to the counters they update
func CreateInstrumentation(counters *FlowCounters, logger *logrus.Logger) *Instrumentation {
	inst := new(Instrumentation)
	inst.counters = counters
	inst.logger = logger
	inst.delays = make([]float64, 0)
	return inst
}

// Counters returns the FlowCounters the hooks accumulate into
func (inst *Instrumentation) Counters() *FlowCounters {
	return inst.counters
}

// Err returns the first malformed packet seen by the receive hook
func (inst *Instrumentation) Err() error {
	return inst.err
}

// Delays returns the per-packet delays recorded so far
func (inst *Instrumentation) Delays() []float64 {
	return inst.delays
}

// TxHook is called with every packet an application sends.  The first
// transmission time is latched before the packet is counted
func (inst *Instrumentation) TxHook(evtMgr *evtm.EventManager, node *Node, pkt *Packet) {
	inst.counters.MarkFirstTxIfUnset(evtMgr.CurrentSeconds())
	inst.counters.IncrementTx(pkt.Size())
}

// RxHook drains the socket.  Each packet's size is measured with the header
// still attached, then the header is removed and its send time used for the delay
func (inst *Instrumentation) RxHook(evtMgr *evtm.EventManager, sock *Socket) {
	now := evtMgr.CurrentSeconds()
	for pkt := sock.Recv(); pkt != nil; pkt = sock.Recv() {
		size := pkt.Size()
		sth, err := pkt.RemoveSeqTsHeader()
		if err != nil {
			if inst.err == nil {
				inst.err = fmt.Errorf("node %d: %w", sock.Node().ID, err)
			}
			continue
		}

		delay := now - sth.SendTs
		inst.counters.IncrementDelay(delay)
		inst.counters.IncrementRx(size)
		inst.counters.SetLastRx(now)
		if inst.KeepDelays {
			inst.delays = append(inst.delays, delay)
		}

		if inst.Verbose {
			inst.logReception(now, sock.Node(), pkt)
		}
	}
}

// logReception writes the line describing one received packet
func (inst *Instrumentation) logReception(now float64, node *Node, pkt *Packet) {
	fields := logrus.Fields{"node": node.ID, "time": now}
	from, found := pkt.From()
	if found {
		fields["from"] = from.String()
		inst.logger.WithFields(fields).Infof("%s %g %d received one packet from %s", inst.Protocol, now, node.ID, from.String())
		return
	}
	inst.logger.WithFields(fields).Infof("%s %g %d received one packet!", inst.Protocol, now, node.ID)
}
