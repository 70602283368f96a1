package netexp

// scheduler.go holds the medium access schedulers that decide when a frame
// handed to the network actually occupies the air.  Both are first-come
// first-serve.  CSMA shares one medium among every node, each frame holding
// it for a random backoff plus its airtime.  TDMA gives each node a fixed
// slot in a repeating frame and the node transmits at most one frame per slot

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"math"
)

// MacMode selects the medium access scheduler
type MacMode int

const (
	CSMA MacMode = 0
	TDMA MacMode = 1
)

func (mm MacMode) String() string {
	switch mm {
	case CSMA:
		return "CSMA"
	case TDMA:
		return "TDMA"
	}
	return fmt.Sprintf("MacMode(%d)", int(mm))
}

const (
	frameOverhead = 64     // bytes of IP, UDP and MAC framing added to every packet on the air
	cwSlots       = 15     // contention window, in backoff slots
	backoffSlot   = 9.0e-6 // seconds
	difsTime      = 34.0e-6
)

// Medium accepts frames and schedules done (with the given context) when the
// frame's last bit has been sent
type Medium interface {
	Submit(evtMgr *evtm.EventManager, fr *frame, context any, done evtm.EventHandlerFunction)
}

// airtime is how long a packet of the given size occupies the medium
func airtime(pcktLen int, phyRate float64) float64 {
	return float64((pcktLen+frameOverhead)*8) / phyRate
}

// txTask describes one frame waiting for, or holding, the medium
type txTask struct {
	arrive   float64 // time of submission
	req      float64 // required service, seconds
	fr       *frame
	context  any                       // remember this from caller, to return when finished
	doneFunc evtm.EventHandlerFunction // call when finished
}

// CsmaScheduler holds the data structures of the shared medium
type CsmaScheduler struct {
	phyRate   float64
	waiting   []*txTask
	inservice bool
	maxQueue  int // high water mark of the waiting list
}

// CreateCsmaScheduler is a constructor
func CreateCsmaScheduler(phyRate float64) *CsmaScheduler {
	cs := new(CsmaScheduler)
	cs.phyRate = phyRate
	cs.waiting = make([]*txTask, 0)
	return cs
}

// Submit puts a frame either in service or in the waiting queue
func (cs *CsmaScheduler) Submit(evtMgr *evtm.EventManager, fr *frame, context any, done evtm.EventHandlerFunction) {
	backoff := difsTime + float64(fr.src.Rngstrm.RandInt(0, cwSlots))*backoffSlot
	task := &txTask{arrive: evtMgr.CurrentSeconds(), req: backoff + airtime(fr.pkt.Size(), cs.phyRate),
		fr: fr, context: context, doneFunc: done}
	cs.joinQueue(evtMgr, task)
}

// joinQueue is called to put a txTask into the data structure that governs
// allocation of the medium
func (cs *CsmaScheduler) joinQueue(evtMgr *evtm.EventManager, task *txTask) {
	// if the medium is busy, wait
	if cs.inservice {
		cs.waiting = append(cs.waiting, task)
		if len(cs.waiting) > cs.maxQueue {
			cs.maxQueue = len(cs.waiting)
		}
		return
	}
	cs.inservice = true

	// its main job is to pull the next frame into service
	evtMgr.Schedule(cs, task, csmaTxComplete, vrtime.SecondsToTime(task.req))
	evtMgr.Schedule(task.context, task.fr, task.doneFunc, vrtime.SecondsToTime(task.req))
}

// csmaTxComplete is called when the frame holding the medium has been sent
func csmaTxComplete(evtMgr *evtm.EventManager, context any, data any) any {
	cs := context.(*CsmaScheduler)
	cs.inservice = false

	if len(cs.waiting) > 0 {
		task := cs.waiting[0]
		cs.waiting = cs.waiting[1:]
		cs.joinQueue(evtMgr, task)
	}
	return nil
}

// tdmaQueue is the per-node state of the TDMA scheduler
type tdmaQueue struct {
	slot     int
	waiting  []*txTask
	busy     bool    // a slot-begins event is pending
	lastSlot float64 // start of the last slot used, -1 before any
}

// TdmaScheduler assigns node i the i-th slot of every frame
type TdmaScheduler struct {
	phyRate        float64
	slots          int
	slotTime       float64
	guardTime      float64
	interFrameTime float64
	queues         map[int]*tdmaQueue
}

// CreateTdmaScheduler is a constructor.  Times are in seconds
func CreateTdmaScheduler(slots int, slotTime, guardTime, interFrameTime, phyRate float64) *TdmaScheduler {
	tdma := new(TdmaScheduler)
	tdma.phyRate = phyRate
	tdma.slots = slots
	tdma.slotTime = slotTime
	tdma.guardTime = guardTime
	tdma.interFrameTime = interFrameTime
	tdma.queues = make(map[int]*tdmaQueue)
	return tdma
}

// FrameLength is the period after which slot assignments repeat
func (tdma *TdmaScheduler) FrameLength() float64 {
	return float64(tdma.slots)*tdma.slotTime + tdma.interFrameTime
}

// Fits reports whether a packet of the given size can be sent inside one slot
func (tdma *TdmaScheduler) Fits(pcktLen int) bool {
	return airtime(pcktLen, tdma.phyRate) <= tdma.slotTime-tdma.guardTime
}

// NextSlotStart gives the earliest start of the node's slot at or after time t
func (tdma *TdmaScheduler) NextSlotStart(slot int, t float64) float64 {
	offset := float64(slot) * tdma.slotTime
	frameLen := tdma.FrameLength()
	k := math.Ceil((t-offset)/frameLen - 1e-9)
	if k < 0 {
		k = 0
	}
	return k*frameLen + offset
}

// Submit queues the frame behind any others from the same node
func (tdma *TdmaScheduler) Submit(evtMgr *evtm.EventManager, fr *frame, context any, done evtm.EventHandlerFunction) {
	slot := fr.src.ID % tdma.slots
	queue, present := tdma.queues[slot]
	if !present {
		queue = &tdmaQueue{slot: slot, waiting: make([]*txTask, 0), lastSlot: -1.0}
		tdma.queues[slot] = queue
	}
	now := evtMgr.CurrentSeconds()
	task := &txTask{arrive: now, req: airtime(fr.pkt.Size(), tdma.phyRate), fr: fr, context: context, doneFunc: done}
	queue.waiting = append(queue.waiting, task)

	if !queue.busy {
		queue.busy = true
		tdma.scheduleSlot(evtMgr, queue, now)
	}
}

// scheduleSlot arranges for the next usable slot of the queue, no earlier than t
func (tdma *TdmaScheduler) scheduleSlot(evtMgr *evtm.EventManager, queue *tdmaQueue, t float64) {
	if queue.lastSlot >= 0.0 && t < queue.lastSlot+tdma.slotTime {
		t = queue.lastSlot + tdma.slotTime
	}
	wait := tdma.NextSlotStart(queue.slot, t) - evtMgr.CurrentSeconds()
	if wait < 0.0 {
		wait = 0.0
	}
	evtMgr.Schedule(tdma, queue, tdmaSlotBegins, vrtime.SecondsToTime(wait))
}

// tdmaSlotBegins sends the oldest waiting frame of the node owning the slot
func tdmaSlotBegins(evtMgr *evtm.EventManager, context any, data any) any {
	tdma := context.(*TdmaScheduler)
	queue := data.(*tdmaQueue)
	now := evtMgr.CurrentSeconds()

	task := queue.waiting[0]
	queue.waiting = queue.waiting[1:]
	queue.lastSlot = now
	evtMgr.Schedule(task.context, task.fr, task.doneFunc, vrtime.SecondsToTime(task.req))

	if len(queue.waiting) > 0 {
		tdma.scheduleSlot(evtMgr, queue, now)
	} else {
		queue.busy = false
	}
	return nil
}
