package netexp

// counters.go holds the per-run traffic counters that the transmit and
// receive hooks accumulate into.  One FlowCounters value lives for exactly
// one experiment run; the runner creates it and hands it to the hooks.

// FlowCounters accumulates what was sent and what was received during one run.
// The counts are monotone non-decreasing for the life of the run.  The struct
// is not safe for concurrent mutation; the event loop that drives the hooks
// is single-threaded
type FlowCounters struct {
	txBytes   uint64
	txPackets uint64
	rxBytes   uint64
	rxPackets uint64
	delaySum  float64 // seconds, sum over received packets of (arrival - send)

	firstTxTime float64 // simulated time of the first transmission
	firstTxSet  bool
	lastRxTime  float64 // simulated time of the most recent reception
	lastRxSet   bool
}

// CountersSnapshot is an immutable copy of a FlowCounters value,
// the input to metric derivation and to the run report
type CountersSnapshot struct {
	TxBytes     uint64  `json:"txbytes" yaml:"txbytes"`
	TxPackets   uint64  `json:"txpackets" yaml:"txpackets"`
	RxBytes     uint64  `json:"rxbytes" yaml:"rxbytes"`
	RxPackets   uint64  `json:"rxpackets" yaml:"rxpackets"`
	DelaySum    float64 `json:"delaysum" yaml:"delaysum"`
	FirstTxTime float64 `json:"firsttx" yaml:"firsttx"`
	FirstTxSet  bool    `json:"firsttxset" yaml:"firsttxset"`
	LastRxTime  float64 `json:"lastrx" yaml:"lastrx"`
	LastRxSet   bool    `json:"lastrxset" yaml:"lastrxset"`
}

// CreateFlowCounters is a constructor, all counts zero and no times latched
func CreateFlowCounters() *FlowCounters {
	fc := new(FlowCounters)
	return fc
}

// IncrementTx records one transmitted packet of the given size
func (fc *FlowCounters) IncrementTx(bytes int) {
	fc.txBytes += uint64(bytes)
	fc.txPackets += 1
}

// IncrementRx records one received packet of the given size
func (fc *FlowCounters) IncrementRx(bytes int) {
	fc.rxBytes += uint64(bytes)
	fc.rxPackets += 1
}

// IncrementDelay adds the end-to-end delay of one received packet
func (fc *FlowCounters) IncrementDelay(seconds float64) {
	fc.delaySum += seconds
}

// MarkFirstTxIfUnset latches the time of the first transmission.  It only
// writes while no packet has been counted as transmitted, so it must be called
// before the IncrementTx for the same packet
func (fc *FlowCounters) MarkFirstTxIfUnset(ts float64) {
	if fc.txPackets == 0 {
		fc.firstTxTime = ts
		fc.firstTxSet = true
	}
}

// SetLastRx records the time of the most recent reception
func (fc *FlowCounters) SetLastRx(ts float64) {
	fc.lastRxTime = ts
	fc.lastRxSet = true
}

func (fc *FlowCounters) TxBytes() uint64 {
	return fc.txBytes
}

func (fc *FlowCounters) TxPackets() uint64 {
	return fc.txPackets
}

func (fc *FlowCounters) RxBytes() uint64 {
	return fc.rxBytes
}

func (fc *FlowCounters) RxPackets() uint64 {
	return fc.rxPackets
}

func (fc *FlowCounters) DelaySum() float64 {
	return fc.delaySum
}

// FirstTxTime returns the latched first transmission time, and whether one has been latched
func (fc *FlowCounters) FirstTxTime() (float64, bool) {
	return fc.firstTxTime, fc.firstTxSet
}

// LastRxTime returns the most recent reception time, and whether any reception has happened
func (fc *FlowCounters) LastRxTime() (float64, bool) {
	return fc.lastRxTime, fc.lastRxSet
}

// Snapshot copies out the current state of the counters
func (fc *FlowCounters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		TxBytes:     fc.txBytes,
		TxPackets:   fc.txPackets,
		RxBytes:     fc.rxBytes,
		RxPackets:   fc.rxPackets,
		DelaySum:    fc.delaySum,
		FirstTxTime: fc.firstTxTime,
		FirstTxSet:  fc.firstTxSet,
		LastRxTime:  fc.lastRxTime,
		LastRxSet:   fc.lastRxSet,
	}
}

// Reset returns the counters to their initial state
func (fc *FlowCounters) Reset() {
	*fc = FlowCounters{}
}
