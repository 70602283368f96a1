package netexp

// flow.go holds the constant rate traffic source installed on every sender.
// It is an on/off application that is always on: once started, it emits one
// fixed size packet every packetSize*8/rate seconds until its stop time (or
// until it has sent MaxPackets).  Every packet begins with a sequence+timestamp
// header so the receiver can measure end-to-end delay

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"strconv"
	"strings"
)

// rate suffixes recognized by ParseDataRate, longest first
var rateUnits = []struct {
	suffix string
	scale  float64
}{
	{"Gbps", 1e9}, {"Mbps", 1e6}, {"kbps", 1e3}, {"Kbps", 1e3}, {"bps", 1.0},
	{"GB/s", 8e9}, {"MB/s", 8e6}, {"kB/s", 8e3}, {"KB/s", 8e3}, {"B/s", 8.0},
}

// ParseDataRate converts strings like "2048bps" or "1.5Mbps" into bits/sec.
// A bare number is taken as bits/sec
func ParseDataRate(rate string) (float64, error) {
	rate = strings.TrimSpace(rate)
	scale := 1.0
	for _, unit := range rateUnits {
		if strings.HasSuffix(rate, unit.suffix) {
			rate = strings.TrimSuffix(rate, unit.suffix)
			scale = unit.scale
			break
		}
	}
	value, err := strconv.ParseFloat(rate, 64)
	if err != nil {
		return 0.0, fmt.Errorf("data rate %q not recognized", rate)
	}
	if !(value > 0.0) {
		return 0.0, fmt.Errorf("data rate %q must be positive", rate)
	}
	return value * scale, nil
}

// OnOffApp is a constant bit rate sender
type OnOffApp struct {
	Node       *Node
	Remote     Address
	Port       int
	PcktSize   int     // bytes on the wire, header included
	Rate       float64 // bits/sec
	StartTime  float64
	StopTime   float64
	MaxPackets int // zero for no limit

	nw   *Network
	seq  uint16
	sent int
	err  error // first failure, halts the application
}

// CreateOnOffApp is a constructor
func CreateOnOffApp(nw *Network, node *Node, remote Address, port, pcktSize int, rate float64) *OnOffApp {
	app := new(OnOffApp)
	app.nw = nw
	app.Node = node
	app.Remote = remote
	app.Port = port
	app.PcktSize = pcktSize
	app.Rate = rate
	return app
}

// Interval is the time between successive packets
func (app *OnOffApp) Interval() float64 {
	return float64(app.PcktSize*8) / app.Rate
}

// Sent is the number of packets handed to the network so far
func (app *OnOffApp) Sent() int {
	return app.sent
}

// Err reports the failure that stopped the application, if any
func (app *OnOffApp) Err() error {
	return app.err
}

// Start schedules the first packet at StartTime, measured from now
func (app *OnOffApp) Start(evtMgr *evtm.EventManager) {
	if app.StartTime >= app.StopTime {
		return
	}
	evtMgr.Schedule(app, nil, onOffPcktDeparts, vrtime.SecondsToTime(app.StartTime-evtMgr.CurrentSeconds()))
}

// buildPacket puts the header in front of a zero filled payload
func (app *OnOffApp) buildPacket(now float64) (*Packet, error) {
	sth := CreateSeqTsHeader(app.seq, now, app.Node.ID)
	hdr, err := sth.Marshal()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, app.PcktSize)
	copy(buf, hdr)
	return CreatePacket(buf), nil
}

// onOffPcktDeparts emits one packet and schedules the next
func onOffPcktDeparts(evtMgr *evtm.EventManager, context any, data any) any {
	app := context.(*OnOffApp)
	now := evtMgr.CurrentSeconds()
	if now >= app.StopTime || app.err != nil {
		return nil
	}
	if app.MaxPackets > 0 && app.sent >= app.MaxPackets {
		return nil
	}

	pkt, err := app.buildPacket(now)
	if err == nil {
		err = app.nw.Send(evtMgr, app.Node, app.Remote, app.Port, pkt)
	}
	if err != nil {
		app.err = fmt.Errorf("%s: %w", app.Node.Name, err)
		return nil
	}
	app.seq += 1
	app.sent += 1

	evtMgr.Schedule(app, nil, onOffPcktDeparts, vrtime.SecondsToTime(app.Interval()))
	return nil
}
