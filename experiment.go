package netexp

// experiment.go holds the runner that carries one ExperimentConfig through
// a run.  A run is an ordered list of named stages, each taking the run
// context and returning it (possibly enriched) or an error that stops the
// run.  A runner goes Configured -> Running -> Completed exactly once

import (
	"context"
	"errors"
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/rngstream"
	"github.com/sirupsen/logrus"
	"io"
	"os"
)

// ErrInvalidState is returned when a runner is asked to do something its state forbids
var ErrInvalidState = errors.New("invalid runner state")

// senders start at a time drawn uniformly from [senderStartMin, senderStartMax)
const (
	senderStartMin = 1.0
	senderStartMax = 2.0
)

// sinkNode is the id of the node every sender addresses
const sinkNode = 0

// RunState is the lifecycle state of an ExperimentRunner
type RunState int

const (
	Configured RunState = iota
	Running
	Completed
)

func (rs RunState) String() string {
	switch rs {
	case Configured:
		return "Configured"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	}
	return fmt.Sprintf("RunState(%d)", int(rs))
}

// RunResult is everything a run produced
type RunResult struct {
	Name     string           `json:"name" yaml:"name"`
	Config   ExperimentConfig `json:"config" yaml:"config"`
	Counters CountersSnapshot `json:"counters" yaml:"counters"`
	Metrics  Metrics          `json:"metrics" yaml:"metrics"`
	Delays   *DelayStats      `json:"delays,omitempty" yaml:"delays,omitempty"`
	Network  NetworkStats     `json:"network" yaml:"network"`

	// multi-hop reachability of the sink when senders start
	Connectivity Connectivity `json:"connectivity" yaml:"connectivity"`
	Row      ResultRow        `json:"-" yaml:"-"`
}

// ExperimentRunner performs one run
type ExperimentRunner struct {
	Cfg ExperimentConfig

	// MobilityOut, when set, receives the course-change log in place of the
	// file named by Cfg.MobilityLog
	MobilityOut io.Writer

	// KeepDelays retains per-packet delays so the result carries their distribution
	KeepDelays bool

	logger   *logrus.Logger
	state    RunState
	counters *FlowCounters
	result   *RunResult
}

// DefaultLogger is the logger used when none is given
func DefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

// CreateExperimentRunner is a constructor.  The configuration is copied, and
// a nil logger is replaced by DefaultLogger()
func CreateExperimentRunner(cfg ExperimentConfig, logger *logrus.Logger) *ExperimentRunner {
	er := new(ExperimentRunner)
	er.Cfg = cfg
	if logger == nil {
		logger = DefaultLogger()
	}
	er.logger = logger
	er.state = Configured
	er.counters = CreateFlowCounters()
	return er
}

func (er *ExperimentRunner) State() RunState {
	return er.state
}

// Counters gives the counters the run accumulates into
func (er *ExperimentRunner) Counters() *FlowCounters {
	return er.counters
}

// Result returns what the run produced, ErrInvalidState before it completes
func (er *ExperimentRunner) Result() (*RunResult, error) {
	if er.state != Completed || er.result == nil {
		return nil, fmt.Errorf("%w: no result while %s", ErrInvalidState, er.state.String())
	}
	return er.result, nil
}

// runContext carries the state of a run from stage to stage
type runContext struct {
	cfg        *ExperimentConfig
	logger     *logrus.Logger
	keepDelays bool

	evtMgr   *evtm.EventManager
	channel  *Channel
	medium   Medium
	nw       *Network
	counters *FlowCounters
	inst     *Instrumentation
	rate     float64
	apps     []*OnOffApp
	sockets  []*Socket
	conn     *Connectivity

	mobilityOut io.Writer
	mobilityLog *MobilityLog
	closers     []io.Closer

	result *RunResult
}

// runStage is one named step of a run
type runStage struct {
	name string
	fn   func(*runContext) (*runContext, error)
}

// runStages is the order in which a run is carried out
var runStages = []runStage{
	{"configure", configureRun},
	{"nodes", createNodes},
	{"topology", surveyTopology},
	{"mobility", startMobility},
	{"receivers", installReceivers},
	{"senders", installSenders},
	{"simulate", simulate},
	{"outputs", processOutputs},
}

// Run carries the runner from Configured through to Completed.  A runner runs
// once; a failed run is Completed too, and is not retried
func (er *ExperimentRunner) Run(ctx context.Context) (*RunResult, error) {
	if er.state != Configured {
		return nil, fmt.Errorf("%w: cannot run while %s", ErrInvalidState, er.state.String())
	}
	er.state = Running
	defer func() { er.state = Completed }()

	rc := &runContext{cfg: &er.Cfg, logger: er.logger, keepDelays: er.KeepDelays,
		counters: er.counters, mobilityOut: er.MobilityOut, closers: make([]io.Closer, 0)}
	defer func() {
		for _, closer := range rc.closers {
			if err := closer.Close(); err != nil {
				er.logger.WithError(err).Warn("closing run output")
			}
		}
	}()

	for _, stage := range runStages {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("%s: %w", er.Cfg.Name, cerr)
		}
		nxt, err := stage.fn(rc)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", er.Cfg.Name, stage.name, err)
		}
		rc = nxt
	}
	er.result = rc.result
	return rc.result, nil
}

// configureRun validates the configuration and builds the engine, channel and medium
func configureRun(rc *runContext) (*runContext, error) {
	if err := rc.cfg.Validate(); err != nil {
		return nil, err
	}
	rate, err := ParseDataRate(rc.cfg.DataRate)
	if err != nil {
		return nil, err
	}
	rc.rate = rate

	rc.evtMgr = evtm.New()
	rc.channel = CreateChannel(rc.cfg)
	if MacMode(rc.cfg.MacMode) == TDMA {
		rc.medium = CreateTdmaScheduler(rc.cfg.TotalNodes(), rc.cfg.SlotTime*1e-6, rc.cfg.GuardTime*1e-6,
			rc.cfg.InterFrameTime*1e-6, rc.cfg.PhyRate)
	} else {
		rc.medium = CreateCsmaScheduler(rc.cfg.PhyRate)
	}
	rc.nw = CreateNetwork(rc.channel, rc.medium)

	rc.inst = CreateInstrumentation(rc.counters, rc.logger)
	rc.inst.Verbose = rc.cfg.Verbose > 0
	rc.inst.Protocol = rc.cfg.ProtocolName()
	rc.inst.KeepDelays = rc.keepDelays

	rc.logger.WithFields(logrus.Fields{"run": rc.cfg.Name, "nodes": rc.cfg.Nodes, "bases": rc.cfg.BaseStations,
		"mac": MacMode(rc.cfg.MacMode).String(), "loss": LossModel(rc.cfg.LossModel).String(),
		"mobility": MobilityMode(rc.cfg.Mobility).String(), "protocol": rc.inst.Protocol}).Info("configuring run")
	return rc, nil
}

// createNodes places the base stations first, so the first base station is
// node 0, then the sensor nodes
func createNodes(rc *runContext) (*runContext, error) {
	cfg := rc.cfg
	for idx := 0; idx < cfg.BaseStations; idx++ {
		rc.nw.AddNode(BaseStation, cfg.BaseHeight, cfg.BaseGain, &ConstantPosition{Pos: BaseGridPosition(idx)})
	}
	mode := MobilityMode(cfg.Mobility)
	for idx := 0; idx < cfg.Nodes; idx++ {
		var mob MobilityModel
		if mode == Stationary {
			mob = &ConstantPosition{Pos: NodeGridPosition(idx, cfg.YPos)}
		} else {
			rng := rngstream.New(fmt.Sprintf("mobility-%d", idx))
			mob = CreateLegMobility(mode, DefaultMobilityBox, cfg.NodeSpeed, cfg.NodePause, rng)
		}
		rc.nw.AddNode(SensorNode, cfg.NodeHeight, cfg.NodeGain, mob)
	}
	return rc, nil
}

// surveyTopology records which senders could reach the sink, and in how many
// hops, from where the nodes are placed
func surveyTopology(rc *runContext) (*runContext, error) {
	sink := rc.nw.Nodes[sinkNode]
	rc.conn = SurveyConnectivity(rc.nw, sink, 0.0)

	if rc.logger.IsLevelEnabled(logrus.DebugLevel) {
		for _, node := range rc.nw.Nodes {
			if hops, found := rc.conn.Hops(node.ID); found {
				rc.logger.WithFields(logrus.Fields{"node": node.Name, "hops": hops}).Debugf("path %s",
					rc.conn.ShowPath(node.ID, rc.nw))
			}
		}
	}
	rc.logger.WithFields(logrus.Fields{"run": rc.cfg.Name, "senders": rc.conn.Senders, "direct": rc.conn.Direct,
		"reachable": rc.conn.Reachable, "maxhops": rc.conn.MaxHops}).Info("connectivity to sink")
	return rc, nil
}

// startMobility sets the moving nodes going and, when asked, connects the
// course-change log
func startMobility(rc *runContext) (*runContext, error) {
	if rc.cfg.TraceMobility {
		out := rc.mobilityOut
		if out == nil {
			f, err := os.Create(rc.cfg.MobilityLog)
			if err != nil {
				return nil, fmt.Errorf("mobility log: %w", err)
			}
			rc.closers = append(rc.closers, f)
			out = f
		}
		rc.mobilityLog = CreateMobilityLog(out)
	}

	for _, node := range rc.nw.Nodes {
		lm, moving := node.Mobility.(*LegMobility)
		if !moving {
			continue
		}
		if rc.mobilityLog != nil {
			lm.OnCourseChange(rc.mobilityLog.CourseChange)
		}
		lm.Start(rc.evtMgr, node, rc.cfg.TotalTime)
	}
	return rc, nil
}

// installReceivers binds an instrumented socket on every node
func installReceivers(rc *runContext) (*runContext, error) {
	rc.sockets = make([]*Socket, 0, len(rc.nw.Nodes))
	for _, node := range rc.nw.Nodes {
		sock, err := rc.nw.Bind(node, rc.cfg.Port, rc.inst.RxHook)
		if err != nil {
			return nil, err
		}
		rc.sockets = append(rc.sockets, sock)
	}
	rc.nw.AddTxCallback(rc.inst.TxHook)
	return rc, nil
}

// installSenders puts a constant rate sender addressed to node 0 on every other node
func installSenders(rc *runContext) (*runContext, error) {
	sink := rc.nw.Nodes[sinkNode]
	startRng := rngstream.New("start")
	rc.apps = make([]*OnOffApp, 0, len(rc.nw.Nodes)-1)
	for _, node := range rc.nw.Nodes {
		if node.ID == sinkNode {
			continue
		}
		app := CreateOnOffApp(rc.nw, node, sink.Addr, rc.cfg.Port, rc.cfg.PacketSize, rc.rate)
		app.StartTime = senderStartMin + (senderStartMax-senderStartMin)*startRng.RandU01()
		app.StopTime = rc.cfg.TotalTime
		app.MaxPackets = rc.cfg.MaxPackets
		app.Start(rc.evtMgr)
		rc.apps = append(rc.apps, app)
	}
	return rc, nil
}

// simulate runs the engine to the stop time.  A sender that could not send or
// a packet the receive hook could not decode fails the run
func simulate(rc *runContext) (*runContext, error) {
	rc.evtMgr.Run(rc.cfg.TotalTime)

	errs := make([]error, 0)
	for _, app := range rc.apps {
		errs = append(errs, app.Err())
	}
	errs = append(errs, rc.inst.Err())
	if rc.mobilityLog != nil {
		errs = append(errs, rc.mobilityLog.Err())
	}
	if err := ReportErrs(errs); err != nil {
		return nil, err
	}
	return rc, nil
}

// processOutputs derives the run's metrics
func processOutputs(rc *runContext) (*runContext, error) {
	snap := rc.counters.Snapshot()
	mtr := DeriveMetrics(snap)

	res := new(RunResult)
	res.Name = rc.cfg.Name
	res.Config = *rc.cfg
	res.Counters = snap
	res.Metrics = mtr
	res.Network = rc.nw.Stats
	res.Connectivity = *rc.conn
	res.Row = CreateResultRow(rc.cfg.Nodes, snap, mtr)
	if rc.keepDelays {
		res.Delays = ComputeDelayStats(rc.inst.Delays())
	}
	rc.result = res

	logger := rc.logger.WithField("run", rc.cfg.Name)
	logger.WithFields(logrus.Fields{"txbytes": snap.TxBytes, "rxbytes": snap.RxBytes}).Info("traffic totals")
	logger.WithFields(logrus.Fields{"goodput": mtr.GoodputKbps.String(), "pdr": mtr.PDR.String(),
		"loss": mtr.PacketLoss, "delay": mtr.AvgDelay.String()}).Info("run complete")
	if mtr.Anomaly {
		logger.Warnf("data integrity: %s", mtr.AnomalyCause)
	}
	return rc, nil
}
