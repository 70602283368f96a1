package netexp

// desc-exp.go holds the descriptions of an experiment and of a sweep of
// experiments.  A SweepCfg is what a user writes (yaml or json); it names a
// base ExperimentConfig and the parameters to vary, and expands into the
// ordered list of ExperimentConfigs the sweep driver runs

import (
	"encoding/json"
	"errors"
	"fmt"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
	"math"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// ProtocolNames gives the routing protocol recorded for each protocol code
var ProtocolNames = map[int]string{1: "OLSR", 2: "AODV", 3: "DSDV", 4: "DSR"}

// ExperimentConfig fully describes one run.  It is not changed once a run begins
type ExperimentConfig struct {
	Name          string  `json:"name" yaml:"name"`
	TotalTime     float64 `json:"totaltime" yaml:"totaltime"` // seconds
	Nodes         int     `json:"nodes" yaml:"nodes"`         // sensor nodes
	BaseStations  int     `json:"bases" yaml:"bases"`
	Sinks         int     `json:"sinks" yaml:"sinks"`
	Protocol      int     `json:"protocol" yaml:"protocol"`
	LossModel     int     `json:"lossmodel" yaml:"lossmodel"`
	Fading        int     `json:"fading" yaml:"fading"`
	Mobility      int     `json:"mobility" yaml:"mobility"`
	TraceMobility bool    `json:"tracemobility" yaml:"tracemobility"`
	MobilityLog   string  `json:"mobilitylog" yaml:"mobilitylog"`
	YPos          float64 `json:"ypos" yaml:"ypos"` // row of the stationary grid, meters
	DataRate      string  `json:"rate" yaml:"rate"`
	PacketSize    int     `json:"packetsize" yaml:"packetsize"` // bytes, header included
	MaxPackets    int     `json:"maxpackets" yaml:"maxpackets"` // per sender, zero for no limit
	Port          int     `json:"port" yaml:"port"`
	NodeSpeed     float64 `json:"speed" yaml:"speed"` // meters/sec
	NodePause     float64 `json:"pause" yaml:"pause"` // seconds
	MacMode       int     `json:"macmode" yaml:"macmode"`
	Frequency     float64 `json:"frequency" yaml:"frequency"` // Hz
	BaseHeight    float64 `json:"baseheight" yaml:"baseheight"`
	NodeHeight    float64 `json:"nodeheight" yaml:"nodeheight"`
	BaseGain      float64 `json:"basegain" yaml:"basegain"`
	NodeGain      float64 `json:"nodegain" yaml:"nodegain"`
	TxRange       float64 `json:"txrange" yaml:"txrange"` // meters, TDMA reception range

	// TDMA frame, in microseconds
	SlotTime       float64 `json:"slottime" yaml:"slottime"`
	GuardTime      float64 `json:"guardtime" yaml:"guardtime"`
	InterFrameTime float64 `json:"interframetime" yaml:"interframetime"`

	PhyRate float64 `json:"phyrate" yaml:"phyrate"` // bits/sec on the air
	Verbose int     `json:"verbose" yaml:"verbose"`
}

// DefaultExperimentConfig returns the configuration used when nothing is overridden
func DefaultExperimentConfig() ExperimentConfig {
	return ExperimentConfig{
		Name:           "experiment",
		TotalTime:      300.0,
		Nodes:          50,
		BaseStations:   1,
		Sinks:          5,
		Protocol:       2,
		LossModel:      int(FriisLoss),
		Fading:         0,
		Mobility:       int(RandomWaypoint),
		TraceMobility:  false,
		MobilityLog:    "mobility.log",
		YPos:           0.0,
		DataRate:       "2048bps",
		PacketSize:     64,
		MaxPackets:     0,
		Port:           9,
		NodeSpeed:      50.0,
		NodePause:      0.0,
		MacMode:        int(CSMA),
		Frequency:      5.8e9,
		BaseHeight:     50.0,
		NodeHeight:     9.0,
		BaseGain:       18.6,
		NodeGain:       14.6,
		TxRange:        4.0,
		SlotTime:       1100.0,
		GuardTime:      100.0,
		InterFrameTime: 0.0,
		PhyRate:        6.0e6,
		Verbose:        0,
	}
}

// ProtocolName returns the name of the configured routing protocol
func (cfg *ExperimentConfig) ProtocolName() string {
	name, present := ProtocolNames[cfg.Protocol]
	if !present {
		return "protocol"
	}
	return name
}

// TotalNodes is the number of nodes in the run, base stations included
func (cfg *ExperimentConfig) TotalNodes() int {
	return cfg.BaseStations + cfg.Nodes
}

// Validate checks every parameter and reports all the problems found at once
func (cfg *ExperimentConfig) Validate() error {
	errs := make([]error, 0)
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Nodes < 1 {
		bad("nodes must be at least 1, given %d", cfg.Nodes)
	}
	if cfg.BaseStations < 1 {
		bad("bases must be at least 1, given %d", cfg.BaseStations)
	}
	if !(cfg.TotalTime > senderStartMax) {
		bad("totaltime must exceed %g seconds, given %g", senderStartMax, cfg.TotalTime)
	}
	if cfg.TotalTime > MaxSeqTsTime {
		bad("totaltime %g exceeds the %g seconds a packet timestamp can encode", cfg.TotalTime, MaxSeqTsTime)
	}
	if cfg.PacketSize < SeqTsHeaderSize {
		bad("packetsize must be at least %d bytes, given %d", SeqTsHeaderSize, cfg.PacketSize)
	}
	if cfg.MaxPackets < 0 {
		bad("maxpackets cannot be negative, given %d", cfg.MaxPackets)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		bad("port %d out of range", cfg.Port)
	}
	if _, err := ParseDataRate(cfg.DataRate); err != nil {
		errs = append(errs, err)
	}
	if _, present := ProtocolNames[cfg.Protocol]; !present {
		bad("protocol must be one of 1=OLSR;2=AODV;3=DSDV;4=DSR, given %d", cfg.Protocol)
	}
	if _, present := lossModelNames[LossModel(cfg.LossModel)]; !present {
		bad("lossmodel must be one of 1=Friis;2=ItuR1411Los;3=TwoRayGround;4=LogDistance, given %d", cfg.LossModel)
	}
	if !slices.Contains([]int{0, 1}, cfg.Fading) {
		bad("fading must be 0=None or 1=Nakagami, given %d", cfg.Fading)
	}
	if !slices.Contains([]int{int(Stationary), int(RandomWalk), int(RandomWaypoint)}, cfg.Mobility) {
		bad("mobility must be 0=Stationary;1=RandomWalk2d;2=RandomWaypoint, given %d", cfg.Mobility)
	}
	if !slices.Contains([]int{int(CSMA), int(TDMA)}, cfg.MacMode) {
		bad("macmode must be 0=CSMA or 1=TDMA, given %d", cfg.MacMode)
	}
	if cfg.NodeSpeed < 0.0 || cfg.NodePause < 0.0 {
		bad("speed and pause cannot be negative")
	}
	if !(cfg.Frequency > 0.0) || !(cfg.PhyRate > 0.0) {
		bad("frequency and phyrate must be positive")
	}
	if cfg.BaseHeight <= 0.0 || cfg.NodeHeight <= 0.0 {
		bad("antenna heights must be positive")
	}
	if cfg.TraceMobility && len(cfg.MobilityLog) == 0 {
		bad("tracemobility needs a mobilitylog file")
	}
	if cfg.MacMode == int(TDMA) {
		if !(cfg.TxRange > 0.0) {
			bad("txrange must be positive under TDMA, given %g", cfg.TxRange)
		}
		if !(cfg.SlotTime > cfg.GuardTime) || cfg.GuardTime < 0.0 || cfg.InterFrameTime < 0.0 {
			bad("TDMA slot %g us must exceed guard %g us", cfg.SlotTime, cfg.GuardTime)
		} else if cfg.PhyRate > 0.0 && airtime(cfg.PacketSize, cfg.PhyRate) > (cfg.SlotTime-cfg.GuardTime)*1e-6 {
			bad("a %d byte packet does not fit in a %g us TDMA slot", cfg.PacketSize, cfg.SlotTime-cfg.GuardTime)
		}
	}
	return ReportErrs(errs)
}

// VaryDesc names a parameter and the values it takes across a sweep.  Either
// Values is given, or the numeric range From, To by Step
type VaryDesc struct {
	Param  string   `json:"param" yaml:"param"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
	From   float64  `json:"from,omitempty" yaml:"from,omitempty"`
	To     float64  `json:"to,omitempty" yaml:"to,omitempty"`
	Step   float64  `json:"step,omitempty" yaml:"step,omitempty"`
}

// Expand lists the string encoded values the parameter takes, in order
func (vd *VaryDesc) Expand() ([]string, error) {
	if _, present := ExpParams[vd.Param]; !present {
		return nil, fmt.Errorf("vary parameter %s not recognized", vd.Param)
	}
	if len(vd.Values) > 0 {
		return vd.Values, nil
	}
	if !(vd.Step > 0.0) || vd.To < vd.From {
		return nil, fmt.Errorf("vary %s needs values, or from <= to with a positive step", vd.Param)
	}
	values := make([]string, 0)
	for idx := 0; ; idx++ {
		v := vd.From + float64(idx)*vd.Step
		if v > vd.To+1e-9*math.Abs(vd.Step) {
			break
		}
		values = append(values, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return values, nil
}

// SweepCfg describes a sweep: the base configuration, the parameters varied
// (the first listed varies slowest), and where results go
type SweepCfg struct {
	Name     string           `json:"name" yaml:"name"`
	Base     ExperimentConfig `json:"base" yaml:"base"`
	Vary     []VaryDesc       `json:"vary" yaml:"vary"`
	Output   string           `json:"output" yaml:"output"`                         // csv summary
	Database string           `json:"database,omitempty" yaml:"database,omitempty"` // sqlite results, optional
	Report   string           `json:"report,omitempty" yaml:"report,omitempty"`     // per-run report, optional
}

// DefaultSweepCfg reproduces the node count sweep: stationary rows 3000m from
// the base station under TDMA, 10 through 90 nodes
func DefaultSweepCfg() *SweepCfg {
	sc := new(SweepCfg)
	sc.Name = "exp_stats"
	sc.Base = DefaultExperimentConfig()
	sc.Base.YPos = 3000.0
	sc.Base.Mobility = int(RandomWaypoint)
	sc.Base.MacMode = int(TDMA)
	sc.Base.LossModel = int(FriisLoss)
	sc.Base.TxRange = 40000.0
	sc.Vary = []VaryDesc{{Param: "nodes", From: 10, To: 90, Step: 10}}
	sc.Output = "exp_stats.csv"
	return sc
}

// Configs expands the sweep into the ordered list of run configurations
func (sc *SweepCfg) Configs() ([]ExperimentConfig, error) {
	cfgs := []ExperimentConfig{sc.Base}
	for _, vd := range sc.Vary {
		values, err := vd.Expand()
		if err != nil {
			return nil, err
		}
		nxt := make([]ExperimentConfig, 0, len(cfgs)*len(values))
		for _, cfg := range cfgs {
			for _, value := range values {
				cpy := cfg
				if err := cpy.SetParam(vd.Param, value); err != nil {
					return nil, err
				}
				nxt = append(nxt, cpy)
			}
		}
		cfgs = nxt
	}

	errs := make([]error, 0)
	for idx := range cfgs {
		cfgs[idx].Name = fmt.Sprintf("%s-%d", sc.Name, idx)
		if err := cfgs[idx].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("run %d: %w", idx, err))
		}
	}
	if err := ReportErrs(errs); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// WriteToFile stores the SweepCfg struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (sc *SweepCfg) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*sc)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*sc, "", "\t")
	} else {
		return fmt.Errorf("sweep configuration file %s needs a .yaml or .json extension", filename)
	}

	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// ReadSweepCfg deserializes a byte slice holding a representation of a SweepCfg struct.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.  Fields the representation leaves out keep the values of DefaultSweepCfg
func ReadSweepCfg(filename string, useYAML bool, dict []byte) (*SweepCfg, error) {
	var err error

	// if the dict slice of bytes is empty we get them from the file whose name is an argument
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := DefaultSweepCfg()
	example.Vary = nil

	if useYAML {
		err = yaml.Unmarshal(dict, example)
	} else {
		err = json.Unmarshal(dict, example)
	}

	if err != nil {
		return nil, err
	}

	return example, nil
}

// UseYAML reports whether a file's extension calls for yaml rather than json
func UseYAML(filename string) bool {
	pathExt := path.Ext(filename)
	return pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml"
}

// ReportErrs transforms a list of errors and transforms the non-nil ones into a single error
// with comma-separated report of all the constituent errors, and returns it.
func ReportErrs(errs []error) error {
	errMsg := make([]string, 0)
	for _, err := range errs {
		if err != nil {
			errMsg = append(errMsg, err.Error())
		}
	}
	if len(errMsg) == 0 {
		return nil
	}

	return errors.New(strings.Join(errMsg, ","))
}

// CheckOutputFiles probes the file system for each file named in the input
// list, to see if its directory exists and so can be written to
func CheckOutputFiles(names []string) (bool, error) {
	return CheckFiles(names, false)
}

// CheckFiles probes the file system for permitted access to all the
// argument filenames, optionally checking also for the existence
// of those files for the purposes of reading them.
func CheckFiles(names []string, checkExistence bool) (bool, error) {
	// make sure that the directory of each named file exists
	errs := make([]error, 0)

	for _, name := range names {

		// skip empty names
		if len(name) == 0 {
			continue
		}

		// split off the directory portion of the path
		directory, _ := filepath.Split(name)
		if len(directory) == 0 {
			continue
		}
		if _, err := os.Stat(directory); err != nil {
			errs = append(errs, err)
		}
	}

	// if required, check for the reachability and existence of each file
	if checkExistence {
		for _, name := range names {
			if len(name) == 0 {
				continue
			}
			if _, err := os.Stat(name); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) == 0 {
		return true, nil
	}

	rtnerr := ReportErrs(errs)
	return false, rtnerr
}
