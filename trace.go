package netexp

// trace.go gathers a record of every run of a sweep (its configuration,
// raw counters, derived metrics and delay distribution) for writing out as
// one report when the sweep is done

import (
	"encoding/json"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"path"
)

// RunTrace is the record of one run
type RunTrace struct {
	Index  int        `json:"index" yaml:"index"`
	Result *RunResult `json:"result,omitempty" yaml:"result,omitempty"`
	Err    string     `json:"err,omitempty" yaml:"err,omitempty"`
}

// TraceManager gathers information about the runs of a sweep.  By testing the
// InUse flag we can inhibit gathering when no report is wanted, while leaving
// the calls to its methods in place
type TraceManager struct {
	// sweep uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of the sweep
	ExpName string `json:"expname" yaml:"expname"`

	// identifier shared with the database rows of the sweep
	SweepID string `json:"sweepid" yaml:"sweepid"`

	// one record per run, in run order
	Runs []RunTrace `json:"runs" yaml:"runs"`
}

// CreateTraceManager is a constructor.  It saves the name of the sweep
// and a flag indicating whether the trace manager is active
func CreateTraceManager(expName, sweepID string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.SweepID = sweepID
	tm.Runs = make([]RunTrace, 0)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm != nil && tm.InUse
}

// AddRun records the outcome of the idx-th run
func (tm *TraceManager) AddRun(idx int, res *RunResult, err error) {
	if !tm.Active() {
		return
	}
	rt := RunTrace{Index: idx, Result: res}
	if err != nil {
		rt.Err = err.Error()
	}
	tm.Runs = append(tm.Runs, rt)
}

// WriteToFile stores the TraceManager struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) error {
	if !tm.Active() {
		return nil
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*tm)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*tm, "", "\t")
	} else {
		return fmt.Errorf("report file %s needs a .yaml or .json extension", filename)
	}

	if merr != nil {
		return merr
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		return cerr
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		f.Close()
		return werr
	}
	return f.Close()
}
