package netexp

// sweep.go runs an ordered list of experiment configurations one after the
// other, each with its own runner and counters, and sends each run's summary
// row to the result sink.  The first failure stops the sweep

import (
	"context"
	"fmt"
	"github.com/sirupsen/logrus"
)

// ResultRecorder receives the full result of every run, in addition to the sink's row
type ResultRecorder interface {
	Record(sweepID string, idx int, res *RunResult) error
	Close() error
}

// Sweep drives a parameter sweep
type Sweep struct {
	Name     string
	SweepID  string
	Configs  []ExperimentConfig
	Sink     ResultSink
	Recorder ResultRecorder // optional
	Trace    *TraceManager  // optional

	// KeepDelays asks each run to summarize its per-packet delay distribution
	KeepDelays bool

	logger *logrus.Logger
}

// CreateSweep is a constructor
func CreateSweep(name string, cfgs []ExperimentConfig, sink ResultSink, logger *logrus.Logger) *Sweep {
	sw := new(Sweep)
	sw.Name = name
	sw.SweepID = NewSweepID()
	sw.Configs = cfgs
	sw.Sink = sink
	if logger == nil {
		logger = DefaultLogger()
	}
	sw.logger = logger
	return sw
}

// BuildSweep expands a sweep configuration and connects the destinations it names
func BuildSweep(sc *SweepCfg, logger *logrus.Logger) (*Sweep, error) {
	cfgs, err := sc.Configs()
	if err != nil {
		return nil, err
	}
	if _, err := CheckOutputFiles([]string{sc.Output, sc.Database, sc.Report}); err != nil {
		return nil, err
	}
	sw := CreateSweep(sc.Name, cfgs, CreateCSVSink(sc.Output), logger)
	if len(sc.Database) > 0 {
		rec, err := OpenSQLiteRecorder(sc.Database)
		if err != nil {
			return nil, err
		}
		sw.Recorder = rec
	}
	if len(sc.Report) > 0 {
		sw.Trace = CreateTraceManager(sc.Name, sw.SweepID, true)
		sw.KeepDelays = true
	}
	return sw, nil
}

// Run writes the header, then performs the runs in order.  The results of the
// runs completed are returned, with the error that stopped the sweep if any
func (sw *Sweep) Run(ctx context.Context) ([]*RunResult, error) {
	results := make([]*RunResult, 0, len(sw.Configs))
	if err := sw.Sink.WriteHeader(ResultHeader); err != nil {
		return results, fmt.Errorf("sweep %s: %w", sw.Name, err)
	}

	for idx, cfg := range sw.Configs {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("sweep %s stopped before run %d: %w", sw.Name, idx, err)
		}
		runner := CreateExperimentRunner(cfg, sw.logger)
		runner.KeepDelays = sw.KeepDelays

		res, err := runner.Run(ctx)
		sw.Trace.AddRun(idx, res, err)
		if err != nil {
			return results, fmt.Errorf("sweep %s run %d: %w", sw.Name, idx, err)
		}
		if err := sw.Sink.WriteRow(res.Row.Format()); err != nil {
			return results, fmt.Errorf("sweep %s run %d: %w", sw.Name, idx, err)
		}
		if sw.Recorder != nil {
			if err := sw.Recorder.Record(sw.SweepID, idx, res); err != nil {
				return results, fmt.Errorf("sweep %s run %d: %w", sw.Name, idx, err)
			}
		}
		results = append(results, res)
		sw.logger.WithFields(logrus.Fields{"sweep": sw.Name, "run": idx, "of": len(sw.Configs)}).Info("run recorded")
	}
	return results, nil
}

// WriteReport writes the gathered run records, when a report was asked for
func (sw *Sweep) WriteReport(filename string) error {
	if !sw.Trace.Active() || len(filename) == 0 {
		return nil
	}
	return sw.Trace.WriteToFile(filename)
}

// Close releases the recorder, if there is one
func (sw *Sweep) Close() error {
	if sw.Recorder == nil {
		return nil
	}
	return sw.Recorder.Close()
}
