package netexp

// metrics.go derives the four summary metrics of a run from a snapshot of its
// counters.  A metric whose denominator is zero is undefined, and carries that
// explicitly rather than as a NaN or infinity

import (
	"encoding/json"
	"errors"
	"fmt"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
	"sort"
	"strconv"
)

// ErrUndefinedMetric is returned when the value of an undefined metric is asked for
var ErrUndefinedMetric = errors.New("metric undefined")

// UndefinedText is how an undefined metric is written to the results
const UndefinedText = "NA"

// Metric is a derived value that may be undefined
type Metric struct {
	Value   float64
	Defined bool
}

// DefinedMetric is a constructor for a metric with a value
func DefinedMetric(v float64) Metric {
	return Metric{Value: v, Defined: true}
}

// UndefinedMetric is a constructor for a metric without one
func UndefinedMetric() Metric {
	return Metric{}
}

// Float returns the value, or ErrUndefinedMetric
func (m Metric) Float() (float64, error) {
	if !m.Defined {
		return 0.0, ErrUndefinedMetric
	}
	return m.Value, nil
}

func (m Metric) String() string {
	if !m.Defined {
		return UndefinedText
	}
	return strconv.FormatFloat(m.Value, 'g', -1, 64)
}

// MarshalJSON writes an undefined metric as null
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// MarshalYAML writes an undefined metric as null
func (m Metric) MarshalYAML() (any, error) {
	if !m.Defined {
		return nil, nil
	}
	return m.Value, nil
}

// UnmarshalJSON reads null as an undefined metric
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = UndefinedMetric()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = DefinedMetric(v)
	return nil
}

// UnmarshalYAML reads null as an undefined metric
func (m *Metric) UnmarshalYAML(value *yaml.Node) error {
	if value.ShortTag() == "!!null" {
		*m = UndefinedMetric()
		return nil
	}
	var v float64
	if err := value.Decode(&v); err != nil {
		return err
	}
	*m = DefinedMetric(v)
	return nil
}

// Metrics are the derived results of one run
type Metrics struct {
	GoodputKbps  Metric `json:"goodput" yaml:"goodput"`
	PDR          Metric `json:"pdr" yaml:"pdr"` // percent
	PacketLoss   uint64 `json:"packetloss" yaml:"packetloss"`
	AvgDelay     Metric `json:"avgdelay" yaml:"avgdelay"` // seconds
	Anomaly      bool   `json:"anomaly" yaml:"anomaly"`
	AnomalyCause string `json:"anomalycause,omitempty" yaml:"anomalycause,omitempty"`
}

// DeriveMetrics is a pure function of a counters snapshot
func DeriveMetrics(snap CountersSnapshot) Metrics {
	var mtr Metrics

	if snap.RxPackets > 0 && snap.FirstTxSet && snap.LastRxSet && snap.LastRxTime > snap.FirstTxTime {
		mtr.GoodputKbps = DefinedMetric(float64(snap.RxBytes) * 8.0 / (snap.LastRxTime - snap.FirstTxTime) / 1000.0)
	}

	if snap.TxPackets > 0 {
		mtr.PDR = DefinedMetric(float64(snap.RxPackets) * 100.0 / float64(snap.TxPackets))
	}

	if snap.RxPackets > 0 {
		mtr.AvgDelay = DefinedMetric(snap.DelaySum / float64(snap.RxPackets))
	}

	// loss is never reported negative, more receptions than transmissions is flagged instead
	if snap.RxPackets <= snap.TxPackets {
		mtr.PacketLoss = snap.TxPackets - snap.RxPackets
	} else {
		mtr.Anomaly = true
		mtr.AnomalyCause = fmt.Sprintf("received %d packets but only %d transmitted", snap.RxPackets, snap.TxPackets)
	}
	return mtr
}

// ResultRow is one line of the sweep summary
type ResultRow struct {
	Nodes     int
	Goodput   Metric // kbps
	Delay     Metric // seconds
	RxPackets uint64
	Loss      uint64
	PDR       Metric // percent
}

// CreateResultRow assembles a row from a run's configuration and results
func CreateResultRow(nodes int, snap CountersSnapshot, mtr Metrics) ResultRow {
	return ResultRow{Nodes: nodes, Goodput: mtr.GoodputKbps, Delay: mtr.AvgDelay,
		RxPackets: snap.RxPackets, Loss: mtr.PacketLoss, PDR: mtr.PDR}
}

// ResultHeader is the first line of the sweep summary
const ResultHeader = "n_nodes,throughput,delay,packetRx,packetLoss,pdr"

// Format renders the row in the column order of ResultHeader
func (row ResultRow) Format() string {
	return fmt.Sprintf("%d,%s,%s,%d,%d,%s", row.Nodes, row.Goodput.String(), row.Delay.String(),
		row.RxPackets, row.Loss, row.PDR.String())
}

// DelayStats summarizes the distribution of per-packet delays
type DelayStats struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
	Min    float64 `json:"min" yaml:"min"`
	Median float64 `json:"median" yaml:"median"`
	P95    float64 `json:"p95" yaml:"p95"`
	Max    float64 `json:"max" yaml:"max"`
}

// ComputeDelayStats summarizes the delays, nil when there are none
func ComputeDelayStats(delays []float64) *DelayStats {
	if len(delays) == 0 {
		return nil
	}
	sorted := make([]float64, len(delays))
	copy(sorted, delays)
	sort.Float64s(sorted)

	ds := new(DelayStats)
	ds.Count = len(sorted)
	ds.Mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		ds.StdDev = stat.StdDev(sorted, nil)
	}
	ds.Min = sorted[0]
	ds.Max = sorted[len(sorted)-1]
	ds.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	ds.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return ds
}
