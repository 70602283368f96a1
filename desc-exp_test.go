package netexp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultExperimentConfigValid(t *testing.T) {
	cfg := DefaultExperimentConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "AODV", cfg.ProtocolName())
	assert.Equal(t, 51, cfg.TotalNodes())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultExperimentConfig()
	cfg.Nodes = 0
	cfg.LossModel = 9
	cfg.PacketSize = 4
	cfg.DataRate = "fast"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "nodes must be at least 1")
	assert.Contains(t, msg, "lossmodel")
	assert.Contains(t, msg, "packetsize")
	assert.Contains(t, msg, "fast")
}

func TestValidateTimestampHorizon(t *testing.T) {
	cfg := DefaultExperimentConfig()
	cfg.TotalTime = MaxSeqTsTime + 10.0
	assert.Error(t, cfg.Validate())

	cfg.TotalTime = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateTdmaSlot(t *testing.T) {
	cfg := DefaultExperimentConfig()
	cfg.MacMode = int(TDMA)
	cfg.TxRange = 40000.0
	require.NoError(t, cfg.Validate())

	// 1500 bytes at 6Mbps takes 2ms, more than the 1ms of usable slot
	cfg.PacketSize = 1500
	assert.Error(t, cfg.Validate())
}

func TestSetParam(t *testing.T) {
	cfg := DefaultExperimentConfig()

	require.NoError(t, cfg.SetParam("nodes", "30"))
	require.NoError(t, cfg.SetParam("totaltime", "120"))
	require.NoError(t, cfg.SetParam("speed", "12.5"))
	require.NoError(t, cfg.SetParam("rate", "4kbps"))
	require.NoError(t, cfg.SetParam("traceMobility", "1"))
	require.NoError(t, cfg.SetParamAssignment("lossModel = 4"))

	assert.Equal(t, 30, cfg.Nodes)
	assert.Equal(t, 120.0, cfg.TotalTime)
	assert.Equal(t, 12.5, cfg.NodeSpeed)
	assert.Equal(t, "4kbps", cfg.DataRate)
	assert.True(t, cfg.TraceMobility)
	assert.Equal(t, int(LogDistanceLoss), cfg.LossModel)

	assert.Error(t, cfg.SetParam("nodes", "many"))
	assert.Error(t, cfg.SetParam("nodes", "2.5"))
	assert.Error(t, cfg.SetParam("colour", "blue"))
	assert.Error(t, cfg.SetParamAssignment("nodes"))
}

func TestGetParamCoversEverySetParam(t *testing.T) {
	cfg := DefaultExperimentConfig()
	for _, name := range ParamNames() {
		value, err := cfg.GetParam(name)
		require.NoError(t, err, name)

		cpy := DefaultExperimentConfig()
		require.NoError(t, cpy.SetParam(name, value), name)
		assert.Equal(t, cfg, cpy, name)
	}
}

func TestLossModelParameterTakesEffect(t *testing.T) {
	for _, lm := range []LossModel{FriisLoss, ItuR1411LosLoss, TwoRayGroundLoss, LogDistanceLoss} {
		cfg := DefaultExperimentConfig()
		cfg.LossModel = int(lm)
		assert.Equal(t, lm, CreateChannel(&cfg).Loss)
	}
}

func TestVaryDescExpand(t *testing.T) {
	vd := VaryDesc{Param: "nodes", From: 10, To: 90, Step: 10}
	values, err := vd.Expand()
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "20", "30", "40", "50", "60", "70", "80", "90"}, values)

	vd = VaryDesc{Param: "speed", From: 0.1, To: 0.3, Step: 0.1}
	values, err = vd.Expand()
	require.NoError(t, err)
	assert.Len(t, values, 3)

	vd = VaryDesc{Param: "macMode", Values: []string{"0", "1"}}
	values, err = vd.Expand()
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, values)

	_, err = (&VaryDesc{Param: "nodes", From: 10, To: 5, Step: 1}).Expand()
	assert.Error(t, err)
	_, err = (&VaryDesc{Param: "bogus", Values: []string{"1"}}).Expand()
	assert.Error(t, err)
}

func TestDefaultSweepConfigs(t *testing.T) {
	cfgs, err := DefaultSweepCfg().Configs()
	require.NoError(t, err)
	require.Len(t, cfgs, 9)
	for idx, cfg := range cfgs {
		assert.Equal(t, 10*(idx+1), cfg.Nodes)
		assert.Equal(t, 3000.0, cfg.YPos)
		assert.Equal(t, int(TDMA), cfg.MacMode)
		assert.Equal(t, 40000.0, cfg.TxRange)
		assert.Equal(t, int(RandomWaypoint), cfg.Mobility)
	}
	assert.Equal(t, "exp_stats-0", cfgs[0].Name)
}

func TestSweepConfigsCrossProduct(t *testing.T) {
	sc := DefaultSweepCfg()
	sc.Vary = []VaryDesc{{Param: "macMode", Values: []string{"0", "1"}}, {Param: "nodes", Values: []string{"5", "6", "7"}}}
	cfgs, err := sc.Configs()
	require.NoError(t, err)
	require.Len(t, cfgs, 6)
	assert.Equal(t, 0, cfgs[2].MacMode)
	assert.Equal(t, 7, cfgs[2].Nodes)
	assert.Equal(t, 1, cfgs[3].MacMode)
	assert.Equal(t, 5, cfgs[3].Nodes)

	sc.Vary = []VaryDesc{{Param: "nodes", Values: []string{"0"}}}
	_, err = sc.Configs()
	assert.Error(t, err)
}

func TestSweepCfgFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"sweep.yaml", "sweep.json"} {
		file := filepath.Join(dir, name)
		sc := DefaultSweepCfg()
		sc.Base.Nodes = 12
		sc.Database = "results.sqlite3"
		require.NoError(t, sc.WriteToFile(file))

		got, err := ReadSweepCfg(file, UseYAML(file), []byte{})
		require.NoError(t, err)
		assert.Equal(t, sc, got, name)
	}

	assert.Error(t, DefaultSweepCfg().WriteToFile(filepath.Join(dir, "sweep.txt")))
}

func TestReadSweepCfgKeepsDefaults(t *testing.T) {
	dict := []byte(`
name: short
base:
  nodes: 4
  macmode: 0
vary:
  - param: speed
    values: ["5", "10"]
output: short.csv
`)
	sc, err := ReadSweepCfg("", true, dict)
	require.NoError(t, err)
	assert.Equal(t, "short", sc.Name)
	assert.Equal(t, 4, sc.Base.Nodes)
	assert.Equal(t, 0, sc.Base.MacMode)
	assert.Equal(t, "2048bps", sc.Base.DataRate)
	assert.Equal(t, 3000.0, sc.Base.YPos)
	require.Len(t, sc.Vary, 1)

	cfgs, err := sc.Configs()
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, 10.0, cfgs[1].NodeSpeed)
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "present.yaml")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	ok, err := CheckOutputFiles([]string{filepath.Join(dir, "out.csv"), ""})
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = CheckOutputFiles([]string{filepath.Join(dir, "nope", "out.csv")})
	assert.False(t, ok)
	assert.Error(t, err)

	ok, err = CheckFiles([]string{existing}, true)
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, _ = CheckFiles([]string{filepath.Join(dir, "absent.yaml")}, true)
	assert.False(t, ok)
}
