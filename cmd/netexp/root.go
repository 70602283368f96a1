// Command netexp runs instrumented network experiments and parameter sweeps
// over them, writing one summary row per experiment
package main

import (
	"fmt"
	"strconv"

	"github.com/iti/netexp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "netexp",
	Short: "netexp runs instrumented wireless network experiments.",
	Long: `netexp runs instrumented wireless network experiments, measuring ` +
		`goodput, packet delivery ratio, packet loss and end-to-end delay, ` +
		`and sweeps those measurements across experiment parameters.`,
	SilenceUsage: true,
}

// paramUsage describes each experiment parameter flag
var paramUsage = map[string]string{
	"totaltime":      "Simulation end time (s)",
	"nodes":          "Number of sensor nodes",
	"bases":          "Number of base stations, the first is the sink",
	"sinks":          "Number of routing sinks",
	"protocol":       "1=OLSR;2=AODV;3=DSDV;4=DSR",
	"lossModel":      "1=Friis;2=ItuR1411Los;3=TwoRayGround;4=LogDistance",
	"fading":         "0=None;1=Nakagami",
	"mobility":       "0=Stationary;1=RandomWalk2d;2=RandomWayPoint",
	"traceMobility":  "Enable mobility tracing",
	"mobilityLog":    "Mobility trace file",
	"yPos":           "Row of the stationary node grid (m)",
	"rate":           "Sender data rate, e.g. 2048bps",
	"packetSize":     "Packet size in bytes",
	"maxPackets":     "Packets per sender, 0 for no limit",
	"port":           "Receive port",
	"speed":          "Node speed (m/s)",
	"pause":          "Node pause (s)",
	"macMode":        "0=CSMA;1=TDMA",
	"frequency":      "Operating frequency in Hz",
	"baseHeight":     "Antenna height for base station in meters",
	"nodeHeight":     "Antenna height for node in meters",
	"baseGain":       "Antenna gain for base station (dB)",
	"nodeGain":       "Antenna gain for node (dB)",
	"txRange":        "Reception range under TDMA (m)",
	"slotTime":       "TDMA slot time (us)",
	"guardTime":      "TDMA guard time (us)",
	"interFrameTime": "TDMA inter-frame time (us)",
	"phyRate":        "Physical layer rate (bits/s)",
	"verbose":        "0=quiet;1=log receptions;2=debug",
}

// addExperimentFlags gives the command one flag per experiment parameter,
// defaulted from DefaultExperimentConfig
func addExperimentFlags(cmd *cobra.Command) {
	dflt := netexp.DefaultExperimentConfig()
	for _, name := range netexp.ParamNames() {
		value, _ := dflt.GetParam(name)
		usage := paramUsage[name]
		switch netexp.ExpParams[name] {
		case "int":
			v, _ := strconv.Atoi(value)
			cmd.Flags().Int(name, v, usage)
		case "float":
			v, _ := strconv.ParseFloat(value, 64)
			cmd.Flags().Float64(name, v, usage)
		case "bool":
			v, _ := strconv.ParseBool(value)
			cmd.Flags().Bool(name, v, usage)
		default:
			cmd.Flags().String(name, value, usage)
		}
	}
	cmd.Flags().StringArray("set", nil, "Set a parameter, name=value (repeatable)")
}

// applyExperimentFlags copies the flags that were given on the command line into cfg
func applyExperimentFlags(cmd *cobra.Command, cfg *netexp.ExperimentConfig) error {
	for _, name := range netexp.ParamNames() {
		if !cmd.Flags().Changed(name) {
			continue
		}
		if err := cfg.SetParam(name, cmd.Flags().Lookup(name).Value.String()); err != nil {
			return err
		}
	}
	assignments, _ := cmd.Flags().GetStringArray("set")
	for _, assignment := range assignments {
		if err := cfg.SetParamAssignment(assignment); err != nil {
			return err
		}
	}
	return nil
}

// newLogger builds the logger, its level following the verbose setting
func newLogger(verbose int) *logrus.Logger {
	logger := netexp.DefaultLogger()
	switch {
	case verbose >= 2:
		logger.SetLevel(logrus.DebugLevel)
	case verbose == 1:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func main() {
	Execute()
}
