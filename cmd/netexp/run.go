package main

import (
	"fmt"
	"io"
	"os"

	"github.com/iti/netexp"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single experiment.",
	Long: "`run` performs one experiment with the parameters given by flags " +
		"and prints its metrics. With --out the summary row is appended to a csv file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := netexp.DefaultExperimentConfig()
		if err := applyExperimentFlags(cmd, &cfg); err != nil {
			return err
		}

		runner := netexp.CreateExperimentRunner(cfg, newLogger(cfg.Verbose))
		res, err := runner.Run(cmd.Context())
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)

		out, _ := cmd.Flags().GetString("out")
		if len(out) == 0 {
			return nil
		}
		return appendResult(out, res)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addExperimentFlags(runCmd)
	runCmd.Flags().String("out", "", "Append the summary row to this csv file")
}

// printResult writes the run's totals and metrics the way a person reads them
func printResult(w io.Writer, res *netexp.RunResult) {
	fmt.Fprintf(w, "Tx Bytes: %d\n", res.Counters.TxBytes)
	fmt.Fprintf(w, "Rx Bytes: %d\n", res.Counters.RxBytes)
	fmt.Fprintf(w, "avgThroughput: %s kbps\n", res.Metrics.GoodputKbps.String())
	fmt.Fprintf(w, "Packet Delivery Ratio: %s%%\n", res.Metrics.PDR.String())
	fmt.Fprintf(w, "Total Packets lost: %d\n", res.Metrics.PacketLoss)
	fmt.Fprintf(w, "average Delay: %s seconds\n", res.Metrics.AvgDelay.String())
}

// appendResult adds the row to the file, writing the header first if the file is new
func appendResult(path string, res *netexp.RunResult) error {
	sink := netexp.CreateCSVSink(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := sink.WriteHeader(netexp.ResultHeader); err != nil {
			return err
		}
	}
	return sink.WriteRow(res.Row.Format())
}
