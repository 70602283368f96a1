package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/iti/netexp"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a parameter sweep.",
	Long: "`sweep` runs every experiment a sweep configuration describes, one " +
		"after the other, and writes one summary row per experiment. Without " +
		"--config the node count sweep from 10 to 90 nodes is run. Experiment " +
		"flags override the base configuration of the sweep.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadSweepCfg(cmd)
		if err != nil {
			return err
		}
		if err := applyExperimentFlags(cmd, &sc.Base); err != nil {
			return err
		}
		if out, _ := cmd.Flags().GetString("out"); len(out) > 0 {
			sc.Output = out
		}
		if db, _ := cmd.Flags().GetString("db"); len(db) > 0 {
			sc.Database = db
		}
		if report, _ := cmd.Flags().GetString("report"); len(report) > 0 {
			sc.Report = report
		}

		logger := newLogger(sc.Base.Verbose)
		sw, err := netexp.BuildSweep(sc, logger)
		if err != nil {
			return err
		}
		atexit.Register(func() {
			if err := sw.Close(); err != nil {
				logger.WithError(err).Warn("closing result database")
			}
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		results, runErr := sw.Run(ctx)
		if err := sw.WriteReport(sc.Report); err != nil {
			logger.WithError(err).Warn("writing sweep report")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sweep %s (%s): %d of %d runs written to %s\n",
			sw.Name, sw.SweepID, len(results), len(sw.Configs), sc.Output)
		return runErr
	},
}

// loadSweepCfg reads the file named by --config, or takes the default sweep
func loadSweepCfg(cmd *cobra.Command) (*netexp.SweepCfg, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	if len(cfgFile) == 0 {
		return netexp.DefaultSweepCfg(), nil
	}
	if _, err := netexp.CheckFiles([]string{cfgFile}, true); err != nil {
		return nil, err
	}
	return netexp.ReadSweepCfg(cfgFile, netexp.UseYAML(cfgFile), []byte{})
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the default sweep configuration.",
	Long:  "`config --write [file]` writes the default sweep configuration as yaml or json, by extension.",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("write")
		if len(file) == 0 {
			return fmt.Errorf("config needs --write [file]")
		}
		return netexp.DefaultSweepCfg().WriteToFile(file)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	addExperimentFlags(sweepCmd)
	sweepCmd.Flags().String("config", "", "Sweep configuration file (.yaml or .json)")
	sweepCmd.Flags().String("out", "", "Summary csv file, overrides the configuration")
	sweepCmd.Flags().String("db", "", "Record every run in this sqlite database")
	sweepCmd.Flags().String("report", "", "Write a per-run report (.yaml or .json)")

	rootCmd.AddCommand(configCmd)
	configCmd.Flags().String("write", "", "File to write")
}

