package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/e3deploy/internal/calibrate"
	"github.com/san-kum/e3deploy/internal/config"
	"github.com/san-kum/e3deploy/internal/deploy"
	"github.com/san-kum/e3deploy/internal/display"
	"github.com/san-kum/e3deploy/internal/input"
	"github.com/san-kum/e3deploy/internal/observability"
	"github.com/san-kum/e3deploy/internal/plotting"
	"github.com/san-kum/e3deploy/internal/storage"
)

var (
	dataDir   string
	logLevel  string
	logFormat string
	// plot
	pngDir    string
	plotWidth int
	// calibrate
	padIndex int
	padType  string
	calOut   string
	// config
	dumpOut string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "e3deploy <config>",
		Short:         "deploy a humanoid locomotion policy in simulation",
		Args:          cobra.ExactArgs(1),
		RunE:          runDeploy,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".e3deploy", "data directory for recorded runs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list recorded runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot <run_id>",
		Short: "plot joint torques and velocities of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngDir, "png", "", "also write PNG figures into this directory")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "terminal chart width")

	exportCmd := &cobra.Command{
		Use:   "export <run_id>",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "interactive gamepad calibration",
		Args:  cobra.NoArgs,
		RunE:  runCalibrate,
	}
	calibrateCmd.Flags().IntVar(&padIndex, "index", 0, "joystick index")
	calibrateCmd.Flags().StringVar(&padType, "type", "custom", "gamepad type recorded in the profile")
	calibrateCmd.Flags().StringVarP(&calOut, "output", "o", "", "calibration file (default gamepad_configs/gamepad_calibration_<type>.json)")

	configCmd := &cobra.Command{
		Use:   "config <config>",
		Short: "print the effective configuration with defaults filled in",
		Args:  cobra.ExactArgs(1),
		RunE:  dumpConfig,
	}
	configCmd.Flags().StringVarP(&dumpOut, "output", "o", "", "write to this file instead of stdout")

	rootCmd.AddCommand(runsCmd, plotCmd, exportCmd, calibrateCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		observability.Sync()
		os.Exit(1)
	}
	observability.Sync()
}

// projectRoot is the working directory when it holds a configs directory,
// otherwise the parent of the directory containing the executable.
func projectRoot() string {
	if wd, err := os.Getwd(); err == nil {
		if fi, err := os.Stat(filepath.Join(wd, config.ConfigsDir)); err == nil && fi.IsDir() {
			return wd
		}
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(filepath.Dir(exe))
	}
	return "."
}

func initLogging(cfg config.LogConfig) *zap.Logger {
	if logLevel != "" {
		cfg.Level = logLevel
	}
	if logFormat != "" {
		cfg.Format = logFormat
	}
	observability.InitializeLogger(cfg)
	return observability.GetLogger()
}

func runDeploy(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(args[0], projectRoot())
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log := initLogging(cfg.Log)
	log.Info("Configuration loaded", zap.String("path", path), zap.String("timing", deploy.Describe(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := deploy.Setup(cfg, deploy.Options{
		ConfigPath: path,
		DataDir:    dataDir,
		Output:     os.Stdout,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	p := display.NewPrinter(os.Stdout)
	p.Header("E3 Policy Deployment")
	p.Section("Simulation Starting")
	p.Info("Config", path)
	p.Info("Duration", fmt.Sprintf("%gs", cfg.SimulationDuration))
	p.Info("Control Frequency", fmt.Sprintf("%.1f Hz", 1/cfg.ControlPeriod()))
	if cfg.KeyboardEnabled {
		p.Info("Input", "keyboard (w/s j/l a/d, c clear, b reset, m mode, t track, r camera, q quit)")
	} else {
		p.Info("Input", fmt.Sprintf("gamepad (%s)", cfg.GamepadType))
	}

	res, runErr := r.Run(ctx)
	closeErr := r.Close()

	fmt.Fprint(os.Stdout, "\r\n")
	if res.RunID != "" {
		p.Info("Recorded run", res.RunID)
	}
	return errors.Join(runErr, closeErr)
}

func listRuns(cmd *cobra.Command, args []string) error {
	initLogging(config.DefaultConfig().Log)
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSAMPLES\tDT\tDECIMATION\tTRACKING ERR\tEFFORT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.4fs\t%d\t%.3f\t%.2f\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Samples,
			run.Dt,
			run.Decimation,
			run.Metrics["tracking_error"],
			run.Metrics["control_effort"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	initLogging(config.DefaultConfig().Log)
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	opts := plotting.DefaultOptions()
	opts.Width = plotWidth
	if err := plotting.Terminal(os.Stdout, *meta, samples, opts); err != nil {
		return err
	}

	if pngDir != "" {
		paths, err := plotting.SavePNG(pngDir, *meta, samples)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Printf("wrote %s\n", p)
		}
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
}

func dumpConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.ResolvePath(args[0], projectRoot()))
	if err != nil {
		return err
	}
	if dumpOut == "" {
		return config.Write(os.Stdout, cfg)
	}
	if err := config.Save(dumpOut, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", dumpOut)
	return nil
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	log := initLogging(config.DefaultConfig().Log)
	out := calOut
	if out == "" {
		out = input.DefaultCalibrationPath(projectRoot(), padType)
	}

	cal, err := calibrate.Run(padIndex, padType, out)
	if err != nil {
		return err
	}
	if cal == nil {
		fmt.Println("calibration aborted")
		return nil
	}
	log.Info("Calibration saved", zap.String("path", out), zap.String("joystick", cal.JoystickName))
	fmt.Printf("saved %s\n", out)
	return nil
}
