// Command stepwise reports curriculum progress for a numbered series of
// test files, as a one-shot report, a file watcher or an HTTP service.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"stepwise/internal/config"
	"stepwise/internal/curriculum"
	"stepwise/internal/executor"
	"stepwise/internal/logging"
	"stepwise/internal/progress"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const envPrefix = "STEPWISE"

// app carries state shared by every subcommand.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "stepwise",
		Short: "Curriculum step progress reporter",
		Long: `stepwise reports how far a learner has progressed through a numbered
series of test files (1.test.js, 1.1.test.js, 2.test.js, ...).

In declared mode the current step is read from a pointer document
(progress.yaml: "current: 2.test.js"). In executed mode the lowest step's
test is run and the learner advances only when it passes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.String("config", config.DefaultConfigFile, "path to the YAML config file")
	flags.String("tests-dir", "", "directory containing the numbered test artifacts")
	flags.String("pointer", "", "pointer document naming the current step")
	flags.String("mode", "", "progress mode: declared or executed")
	flags.Bool("force-pass", false, "report every step as passed")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	bindFlags(a.v, flags)

	root.AddCommand(
		newReportCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newVersionCmd(a),
	)
	return root
}

// bindFlags lets every flag also be set as STEPWISE_<FLAG>, with dashes
// turned into underscores.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	_ = v.BindPFlags(fs)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// setup loads the config file and layers flags and environment over it.
// Precedence is flag, then STEPWISE_* environment, then file, then defaults.
func (a *app) setup() error {
	cfg, err := config.Load(a.v.GetString("config"))
	if err != nil {
		return err
	}

	if a.v.IsSet("tests-dir") {
		cfg.Curriculum.TestsDir = a.v.GetString("tests-dir")
	}
	if a.v.IsSet("pointer") {
		cfg.Curriculum.PointerFile = a.v.GetString("pointer")
	}
	if a.v.IsSet("mode") {
		cfg.Progress.Mode = strings.ToLower(strings.TrimSpace(a.v.GetString("mode")))
	}
	if a.v.IsSet("force-pass") {
		cfg.Progress.ForcePass = a.v.GetBool("force-pass")
	}
	if a.v.GetBool("verbose") {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}

	a.cfg = cfg
	if path := a.v.GetString("config"); path != "" {
		if _, err := os.Stat(path); err == nil {
			logging.Config("Loaded config from %s", path)
		} else if a.v.IsSet("config") {
			logging.ConfigWarn("Config file %s not found, using defaults", path)
		}
	}
	logging.BootDebug("Config loaded: tests=%s pointer=%s mode=%s forcePass=%t",
		cfg.Curriculum.TestsDir, cfg.Curriculum.PointerFile, cfg.Progress.Mode, cfg.Progress.ForcePass)
	return nil
}

// service builds the progress service from the loaded config.
func (a *app) service() (*progress.Service, error) {
	opts, err := progress.OptionsFromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	runner := executor.NewTestRunnerFromConfig(a.cfg)
	return progress.NewService(a.cfg.Curriculum.TestsDir, a.cfg.Curriculum.PointerFile, runner, opts), nil
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var ce *curriculum.Error
	if errors.As(err, &ce) && ce.Category == curriculum.CategoryInternal {
		return 2
	}
	return 1
}

// printError writes err for the user unless a command already reported it.
func printError(w io.Writer, err error) {
	var reported reportedError
	if errors.As(err, &reported) {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
