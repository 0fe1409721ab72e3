// Command dispatchd runs the delay-propagation dispatcher server and
// offers a handful of operator subcommands.
package main

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/stskit/dispatch/dispatch"
	"github.com/stskit/dispatch/traveltime"
)

var cfg = viper.New()

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dispatchd",
		Short:        "Delay-propagation dispatcher for railway timetables",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "path to a config file (yaml/json/toml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error, crit")
	_ = cfg.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))

	cobra.OnInitialize(func() {
		if path, _ := root.PersistentFlags().GetString("config"); path != "" {
			cfg.SetConfigFile(path)
			_ = cfg.ReadInConfig()
		}
		cfg.SetEnvPrefix("DISPATCHD")
		cfg.AutomaticEnv()
	})

	root.AddCommand(serveCmd())
	root.AddCommand(trainsCmd())
	root.AddCommand(correctionsCmd())
	root.AddCommand(replayCmd())

	return root
}

func newLogger() log.Logger {
	logger := log.New()
	var out io.Writer = os.Stdout
	format := log.LogfmtFormat()
	if isatty.IsTerminal(os.Stdout.Fd()) {
		out = colorable.NewColorableStdout()
		format = log.TerminalFormat()
	}
	handler := log.StreamHandler(out, format)
	lvl, err := log.LvlFromString(cfg.GetString("log-level"))
	if err != nil {
		lvl = log.LvlInfo
	}
	logger.SetHandler(log.LvlFilterHandler(lvl, handler))
	return logger
}

// buildEngine wires a fresh dispatch.Engine with a rolling-average travel
// time oracle, the same pairing server.Run expects.
func buildEngine(logger log.Logger) (*dispatch.Engine, *traveltime.Estimator) {
	estimator := traveltime.New(20)
	return dispatch.NewEngine(logger.New("module", "dispatch"), estimator), estimator
}
