package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	collector "github.com/jamesprial/go-reddit-collector"
	"github.com/jamesprial/go-reddit-collector/internal/config"
	"github.com/jamesprial/go-reddit-collector/internal/export"
)

// app carries state shared by the subcommands.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	name       string
	v          *viper.Viper

	cfg       *config.Config
	logger    *slog.Logger
	collector *collector.Collector
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "redditcollect",
		Short:         "redditcollect gathers Reddit posts, comments and user activity for analysis.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: ./redditcollect.yaml if present)")
	pf.String("backend", string(collector.BackendPublic), "data source: public or official")
	pf.Bool("stealth", false, "slow, jittered pacing for long collections")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.String("format", string(export.JSON), "output: json, jsonl, csv, sqlite or table")
	pf.String("out", ".", "directory for exported files")
	pf.StringVar(&a.name, "name", "", "base file name, generated from the request when empty")

	root.AddCommand(
		a.subredditCmd(),
		a.searchCmd(),
		a.userCmd(),
		a.postCmd(),
		a.watchCmd(),
		a.statusCmd(),
	)
	return root
}

// flagKeys binds persistent flags onto configuration keys. A flag only
// overrides the file and environment when it is set.
var flagKeys = map[string]string{
	"backend":   "backend",
	"stealth":   "collector.stealth",
	"log-level": "log.level",
	"format":    "export.format",
	"out":       "export.dir",
}

func (a *app) setup(cmd *cobra.Command) error {
	a.v = config.New(a.configPath)
	for flag, key := range flagKeys {
		if err := a.v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
			return err
		}
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := config.ParseLevel(cfg.Log.Level)
	a.logger = slog.New(tint.NewHandler(a.errOut, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))

	a.collector, err = collector.New(cfg.CollectorConfig(a.logger))
	return err
}
