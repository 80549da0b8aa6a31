package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/contactkeval/bs-replay/internal/config"
	"github.com/contactkeval/bs-replay/internal/logger"
)

// app carries the resolved configuration and the console streams shared by
// all subcommands.
type app struct {
	cfg config.Config
	in  io.Reader
	out io.Writer
}

func newApp(in io.Reader, out io.Writer) (*app, *cli.Command) {
	a := &app{cfg: config.Default(), in: in, out: out}
	cmd := &cli.Command{
		Name:      "bs-replay",
		Usage:     "Black-Scholes option pricing and a covered-call replay over daily closes",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a JSON or YAML config `FILE`",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "KEY=VALUE file loaded into the environment (default ./.env when present)",
			},
			&cli.IntFlag{
				Name:    "verbosity",
				Aliases: []string{"v"},
				Usage:   "log level: 0=error 1=info 2=debug 3=trace",
				Value:   1,
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.priceCommand(),
			a.backtestCommand(),
			a.volCommand(),
			a.serveCommand(),
		},
	}
	return a, cmd
}

// before loads the environment and the config file, then applies the global flags.
func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var envFiles []string
	if f := cmd.String("env-file"); f != "" {
		envFiles = append(envFiles, f)
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		return ctx, err
	}

	if path := cmd.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return ctx, err
		}
		a.cfg = cfg
	}
	if cmd.IsSet("verbosity") {
		a.cfg.Verbosity = int(cmd.Int("verbosity"))
	}
	logger.SetVerbosity(a.cfg.Verbosity)
	return ctx, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, cmd := newApp(os.Stdin, os.Stdout)
	err := cmd.Run(ctx, os.Args)
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
