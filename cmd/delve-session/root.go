package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glthr/delve-session/internal/breakpoint"
	"github.com/glthr/delve-session/internal/commands"
	"github.com/glthr/delve-session/internal/conditions"
	"github.com/glthr/delve-session/internal/console"
	"github.com/glthr/delve-session/internal/delve"
	"github.com/glthr/delve-session/internal/logging"
	"github.com/glthr/delve-session/internal/restart"
	"github.com/glthr/delve-session/internal/session"
)

// restoreEnv carries the breakpoint state file across a re-exec.
const restoreEnv = "DELVE_SESSION_RESTORE"

func newRootCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "delve-session [flags] <program> [args...]",
		Short:         "Debug a Go program with conditional breakpoints and restart",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, _ := os.UserConfigDir()
			if err := session.ReadConfig(v, v.GetString("config"), ".", filepath.Join(home, "delve-session")); err != nil {
				return err
			}
			return logging.Init(logging.Config{
				Level:      v.GetString("log-level"),
				Format:     v.GetString("log-format"),
				File:       v.GetString("log-file"),
				WithCaller: v.GetBool("with-caller"),
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, runnerFlags(os.Args, args), args[0], args[1:])
		},
	}
	// Flags after the program belong to the program.
	cmd.Flags().SetInterspersed(false)

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default ./.delve-session.yaml)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (json, text)")
	flags.String("log-file", "", "Also log to this file (rotated)")
	flags.Bool("with-caller", false, "Log caller")
	flags.String("interpreter", "", "Command prefixed to programs that are not executable (default \"go run\")")
	flags.String("dlv-path", "", "Path to dlv (default: PATH, then GOPATH/bin)")
	flags.String("state-dir", "", "Directory for addr, pid and breakpoint state (default .dlv)")
	flags.String("build-flags", "", "Build flags passed to dlv debug")
	cobra.CheckErr(v.BindPFlags(flags))
	return cmd
}

// runnerFlags returns the words of osArgs between the executable and the
// positional arguments: the flags this session was started with.
func runnerFlags(osArgs, positional []string) []string {
	end := len(osArgs) - len(positional)
	if end <= 1 {
		return nil
	}
	return append([]string(nil), osArgs[1:end]...)
}

func run(ctx context.Context, v *viper.Viper, flags []string, program string, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()
	// Ctrl-C interrupts a running continue and never ends the session.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	settings := session.Load(v)
	runner := ""
	if len(os.Args) > 0 {
		runner = os.Args[0]
	}
	opts := append(settings.Options(), session.WithRunnerScript(runner), session.WithRunnerFlags(flags))
	cfg, err := session.FromEnvironment(program, args, opts...)
	if err != nil {
		return err
	}
	out := console.New(os.Stdout, os.Stderr)
	defer out.Flush()

	server, err := delve.Start(ctx, delve.StartOptions{
		DlvPath:    settings.DlvPath,
		Target:     program,
		Args:       args,
		BuildFlags: settings.BuildFlags,
		StateDir:   settings.StateDir,
	})
	if err != nil {
		return errors.Wrap(err, "start delve")
	}
	defer server.Stop()

	client, err := delve.Dial(server.Addr, 5*time.Second)
	if err != nil {
		return err
	}

	table := breakpoint.NewTable()
	engine := conditions.New(table, delve.Evaluator{Client: client})
	target := delve.NewController(client, table, engine)
	fs := afero.NewOsFs()
	restoreSaved(ctx, fs, target, out)

	statePath := filepath.Join(cfg.InitialDir, settings.StateDir, "breakpoints.yaml")
	restarter := restart.New(cfg, out)
	restarter.Fs = fs
	restarter.BeforeExec = func() error {
		if err := breakpoint.SaveFile(fs, statePath, table); err != nil {
			return err
		}
		if err := os.Setenv(restoreEnv, statePath); err != nil {
			return errors.Wrap(err, "set "+restoreEnv)
		}
		if err := target.Kill(); err != nil {
			log.Debug().Err(err).Msg("kill target before exec")
		}
		return server.Stop()
	}

	sess := &commands.Session{
		Config:     cfg,
		Table:      table,
		Engine:     engine,
		Target:     target,
		Restarter:  restarter,
		Out:        out,
		PromptOut:  os.Stdout,
		Interrupts: interrupts,
	}
	err = sess.Run(ctx, os.Stdin)
	if kerr := target.Kill(); kerr != nil {
		log.Debug().Err(kerr).Msg("kill target")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// restoreSaved recreates the breakpoints a previous session saved before it
// re-exec'd this process.
func restoreSaved(ctx context.Context, fs afero.Fs, target *delve.Controller, out *console.Console) {
	path := os.Getenv(restoreEnv)
	if path == "" {
		return
	}
	_ = os.Unsetenv(restoreEnv)
	saved, err := breakpoint.LoadFile(fs, path)
	if err != nil {
		out.Errorf("Could not restore breakpoints: %v", err)
		return
	}
	for _, err := range target.Restore(ctx, saved) {
		out.Error(err.Error())
	}
	if n := saved.Len(); n > 0 {
		out.Printf("Restored %d breakpoint(s) from %s", n, path)
	}
}
