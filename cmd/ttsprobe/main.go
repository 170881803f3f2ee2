// Ttsprobe checks a Gradio TTS server: it loads every engine and can run
// end-to-end synthesis on the engines that need no reference audio.
//
// Usage:
//
//	ttsprobe load  [--url U] [--config F] [--report F]
//	ttsprobe synth [--url U] [--engine N | --all] [--output D] [--report F]
//	ttsprobe version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nadzzz/ttsprobe/internal/config"
	"github.com/nadzzz/ttsprobe/internal/harness"
	"github.com/nadzzz/ttsprobe/internal/report"
	"github.com/nadzzz/ttsprobe/internal/result"
	"github.com/nadzzz/ttsprobe/internal/transport/gradio"
)

// version is set at build time via ldflags.
var version = "dev"

const usage = `usage: ttsprobe <command> [flags]

commands:
  load     load every engine and report which are ready
  synth    synthesize test phrases and validate the audio
  version  print version and exit
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "load":
		return runLoad(args[1:], stdout, stderr)
	case "synth":
		return runSynth(args[1:], stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "ttsprobe %s\n", version)
		return 0
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

// commonFlags registers the flags shared by every command.
func commonFlags(name string) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to config file (e.g. configs/ttsprobe.yaml)")
	fs.String("url", "", "Gradio server URL")
	fs.Duration("timeout", 0, "per-call timeout")
	fs.String("report", "", "write a YAML or JSON report to this file")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-file", "", "also write logs to this rotated file")
	return fs, configFile
}

// setup parses flags, loads configuration and installs the logger. A nil
// config means the command is over and code is its exit status.
func setup(fs *pflag.FlagSet, configFile *string, args []string, stderr io.Writer) (*config.Config, io.Closer, int) {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, nil, 0
		}
		return nil, nil, 2
	}

	cfg, err := config.Load(*configFile, fs)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return nil, nil, 1
	}
	closer, err := config.SetupLogging(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return nil, nil, 1
	}
	cfg.Server.URL = strings.TrimRight(cfg.Server.URL, "/") + "/"
	slog.Debug("ttsprobe starting", "version", version, "url", cfg.Server.URL)
	return cfg, closer, 0
}

func connect(ctx context.Context, cfg *config.Config, con *report.Console) (*gradio.Client, error) {
	con.Println("\nConnecting to Gradio...")
	client, err := gradio.Connect(ctx, gradio.Options{
		URL:     cfg.Server.URL,
		Timeout: cfg.Server.Timeout,
	})
	if err != nil {
		con.Println("ERROR: Failed to connect: " + err.Error())
		slog.Error("connect failed", "url", cfg.Server.URL, "error", err)
		return nil, err
	}
	con.Println("Connected successfully")
	return client, nil
}

func runLoad(args []string, stdout, stderr io.Writer) int {
	fs, configFile := commonFlags("load")
	cfg, closer, code := setup(fs, configFile, args, stderr)
	if cfg == nil {
		return code
	}
	defer closer.Close()

	registry, err := cfg.Registry()
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	con := report.NewConsole(stdout)
	con.Header("TTS Engine Test Suite")
	con.Println("Target: " + cfg.Server.URL)

	client, err := connect(ctx, cfg, con)
	if err != nil {
		return 1
	}
	defer client.Close()

	con.Header("Loading TTS Models")
	h := harness.New(registry, client, harness.Options{
		Target:   cfg.Server.URL,
		Observer: con,
	})
	res := h.RunLoadCheck(ctx)
	con.LoadSummary(res)

	return finish(cfg, res, report.AnySuccess, stderr)
}

func runSynth(args []string, stdout, stderr io.Writer) int {
	fs, configFile := commonFlags("synth")
	fs.String("engine", "", "TTS engine to test (default KittenTTS)")
	fs.String("output", "", "directory for validated audio")
	fs.Bool("all", false, "test every engine that needs no reference audio")
	fs.StringSlice("phrase", nil, "phrase to synthesize (repeatable)")
	cfg, closer, code := setup(fs, configFile, args, stderr)
	if cfg == nil {
		return code
	}
	defer closer.Close()

	registry, err := cfg.Registry()
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	con := report.NewConsole(stdout)
	con.Header("TTS Audio Synthesis Test")
	con.Println("Target: " + cfg.Server.URL)
	con.Println("Output: " + cfg.Synthesis.OutputDir)

	// Selection is checked against the registry alone so a bad --engine
	// fails before anything goes over the wire.
	engines, err := harness.SelectEngines(registry, cfg.Synthesis.Engine, cfg.Synthesis.All)
	if err != nil {
		con.Println("ERROR: " + err.Error())
		slog.Error("bad engine selection", "engine", cfg.Synthesis.Engine, "all", cfg.Synthesis.All, "error", err)
		return 1
	}

	if err := os.MkdirAll(cfg.Synthesis.OutputDir, 0o755); err != nil {
		fmt.Fprintf(stderr, "ERROR: creating output dir: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := connect(ctx, cfg, con)
	if err != nil {
		return 1
	}
	defer client.Close()

	h := harness.New(registry, client, harness.Options{
		Target:    cfg.Server.URL,
		OutputDir: cfg.Synthesis.OutputDir,
		Phrases:   cfg.Synthesis.Phrases,
		Observer:  con,
	})
	res := h.RunSynthesis(ctx, engines)
	con.SynthesisSummary(res)

	return finish(cfg, res, report.AllSuccess, stderr)
}

// finish writes the optional report file and maps the run to an exit code.
func finish(cfg *config.Config, res *result.Run, policy report.Policy, stderr io.Writer) int {
	if cfg.Report.File != "" {
		if err := report.Write(cfg.Report.File, res); err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		slog.Info("report written", "path", cfg.Report.File)
	}
	return report.ExitCode(res, policy)
}
