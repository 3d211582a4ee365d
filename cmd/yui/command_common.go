package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"text/tabwriter"

	"yui/internal/config"
	"yui/internal/dialogue"
	"yui/internal/logging"
	"yui/internal/observability"
	"yui/internal/store"
	"yui/internal/types"
)

const version = "dev"

// commandEnv is what a command needs once configuration is resolved.
type commandEnv struct {
	cfg      config.Config
	logger   logging.Logger
	client   commandClient
	store    store.Store
	metrics  *observability.Metrics
	shutdown func(context.Context) error
	closers  []io.Closer
}

type envOptions struct {
	// logFile sends logs to the UI log instead of stderr.
	logFile bool
	store   bool
}

func (w commandWiring) openEnv(opts envOptions) (*commandEnv, error) {
	cfg, err := w.loadConfig()
	if err != nil {
		return nil, err
	}
	env := &commandEnv{cfg: cfg, shutdown: observability.Noop}
	level := logging.ParseLevel(cfg.LogLevel())
	if opts.logFile {
		path, err := config.UILogPath()
		if err != nil {
			return nil, err
		}
		logger, closer, err := logging.Open(path, level)
		if err != nil {
			return nil, err
		}
		env.logger = logger
		env.closers = append(env.closers, closer)
	} else {
		env.logger = logging.New(w.stderr, level)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTracer(w.ctx, cfg.TelemetryServiceName(), env.logger)
		if err != nil {
			env.logger.Warn("tracing disabled", logging.Err(err))
		} else {
			env.shutdown = shutdown
		}
	}
	env.metrics = observability.NewMetricsOrNil()

	env.client, err = w.newClient(cfg, env.logger)
	if err != nil {
		env.Close()
		return nil, err
	}
	if opts.store {
		path := ""
		if cfg.StoreBackend() != store.BackendMemory {
			path, err = cfg.StorePath()
			if err != nil {
				env.Close()
				return nil, err
			}
		}
		env.store, err = store.Open(cfg.StoreBackend(), path)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend(), err)
		}
		env.closers = append(env.closers, env.store)
	}
	return env, nil
}

func (e *commandEnv) Close() {
	if e.shutdown != nil {
		if err := e.shutdown(context.Background()); err != nil && e.logger != nil {
			e.logger.Warn("tracer shutdown failed", logging.Err(err))
		}
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
}

type threadOverrides struct {
	mode     string
	resume   string
	language string
}

func (e *commandEnv) newThread(overrides threadOverrides) *dialogue.ThreadController {
	cfg := e.cfg
	if overrides.mode != "" {
		cfg.Dialogue.Mode = overrides.mode
	}
	if overrides.resume != "" {
		cfg.Dialogue.Resume = overrides.resume
	}
	if overrides.language != "" {
		cfg.Dialogue.Language = overrides.language
	}
	var sink dialogue.SessionSink
	if e.store != nil {
		sink = e.store
	}
	return dialogue.NewThreadController(e.client, sink, dialogue.Options{
		Stages:     types.StageSetForMode(cfg.DialogueMode()),
		Resume:     dialogue.ParseResumePolicy(cfg.ResumePolicy()),
		StageDelay: cfg.StageDelay(),
		Debounce:   cfg.DebounceWindow(),
		Language:   cfg.Language(),
		Retry:      dialogue.RetryPolicy{Attempts: cfg.RetryAttempts(), Backoff: cfg.RetryBackoff()},
		Logger:     e.logger,
		Metrics:    e.metrics,
	})
}

func validateMode(mode string) error {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", types.StageSetSimple, types.StageSetDialectic:
		return nil
	default:
		return errors.New("invalid mode: must be simple or full")
	}
}

func printSessions(output io.Writer, sessions []*types.Session) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTATUS\tROUND\tMESSAGES\tUPDATED\tTITLE")
	for _, session := range sessions {
		status := string(session.Status)
		if status == "" {
			status = string(types.SessionStatusActive)
		}
		updated := "-"
		if !session.UpdatedAt.IsZero() {
			updated = session.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\t%s\n", session.ID, status, session.Round(), len(session.Messages), updated, session.Title)
	}
	_ = writer.Flush()
}

func printAgents(output io.Writer, agents []types.Agent) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tROLE")
	for _, agent := range agents {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", agent.ID, agent.Name, agent.Role)
	}
	_ = writer.Flush()
}

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var modified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			}
		}
		if revision != "" {
			if modified == "true" {
				return revision + "-dirty"
			}
			return revision
		}
	}

	exe, err := os.Executable()
	if err == nil {
		file, err := os.Open(exe)
		if err == nil {
			defer file.Close()
			hasher := sha256.New()
			if _, err := io.Copy(hasher, file); err == nil {
				sum := hasher.Sum(nil)
				return fmt.Sprintf("bin-%x", sum[:6])
			}
		}
	}

	return version
}
