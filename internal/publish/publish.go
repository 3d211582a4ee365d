// Package publish builds and reads the static documents used to browse
// finished dialogues without a running server.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"yui/internal/client"
	"yui/internal/logging"
	"yui/internal/types"
)

const (
	SessionsDocument = "sessions.json"
	OutputsDocument  = "outputs.json"
)

type ExportOptions struct {
	SessionsDir string
	OutputsDir  string
	DataDir     string
	Logger      logging.Logger
}

type ExportResult struct {
	Sessions int
	Outputs  int
	Skipped  []string
}

// Export collects sessions/*.json and outputs/*.md into the two static
// documents under DataDir. Files that cannot be read or parsed are logged and
// skipped.
func Export(ctx context.Context, opts ExportOptions) (ExportResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	if strings.TrimSpace(opts.DataDir) == "" {
		return ExportResult{}, errors.New("data dir is required")
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return ExportResult{}, err
	}

	var (
		sessions       []*types.Session
		outputs        map[string]string
		sessionSkipped []string
		outputSkipped  []string
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, sessionSkipped, err = readSessions(ctx, opts.SessionsDir, logger)
		return err
	})
	g.Go(func() error {
		var err error
		outputs, outputSkipped, err = readOutputs(ctx, opts.OutputsDir, logger)
		return err
	})
	if err := g.Wait(); err != nil {
		return ExportResult{}, err
	}

	client.SortSessionsByUpdated(sessions)
	if err := writeDocument(filepath.Join(opts.DataDir, SessionsDocument), sessions); err != nil {
		return ExportResult{}, err
	}
	logger.Info("sessions document written", logging.F("sessions", len(sessions)))
	if err := writeDocument(filepath.Join(opts.DataDir, OutputsDocument), outputs); err != nil {
		return ExportResult{}, err
	}
	logger.Info("outputs document written", logging.F("outputs", len(outputs)))

	return ExportResult{
		Sessions: len(sessions),
		Outputs:  len(outputs),
		Skipped:  append(sessionSkipped, outputSkipped...),
	}, nil
}

func readSessions(ctx context.Context, dir string, logger logging.Logger) ([]*types.Session, []string, error) {
	names, err := listFiles(dir, ".json")
	if err != nil {
		return nil, nil, fmt.Errorf("read sessions dir: %w", err)
	}
	sessions := make([]*types.Session, 0, len(names))
	var skipped []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("session file skipped", logging.F("file", name), logging.Err(err))
			skipped = append(skipped, path)
			continue
		}
		var session types.Session
		if err := json.Unmarshal(data, &session); err != nil {
			logger.Warn("session file skipped", logging.F("file", name), logging.Err(err))
			skipped = append(skipped, path)
			continue
		}
		sessions = append(sessions, &session)
	}
	return sessions, skipped, nil
}

// readOutputs keys each markdown document by its file name without the .md
// extension. A missing outputs directory yields no outputs.
func readOutputs(ctx context.Context, dir string, logger logging.Logger) (map[string]string, []string, error) {
	outputs := map[string]string{}
	names, err := listFiles(dir, ".md")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("outputs dir missing", logging.F("dir", dir))
			return outputs, nil, nil
		}
		return nil, nil, fmt.Errorf("read outputs dir: %w", err)
	}
	var skipped []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("output file skipped", logging.F("file", name), logging.Err(err))
			skipped = append(skipped, path)
			continue
		}
		outputs[strings.TrimSuffix(name, ".md")] = string(data)
	}
	return outputs, skipped, nil
}

func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func writeDocument(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
