package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"yui/internal/app"
	"yui/internal/config"
	"yui/internal/publish"
	"yui/internal/types"
)

const defaultViewWidth = 100

// ViewCommand prints a session transcript from the server, the local store or
// an exported static bundle.
type ViewCommand struct {
	wiring commandWiring
}

func NewViewCommand(wiring commandWiring) *ViewCommand {
	return &ViewCommand{wiring: wiring}
}

func (c *ViewCommand) Run(args []string) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	static := fs.Bool("static", false, "read from the exported bundle instead of the server")
	local := fs.Bool("local", false, "read the snapshot cached in the local store instead of the server")
	stageFlag := fs.String("stage", "", "only show messages of this stage")
	dataDir := fs.String("data-dir", "", "exported bundle directory (default from config)")
	output := fs.String("output", "", "print a rendered output document by name (static only)")
	width := fs.Int("width", defaultViewWidth, "render width")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *width <= 0 {
		return errors.New("width must be positive")
	}
	if *output != "" && !*static {
		return errors.New("--output requires --static")
	}
	if *static && *local {
		return errors.New("--static and --local are exclusive")
	}
	var stage types.StageTag
	if strings.TrimSpace(*stageFlag) != "" {
		var ok bool
		if stage, ok = types.ParseStageTag(*stageFlag); !ok {
			return fmt.Errorf("unknown stage %q", *stageFlag)
		}
	}
	id := strings.TrimSpace(fs.Arg(0))
	if id == "" && *output == "" {
		return errors.New("view requires a session id")
	}

	if *static {
		cfg, err := c.wiring.loadConfig()
		if err != nil {
			return err
		}
		return c.viewStatic(cfg, *dataDir, id, *output, stage, *width)
	}

	env, err := c.wiring.openEnv(envOptions{store: *local})
	if err != nil {
		return err
	}
	defer env.Close()
	app.SetMarkdownTheme(env.cfg.DarkTheme())
	var session *types.Session
	if *local {
		var found bool
		session, found, err = env.store.GetSession(c.wiring.ctx, id)
		if err == nil && !found {
			err = fmt.Errorf("session %q is not cached", id)
		}
	} else {
		session, err = env.client.GetRealtimeSession(c.wiring.ctx, id)
	}
	if err != nil {
		return err
	}
	c.printSession(session, stage, *width)
	return nil
}

func (c *ViewCommand) viewStatic(cfg config.Config, dataDir, id, output string, stage types.StageTag, width int) error {
	if dataDir == "" {
		dataDir = cfg.StaticDataDir()
	}
	app.SetMarkdownTheme(cfg.DarkTheme())
	bundle, err := publish.Load(dataDir)
	if err != nil {
		return err
	}
	if output != "" {
		doc, ok := bundle.Output(output)
		if !ok {
			return fmt.Errorf("output %q not found in %s", output, dataDir)
		}
		fmt.Fprintln(c.wiring.stdout, app.RenderMarkdown(doc, width))
		return nil
	}
	session, ok := bundle.Session(id)
	if !ok {
		return fmt.Errorf("session %q not found in %s", id, dataDir)
	}
	c.printSession(session, stage, width)
	if names := publish.OutputNames(session); len(names) > 0 {
		fmt.Fprintf(c.wiring.stdout, "\noutputs: %s\n", strings.Join(names, ", "))
	}
	return nil
}

func (c *ViewCommand) printSession(session *types.Session, stage types.StageTag, width int) {
	fmt.Fprintf(c.wiring.stdout, "%s (%s, round %d)\n\n", session.Title, session.ID, session.Round())
	groups := app.BuildTranscript(session, session.Messages)
	if stage != "" {
		filtered := groups[:0]
		for _, group := range groups {
			if group.Stage == stage {
				filtered = append(filtered, group)
			}
		}
		groups = filtered
	}
	fmt.Fprintln(c.wiring.stdout, app.RenderTranscript(groups, session.Agents, width))
}
