package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"

	"yui/internal/app"
	"yui/internal/dialogue"
	"yui/internal/types"
)

// RunCommand drives a session's dialogue without the terminal UI. With resume
// set it continues the remaining stages instead of submitting a prompt.
type RunCommand struct {
	wiring commandWiring
	resume bool
}

func NewRunCommand(wiring commandWiring, resume bool) *RunCommand {
	return &RunCommand{wiring: wiring, resume: resume}
}

func (c *RunCommand) name() string {
	if c.resume {
		return "continue"
	}
	return "run"
}

func (c *RunCommand) Run(args []string) error {
	fs := flag.NewFlagSet(c.name(), flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	mode := fs.String("mode", "", "stage set: full|simple (default from config)")
	resumePolicy := fs.String("resume", "", "resume policy: ordinal|identity (default from config)")
	language := fs.String("lang", "", "dialogue language: ja|en (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validateMode(*mode); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%s requires a session id", c.name())
	}
	sessionID := fs.Arg(0)
	prompt := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	if !c.resume && prompt == "" {
		return errors.New("run requires a prompt")
	}

	env, err := c.wiring.openEnv(envOptions{store: true})
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := c.wiring.ctx
	session, err := env.client.GetRealtimeSession(ctx, sessionID)
	if err != nil {
		return err
	}
	thread := env.newThread(threadOverrides{mode: *mode, resume: *resumePolicy, language: *language})
	printer := newTranscriptPrinter(c.wiring.stdout, session)
	thread.Subscribe(printer.onSnapshot)
	if err := thread.Open(ctx, session); err != nil {
		return err
	}
	if c.resume && !thread.ShowContinue() {
		fmt.Fprintln(c.wiring.stderr, "nothing to continue: the session has no unfinished round")
		return nil
	}

	var result dialogue.RunResult
	if c.resume {
		result, err = thread.Continue(ctx)
	} else {
		result, err = thread.Submit(ctx, prompt)
	}
	if err != nil {
		return err
	}
	printer.summary(result, thread.Snapshot())
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d stages failed", len(result.Failed))
	}
	return nil
}

// transcriptPrinter writes every message once, as soon as it first appears in
// a snapshot with content.
type transcriptPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]bool
	stage   types.StageTag
	agents  []types.Agent
}

func newTranscriptPrinter(out io.Writer, session *types.Session) *transcriptPrinter {
	p := &transcriptPrinter{out: out, printed: map[string]bool{}}
	if session != nil {
		p.agents = session.Agents
		for _, msg := range session.Messages {
			p.printed[msg.ID] = true
		}
	}
	return p
}

func (p *transcriptPrinter) onSnapshot(snap dialogue.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap.Session != nil && len(snap.Session.Agents) > 0 {
		p.agents = snap.Session.Agents
	}
	for _, msg := range snap.Messages {
		if p.printed[msg.ID] || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		p.printed[msg.ID] = true
		if msg.Stage != "" && msg.Stage != p.stage {
			p.stage = msg.Stage
			fmt.Fprintf(p.out, "\n== %s ==\n", msg.Stage.Label())
		}
		fmt.Fprintf(p.out, "\n[%s]\n%s\n", speakerName(msg, p.agents), app.ReplaceAgentIDs(msg.Content, p.agents))
	}
}

func speakerName(msg types.Message, agents []types.Agent) string {
	switch msg.Role {
	case types.RoleUser:
		return "you"
	case types.RoleSystem:
		return "system"
	}
	if agent, ok := types.FindAgent(agents, msg.AgentID); ok {
		return agent.Name
	}
	return msg.AgentID
}

func (p *transcriptPrinter) summary(result dialogue.RunResult, snap dialogue.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	printRunSummary(p.out, result, snap)
}

func printRunSummary(out io.Writer, result dialogue.RunResult, snap dialogue.Snapshot) {
	fmt.Fprintf(out, "\n%d/%d stages completed", len(result.Completed), len(result.Plan.Stages))
	if len(result.Failed) > 0 {
		names := make([]string, 0, len(result.Failed))
		for _, stage := range result.Failed {
			names = append(names, string(stage))
		}
		fmt.Fprintf(out, ", failed: %s", strings.Join(names, ", "))
	}
	if snap.StageCounter != "" {
		fmt.Fprintf(out, " (%s)", snap.StageCounter)
	}
	fmt.Fprintln(out)
	if snap.Session != nil && snap.Session.OutputFileName != "" {
		fmt.Fprintf(out, "output: %s\n", snap.Session.OutputFileName)
	}
}
