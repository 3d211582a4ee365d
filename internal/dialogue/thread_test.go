package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yui/internal/client"
	"yui/internal/types"
)

type fakeStream struct {
	frames chan client.Frame
	err    error
	once   sync.Once
	closed chan struct{}
}

func newFakeStream(buffer int) *fakeStream {
	return &fakeStream{frames: make(chan client.Frame, buffer), closed: make(chan struct{})}
}

func streamOf(frames ...client.Frame) *fakeStream {
	s := newFakeStream(len(frames))
	for _, frame := range frames {
		s.frames <- frame
	}
	close(s.frames)
	return s
}

func (s *fakeStream) Frames() <-chan client.Frame { return s.frames }
func (s *fakeStream) Err() error                  { return s.err }
func (s *fakeStream) Close()                      { s.once.Do(func() { close(s.closed) }) }

type stageCall struct {
	sessionID string
	req       client.StageRequest
}

type fakeBackend struct {
	mu           sync.Mutex
	sessions     map[string]*types.Session
	getFailures  map[string]int
	newSeqErr    error
	newSequences []string
	resets       []string
	calls        []stageCall
	stream       func(sessionID string, req client.StageRequest) (Stream, error)
}

func newFakeBackend(sessions ...*types.Session) *fakeBackend {
	b := &fakeBackend{sessions: map[string]*types.Session{}, getFailures: map[string]int{}}
	for _, s := range sessions {
		b.sessions[s.ID] = s.Clone()
	}
	return b
}

func (b *fakeBackend) setSession(s *types.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s.ID] = s.Clone()
}

func (b *fakeBackend) StartNewSequence(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newSequences = append(b.newSequences, id)
	return b.newSeqErr
}

func (b *fakeBackend) ResetSession(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets = append(b.resets, id)
	return nil
}

func (b *fakeBackend) GetRealtimeSession(_ context.Context, id string) (*types.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getFailures[id] > 0 {
		b.getFailures[id]--
		return nil, errors.New("realtime session unavailable")
	}
	s, ok := b.sessions[id]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Message: "not found"}
	}
	return s.Clone(), nil
}

func (b *fakeBackend) StreamStage(_ context.Context, id string, req client.StageRequest) (Stream, error) {
	b.mu.Lock()
	b.calls = append(b.calls, stageCall{sessionID: id, req: req})
	stream := b.stream
	b.mu.Unlock()
	if stream == nil {
		return streamOf(client.Frame{Type: client.FrameComplete}), nil
	}
	return stream(id, req)
}

func (b *fakeBackend) stageCalls() []stageCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]stageCall(nil), b.calls...)
}

func progress(id, agent string, offset time.Duration, stage types.StageTag) client.Frame {
	msg := msgAt(id, offset, "from "+agent)
	msg.AgentID = agent
	msg.Stage = stage
	return client.Frame{Type: client.FrameProgress, Message: &msg}
}

func testOptions(set types.StageSet) Options {
	return Options{
		Stages:     set,
		StageDelay: time.Millisecond,
		Debounce:   5 * time.Millisecond,
		Now:        func() time.Time { return baseTime },
		NewID:      func() string { return "fixed" },
	}
}

func newTestSession(id, title string) *types.Session {
	return &types.Session{
		ID:    id,
		Title: title,
		Agents: []types.Agent{
			{ID: "a1", Name: "Agent One"},
			{ID: "a2", Name: "Agent Two"},
		},
		Messages:       []types.Message{},
		CreatedAt:      baseTime.Add(-time.Hour),
		UpdatedAt:      baseTime.Add(-time.Hour),
		Status:         types.SessionStatusActive,
		SequenceNumber: 1,
	}
}

func runScenario(t *testing.T, set types.StageSet, wantCounter string) {
	t.Helper()
	session := newTestSession("s1", "Test")
	backend := newFakeBackend(session)
	backend.stream = func(id string, req client.StageRequest) (Stream, error) {
		if req.Stage != types.StageIndividualThought {
			return nil, errors.New("stage unavailable")
		}
		server := newTestSession("s1", "Test")
		server.CurrentStage = types.StageIndividualThought
		a1 := progress("m-a1", "a1", time.Second, req.Stage)
		a2 := progress("m-a2", "a2", 2*time.Second, req.Stage)
		server.Messages = []types.Message{*a1.Message, *a2.Message}
		server.StageHistory = []types.StageHistoryEntry{closedEntry(types.StageIndividualThought, 1)}
		backend.setSession(server)
		return streamOf(a1, a2, client.Frame{Type: client.FrameComplete}), nil
	}
	sink := &memorySink{}
	c := NewThreadController(backend, sink, testOptions(set))
	require.NoError(t, c.Open(context.Background(), session))

	result, err := c.Submit(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, []types.StageTag{types.StageIndividualThought}, result.Completed)
	assert.Len(t, result.Failed, set.Len()-1)

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, []string{"user-fixed", "m-a1", "m-a2"}, ids(snap.Messages))
	assert.Equal(t, types.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "hello", snap.Messages[0].Content)
	assert.Equal(t, wantCounter, snap.StageCounter)
	assert.Equal(t, 1, snap.Progress.Completed)
	assert.False(t, snap.Processing)
	assert.False(t, snap.AwaitingFirstResponse)
	assert.Nil(t, snap.Pending)
	assert.Equal(t, DefaultLanguage, snap.Language)
	assert.True(t, snap.ShowContinue)

	calls := backend.stageCalls()
	require.Len(t, calls, set.Len())
	assert.Equal(t, "hello", calls[0].req.Prompt)
	assert.Equal(t, DefaultLanguage, calls[0].req.Language)

	puts := sink.all()
	require.NotEmpty(t, puts)
	last := puts[len(puts)-1]
	assert.Equal(t, "s1", last.ID)
	assert.Len(t, last.Messages, 3)
}

func TestThreadControllerDialecticScenario(t *testing.T) {
	runScenario(t, types.DialecticStages(), "1/9")
}

func TestThreadControllerSimpleScenario(t *testing.T) {
	runScenario(t, types.SimpleStages(), "1/5")
}

func TestThreadControllerDropsFramesAfterSessionSwitch(t *testing.T) {
	s1 := newTestSession("s1", "S1")
	s2 := newTestSession("s2", "S2")
	s2.Messages = []types.Message{msgAt("s2-m1", 0, "existing")}
	backend := newFakeBackend(s1, s2)

	opened := make(chan struct{})
	s1Stream := newFakeStream(1)
	backend.stream = func(id string, req client.StageRequest) (Stream, error) {
		if id == "s1" {
			close(opened)
			return s1Stream, nil
		}
		return streamOf(client.Frame{Type: client.FrameComplete}), nil
	}
	sink := &memorySink{}
	c := NewThreadController(backend, sink, testOptions(types.DialecticStages()))
	require.NoError(t, c.Open(context.Background(), s1))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "hello")
		done <- err
	}()
	<-opened

	_, err := c.Submit(context.Background(), "again")
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, c.Open(context.Background(), s2))
	s1Stream.frames <- progress("late", "a1", time.Second, types.StageIndividualThought)
	close(s1Stream.frames)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStaleBinding)
	case <-time.After(2 * time.Second):
		t.Fatal("run for previous session did not stop")
	}

	snap := c.Snapshot()
	assert.Equal(t, "s2", snap.Session.ID)
	assert.Equal(t, []string{"s2-m1"}, ids(snap.Messages))
	assert.False(t, snap.Processing)
	assert.True(t, snap.Bound)

	calls := backend.stageCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "s1", calls[0].sessionID)

	time.Sleep(20 * time.Millisecond)
	for _, put := range sink.all() {
		if put.ID != "s2" {
			continue
		}
		for _, msg := range put.Messages {
			assert.NotEqual(t, "late", msg.ID)
		}
	}
}

func TestThreadControllerSessionFrameUpdatesOutputs(t *testing.T) {
	session := newTestSession("s1", "Test")
	backend := newFakeBackend(session)
	backend.stream = func(id string, req client.StageRequest) (Stream, error) {
		return streamOf(
			client.Frame{Type: client.FrameSession, Session: &types.SessionPatch{ID: "other", OutputFileName: types.StringPtr("wrong.md")}},
			client.Frame{Type: client.FrameSession, Session: &types.SessionPatch{
				ID:                  "s1",
				OutputFileName:      types.StringPtr("out.md"),
				SequenceOutputFiles: map[int]string{1: "out.md"},
			}},
			client.Frame{Type: client.FrameComplete},
		), nil
	}
	sink := &memorySink{}
	c := NewThreadController(backend, sink, testOptions(types.SimpleStages()))
	require.NoError(t, c.Open(context.Background(), session))

	_, err := c.Submit(context.Background(), "hello")
	require.NoError(t, err)

	var outputs []string
	for _, put := range sink.all() {
		outputs = append(outputs, put.OutputFileName)
		assert.NotEqual(t, "wrong.md", put.OutputFileName)
	}
	assert.Contains(t, outputs, "out.md")
}

func TestThreadControllerIgnoresSessionFrameWithoutOutputs(t *testing.T) {
	run := func(frames ...client.Frame) int {
		session := newTestSession("s1", "Test")
		backend := newFakeBackend(session)
		backend.stream = func(string, client.StageRequest) (Stream, error) {
			return streamOf(frames...), nil
		}
		sink := &memorySink{}
		c := NewThreadController(backend, sink, testOptions(types.SimpleStages()))
		require.NoError(t, c.Open(context.Background(), session))
		_, err := c.Submit(context.Background(), "hello")
		require.NoError(t, err)
		return len(sink.all())
	}

	plain := run(client.Frame{Type: client.FrameComplete})
	withEmpty := run(
		client.Frame{Type: client.FrameSession, Session: &types.SessionPatch{ID: "s1"}},
		client.Frame{Type: client.FrameComplete},
	)
	assert.Equal(t, plain, withEmpty)
}

func TestThreadControllerErrorFrameFailsStageOnly(t *testing.T) {
	session := newTestSession("s1", "Test")
	backend := newFakeBackend(session)
	backend.stream = func(id string, req client.StageRequest) (Stream, error) {
		if req.Stage == types.StageMutualReflection {
			return streamOf(client.Frame{Type: client.FrameError, Error: "agent crashed"}), nil
		}
		return streamOf(client.Frame{Type: client.FrameComplete}), nil
	}
	c := NewThreadController(backend, nil, testOptions(types.SimpleStages()))
	require.NoError(t, c.Open(context.Background(), session))

	result, err := c.Submit(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []types.StageTag{types.StageMutualReflection}, result.Failed)
	assert.Len(t, result.Completed, 4)
}

func TestThreadControllerContinueResumesWithResumePrompt(t *testing.T) {
	session := newTestSession("s1", "Test")
	session.Messages = []types.Message{msgAt("u1", 0, "first"), msgAt("m1", time.Second, "reply")}
	session.StageHistory = []types.StageHistoryEntry{
		closedEntry(types.StageIndividualThought, 1),
		closedEntry(types.StageMutualReflection, 1),
	}
	backend := newFakeBackend(session)
	c := NewThreadController(backend, nil, testOptions(types.DialecticStages()))
	require.NoError(t, c.Open(context.Background(), session))
	require.True(t, c.ShowContinue())

	result, err := c.Continue(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Plan.NewRound)
	calls := backend.stageCalls()
	require.Len(t, calls, 7)
	assert.Equal(t, types.StageMutualReflectionSummary, calls[0].req.Stage)
	for _, call := range calls {
		assert.Equal(t, ResumePrompt, call.req.Prompt)
	}
	snap := c.Snapshot()
	found := false
	for _, msg := range snap.Messages {
		if msg.Role == types.RoleUser && msg.Content == ContinuePrompt {
			found = true
		}
	}
	assert.True(t, found)
	assert.Empty(t, backend.newSequences)
}

func TestThreadControllerFinishedRoundStartsNewSequence(t *testing.T) {
	set := types.DialecticStages()
	session := newTestSession("s1", "Test")
	for _, stage := range set.Stages[:8] {
		session.StageHistory = append(session.StageHistory, closedEntry(stage, 1))
	}
	backend := newFakeBackend(session)
	c := NewThreadController(backend, nil, testOptions(set))
	require.NoError(t, c.Open(context.Background(), session))
	assert.False(t, c.ShowContinue())

	result, err := c.Continue(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Plan.NewRound)
	assert.Equal(t, []string{"s1"}, backend.newSequences)
	assert.Empty(t, backend.resets)
	calls := backend.stageCalls()
	require.Len(t, calls, 9)
	assert.Equal(t, ContinuePrompt, calls[0].req.Prompt)
}

func TestThreadControllerSimpleModeResetsFinishedRound(t *testing.T) {
	set := types.SimpleStages()
	session := newTestSession("s1", "Test")
	for _, stage := range set.Stages {
		session.StageHistory = append(session.StageHistory, closedEntry(stage, 1))
	}
	backend := newFakeBackend(session)
	c := NewThreadController(backend, nil, testOptions(set))
	require.NoError(t, c.Open(context.Background(), session))

	_, err := c.Submit(context.Background(), "again")
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, backend.resets)
	assert.Empty(t, backend.newSequences)
	assert.Len(t, backend.stageCalls(), 5)
}

func TestThreadControllerNewSequenceFailureAbortsRun(t *testing.T) {
	set := types.DialecticStages()
	session := newTestSession("s1", "Test")
	for _, stage := range set.Stages[:8] {
		session.StageHistory = append(session.StageHistory, closedEntry(stage, 1))
	}
	backend := newFakeBackend(session)
	backend.newSeqErr = &client.APIError{StatusCode: 500, Message: "boom"}
	c := NewThreadController(backend, nil, testOptions(set))
	require.NoError(t, c.Open(context.Background(), session))
	c.SetLanguage("en")

	_, err := c.Submit(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrNewSequenceFailed)
	assert.Empty(t, backend.stageCalls())
	snap := c.Snapshot()
	assert.False(t, snap.Processing)
	assert.Equal(t, DefaultLanguage, snap.Language)
}

func TestThreadControllerRejectsInvalidSubmit(t *testing.T) {
	session := newTestSession("s1", "Test")
	backend := newFakeBackend(session)
	c := NewThreadController(backend, nil, testOptions(types.SimpleStages()))

	_, err := c.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotBound)

	require.NoError(t, c.Open(context.Background(), session))
	_, err = c.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestThreadControllerBindRetries(t *testing.T) {
	session := newTestSession("s1", "Test")
	backend := newFakeBackend(session)
	backend.getFailures["s1"] = 1

	opts := testOptions(types.SimpleStages())
	c := NewThreadController(backend, nil, opts)
	err := c.Open(context.Background(), session)
	assert.Error(t, err)
	assert.False(t, c.Snapshot().Bound)

	backend.getFailures["s1"] = 1
	opts.Retry = RetryPolicy{Attempts: 1, Backoff: time.Millisecond}
	c = NewThreadController(backend, nil, opts)
	require.NoError(t, c.Open(context.Background(), session))
	assert.True(t, c.Snapshot().Bound)
}

func TestThreadControllerLanguageAppliesToRun(t *testing.T) {
	session := newTestSession("s1", "Test")
	backend := newFakeBackend(session)
	c := NewThreadController(backend, nil, testOptions(types.SimpleStages()))
	require.NoError(t, c.Open(context.Background(), session))

	c.SetLanguage("en")
	assert.Equal(t, "en", c.Snapshot().Language)
	_, err := c.Submit(context.Background(), "hello")
	require.NoError(t, err)

	for _, call := range backend.stageCalls() {
		assert.Equal(t, "en", call.req.Language)
	}
	assert.Equal(t, DefaultLanguage, c.Snapshot().Language)
}

func TestThreadControllerSnapshotVersionIncreases(t *testing.T) {
	session := newTestSession("s1", "Test")
	backend := newFakeBackend(session)
	c := NewThreadController(backend, nil, testOptions(types.SimpleStages()))

	var mu sync.Mutex
	var versions []uint64
	c.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, s.Version)
	})
	require.NoError(t, c.Open(context.Background(), session))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, versions, 2)
	assert.Less(t, versions[0], versions[1])
}
