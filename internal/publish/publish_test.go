package publish

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yui/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExportWritesSortedDocuments(t *testing.T) {
	root := t.TempDir()
	sessionsDir := filepath.Join(root, "sessions")
	outputsDir := filepath.Join(root, "outputs")
	dataDir := filepath.Join(outputsDir, "data")

	writeFile(t, filepath.Join(sessionsDir, "a.json"), `{"id":"old","title":"Old","updatedAt":"2025-01-01T00:00:00Z"}`)
	writeFile(t, filepath.Join(sessionsDir, "b.json"), `{"id":"new","title":"New","updatedAt":"2025-05-01T00:00:00Z","outputFileName":"new-1.md"}`)
	writeFile(t, filepath.Join(sessionsDir, "broken.json"), `{"id":`)
	writeFile(t, filepath.Join(sessionsDir, "notes.txt"), `ignored`)
	writeFile(t, filepath.Join(outputsDir, "new-1.md"), "# Result\n")

	result, err := Export(context.Background(), ExportOptions{
		SessionsDir: sessionsDir,
		OutputsDir:  outputsDir,
		DataDir:     dataDir,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sessions)
	assert.Equal(t, 1, result.Outputs)
	assert.Equal(t, []string{filepath.Join(sessionsDir, "broken.json")}, result.Skipped)

	raw, err := os.ReadFile(filepath.Join(dataDir, SessionsDocument))
	require.NoError(t, err)
	var sessions []types.Session
	require.NoError(t, json.Unmarshal(raw, &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, "old", sessions[1].ID)

	raw, err = os.ReadFile(filepath.Join(dataDir, OutputsDocument))
	require.NoError(t, err)
	var outputs map[string]string
	require.NoError(t, json.Unmarshal(raw, &outputs))
	assert.Equal(t, map[string]string{"new-1": "# Result\n"}, outputs)
}

func TestExportWithoutOutputsDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sessions", "s.json"), `{"id":"s1"}`)

	result, err := Export(context.Background(), ExportOptions{
		SessionsDir: filepath.Join(root, "sessions"),
		OutputsDir:  filepath.Join(root, "missing"),
		DataDir:     filepath.Join(root, "data"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sessions)
	assert.Equal(t, 0, result.Outputs)
}

func TestExportRequiresSessionsDir(t *testing.T) {
	root := t.TempDir()
	_, err := Export(context.Background(), ExportOptions{
		SessionsDir: filepath.Join(root, "missing"),
		OutputsDir:  root,
		DataDir:     filepath.Join(root, "data"),
	})
	assert.Error(t, err)
}

func TestLoadRoundTripsExport(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sessions", "s.json"),
		`{"id":"s1","title":"Static","messages":[{"id":"m1","role":"agent","agentId":"a1","content":"hi","timestamp":"2025-01-01T00:00:00Z"}],"sequenceOutputFiles":{"1":"s1-r1.md","2":"s1-r2.md"},"outputFileName":"s1-r2.md"}`)
	writeFile(t, filepath.Join(root, "outputs", "s1-r1.md"), "round one")
	writeFile(t, filepath.Join(root, "outputs", "s1-r2.md"), "round two")
	dataDir := filepath.Join(root, "data")
	_, err := Export(context.Background(), ExportOptions{
		SessionsDir: filepath.Join(root, "sessions"),
		OutputsDir:  filepath.Join(root, "outputs"),
		DataDir:     dataDir,
	})
	require.NoError(t, err)

	bundle, err := Load(dataDir)
	require.NoError(t, err)

	session, ok := bundle.Session("s1")
	require.True(t, ok)
	assert.Len(t, session.Messages, 1)
	assert.Equal(t, []string{"s1-r1.md", "s1-r2.md"}, OutputNames(session))

	content, ok := bundle.Output("s1-r2.md")
	require.True(t, ok)
	assert.Equal(t, "round two", content)
	content, ok = bundle.Output("s1-r1")
	require.True(t, ok)
	assert.Equal(t, "round one", content)

	_, ok = bundle.Session("missing")
	assert.False(t, ok)
}

func TestLoadMissingDocumentsIsEmpty(t *testing.T) {
	bundle, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, bundle.Sessions)
	assert.Empty(t, bundle.Outputs)
}

func TestLoadRejectsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, SessionsDocument), `[{"id":`)
	_, err := Load(dir)
	assert.Error(t, err)
}
