package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"yui/internal/types"
)

// Bundle is the content of a static data directory.
type Bundle struct {
	Sessions []*types.Session
	Outputs  map[string]string
}

// Load reads the static documents from dataDir. Missing documents are
// treated as empty.
func Load(dataDir string) (*Bundle, error) {
	bundle := &Bundle{Sessions: []*types.Session{}, Outputs: map[string]string{}}
	if err := readDocument(filepath.Join(dataDir, SessionsDocument), &bundle.Sessions); err != nil {
		return nil, err
	}
	if err := readDocument(filepath.Join(dataDir, OutputsDocument), &bundle.Outputs); err != nil {
		return nil, err
	}
	if bundle.Sessions == nil {
		bundle.Sessions = []*types.Session{}
	}
	if bundle.Outputs == nil {
		bundle.Outputs = map[string]string{}
	}
	return bundle, nil
}

func readDocument(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func (b *Bundle) Session(id string) (*types.Session, bool) {
	for _, session := range b.Sessions {
		if session != nil && session.ID == id {
			return session, true
		}
	}
	return nil, false
}

// Output looks up an output document by name, with or without the .md
// extension.
func (b *Bundle) Output(name string) (string, bool) {
	name = strings.TrimSuffix(filepath.Base(strings.TrimSpace(name)), ".md")
	content, ok := b.Outputs[name]
	return content, ok
}

// OutputNames lists the output documents referenced by session: one per round
// in round order, then the latest output file if it is not already listed.
func OutputNames(session *types.Session) []string {
	if session == nil {
		return nil
	}
	rounds := make([]int, 0, len(session.SequenceOutputFiles))
	for round := range session.SequenceOutputFiles {
		rounds = append(rounds, round)
	}
	sort.Ints(rounds)
	seen := map[string]bool{}
	var names []string
	for _, round := range rounds {
		name := session.SequenceOutputFiles[round]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if name := session.OutputFileName; name != "" && !seen[name] {
		names = append(names, name)
	}
	return names
}
