package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/fsutil"
	"github.com/schaermu/mcmod/internal/manifest"
)

const (
	// StateFileName is the state record inside the target workspace.
	StateFileName = ".mcmod-state.json"
	// legacyMarkerName held only the template name, written after setup.
	legacyMarkerName = ".mcmod-template"
)

// State records what has been done to the target workspace.
//
// Transitions:
//
//   - absent -> {template: T} after T has been cloned into the workspace
//   - {template: T} -> {template: T, setup_completed: true} after the
//     one-time setup task succeeded
//   - a full sync declaring a template other than T removes the workspace,
//     and with it this record, before cloning again
type State struct {
	Template       manifest.Template `json:"template"`
	SetupCompleted bool              `json:"setup_completed"`
}

// TemplateInitialized reports whether a template has been provisioned
func (s *State) TemplateInitialized() bool {
	return s != nil && s.Template != ""
}

// Decision is the sync mode chosen for one run.
type Decision struct {
	Incremental bool
	// Reprovision removes the workspace and clones the template again.
	Reprovision bool
	NeedsSetup  bool
	// Forced is set when an incremental sync was requested but the
	// workspace has no template yet.
	Forced bool
}

// Decide picks the sync mode from the recorded state and the request.
func Decide(state *State, requestedIncremental bool, declared manifest.Template) Decision {
	if requestedIncremental && state.TemplateInitialized() {
		return Decision{Incremental: true}
	}

	d := Decision{Forced: requestedIncremental}
	if state == nil || state.Template != declared {
		d.Reprovision = true
		d.NeedsSetup = true
		return d
	}
	d.NeedsSetup = !state.SetupCompleted
	return d
}

func statePath(targetRoot string) string {
	return filepath.Join(targetRoot, StateFileName)
}

// loadState reads the state record, falling back to the legacy marker. A
// workspace with neither has the zero State.
func loadState(targetRoot string) (*State, error) {
	data, err := os.ReadFile(statePath(targetRoot))
	if err == nil {
		var state State
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, errkind.Wrap(errkind.InvalidData, err, "corrupt state file %s", statePath(targetRoot))
		}
		return &state, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	marker, err := os.ReadFile(filepath.Join(targetRoot, legacyMarkerName))
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template marker: %w", err)
	}
	name := strings.TrimSpace(string(marker))
	return &State{Template: manifest.Template(name), SetupCompleted: name != ""}, nil
}

func saveState(targetRoot string, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := fsutil.WriteFileAtomic(statePath(targetRoot), data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	// The record supersedes the marker.
	if _, err := fsutil.RemoveIfExists(filepath.Join(targetRoot, legacyMarkerName)); err != nil {
		return fmt.Errorf("failed to remove template marker: %w", err)
	}
	return nil
}
