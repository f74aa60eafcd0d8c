package directory

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fieldassign/core/model"
)

// Snapshot is a point-in-time copy of the calls and engineers a directory
// serves.
type Snapshot struct {
	Calls     []model.Call     `json:"calls"`
	Engineers []model.Engineer `json:"engineers"`
}

// Validate rejects snapshots with missing or duplicate identifiers.
func (s Snapshot) Validate() error {
	calls := make(map[string]struct{}, len(s.Calls))
	for i, c := range s.Calls {
		if c.ID == "" {
			return fmt.Errorf("calls[%d]: missing id", i)
		}
		if _, dup := calls[c.ID]; dup {
			return fmt.Errorf("calls[%d]: duplicate id %q", i, c.ID)
		}
		calls[c.ID] = struct{}{}
	}
	engineers := make(map[string]struct{}, len(s.Engineers))
	for i, e := range s.Engineers {
		if e.ID == "" {
			return fmt.Errorf("engineers[%d]: missing id", i)
		}
		if _, dup := engineers[e.ID]; dup {
			return fmt.Errorf("engineers[%d]: duplicate id %q", i, e.ID)
		}
		engineers[e.ID] = struct{}{}
	}
	return nil
}

// LoadSnapshot reads a snapshot from a YAML or JSON file. Calls without a
// status are treated as pending and engineers without one as active.
func LoadSnapshot(path string) (Snapshot, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		return Snapshot{}, fmt.Errorf("unsupported snapshot format: %s", filepath.Ext(path))
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	// The model types decode their enums from text, so go through JSON
	// rather than koanf's map decoder.
	raw, err := json.Marshal(k.Raw())
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	for i := range snap.Calls {
		if snap.Calls[i].Status == "" {
			snap.Calls[i].Status = model.CallPending
		}
	}
	for i := range snap.Engineers {
		if snap.Engineers[i].Status == "" {
			snap.Engineers[i].Status = model.EngineerActive
		}
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return snap, nil
}
