package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lucasnoah/stagecraft/internal/pipeline"
)

const (
	checkpointsDirName = "checkpoints"
	configDirName      = "config"
	metaFileName       = "meta.json"
	progressFileName   = "progress.json"
)

// Include selects which categories a checkpoint covers.
type Include struct {
	Stages bool // stage artifacts and handoff summaries
	State  bool // state.json, progress.json and other top-level state files
	Config bool // the pipeline config file
}

// IncludeAll covers every category.
func IncludeAll() Include {
	return Include{Stages: true, State: true, Config: true}
}

// stageEntries are the state-dir entries belonging to the Stages category;
// everything else at the top level is State.
var stageEntries = map[string]bool{
	"stages":   true,
	"handoffs": true,
}

// Meta describes one checkpoint.
type Meta struct {
	ID          string    `json:"id"`
	Stage       string    `json:"stage"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Includes    []string  `json:"includes"`
	Milestone   bool      `json:"milestone"`
}

// Manager creates and restores snapshots of the mutable state directory
// and, optionally, the pipeline config file. Each checkpoint directory is
// owned exclusively by the manager once created; restore never touches
// the checkpoints directory itself.
type Manager struct {
	stateDir   string
	configPath string
}

// NewManager creates a Manager over the given state directory. configPath
// names the pipeline config file to cover under the Config category; ""
// leaves config out of snapshots.
func NewManager(stateDir, configPath string) *Manager {
	return &Manager{stateDir: stateDir, configPath: configPath}
}

func (m *Manager) checkpointsDir() string {
	return filepath.Join(m.stateDir, checkpointsDirName)
}

func (m *Manager) dir(id string) string {
	return filepath.Join(m.checkpointsDir(), id)
}

// Create snapshots the selected categories of the state directory (never
// the checkpoints directory) plus the config file when covered. Creation
// is all-or-nothing: any copy failure removes the partial checkpoint
// before returning the error.
func (m *Manager) Create(stage, description string, milestone bool, inc Include) (*Meta, error) {
	if !inc.Stages && !inc.State && !inc.Config {
		return nil, fmt.Errorf("checkpoint would include nothing")
	}

	base := fmt.Sprintf("%s-%d", stage, time.Now().Unix())
	id := base
	for n := 2; ; n++ {
		if _, err := os.Stat(m.dir(id)); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	dst := m.dir(id)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	entries, err := os.ReadDir(m.stateDir)
	if err != nil {
		os.RemoveAll(dst)
		return nil, fmt.Errorf("read state dir: %w", err)
	}

	meta := &Meta{
		ID:          id,
		Stage:       stage,
		CreatedAt:   time.Now().UTC(),
		Description: description,
		Milestone:   milestone,
	}
	for _, e := range entries {
		if e.Name() == checkpointsDirName {
			continue
		}
		if stageEntries[e.Name()] {
			if !inc.Stages {
				continue
			}
		} else if !inc.State {
			continue
		}
		src := filepath.Join(m.stateDir, e.Name())
		if err := copyTree(src, filepath.Join(dst, e.Name())); err != nil {
			os.RemoveAll(dst)
			return nil, fmt.Errorf("copy %s: %w", e.Name(), err)
		}
		meta.Includes = append(meta.Includes, e.Name())
	}

	if inc.Config && m.configPath != "" {
		name := filepath.Join(configDirName, filepath.Base(m.configPath))
		info, err := os.Stat(m.configPath)
		if err != nil {
			os.RemoveAll(dst)
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := copyFile(m.configPath, filepath.Join(dst, name), info.Mode()); err != nil {
			os.RemoveAll(dst)
			return nil, fmt.Errorf("copy config: %w", err)
		}
		meta.Includes = append(meta.Includes, name)
	}

	if err := pipeline.SaveJSON(filepath.Join(dst, metaFileName), meta); err != nil {
		os.RemoveAll(dst)
		return nil, fmt.Errorf("write checkpoint meta: %w", err)
	}
	return meta, nil
}

// Meta loads a checkpoint's metadata.
func (m *Manager) Meta(id string) (*Meta, error) {
	var meta Meta
	if err := pipeline.LoadJSON(filepath.Join(m.dir(id), metaFileName), &meta); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", id, err)
	}
	return &meta, nil
}

// Restore replaces state-directory contents with the checkpoint's copies.
// With no paths given, every included entry is restored; otherwise only
// the named entries. Config entries restore to the manager's config path.
// Each target is deleted before the copy, so a copy failure can leave the
// target partially restored. Restore refuses to run while any stage is
// mid-execution.
func (m *Manager) Restore(id string, paths []string) error {
	if err := m.ensureQuiescent(); err != nil {
		return err
	}
	meta, err := m.Meta(id)
	if err != nil {
		return err
	}

	targets := paths
	if len(targets) == 0 {
		targets = meta.Includes
	}

	included := make(map[string]bool, len(meta.Includes))
	for _, p := range meta.Includes {
		included[p] = true
	}

	for _, p := range targets {
		if p == checkpointsDirName {
			return fmt.Errorf("refusing to restore %s", checkpointsDirName)
		}
		if !included[p] {
			return fmt.Errorf("checkpoint %s does not include %q", id, p)
		}
		dst := filepath.Join(m.stateDir, p)
		if filepath.Dir(p) == configDirName {
			if m.configPath == "" {
				return fmt.Errorf("checkpoint %s includes config, but no config path is set", id)
			}
			dst = m.configPath
		}
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		if err := copyTree(filepath.Join(m.dir(id), p), dst); err != nil {
			return fmt.Errorf("restore %s: %w", p, err)
		}
	}
	return nil
}

// ensureQuiescent rejects restore while a stage is in_progress: replacing
// state under a live stage run would tear it.
func (m *Manager) ensureQuiescent() error {
	var prog pipeline.Progress
	if err := pipeline.LoadJSON(filepath.Join(m.stateDir, progressFileName), &prog); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read progress: %w", err)
	}
	for stage, sp := range prog {
		if sp.Status == pipeline.StageInProgress {
			return fmt.Errorf("stage %s is in progress; pause the pipeline before restoring", stage)
		}
	}
	return nil
}

// List returns all checkpoints, newest first.
func (m *Manager) List() ([]*Meta, error) {
	entries, err := os.ReadDir(m.checkpointsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoints dir: %w", err)
	}

	var metas []*Meta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := m.Meta(e.Name())
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Delete removes a checkpoint. Explicit deletion applies to milestones too.
func (m *Manager) Delete(id string) error {
	if _, err := m.Meta(id); err != nil {
		return err
	}
	return os.RemoveAll(m.dir(id))
}

// Cleanup deletes the oldest checkpoints beyond maxRetention, skipping
// milestones when preserveMilestones is set. Returns the deleted IDs.
func (m *Manager) Cleanup(maxRetention int, preserveMilestones bool) ([]string, error) {
	metas, err := m.List()
	if err != nil {
		return nil, err
	}
	excess := len(metas) - maxRetention
	if excess <= 0 {
		return nil, nil
	}

	var deleted []string
	// List is newest-first; walk from the oldest.
	for i := len(metas) - 1; i >= 0 && len(deleted) < excess; i-- {
		if preserveMilestones && metas[i].Milestone {
			continue
		}
		if err := os.RemoveAll(m.dir(metas[i].ID)); err != nil {
			return deleted, fmt.Errorf("delete checkpoint %s: %w", metas[i].ID, err)
		}
		deleted = append(deleted, metas[i].ID)
	}
	return deleted, nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}

	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, mode.Perm())
}
