package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hassviz/hassviz/internal/streaming"
	"github.com/hassviz/hassviz/pkg/schema"
)

// Registry loads automation definitions from the host's automations.yaml
// and serves immutable snapshots of them. Reload swaps the whole set
// atomically; readers never observe a partial load.
type Registry struct {
	path   string
	hub    streaming.EventHub
	logger *slog.Logger

	mu          sync.RWMutex
	automations []schema.Automation
	byID        map[string]int
	loadedAt    time.Time
}

// New creates a Registry reading from the given YAML file. The hub may be
// nil; change events are then skipped.
func New(path string, hub streaming.EventHub, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		path:   path,
		hub:    hub,
		logger: logger.With(slog.String("component", "registry")),
		byID:   make(map[string]int),
	}
}

// Load reads and parses the automations file, replacing the current set.
// The file may hold a list of automations or a single mapping. Automations
// without an id get a synthetic one so every entry stays addressable; the
// synthetic id is stable for the lifetime of the loaded set only.
func (r *Registry) Load(ctx context.Context) error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "read automations file %s", r.path).WithCause(err)
	}

	automations, err := parseDocument(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	previous := r.byID
	r.automations = automations
	r.byID = make(map[string]int, len(automations))
	for i, a := range automations {
		r.byID[a.ID] = i
	}
	r.loadedAt = time.Now()
	current := r.byID
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "automations loaded",
		slog.Int("count", len(automations)),
		slog.String("path", r.path))

	r.publishChanges(ctx, previous, current)
	return nil
}

// Reload is Load under its operational name: the scheduler and the reload
// endpoint call it when the file may have changed.
func (r *Registry) Reload(ctx context.Context) error {
	return r.Load(ctx)
}

// Get returns the automation with the given id.
func (r *Registry) Get(id string) (*schema.Automation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "automation %q not found", id).WithAutomation(id)
	}
	a := r.automations[i]
	return &a, nil
}

// List returns a copy of all loaded automations in file order.
func (r *Registry) List() []schema.Automation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schema.Automation, len(r.automations))
	copy(out, r.automations)
	return out
}

// Count returns the number of loaded automations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.automations)
}

// LoadedAt returns when the current set was loaded, zero before first Load.
func (r *Registry) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

// publishChanges emits per-automation add/remove events plus one reload
// event. Updated automations are not diffed field by field; subscribers
// treat a reload as cause to refetch.
func (r *Registry) publishChanges(ctx context.Context, previous, current map[string]int) {
	if r.hub == nil {
		return
	}

	for id := range current {
		if _, ok := previous[id]; !ok {
			_ = r.hub.Publish(ctx, streaming.StreamEvent{
				AutomationID: id,
				EventType:    streaming.EventAutomationAdded,
			})
		}
	}
	for id := range previous {
		if _, ok := current[id]; !ok {
			_ = r.hub.Publish(ctx, streaming.StreamEvent{
				AutomationID: id,
				EventType:    streaming.EventAutomationRemoved,
			})
		}
	}
	_ = r.hub.Publish(ctx, streaming.StreamEvent{
		EventType: streaming.EventRegistryReloaded,
		Payload:   map[string]any{"count": len(current)},
	})
}

// parseDocument decodes the YAML document into automations. Entries that
// are not mappings are skipped rather than failing the whole load.
func parseDocument(data []byte) ([]schema.Automation, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeMalformed, "automations file is not valid YAML").WithCause(err)
	}

	var entries []any
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case []any:
		entries = v
	case map[string]any:
		entries = []any{v}
	default:
		return nil, schema.NewErrorf(schema.ErrCodeMalformed,
			"automations file must hold a list or mapping, got %T", doc)
	}

	automations := make([]schema.Automation, 0, len(entries))
	for _, entry := range entries {
		config, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		automations = append(automations, fromConfig(config))
	}
	return automations, nil
}

// fromConfig builds an Automation from one raw mapping, synthesizing an id
// when the document has none.
func fromConfig(config map[string]any) schema.Automation {
	id := ""
	if raw, ok := config["id"]; ok && raw != nil {
		id = fmt.Sprint(raw)
	}
	if id == "" {
		id = uuid.NewString()
	}

	alias, _ := config["alias"].(string)
	description, _ := config["description"].(string)

	return schema.Automation{
		ID:          id,
		Alias:       alias,
		Description: description,
		Config:      config,
	}
}
