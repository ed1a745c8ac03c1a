package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassviz/hassviz/internal/streaming"
	"github.com/hassviz/hassviz/pkg/schema"
)

const sampleYAML = `
- id: morning_lights
  alias: Morning Lights
  description: Turn on lights at sunrise
  trigger:
    - platform: sun
      event: sunrise
  action:
    - service: light.turn_on
      target:
        entity_id: light.kitchen
- alias: No ID Automation
  trigger:
    - platform: time
      at: "22:00:00"
  action:
    - service: light.turn_off
`

func writeAutomations(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "automations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndGet(t *testing.T) {
	r := New(writeAutomations(t, sampleYAML), nil, nil)
	require.NoError(t, r.Load(context.Background()))

	assert.Equal(t, 2, r.Count())
	assert.WithinDuration(t, time.Now(), r.LoadedAt(), time.Minute)

	a, err := r.Get("morning_lights")
	require.NoError(t, err)
	assert.Equal(t, "Morning Lights", a.Alias)
	assert.Equal(t, "Turn on lights at sunrise", a.Description)
	assert.Contains(t, a.Config, "trigger")
}

func TestLoadSynthesizesID(t *testing.T) {
	r := New(writeAutomations(t, sampleYAML), nil, nil)
	require.NoError(t, r.Load(context.Background()))

	list := r.List()
	require.Len(t, list, 2)
	assert.NotEmpty(t, list[1].ID)
	assert.NotEqual(t, "morning_lights", list[1].ID)

	a, err := r.Get(list[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "No ID Automation", a.Alias)
}

func TestLoadNumericID(t *testing.T) {
	r := New(writeAutomations(t, "- id: 1688849986\n  alias: Numeric\n"), nil, nil)
	require.NoError(t, r.Load(context.Background()))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Numeric", list[0].Alias)
	assert.Equal(t, "1688849986", list[0].ID)
}

func TestLoadSingleMapping(t *testing.T) {
	r := New(writeAutomations(t, "id: solo\nalias: Solo\n"), nil, nil)
	require.NoError(t, r.Load(context.Background()))
	assert.Equal(t, 1, r.Count())
}

func TestLoadEmptyFile(t *testing.T) {
	r := New(writeAutomations(t, ""), nil, nil)
	require.NoError(t, r.Load(context.Background()))
	assert.Equal(t, 0, r.Count())
}

func TestLoadSkipsNonMappingEntries(t *testing.T) {
	r := New(writeAutomations(t, "- id: ok\n- 42\n- just a string\n"), nil, nil)
	require.NoError(t, r.Load(context.Background()))
	assert.Equal(t, 1, r.Count())
}

func TestLoadInvalidYAML(t *testing.T) {
	r := New(writeAutomations(t, "{unclosed"), nil, nil)
	err := r.Load(context.Background())
	require.Error(t, err)

	var vizErr *schema.VizError
	require.ErrorAs(t, err, &vizErr)
	assert.Equal(t, schema.ErrCodeMalformed, vizErr.Code)
}

func TestLoadMissingFile(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "missing.yaml"), nil, nil)
	err := r.Load(context.Background())
	require.Error(t, err)

	var vizErr *schema.VizError
	require.ErrorAs(t, err, &vizErr)
	assert.Equal(t, schema.ErrCodeStore, vizErr.Code)
}

func TestGetUnknownID(t *testing.T) {
	r := New(writeAutomations(t, sampleYAML), nil, nil)
	require.NoError(t, r.Load(context.Background()))

	_, err := r.Get("nope")
	require.Error(t, err)

	var vizErr *schema.VizError
	require.ErrorAs(t, err, &vizErr)
	assert.Equal(t, schema.ErrCodeNotFound, vizErr.Code)
	assert.Equal(t, "nope", vizErr.AutomationID)
}

func TestReloadPublishesEvents(t *testing.T) {
	ctx := context.Background()
	hub := streaming.NewMemoryHub()
	path := writeAutomations(t, "- id: a1\n  alias: One\n")

	ch, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{})
	require.NoError(t, err)
	defer cancel()

	r := New(path, hub, nil)
	require.NoError(t, r.Load(ctx))

	// First load: a1 added plus a reload event.
	assert.Equal(t, streaming.EventAutomationAdded, (<-ch).EventType)
	assert.Equal(t, streaming.EventRegistryReloaded, (<-ch).EventType)

	// Replace a1 with a2.
	require.NoError(t, os.WriteFile(path, []byte("- id: a2\n  alias: Two\n"), 0o644))
	require.NoError(t, r.Reload(ctx))

	types := map[string]string{}
	for i := 0; i < 3; i++ {
		ev := <-ch
		types[ev.EventType] = ev.AutomationID
	}
	assert.Equal(t, "a2", types[streaming.EventAutomationAdded])
	assert.Equal(t, "a1", types[streaming.EventAutomationRemoved])
	assert.Contains(t, types, streaming.EventRegistryReloaded)

	_, err = r.Get("a1")
	assert.Error(t, err)
	_, err = r.Get("a2")
	assert.NoError(t, err)
}

func TestListReturnsCopy(t *testing.T) {
	r := New(writeAutomations(t, sampleYAML), nil, nil)
	require.NoError(t, r.Load(context.Background()))

	list := r.List()
	list[0].Alias = "mutated"

	a, err := r.Get("morning_lights")
	require.NoError(t, err)
	assert.Equal(t, "Morning Lights", a.Alias)
}
