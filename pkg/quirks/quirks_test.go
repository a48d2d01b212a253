package quirks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  "schema_version": 1,
  "guid": "2c49d16a-32b8-4485-3ea8-643a152362f2",
  "name": "IR Sensor Extension",
  "controls": [
    {"selector": 1, "name": "IR Torch", "type": "range", "get_info_expect": 3, "payload_len": 2},
    {"selector": null, "name": "Undiscovered", "type": "raw"},
    {"selector": 6, "name": "Calibration Blob", "type": "raw", "payload_len": 64}
  ]
}`

func TestRegistry_Add(t *testing.T) {
	r := &Registry{
		docs:     map[uuid.UUID]*Document{},
		controls: map[key]*Control{},
	}
	require.NoError(t, r.Add([]byte(sampleDoc)))

	guid := uuid.MustParse("2c49d16a-32b8-4485-3ea8-643a152362f2")
	doc, ok := r.Unit(guid)
	require.True(t, ok)
	assert.Equal(t, "IR Sensor Extension", doc.Name)
	assert.Equal(t, 1, doc.SchemaVersion)

	ctrl, ok := r.Lookup(guid, 1)
	require.True(t, ok)
	assert.Equal(t, "IR Torch", ctrl.Name)
	assert.Equal(t, ControlTypeRange, ctrl.Type)
	require.NotNil(t, ctrl.GetInfoExpect)
	assert.Equal(t, 3, *ctrl.GetInfoExpect)
	require.NotNil(t, ctrl.PayloadLen)
	assert.Equal(t, 2, *ctrl.PayloadLen)

	// entries without a selector are documentation only
	_, ok = r.Lookup(guid, 2)
	assert.False(t, ok)

	_, ok = r.Lookup(guid, 6)
	assert.True(t, ok)
}

func TestRegistry_AddRejectsBadGUID(t *testing.T) {
	r := &Registry{
		docs:     map[uuid.UUID]*Document{},
		controls: map[key]*Control{},
	}
	assert.Error(t, r.Add([]byte(`{"guid": "not-a-guid"}`)))
	assert.Error(t, r.Add([]byte(`{invalid json`)))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ir.json"), []byte(sampleDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("nope"), 0o644))

	r, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	guid := uuid.MustParse("2c49d16a-32b8-4485-3ea8-643a152362f2")
	_, ok := r.Lookup(guid, 1)
	assert.True(t, ok)
}

func TestLoadDir_Missing(t *testing.T) {
	r, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}
