package catalog

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	entries := c.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, "dry_cleaning", entries[0].ID)

	for _, e := range entries {
		assert.Equal(t, "pending", e.InitialStatus(), e.ID)
		assert.Equal(t, "picked_up", e.TerminalStatus(), e.ID)
		assert.GreaterOrEqual(t, len(e.Workflow), 6, e.ID)
		assert.LessOrEqual(t, len(e.Workflow), 9, e.ID)
	}

	wf, ok := c.Get("wash_and_fold")
	require.True(t, ok)
	assert.True(t, wf.UnitPrice.Equal(decimal.NewFromInt(10)))

	_, ok = c.Get("laundry_magic")
	assert.False(t, ok)
}

func TestNewRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{
			name:  "empty id",
			entry: Entry{UnitPrice: decimal.NewFromInt(1), Workflow: []string{"a", "b"}},
		},
		{
			name:  "negative price",
			entry: Entry{ID: "x", UnitPrice: decimal.NewFromInt(-1), Workflow: []string{"a", "b"}},
		},
		{
			name:  "short workflow",
			entry: Entry{ID: "x", UnitPrice: decimal.NewFromInt(1), Workflow: []string{"a"}},
		},
		{
			name:  "duplicate status",
			entry: Entry{ID: "x", UnitPrice: decimal.NewFromInt(1), Workflow: []string{"a", "b", "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entry)
			if !errors.Is(err, ErrInvalidEntry) {
				t.Fatalf("expected ErrInvalidEntry, got %v", err)
			}
		})
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	e := Entry{ID: "x", UnitPrice: decimal.NewFromInt(1), Workflow: []string{"a", "b"}}
	_, err := New(e, e)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestNextStatuses(t *testing.T) {
	e, _ := Default().Get("wash_and_fold")

	assert.Equal(t, []string{"washing", "folding", "ready_for_pickup", "picked_up"}, e.NextStatuses("started"))
	assert.Empty(t, e.NextStatuses("picked_up"))
	assert.Empty(t, e.NextStatuses("unknown"))
	assert.Equal(t, -1, e.IndexOf("ironing"))
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
services:
  - id: shoe_shine
    name: Shoe Shine
    price: "7.50"
    workflow: [pending, polishing, picked_up]
`)

	c, err := Parse(data)
	require.NoError(t, err)

	e, ok := c.Get("shoe_shine")
	require.True(t, ok)
	assert.Equal(t, "Shoe Shine", e.DisplayName)
	assert.True(t, e.UnitPrice.Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, "polishing", e.Workflow[1])
}

func TestParseYAMLErrors(t *testing.T) {
	_, err := Parse([]byte(`services: []`))
	assert.ErrorIs(t, err, ErrInvalidEntry)

	_, err = Parse([]byte(`
services:
  - id: x
    price: "abc"
    workflow: [a, b]
`))
	assert.ErrorIs(t, err, ErrInvalidEntry)
}
