package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(defs []EntityDefinition) []string {
	keys := make([]string, len(defs))
	for i, d := range defs {
		keys[i] = d.Key
	}
	return keys
}

func TestRegistry(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	Register(EntityDefinition{Key: "participants"})
	Register(EntityDefinition{Key: "events", Label: "Events"})
	Register(EntityDefinition{Key: "donations"})

	assert.Equal(t, 3, Count())
	assert.Equal(t, []string{"participants", "events", "donations"}, keysOf(All()), "registration order")

	def, ok := Get("participants")
	require.True(t, ok)
	assert.Equal(t, "participants", def.Label, "label defaults to the key")

	def, ok = Get("events")
	require.True(t, ok)
	assert.Equal(t, "Events", def.Label)

	_, ok = Get("volunteers")
	assert.False(t, ok)

	assert.Panics(t, func() { Register(EntityDefinition{Key: "events"}) })

	Clear()
	assert.Zero(t, Count())
}

func TestOrdered(t *testing.T) {
	ordered, err := Ordered(fixtureDefs())
	require.NoError(t, err)

	// Ready entities are taken in input order: donations waits for
	// participants, which is last in the input.
	assert.Equal(t,
		[]string{"events", "participants", "donations", "registrations", "surveys"},
		keysOf(ordered))
}

func TestOrdered_IndependentKeepInputOrder(t *testing.T) {
	defs := []EntityDefinition{{Key: "programs"}, {Key: "events"}, {Key: "participants"}}

	ordered, err := Ordered(defs)
	require.NoError(t, err)
	assert.Equal(t, []string{"programs", "events", "participants"}, keysOf(ordered))
}

func TestOrdered_DependenciesOutsideSetIgnored(t *testing.T) {
	ordered, err := Ordered([]EntityDefinition{surveysDef(), donationsDef()})
	require.NoError(t, err)
	assert.Equal(t, []string{"surveys", "donations"}, keysOf(ordered))
}

func TestOrdered_SelfReferenceIgnored(t *testing.T) {
	def := participantsDef()
	def.ForeignKeys = []ForeignKey{{Column: "referred_by", Sources: []string{"referrer_email"}, Entity: "participants", Optional: true}}

	ordered, err := Ordered([]EntityDefinition{def})
	require.NoError(t, err)
	assert.Len(t, ordered, 1)
}

func TestOrdered_Cycle(t *testing.T) {
	defs := []EntityDefinition{
		{Key: "a", After: []string{"b"}},
		{Key: "b", After: []string{"a"}},
		{Key: "c"},
	}

	_, err := Ordered(defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
	assert.Contains(t, err.Error(), "[a b]")
}

func TestSelect(t *testing.T) {
	defs := fixtureDefs()

	t.Run("empty selects all", func(t *testing.T) {
		got, err := Select(defs, nil)
		require.NoError(t, err)
		assert.Len(t, got, len(defs))
	})

	t.Run("keeps definition order", func(t *testing.T) {
		got, err := Select(defs, []string{"participants", "surveys"})
		require.NoError(t, err)
		assert.Equal(t, []string{"surveys", "participants"}, keysOf(got))
	})

	t.Run("unknown keys", func(t *testing.T) {
		_, err := Select(defs, []string{"participants", "volunteers", "staff"})
		require.ErrorIs(t, err, ErrUnknownEntity)
		assert.Contains(t, err.Error(), "[volunteers staff]")
	})
}
