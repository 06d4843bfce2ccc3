package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTuple() []any {
	return []any{"Store A", "I-1", "600100", "Bidco", "Soap", "Home", "Care", "Soap", "Bar", "10", "100", "8", "2024-05-01"}
}

func TestHashIsDeterministic(t *testing.T) {
	first := Hash(sampleTuple())
	second := Hash(sampleTuple())

	assert.Equal(t, first, second)
	assert.Len(t, first, HashLength)
}

func TestHashChangesWithAnySingleField(t *testing.T) {
	base := Hash(sampleTuple())
	for i := range sampleTuple() {
		tuple := sampleTuple()
		tuple[i] = tuple[i].(string) + "x"
		assert.NotEqual(t, base, Hash(tuple), "field %d did not affect hash", i)
	}
}

func TestHashDistinguishesAbsentFromEmpty(t *testing.T) {
	withEmpty := sampleTuple()
	withEmpty[4] = ""
	withAbsent := sampleTuple()
	withAbsent[4] = nil

	assert.NotEqual(t, Hash(withEmpty), Hash(withAbsent))
}

func TestHashIsSensitiveToCellBoundaries(t *testing.T) {
	assert.NotEqual(t, Hash([]any{"ab", "c"}), Hash([]any{"a", "bc"}))
}

func TestRawText(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
		ok    bool
	}{
		{name: "nil", value: nil, ok: false},
		{name: "string", value: "x", want: "x", ok: true},
		{name: "float", value: 12.5, want: "12.5", ok: true},
		{name: "integral float", value: 10.0, want: "10", ok: true},
		{name: "int64", value: int64(-3), want: "-3", ok: true},
		{name: "date", value: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), want: "2024-01-02", ok: true},
		{name: "nil pointer", value: (*float64)(nil), ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := RawText(tc.value)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestGeneratorIssuesUniqueTimeOrderedIDs(t *testing.T) {
	gen := NewGenerator()
	seen := make(map[uuid.UUID]struct{})
	var previous uuid.UUID
	for i := 0; i < 1000; i++ {
		id := gen.NewID()
		require.Equal(t, uuid.Version(7), id.Version())
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
		if i > 0 {
			require.Greater(t, id.String(), previous.String())
		}
		previous = id
	}
}

func TestGeneratorFallsBackWhenSourceFails(t *testing.T) {
	gen := NewGeneratorWithSource(func() (uuid.UUID, error) {
		return uuid.Nil, errors.New("clock unavailable")
	})

	assert.NotEqual(t, uuid.Nil, gen.NewID())
}
