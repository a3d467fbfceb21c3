package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/catalog"
	"github.com/rafaeljc/accolade/internal/condition"
)

func TestLoadFile_DefaultCatalog(t *testing.T) {
	t.Parallel()

	defs, err := catalog.LoadFile("../../catalogs/default.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, defs)

	byID := map[string]*badge.Definition{}
	for _, d := range defs {
		byID[d.ID] = d
		assert.True(t, d.Active, "badges default to active")
		assert.NotNil(t, d.Condition, "every seeded badge compiles")
	}

	critic := byID["trusted-critic"]
	require.NotNil(t, critic)
	assert.Equal(t, []badge.EventType{badge.EventReviewSubmitted}, critic.Triggers)
	assert.Equal(t,
		condition.AllOf(
			condition.AtLeast("reviewsWritten", 10),
			condition.MetricThreshold{Metric: "averageRating", Op: condition.OpGTE, Value: condition.Float(4)},
		),
		critic.Condition,
		"4.0 must stay a float threshold",
	)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
		check   func(t *testing.T, defs []*badge.Definition)
	}{
		{
			name: "explicit inactive badge",
			yaml: `
badges:
  - id: retired
    title: Retired
    category: SPECIAL
    rarity: EPIC
    active: false
    condition: {type: FLAG, field: banned, expected: false}
`,
			check: func(t *testing.T, defs []*badge.Definition) {
				require.Len(t, defs, 1)
				assert.False(t, defs[0].Active)
				assert.Equal(t, condition.Is("banned", false), defs[0].Condition)
			},
		},
		{
			name: "duplicate id",
			yaml: `
badges:
  - {id: a, title: A, category: SPECIAL, rarity: RARE, condition: {type: FLAG, field: x, expected: true}}
  - {id: a, title: A, category: SPECIAL, rarity: RARE, condition: {type: FLAG, field: x, expected: true}}
`,
			wantErr: "duplicate badge id",
		},
		{
			name:    "unknown category",
			yaml:    `badges: [{id: a, title: A, category: FUN, rarity: RARE, condition: {type: FLAG, field: x, expected: true}}]`,
			wantErr: "unknown category",
		},
		{
			name:    "unknown trigger",
			yaml:    `badges: [{id: a, title: A, category: SPECIAL, rarity: RARE, triggers: [LOGGED_IN], condition: {type: FLAG, field: x, expected: true}}]`,
			wantErr: "unknown trigger",
		},
		{
			name:    "missing condition",
			yaml:    `badges: [{id: a, title: A, category: SPECIAL, rarity: RARE}]`,
			wantErr: "condition is required",
		},
		{
			name:    "malformed condition",
			yaml:    `badges: [{id: a, title: A, category: SPECIAL, rarity: RARE, condition: {type: OR, children: []}}]`,
			wantErr: "requires at least one child",
		},
		{
			name:    "invalid yaml",
			yaml:    "badges: [",
			wantErr: "failed to parse catalog YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			defs, err := catalog.Decode([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, defs)
		})
	}
}
