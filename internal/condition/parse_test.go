package condition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidTrees(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want Node
	}{
		{
			name: "integer threshold",
			raw:  `{"type":"METRIC_THRESHOLD","metric":"postsPublished","op":">=","value":5}`,
			want: AtLeast("postsPublished", 5),
		},
		{
			name: "float threshold keeps its kind",
			raw:  `{"type":"METRIC_THRESHOLD","metric":"averageRating","op":">","value":4.0}`,
			want: MetricThreshold{Metric: "averageRating", Op: OpGT, Value: Float(4)},
		},
		{
			name: "flag",
			raw:  `{"type":"FLAG","field":"emailVerified","expected":false}`,
			want: Is("emailVerified", false),
		},
		{
			name: "date window",
			raw:  `{"type":"DATE_WINDOW","field":"registeredAt","withinDays":30}`,
			want: Within("registeredAt", 30),
		},
		{
			name: "nested composite",
			raw: `{"type":"AND","children":[
				{"type":"FLAG","field":"emailVerified","expected":true},
				{"type":"OR","children":[
					{"type":"METRIC_THRESHOLD","metric":"postsPublished","op":">=","value":1},
					{"type":"NOT","children":[{"type":"FLAG","field":"banned","expected":true}]}
				]}
			]}`,
			want: AllOf(
				Is("emailVerified", true),
				AnyOf(AtLeast("postsPublished", 1), Negate(Is("banned", true))),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse([]byte(tt.raw))

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_MalformedTrees(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantMsg string
	}{
		{name: "empty input", raw: ``, wantMsg: "empty condition"},
		{name: "invalid json", raw: `{"type":`, wantMsg: "invalid JSON"},
		{name: "unknown type", raw: `{"type":"GEO_FENCE"}`, wantMsg: "unknown condition type"},
		{name: "AND without children", raw: `{"type":"AND","children":[]}`, wantMsg: "at least one child"},
		{name: "OR without children", raw: `{"type":"OR"}`, wantMsg: "at least one child"},
		{
			name:    "NOT with two children",
			raw:     `{"type":"NOT","children":[{"type":"FLAG","field":"a","expected":true},{"type":"FLAG","field":"b","expected":true}]}`,
			wantMsg: "exactly one child",
		},
		{
			name:    "leaf with children",
			raw:     `{"type":"FLAG","field":"a","expected":true,"children":[{"type":"FLAG","field":"b","expected":true}]}`,
			wantMsg: "leaf must not have children",
		},
		{name: "threshold without value", raw: `{"type":"METRIC_THRESHOLD","metric":"posts","op":">="}`, wantMsg: "threshold value is required"},
		{name: "threshold with bad operator", raw: `{"type":"METRIC_THRESHOLD","metric":"posts","op":"!=","value":1}`, wantMsg: "unsupported operator"},
		{name: "threshold without metric", raw: `{"type":"METRIC_THRESHOLD","op":">=","value":1}`, wantMsg: "metric is required"},
		{name: "flag without expected", raw: `{"type":"FLAG","field":"banned"}`, wantMsg: "expected is required"},
		{name: "date window without days", raw: `{"type":"DATE_WINDOW","field":"registeredAt"}`, wantMsg: "withinDays is required"},
		{name: "date window with negative days", raw: `{"type":"DATE_WINDOW","field":"registeredAt","withinDays":-1}`, wantMsg: "must not be negative"},
		{
			name:    "nested error reports its path",
			raw:     `{"type":"AND","children":[{"type":"FLAG","field":"a","expected":true},{"type":"OR","children":[]}]}`,
			wantMsg: "$.children[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.raw))

			require.ErrorIs(t, err, ErrMalformed)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestMarshal_PreservesStructureAndKinds(t *testing.T) {
	t.Parallel()

	tree := AllOf(
		MetricThreshold{Metric: "averageRating", Op: OpGTE, Value: Float(4)},
		AtLeast("reviewsWritten", 10),
		Negate(Is("banned", true)),
		Within("registeredAt", 365),
	)

	raw, err := Marshal(tree)
	require.NoError(t, err)

	// The float threshold must keep a decimal point so it does not come back as an integer.
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, string(raw), `"value":4.0`)

	back, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Node(tree), back)
}

func TestMarshal_RejectsInvalidTree(t *testing.T) {
	t.Parallel()

	_, err := Marshal(Not{})
	require.ErrorIs(t, err, ErrMalformed)
}
