package condition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func newData(posts int64, emailVerified, banned bool) *UserContextData {
	d := NewUserContextData("user-1")
	d.Metrics["postsPublished"] = Int(posts)
	d.Metrics["averageRating"] = Float(4.5)
	d.Profile.Flags["emailVerified"] = emailVerified
	d.Profile.Flags["banned"] = banned
	return d
}

func TestEvaluate_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	cond := AtLeast("postsPublished", 5)

	tests := []struct {
		name  string
		posts int64
		want  bool
	}{
		{name: "Should not be eligible one below the threshold", posts: 4, want: false},
		{name: "Should be eligible exactly at the threshold", posts: 5, want: true},
		{name: "Should be eligible above the threshold", posts: 6, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Evaluate(cond, Input{Data: newData(tt.posts, false, false)})

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_Operators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   Op
		want bool
	}{
		{op: OpGTE, want: true},
		{op: OpGT, want: false},
		{op: OpEQ, want: true},
		{op: OpLTE, want: true},
		{op: OpLT, want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			t.Parallel()

			cond := MetricThreshold{Metric: "postsPublished", Op: tt.op, Value: Int(3)}
			got, err := Evaluate(cond, Input{Data: newData(3, false, false)})

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_CompositeLogic(t *testing.T) {
	t.Parallel()

	verified := Is("emailVerified", true)
	hasPost := AtLeast("postsPublished", 1)

	tests := []struct {
		name     string
		cond     Node
		posts    int64
		verified bool
		banned   bool
		want     bool
	}{
		{name: "AND both hold", cond: AllOf(verified, hasPost), posts: 1, verified: true, want: true},
		{name: "AND only flag holds", cond: AllOf(verified, hasPost), posts: 0, verified: true, want: false},
		{name: "AND only metric holds", cond: AllOf(verified, hasPost), posts: 2, verified: false, want: false},
		{name: "AND neither holds", cond: AllOf(verified, hasPost), posts: 0, verified: false, want: false},
		{name: "OR both hold", cond: AnyOf(verified, hasPost), posts: 1, verified: true, want: true},
		{name: "OR only flag holds", cond: AnyOf(verified, hasPost), posts: 0, verified: true, want: true},
		{name: "OR only metric holds", cond: AnyOf(verified, hasPost), posts: 3, verified: false, want: true},
		{name: "OR neither holds", cond: AnyOf(verified, hasPost), posts: 0, verified: false, want: false},
		{name: "NOT banned for regular user", cond: Negate(Is("banned", true)), banned: false, want: true},
		{name: "NOT banned for banned user", cond: Negate(Is("banned", true)), banned: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Evaluate(tt.cond, Input{Data: newData(tt.posts, tt.verified, tt.banned)})

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_ShortCircuit(t *testing.T) {
	t.Parallel()

	// The second child references an unknown metric; it must never be reached.
	unknown := AtLeast("doesNotExist", 1)

	t.Run("AND stops at the first false child", func(t *testing.T) {
		t.Parallel()
		got, err := Evaluate(AllOf(Is("emailVerified", true), unknown), Input{Data: newData(0, false, false)})
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("OR stops at the first true child", func(t *testing.T) {
		t.Parallel()
		got, err := Evaluate(AnyOf(Is("emailVerified", true), unknown), Input{Data: newData(0, true, false)})
		require.NoError(t, err)
		assert.True(t, got)
	})
}

func TestEvaluate_DateWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(-d)
		return &v
	}

	tests := []struct {
		name  string
		value *time.Time
		want  bool
	}{
		{name: "Should hold for a date inside the window", value: at(3 * day), want: true},
		{name: "Should hold exactly on the window boundary", value: at(7 * day), want: true},
		{name: "Should not hold one second past the window", value: at(7*day + time.Second), want: false},
		{name: "Should hold for a date in the future", value: at(-day), want: true},
		{name: "Should not hold for an unset date", value: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := NewUserContextData("user-1")
			data.Profile.Dates["registeredAt"] = tt.value

			got, err := Evaluate(Within("registeredAt", 7), Input{Data: data, Now: now})

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_DateWindowBeyondDurationRange(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	data := NewUserContextData("user-1")
	old := time.Date(1726, 1, 1, 0, 0, 0, 0, time.UTC)
	data.Profile.Dates["registeredAt"] = &old

	// 200000 days is roughly 547 years, past what time.Duration can hold.
	got, err := Evaluate(Within("registeredAt", 200000), Input{Data: data, Now: now})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Evaluate(Within("registeredAt", 100000), Input{Data: data, Now: now})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cond    Node
		wantErr error
	}{
		{
			name:    "Should fail on unknown metric instead of returning false",
			cond:    AtLeast("reviewsWritten", 1),
			wantErr: ErrUnknownMetric,
		},
		{
			name:    "Should fail on unknown flag field",
			cond:    Is("isModerator", true),
			wantErr: ErrUnknownField,
		},
		{
			name:    "Should fail on unknown date field",
			cond:    Within("lastLoginAt", 1),
			wantErr: ErrUnknownField,
		},
		{
			name:    "Should not coerce an integer metric against a float threshold",
			cond:    MetricThreshold{Metric: "postsPublished", Op: OpGTE, Value: Float(1)},
			wantErr: ErrKindMismatch,
		},
		{
			name:    "Should not coerce a float metric against an integer threshold",
			cond:    AtLeast("averageRating", 4),
			wantErr: ErrKindMismatch,
		},
		{
			name:    "Should fail on empty AND",
			cond:    And{},
			wantErr: ErrMalformed,
		},
		{
			name:    "Should fail on empty OR",
			cond:    Or{},
			wantErr: ErrMalformed,
		},
		{
			name:    "Should fail on NOT without child",
			cond:    Not{},
			wantErr: ErrMalformed,
		},
		{
			name:    "Should fail on unsupported operator",
			cond:    MetricThreshold{Metric: "postsPublished", Op: "!=", Value: Int(1)},
			wantErr: ErrMalformed,
		},
		{
			name:    "Should fail on pointer node variants",
			cond:    &And{Children: []Node{Is("banned", false)}},
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Evaluate(tt.cond, Input{Data: newData(1, true, false)})

			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsConfigError(err))
			assert.False(t, got)
		})
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	t.Parallel()

	cond := AllOf(Is("emailVerified", true), AtLeast("postsPublished", 2))
	in := Input{Data: newData(2, true, false)}

	first, err := Evaluate(cond, in)
	require.NoError(t, err)
	second, err := Evaluate(cond, in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEvaluate_NilData(t *testing.T) {
	t.Parallel()

	_, err := Evaluate(Is("banned", false), Input{})
	require.Error(t, err)
	assert.False(t, IsConfigError(err))
}
