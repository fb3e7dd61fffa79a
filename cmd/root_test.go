package cmd

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/requestarr/config"
	"github.com/s0up4200/requestarr/filter"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{level: "debug", want: zerolog.DebugLevel},
		{level: "WARN", want: zerolog.WarnLevel},
		{level: "error", want: zerolog.ErrorLevel},
		{level: "", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			setupLogger(config.LoggingConfig{Level: tt.level, Format: "json"})
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestGetFilterExpression(t *testing.T) {
	cfg = &config.Config{Filter: config.FilterConfig{
		DefaultExpression: "isMovie()",
		Presets: map[string]config.PresetFilter{
			"stale": {Expression: "daysSince(CreatedAt) > 90"},
		},
	}}
	t.Cleanup(func() {
		cfg = nil
		filterExpr = ""
		preset = ""
	})

	expr, ok := getFilterExpression()
	assert.True(t, ok)
	assert.Equal(t, "isMovie()", expr)

	preset = "stale"
	expr, ok = getFilterExpression()
	assert.True(t, ok)
	assert.Equal(t, "daysSince(CreatedAt) > 90", expr)

	preset = "missing"
	_, ok = getFilterExpression()
	assert.False(t, ok)

	filterExpr = `requestedBy("bob")`
	expr, ok = getFilterExpression()
	assert.True(t, ok)
	assert.Equal(t, `requestedBy("bob")`, expr)
}

func TestJoinInts(t *testing.T) {
	assert.Equal(t, "1,2,10", joinInts([]int{1, 2, 10}))
	assert.Equal(t, "", joinInts(nil))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Title"}, [][]string{{"7", "Heat"}, {"12"}}, 0)
	assert.Contains(t, out, "Heat")
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "12")
	assert.Empty(t, renderTable(nil, nil))
}

func TestValidateFilters(t *testing.T) {
	c := filter.NewCompiler(filter.WithCache(8))
	fc := config.FilterConfig{
		DefaultExpression: "isMovie()",
		Presets: map[string]config.PresetFilter{
			"stale": {Expression: "daysSince(CreatedAt) > 90"},
		},
	}
	require.NoError(t, validateFilters(fc, c))
	assert.Equal(t, 2, c.CacheSize())

	cached, err := c.Compile("isMovie()")
	require.NoError(t, err)
	assert.Equal(t, "isMovie()", cached.Expression())
	assert.Equal(t, 2, c.CacheSize())

	fc.Presets["typo"] = config.PresetFilter{Expression: `Tittle == "Dune"`}
	err = validateFilters(fc, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `preset "typo"`)

	err = validateFilters(config.FilterConfig{DefaultExpression: `hasText(Title)`}, c)
	assert.ErrorContains(t, err, "default")
}
