package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/strata/core/algo"
	"github.com/huangsam/strata/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const qualityCSV = `logger,flagnum,varname,q_func,q_func_arg1,q_func_arg2,q_func_arg3,q_func_arg4,q_func_arg5,startflag,endflag,description
# comments are skipped
CR1000,2,AirTC_1_2_1,mask_by_datetime,,,,,,2024-01-01 02:00:00,2024-01-01 03:00:00,sensor swap
CR1000,1,AirTC_1_2_1,range_check,min=-40,max=60,,,,,,plausible range
CR1000,1,RH_1_2_1,mask_by_comparison,above,100,,,,NaT,None,supersaturation
`

const gapfillCSV = `logger,flagnum,varname,src_level,src_varname,gf_func,startflag,endflag,startfit,endfit,gf_kwargs,description
CR1000,1,AirTC_1_2_1,,,interpolate,,,,,{limit: 3},short gaps
CR1000,2,AirTC_1_2_1,raw,AirTC_2_2_1,linearfit,,,2024-01-01,2024-02-01,"{""zero_intcpt"": true}",neighbor sensor
`

func loadStrings(t *testing.T, q, g string) (*Store, error) {
	t.Helper()
	qrows, err := ReadQualityRows(strings.NewReader(q))
	require.NoError(t, err)
	grows, err := ReadGapFillRows(strings.NewReader(g))
	require.NoError(t, err)
	return Load(algo.NewRegistry(), qrows, grows)
}

func TestLoadValidRules(t *testing.T) {
	store, err := loadStrings(t, qualityCSV, gapfillCSV)
	require.NoError(t, err)

	q, g := store.Count()
	assert.Equal(t, 3, q)
	assert.Equal(t, 2, g)
	assert.Equal(t, []string{"CR1000"}, store.Loggers())
	assert.Equal(t, []string{"AirTC_1_2_1", "RH_1_2_1"}, store.QualityVariables("CR1000"))
	assert.Equal(t, []string{"AirTC_1_2_1"}, store.GapFillVariables("CR1000"))

	air := store.QualityRules("CR1000", "AirTC_1_2_1")
	require.Len(t, air, 2)
	assert.Equal(t, 1, air[0].Flagnum, "rules are ordered by flagnum")
	assert.Equal(t, "range_check", air[0].Func)
	assert.Empty(t, air[0].Args)
	assert.Equal(t, map[string]any{"min": "-40", "max": "60"}, air[0].Kwargs)
	assert.True(t, air[0].Window.Unbounded())
	require.NotNil(t, air[1].Window.Start)
	assert.Equal(t, time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), *air[1].Window.Start)

	rh := store.QualityRules("CR1000", "RH_1_2_1")
	require.Len(t, rh, 1)
	assert.Equal(t, []string{"above", "100"}, rh[0].Args)
	assert.True(t, rh[0].Window.Unbounded())

	_, fills := store.RulesFor("CR1000", "AirTC_1_2_1")
	require.Len(t, fills, 2)
	assert.Equal(t, map[string]any{"limit": 3}, fills[0].Kwargs)
	assert.Empty(t, fills[0].SrcLevel)
	assert.Equal(t, "raw", fills[1].SrcLevel)
	assert.Equal(t, "AirTC_2_2_1", fills[1].SrcVarname)
	assert.Equal(t, map[string]any{"zero_intcpt": true}, fills[1].Kwargs)
	require.NotNil(t, fills[1].Fit.End)

	assert.Empty(t, store.QualityRules("CR1000", "unknown"))
}

func TestLoadCollectsEveryViolation(t *testing.T) {
	q := `logger,flagnum,varname,q_func,q_func_arg1,q_func_arg2,startflag,endflag
CR1000,1,x,range_check,-40,60,,
CR1000,1,x,range_check,-40,60,,
CR1000,0,y,range_check,-40,60,,
CR1000,abc,y,range_check,-40,60,,
CR1000,2,x,no_such_check,,,,
CR1000,3,x,mask_by_datetime,,,2024-02-01,2024-01-01
CR1000,4,x,range_check,,,,
CR1000,5,x,mask_by_datetime,,,yesterday,
`
	g := `logger,flagnum,varname,gf_func,startfit,endfit,gf_kwargs
CR1000,1,x,interpolate,2024-02-01,2024-01-01,
CR1000,2,x,fillna,,,[1
CR1000,3,x,cubic_spline,,,
`
	store, err := loadStrings(t, q, g)
	require.Error(t, err)
	assert.Nil(t, store, "loading is all-or-nothing")
	assert.True(t, errors.Is(err, schema.ErrRuleDefinition))
	assert.True(t, errors.Is(err, schema.ErrUnknownFunction))

	var ruleErr *schema.RuleDefinitionError
	require.True(t, errors.As(err, &ruleErr))

	msg := err.Error()
	for _, want := range []string{
		"duplicate rule key",
		"flagnum must be positive",
		`invalid flagnum "abc"`,
		"function not registered (available: mask_by_comparison, mask_by_comparison_ind, mask_by_datetime, mask_by_rolling_stat, range_check, scale_by_multiplier)",
		"function not registered (available: fillna, interpolate, linearfit, substitution)",
		"startflag 2024-02-01T00:00:00Z is after endflag",
		"invalid arguments for range_check",
		`invalid startflag "yesterday"`,
		"startfit 2024-02-01T00:00:00Z is after endfit",
		"invalid gf_kwargs",
		`unknown fill function "cubic_spline"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadRejectsAmbiguousArguments(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"keyword then positional", "CR1000,1,x,range_check,min=-40,60,,", "min given both by position and by keyword"},
		{"too many positional", "CR1000,1,x,scale_by_multiplier,10,20,,", "takes at most 1 positional arguments, got 2"},
		{"unknown keyword", "CR1000,1,x,range_check,min=-40,maxx=60,,", `unexpected keyword argument "maxx"`},
		{"arguments to a window mask", "CR1000,1,x,mask_by_datetime,1,,,", "takes at most 0 positional arguments, got 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := "logger,flagnum,varname,q_func,q_func_arg1,q_func_arg2,startflag,endflag\n" + tt.row + "\n"
			_, err := loadStrings(t, q, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, schema.ErrRuleDefinition)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejectsTooManyRules(t *testing.T) {
	var b strings.Builder
	b.WriteString("logger,flagnum,varname,q_func\n")
	for i := 1; i <= schema.MaxRulesPerVariable+1; i++ {
		b.WriteString("CR1000," + strconv.Itoa(i) + ",x,mask_by_datetime\n")
	}
	_, err := loadStrings(t, b.String(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceed the limit")
}

func TestDigestIsStable(t *testing.T) {
	a, err := loadStrings(t, qualityCSV, gapfillCSV)
	require.NoError(t, err)

	// same rules, different row order
	lines := strings.Split(strings.TrimSpace(qualityCSV), "\n")
	reordered := strings.Join([]string{lines[0], lines[3], lines[2], lines[4]}, "\n") + "\n"
	b, err := loadStrings(t, reordered, gapfillCSV)
	require.NoError(t, err)
	assert.Equal(t, a.Digest(), b.Digest())
	assert.Len(t, a.Digest(), 64)

	c, err := loadStrings(t, qualityCSV, "")
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest(), c.Digest())
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	qPath := filepath.Join(dir, "quality.csv")
	require.NoError(t, os.WriteFile(qPath, []byte(qualityCSV), 0o644))

	store, err := LoadFiles(algo.NewRegistry(), qPath, "")
	require.NoError(t, err)
	q, g := store.Count()
	assert.Equal(t, 3, q)
	assert.Equal(t, 0, g)

	_, err = LoadFiles(algo.NewRegistry(), filepath.Join(dir, "missing.csv"), "")
	assert.Error(t, err)
}

func TestSplitArgs(t *testing.T) {
	args, kwargs := splitArgs([]string{" above ", "", "NaN", "thresh = 2", ""})
	assert.Equal(t, []string{"above", "NaN"}, args)
	assert.Equal(t, map[string]any{"thresh": "2"}, kwargs)
}
