package registry

import (
	"errors"
	"testing"

	"github.com/huangsam/strata/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopQuality(in QualityInput) (QualityOutput, error) {
	return QualityOutput{Flagged: make([]bool, len(in.Window))}, nil
}

func noopFill(FillInput) ([]schema.Point, error) { return nil, nil }

func TestResolveUnknown(t *testing.T) {
	reg := New()

	_, err := reg.ResolveQuality("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrUnknownFunction))
	var unknown *schema.UnknownFunctionError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, schema.QualityFunc, unknown.Kind)

	_, err = reg.ResolveFill("nope")
	assert.True(t, errors.Is(err, schema.ErrUnknownFunction))
}

func TestRegisterOverwrites(t *testing.T) {
	reg := New()
	reg.RegisterQuality("check", noopQuality, WithDescription("first"))
	reg.RegisterQuality("check", noopQuality, WithDescription("second"), WithoutMask())

	fn, err := reg.ResolveQuality("check")
	require.NoError(t, err)
	assert.Equal(t, "second", fn.Description)
	assert.False(t, fn.Masks)
}

func TestArgCheckIsKept(t *testing.T) {
	reg := New()
	reg.RegisterFill("fill", noopFill, WithArgCheck(func([]string, map[string]any) error {
		return errors.New("bad")
	}))

	fn, err := reg.ResolveFill("fill")
	require.NoError(t, err)
	require.NotNil(t, fn.Check)
	assert.EqualError(t, fn.Check(nil, nil), "bad")
}

func TestFunctionsSorted(t *testing.T) {
	reg := New()
	reg.RegisterFill("b_fill", noopFill)
	reg.RegisterQuality("z_check", noopQuality)
	reg.RegisterQuality("a_check", noopQuality)
	reg.RegisterFill("a_fill", noopFill)

	infos := reg.Functions()
	require.Len(t, infos, 4)
	assert.Equal(t, "a_check", infos[0].Name)
	assert.True(t, infos[0].Masks)
	assert.Equal(t, "z_check", infos[1].Name)
	assert.Equal(t, "a_fill", infos[2].Name)
	assert.Equal(t, schema.FillFunc, infos[3].Kind)

	assert.Equal(t, []string{"a_fill", "b_fill"}, reg.Names(schema.FillFunc))
}

func TestRegisterRejectsNil(t *testing.T) {
	reg := New()
	assert.Panics(t, func() { reg.RegisterQuality("x", nil) })
	assert.Panics(t, func() { reg.RegisterFill("", noopFill) })
}
