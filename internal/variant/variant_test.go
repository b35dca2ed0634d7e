package variant

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDefaultSet(t *testing.T) {
	set := DefaultSet()
	require.Len(t, set, 3)
	require.Equal(t, "standard", set[0].ID)
	require.True(t, set[0].PriceDelta.IsZero())
	require.Equal(t, "5.99", set[1].PriceDelta.String())
	require.Equal(t, "9.99", set[2].PriceDelta.String())

	_, err := NewSet(set...)
	require.NoError(t, err)
}

func TestNewSetRejectsInvalid(t *testing.T) {
	_, err := NewSet(Variant{ID: "a"}, Variant{ID: " a "})
	require.ErrorIs(t, err, ErrInvalidVariant)

	_, err = NewSet(Variant{ID: ""})
	require.ErrorIs(t, err, ErrInvalidVariant)

	_, err = NewSet(Variant{ID: "cheap", PriceDelta: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrInvalidVariant)
}

func TestSelect(t *testing.T) {
	set := DefaultSet()
	v, ok := Select(set, "premium")
	require.True(t, ok)
	require.Equal(t, "Premium", v.Name)

	_, ok = Select(set, "")
	require.False(t, ok)
	_, ok = Select(set, "platinum")
	require.False(t, ok)
	_, ok = Select(nil, "premium")
	require.False(t, ok)
}

func TestResolve(t *testing.T) {
	set := DefaultSet()
	v, err := Resolve(set, "")
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = Resolve(set, " deluxe ")
	require.NoError(t, err)
	require.Equal(t, "deluxe", v.ID)

	_, err = Resolve([]Variant{}, "deluxe")
	require.ErrorIs(t, err, ErrUnknownVariant)
}

func TestDefault(t *testing.T) {
	v, ok := Default(DefaultSet())
	require.True(t, ok)
	require.Equal(t, "standard", v.ID)

	_, ok = Default(nil)
	require.False(t, ok)
}

func TestCatalogFor(t *testing.T) {
	c := Catalog{Set: DefaultSet(), Eligible: NewEligibility("electronics", " ")}

	require.Len(t, c.For("electronics"), 3)
	empty := c.For("jewelery")
	require.NotNil(t, empty)
	require.Empty(t, empty)
	require.Empty(t, c.For("Electronics"), "category match is exact")
	require.Equal(t, []string{"electronics"}, c.Eligible.Categories())

	var zero Catalog
	require.Empty(t, zero.For("electronics"))
}
