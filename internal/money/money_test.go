package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"105", "105.00"},
		{"33.333", "33.33"},
		{"0.125", "0.12"},
		{"0.135", "0.14"},
		{"2.675", "2.68"},
		{"-1.005", "-1.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Round2(MustParse(tt.in))
			require.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestSum(t *testing.T) {
	require.Equal(t, "133.00", Format(Sum(MustParse("100.00"), MustParse("33.00"))))
	require.True(t, Sum().Equal(Zero))
}

func TestPercent(t *testing.T) {
	require.Equal(t, "5.00", Format(Percent(MustParse("10.00"), MustParse("200.00"))))
	require.Equal(t, "0.00", Format(Percent(MustParse("10.00"), decimal.Zero)))
	require.Equal(t, "0.00", Format(Percent(MustParse("10.00"), MustParse("-1"))))
}

func TestParse(t *testing.T) {
	d, err := Parse(" 19.90 ")
	require.NoError(t, err)
	require.Equal(t, "19.90", Format(d))

	_, err = Parse("")
	require.ErrorIs(t, err, ErrEmpty)

	_, err = Parse("abc")
	require.Error(t, err)
}

func TestMaxFitsColumn(t *testing.T) {
	require.Equal(t, "99999999.99", Format(Max))
}
