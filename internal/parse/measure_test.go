package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  int64
		missing   bool
		expectErr bool
	}{
		{name: "Hours minutes seconds", raw: "1:02:03", expected: 3723},
		{name: "Long ride", raw: "26:00:00", expected: 93600},
		{name: "Minutes and seconds", raw: "45:10", expected: 2710},
		{name: "Plain seconds", raw: "7200", expected: 7200},
		{name: "Surrounding spaces", raw: " 0:30:00 ", expected: 1800},
		{name: "Empty", raw: "", missing: true},
		{name: "Seconds overflow", raw: "1:00:75", expectErr: true},
		{name: "Minutes overflow", raw: "1:75:00", expectErr: true},
		{name: "Negative", raw: "-5", expectErr: true},
		{name: "Garbage", raw: "an hour", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Duration(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.missing {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.expected, *got)
		})
	}
}

func TestDistance(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  int64
		expectErr bool
	}{
		{name: "Metres", raw: "850", expected: 850},
		{name: "Metres with unit", raw: "850 m", expected: 850},
		{name: "Kilometres", raw: "42.195km", expected: 42195},
		{name: "Decimal comma", raw: "12,5 KM", expected: 12500},
		{name: "Fractional metres round", raw: "10.6", expected: 11},
		{name: "Unknown unit", raw: "3 miles", expectErr: true},
		{name: "Negative kilometres", raw: "-5 km", expectErr: true},
		{name: "Negative metres", raw: "-850", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Distance(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tc.expected, *got)
		})
	}

	got, err := Distance("")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestEnergy(t *testing.T) {
	got, err := Energy("1000 kcal")
	require.NoError(t, err)
	assert.Equal(t, int64(4184), *got)

	got, err = Energy("950kJ")
	require.NoError(t, err)
	assert.Equal(t, int64(950), *got)

	_, err = Energy("lots")
	assert.Error(t, err)
}
