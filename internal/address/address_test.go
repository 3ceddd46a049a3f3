package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommaForm(t *testing.T) {
	got, ok := Parse("929 Gilmore Ave Apt 2, Lakeland, FL 33801")
	require.True(t, ok)
	assert.Equal(t, "929 Gilmore Ave Apt 2", got.Street)
	assert.Equal(t, "Lakeland", got.City)
	assert.Equal(t, "FL", got.State)
	assert.Equal(t, "33801", got.Zip5)
	assert.Equal(t, "", got.Zip4)
}

func TestParseTokenForm(t *testing.T) {
	got, ok := Parse("929 Gilmore Ave Apt 2 Lakeland FL 33801")
	require.True(t, ok)
	assert.Equal(t, "929 Gilmore Ave Apt 2", got.Street)
	assert.Equal(t, "Lakeland", got.City)
	assert.Equal(t, "FL", got.State)
	assert.Equal(t, "33801", got.Zip5)
}

func TestParseZipPlus4(t *testing.T) {
	got, ok := Parse("1600 Pennsylvania Ave NW, Washington, DC 20500-0003")
	require.True(t, ok)
	assert.Equal(t, "20500", got.Zip5)
	assert.Equal(t, "0003", got.Zip4)
}

func TestParseZipOptional(t *testing.T) {
	got, ok := Parse("12 Oak St, Denver, Colorado")
	require.True(t, ok)
	assert.Equal(t, "CO", got.State)
	assert.Equal(t, "", got.Zip5)
}

func TestParseFullStateName(t *testing.T) {
	got, ok := Parse("350 5th Ave, New York, New York 10118")
	require.True(t, ok)
	assert.Equal(t, "NY", got.State)
	assert.Equal(t, "New York", got.City)
}

func TestParseStateClosestToEndWins(t *testing.T) {
	// "Washington" could parse as a state, but the trailing token must win.
	got, ok := Parse("100 Main St Washington PA 15301")
	require.True(t, ok)
	assert.Equal(t, "PA", got.State)
	assert.Equal(t, "Washington", got.City)
}

func TestParseFailures(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"whitespace only":   "   ",
		"too few tokens":    "Lakeland FL",
		"no state in tail":  "929 Gilmore Ave Apt 2 Lakeland",
		"state first token": "FL 33801",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Parse(raw)
			assert.False(t, ok)
		})
	}
}

func TestNormState(t *testing.T) {
	assert.Equal(t, "CA", NormState("california"))
	assert.Equal(t, "CA", NormState("CA"))
	assert.Equal(t, "CA", NormState("Ca."))
	assert.Equal(t, "", NormState("Calif."))
	assert.Equal(t, "DC", NormState("District of Columbia"))
	assert.Equal(t, "", NormState("Ontario"))
}

func TestFormatLine(t *testing.T) {
	assert.Equal(t, "929 Gilmore Ave\nLakeland FL 33801-1234",
		FormatLine("929 Gilmore Ave", "Lakeland", "FL", "33801", "1234"))
	assert.Equal(t, "929 Gilmore Ave\nLakeland FL",
		FormatLine("929 Gilmore Ave", "Lakeland", "FL", "", ""))
	assert.Equal(t, "Lakeland FL", FormatLine("", "Lakeland", "FL", "", ""))
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, Canonical("929 Gilmore Ave Apt. 2"), Canonical("929 GILMORE AVE APT 2"))
	assert.Equal(t, Canonical("Unit #4,"), Canonical("unit 4"))
	assert.NotEqual(t, Canonical("929 Gilmore Ave"), Canonical("929 Gilmore St"))
}
