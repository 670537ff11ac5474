package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Acme Trading Ltd", "ACME TRADING"},
		{"Acme Trading Limited", "ACME TRADING"},
		{"ACME TRADING LTD.", "ACME TRADING"},
		{"Cynnyrch y Cwm Cyf", "CYNNYRCH Y CWM"},
		{"Cynnyrch y Cwm Cyfyngedig", "CYNNYRCH Y CWM"},
		{"Dŵr Cymru Cyf", "DWR CYMRU"},
		{"Gŵyl Fŵyd Ltd", "GWYL FWYD"},
		{"J. Smith & Co", "J SMITH"},
		{"Harbour Fish Supplies PLC", "HARBOUR FISH SUPPLIES"},
		{"", ""},
		{"Ltd", "LTD"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeKey(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeKey_SameSupplierConverges(t *testing.T) {
	a := NormalizeKey("Valley Produce LTD")
	b := NormalizeKey("valley produce limited")
	c := NormalizeKey("Valley  Produce, Ltd.")
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("VALLEY PRODUCE", "VALLEY PRODUCE"))
	assert.Greater(t, Similarity("VALLEY PRODUCE", "VALLEY PRODUCO"), 0.9)
	assert.Less(t, Similarity("VALLEY PRODUCE", "MOUNTAIN DAIRY"), 0.5)
}
