package workflow

import "testing"

func TestNormalizeLabel(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"PECHUGA POLLO 500G", "pechuga pollo"},
		{"  Leche Entera 1L ", "leche entera"},
		{"2x Yogur Natural", "yogur natural"},
		{"YOGUR NATURAL x4", "yogur natural"},
		{"CAFÉ MOLIDO", "cafe molido"},
		{"Atún claro, aceite", "atun claro aceite"},
		{"PAN 0.85", "pan"},
		{"QUESO 250 gr pack", "queso"},
		{"manzana 1,5 kg", "manzana"},
		{"", ""},
		{"1.50", ""},
	}
	for _, tc := range cases {
		got := NormalizeLabel(tc.in)
		if got != tc.expected {
			t.Fatalf("NormalizeLabel(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestNormalizeLabel_Idempotent(t *testing.T) {
	inputs := []string{
		"PECHUGA POLLO 500G",
		"Café con Leche 2x",
		"atun claro aceite",
	}
	for _, in := range inputs {
		once := NormalizeLabel(in)
		twice := NormalizeLabel(once)
		if once != twice {
			t.Fatalf("NormalizeLabel not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSortTokens(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"pollo pechuga", "pechuga pollo"},
		{"pechuga pollo", "pechuga pollo"},
		{"c b a", "a b c"},
		{"solo", "solo"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sortTokens(tc.in); got != tc.expected {
			t.Fatalf("sortTokens(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}
