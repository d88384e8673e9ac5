package s2

import "testing"

func TestParsePaperID(t *testing.T) {
	tests := []struct {
		in       string
		wantType string
		wantStr  string
	}{
		{"DOI:10.1038/nature12373", "DOI", "DOI:10.1038/nature12373"},
		{"arxiv:2106.15928", "ARXIV", "ARXIV:2106.15928"},
		{"649def34f8be52c8b66281af98ae884c09aef38b", "S2", "649def34f8be52c8b66281af98ae884c09aef38b"},
		{"Staehr2010", "LOCAL", "LOCAL:Staehr2010"},
	}
	for _, tt := range tests {
		got := ParsePaperID(tt.in)
		if got.Type != tt.wantType || got.String() != tt.wantStr {
			t.Errorf("ParsePaperID(%q) = %+v (%s)", tt.in, got, got.String())
		}
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := map[string]string{
		"https://doi.org/10.1111/ABC":   "10.1111/abc",
		"http://dx.doi.org/10.1111/abc": "10.1111/abc",
		"DOI:10.1111/abc":               "10.1111/abc",
		" 10.1111/abc ":                 "10.1111/abc",
	}
	for in, want := range tests {
		if got := NormalizeDOI(in); got != want {
			t.Errorf("NormalizeDOI(%q) = %q, want %q", in, got, want)
		}
	}
}
