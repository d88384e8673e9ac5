package identifier

import "testing"

func TestParseAuthors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  []Name
	}{
		{"last first", "Staehr, Lorraine", []Name{{First: "Lorraine", Last: "Staehr"}}},
		{"first last", "Lorraine Staehr", []Name{{First: "Lorraine", Last: "Staehr"}}},
		{
			"two authors",
			"Rai, Arun and Webster, Jane",
			[]Name{{First: "Arun", Last: "Rai"}, {First: "Jane", Last: "Webster"}},
		},
		{
			"semicolon separated",
			"Rai, Arun; Webster, Jane",
			[]Name{{First: "Arun", Last: "Rai"}, {First: "Jane", Last: "Webster"}},
		},
		{"corporate", "{Barnes and Noble}", []Name{{Last: "Barnes and Noble"}}},
		{"particle", "Ludwig van Beethoven", []Name{{First: "Ludwig", Last: "van Beethoven"}}},
		{"suffix", "Smith, Jr., John", []Name{{First: "John", Last: "Smith Jr."}}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAuthors(tt.field)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseAuthors(%q) = %v, want %v", tt.field, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseAuthors(%q)[%d] = %+v, want %+v", tt.field, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFirstAuthorLast(t *testing.T) {
	if got := FirstAuthorLast("Webster, Jane and Watson, Richard T."); got != "Webster" {
		t.Errorf("FirstAuthorLast() = %q, want Webster", got)
	}
	if got := FirstAuthorLast(""); got != "" {
		t.Errorf("FirstAuthorLast(\"\") = %q, want empty", got)
	}
}
