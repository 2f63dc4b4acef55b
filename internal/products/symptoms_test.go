package products

import "testing"

func TestCategoryForSymptom(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"headache", "Pain Relief", true},
		{"Headaches", "Pain Relief", true},
		{"coughs", "Cold & Flu", true},
		{"bad hay fever this week", "Allergy", true},
		{"a mild fever", "Pain Relief", true},
		{"allergies", "Allergy", true},
		{"", "", false},
		{"hiccups", "", false},
	}
	for _, tc := range cases {
		got, ok := CategoryForSymptom(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("CategoryForSymptom(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
