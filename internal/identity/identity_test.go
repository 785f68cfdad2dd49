package identity

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "alice", want: "alice"},
		{in: "  Alice  ", want: "alice"},
		{in: "ALICE\t", want: "alice"},
		{in: "ÉLODIE", want: "élodie"},
		{in: "   ", want: ""},
		{in: "", want: ""},
		// decomposed e + combining acute folds to the same name as precomposed é
		{in: "Jose\u0301", want: "jos\u00e9"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAll(t *testing.T) {
	got := NormalizeAll([]string{"Bob", " alice", "bob", "", "ALICE", "carol"})
	want := []string{"bob", "alice", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeAll = %v, want %v", got, want)
	}
}
