package dataset

import (
	stdreflect "reflect"
	"testing"
)

func TestVocabularyOrdersByFrequency(t *testing.T) {
	v := BuildVocabulary([]string{"the cat sat", "The dog, the end."})
	if v.Size() != 6 {
		t.Fatalf("expected 6 ids, got %d", v.Size())
	}
	got := v.Encode("the zebra cat")
	want := []float64{1, UnknownToken, 2}
	if !stdreflect.DeepEqual(got, want) {
		t.Fatalf("Encode=%v want %v", got, want)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Hello, World-42!")
	want := []string{"hello", "world", "42"}
	if !stdreflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize=%v want %v", got, want)
	}
}
