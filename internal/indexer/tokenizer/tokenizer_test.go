package tokenizer

import "testing"

func TestTokenizePositionsCountKeptTokens(t *testing.T) {
	tokens := Tokenize("The quick brown fox, and the lazy dog!")
	want := []string{"quick", "brown", "fox", "lazy", "dog"}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens (%v), want %d", len(tokens), tokens, len(want))
	}
	for i, tok := range tokens {
		if tok.Term != want[i] {
			t.Errorf("token %d = %q, want %q", i, tok.Term, want[i])
		}
		if tok.Position != i {
			t.Errorf("token %q at position %d, want %d", tok.Term, tok.Position, i)
		}
	}
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"running":     "runn",
		"relational":  "relate",
		"cats":        "cat",
		"flies":       "fly",
		"happiness":   "happy",
		"glass":       "glass",
		"information": "informat",
		"go":          "go",
	}
	for in, want := range tests {
		if got := stem(in); got != want {
			t.Errorf("stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAnalyzerTerm(t *testing.T) {
	if term, ok := Default.Term("  Cats "); !ok || term != "cat" {
		t.Errorf("Term(Cats) = %q, %v", term, ok)
	}
	if term, ok := Default.Term("fox,"); !ok || term != "fox" {
		t.Errorf("Term(fox,) = %q, %v", term, ok)
	}
	if _, ok := Default.Term("--"); ok {
		t.Error("punctuation alone should not produce a term")
	}
	if _, ok := Default.Term("the"); ok {
		t.Error("stop-words should not produce a term")
	}
	if _, ok := Default.Term("x"); ok {
		t.Error("short words should not produce a term")
	}
}

func TestAnalyzerWithoutStemming(t *testing.T) {
	a := &Analyzer{Stem: false, MinLength: 1}
	tokens := a.Tokenize("the cats ran")
	if len(tokens) != 3 || tokens[1].Term != "cats" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if got := Tokenize("  ,,; "); len(got) != 0 {
		t.Errorf("expected no tokens, got %v", got)
	}
}
