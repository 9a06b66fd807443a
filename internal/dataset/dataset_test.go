package dataset

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("  Plants need Sunlight, to grow. ")
	want := []string{"plants", "need", "sunlight", "to", "grow"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEncodePadsLeftAndTruncates(t *testing.T) {
	x := NewIndexer(0)
	x.Fit([]Instance{{Text: "a b c d"}})
	if got := x.Encode("a b", 4); !reflect.DeepEqual(got, []int{0, 0, 2, 3}) {
		t.Fatalf("left padding: got %v", got)
	}
	if got := x.Encode("a b c d", 3); !reflect.DeepEqual(got, []int{2, 3, 4}) {
		t.Fatalf("truncation: got %v", got)
	}
	if got := x.Encode("zebra", 2); !reflect.DeepEqual(got, []int{0, UnknownIndex}) {
		t.Fatalf("unknown word: got %v", got)
	}
}

func TestVocabularyCap(t *testing.T) {
	x := NewIndexer(4)
	x.Fit([]Instance{{Text: "one two three four"}})
	if x.VocabSize() != 4 || x.Word(3) != "two" || x.Word(4) != "" {
		t.Fatalf("unexpected vocabulary %v", x.Vocabulary())
	}
	back := IndexerFromVocabulary(x.Vocabulary())
	if !reflect.DeepEqual(back.Vocabulary(), x.Vocabulary()) {
		t.Fatalf("rebuilt vocabulary differs: %v", back.Vocabulary())
	}
}

func TestIndexBackgroundLayout(t *testing.T) {
	x := NewIndexer(0)
	insts := []Instance{
		{Text: "q", Background: []string{"a"}},
		{Text: "q", Background: []string{"a", "b", "c", "d"}},
	}
	x.Fit(insts)
	in := x.Index(insts, 2, 3)
	if in.Len() != 2 {
		t.Fatalf("expected batch 2, got %d", in.Len())
	}
	if got := in.Background.Shape(); got[0] != 2 || got[1] != 3 || got[2] != 2 {
		t.Fatalf("unexpected background shape %s", got)
	}
	// one sentence, left padded: slots 0 and 1 empty, slot 2 holds "a"
	if in.Background.At(0, 0, 1) != 0 || in.Background.At(0, 1, 1) != 0 || in.Background.At(0, 2, 1) != 3 {
		t.Fatalf("unexpected padding for instance 0: %v", in.Background.Row(0))
	}
	// four sentences, the trailing "d" dropped
	if in.Background.At(1, 0, 1) != 3 || in.Background.At(1, 2, 1) != 5 {
		t.Fatalf("unexpected truncation for instance 1: %v", in.Background.Row(1))
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	qPath := filepath.Join(dir, "train.tsv")
	bPath := filepath.Join(dir, "train_bg.tsv")
	questions := "1\tPlants need light\t1\n\n2\tRocks eat\tfalse\n"
	background := "1\tLight feeds plants\tPlants are green\n2\tRocks are minerals\n"
	if err := os.WriteFile(qPath, []byte(questions), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bPath, []byte(background), 0644); err != nil {
		t.Fatal(err)
	}
	insts, err := LoadFiles(qPath, bPath)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(insts) != 2 || !insts[0].Label || insts[1].Label {
		t.Fatalf("unexpected instances %+v", insts)
	}
	if len(insts[0].Background) != 2 || insts[1].Background[0] != "Rocks are minerals" {
		t.Fatalf("background not attached: %+v", insts)
	}
}

func TestReadInstancesRejectsBadLines(t *testing.T) {
	if _, err := ReadInstances(strings.NewReader("1\tno label\n")); err == nil {
		t.Fatal("expected field count error")
	}
	if _, err := ReadInstances(strings.NewReader("x\tq\t1\n")); err == nil {
		t.Fatal("expected index error")
	}
	if _, err := ReadInstances(strings.NewReader("1\tq\tmaybe\n")); err == nil {
		t.Fatal("expected label error")
	}
}
