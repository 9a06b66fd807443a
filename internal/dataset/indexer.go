// Package dataset reads question and background files and turns instances
// into the index tensors the network consumes.
package dataset

import (
	"strings"
	"unicode"

	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region tokenize
// Tokenize lower-cases s and splits it on whitespace, trimming punctuation
// from each token.
func Tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
// #endregion tokenize

// #region indexer
// Indexer assigns word indices. 0 is padding and 1 is the unknown word.
type Indexer struct {
	maxVocab int
	words    map[string]int
	vocab    []string
}

// NewIndexer creates an indexer that holds at most maxVocab entries,
// including the two reserved ones. maxVocab <= 0 means unbounded.
func NewIndexer(maxVocab int) *Indexer {
	return &Indexer{
		maxVocab: maxVocab,
		words:    map[string]int{UnknownToken: UnknownIndex},
		vocab:    []string{"", UnknownToken},
	}
}

// Fit adds every word of every question and background sentence, in order
// of first appearance, until the vocabulary is full.
func (x *Indexer) Fit(instances []Instance) {
	for _, inst := range instances {
		x.add(inst.Text)
		for _, bg := range inst.Background {
			x.add(bg)
		}
	}
}

func (x *Indexer) add(sentence string) {
	for _, w := range Tokenize(sentence) {
		if _, ok := x.words[w]; ok {
			continue
		}
		if x.maxVocab > 0 && len(x.vocab) >= x.maxVocab {
			return
		}
		x.words[w] = len(x.vocab)
		x.vocab = append(x.vocab, w)
	}
}

// VocabSize returns the number of indices in use, reserved ones included.
func (x *Indexer) VocabSize() int { return len(x.vocab) }

// Word returns the word for an index, or "" for padding and out-of-range.
func (x *Indexer) Word(i int) string {
	if i <= 0 || i >= len(x.vocab) {
		return ""
	}
	return x.vocab[i]
}

// Encode maps a sentence to exactly maxLen indices. Short sentences are
// padded on the left; words past maxLen are dropped.
func (x *Indexer) Encode(sentence string, maxLen int) []int {
	tokens := Tokenize(sentence)
	if len(tokens) > maxLen {
		tokens = tokens[:maxLen]
	}
	out := make([]int, maxLen)
	pad := maxLen - len(tokens)
	for i, w := range tokens {
		idx, ok := x.words[w]
		if !ok {
			idx = UnknownIndex
		}
		out[pad+i] = idx
	}
	return out
}

// Index encodes a batch. Background lists are padded on the left with empty
// sentences, so padding slices come first along the knowledge axis and the
// real sentences occupy the trailing slots. Sentences past maxKnowledge are
// dropped from the end.
func (x *Indexer) Index(instances []Instance, maxSentence, maxKnowledge int) IndexedInputs {
	n := len(instances)
	question := tensor.Zeros(n, maxSentence)
	background := tensor.Zeros(n, maxKnowledge, maxSentence)
	qd, bd := question.Data(), background.Data()
	for b, inst := range instances {
		for i, idx := range x.Encode(inst.Text, maxSentence) {
			qd[b*maxSentence+i] = float64(idx)
		}
		bg := inst.Background
		if len(bg) > maxKnowledge {
			bg = bg[:maxKnowledge]
		}
		pad := maxKnowledge - len(bg)
		for k, sentence := range bg {
			off := (b*maxKnowledge + pad + k) * maxSentence
			for i, idx := range x.Encode(sentence, maxSentence) {
				bd[off+i] = float64(idx)
			}
		}
	}
	return IndexedInputs{Question: question, Background: background}
}
// #endregion indexer

// #region vocab
// Vocabulary returns the words by index; entry 0 is the empty padding word.
func (x *Indexer) Vocabulary() []string {
	out := make([]string, len(x.vocab))
	copy(out, x.vocab)
	return out
}

// IndexerFromVocabulary rebuilds a fitted indexer from Vocabulary output.
func IndexerFromVocabulary(vocab []string) *Indexer {
	x := NewIndexer(0)
	for _, w := range vocab {
		if w == "" || w == UnknownToken {
			continue
		}
		if _, ok := x.words[w]; !ok {
			x.words[w] = len(x.vocab)
			x.vocab = append(x.vocab, w)
		}
	}
	return x
}
// #endregion vocab
