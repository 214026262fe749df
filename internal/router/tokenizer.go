package router

import (
	"strings"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/fuzzy"
)

// Special token ids shared with the training pipeline.
const (
	clsToken         = 101
	sepToken         = 102
	defaultVocabSize = 30000
	defaultMaxTokens = 128
	firstWordTokenID = 1000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// HashTokenizer maps normalized words to ids by hashing, so it needs no
// vocabulary file. The model must be trained with the same scheme.
type HashTokenizer struct {
	VocabSize int
}

// Tokenize normalizes text, splits it into words and produces padded token IDs
// up to maxTokens, framed by [CLS] and [SEP].
func (t *HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 2 {
		maxTokens = defaultMaxTokens
	}
	vocab := t.VocabSize
	if vocab <= firstWordTokenID {
		vocab = defaultVocabSize
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsToken
	attentionMask[0] = 1

	pos := 1
	for _, word := range strings.Fields(fuzzy.Normalize(text)) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(firstWordTokenID + hashString(word)%(vocab-firstWordTokenID))
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sepToken
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// hashString returns a deterministic non-negative hash.
func hashString(s string) int {
	var h uint32
	for _, c := range s {
		h = 31*h + uint32(c)
	}
	return int(h & 0x7fffffff)
}
