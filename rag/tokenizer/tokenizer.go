package tokenizer

// Tokenizer converts text into token ids and back. Used by the token chunker
// to enforce model-accurate context windows.
type Tokenizer interface {
	Encode(text string) []int
	CountTokens(text string) int
	DecodeIds(ids []int) string
}
