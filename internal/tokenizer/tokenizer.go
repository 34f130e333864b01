package tokenizer

import "strconv"

// Tokenizer is the contract the session needs from a vocabulary.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	// Decode returns the text fragment for a single id.
	Decode(id int) (string, error)
	IsStop(id int) bool
}

// DecodePiece decodes id and converts byte-fallback fragments of the form
// <0xHH> to the raw byte they name.
func DecodePiece(tok Tokenizer, id int) (string, error) {
	word, err := tok.Decode(id)
	if err != nil {
		return "", err
	}
	return FixBytePiece(word), nil
}

// FixBytePiece returns the single byte encoded by a "<0xHH>" fragment and any
// other fragment unchanged.
func FixBytePiece(word string) string {
	if len(word) != 6 || word[0] != '<' || word[5] != '>' || word[1] != '0' || word[2] != 'x' {
		return word
	}
	b, err := strconv.ParseUint(word[3:5], 16, 8)
	if err != nil {
		return word
	}
	return string([]byte{byte(b)})
}
