package tokenizer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultStopTokens are treated as stop ids whenever the vocabulary has them.
var DefaultStopTokens = []string{"<|im_end|>", "<|endoftext|>", "</s>"}

// BPE is a byte-level BPE tokenizer loaded from a HuggingFace tokenizer.json.
type BPE struct {
	encoder      map[string]int
	decoder      []string
	bpeRanks     map[Pair]int
	cache        map[string][]string
	byteEncoder  map[byte]string
	byteDecoder  map[string]byte
	pattern      *regexp.Regexp
	unkID        int
	ignoreMerges bool
	special      []string
	stops        map[int]struct{}
}

type preTokenizerJSON struct {
	Type          string `json:"type"`
	Pretokenizers []struct {
		Type    string `json:"type"`
		Pattern struct {
			Regex string `json:"Regex"`
		} `json:"pattern"`
	} `json:"pretokenizers"`
}

type tokenizerJSON struct {
	Model struct {
		Type         string         `json:"type"`
		Vocab        map[string]int `json:"vocab"`
		Merges       []any          `json:"merges"`
		IgnoreMerges bool           `json:"ignore_merges"`
		UnkToken     string         `json:"unk_token"`
	} `json:"model"`
	PreTokenizer preTokenizerJSON `json:"pre_tokenizer"`
	AddedTokens  []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// Load reads a tokenizer.json. stopIDs are added to the stop set next to any
// DefaultStopTokens present in the vocabulary.
func Load(path string, stopIDs []int) (*BPE, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	return LoadBytes(data, stopIDs)
}

// LoadBytes parses tokenizer.json content.
func LoadBytes(data []byte, stopIDs []int) (*BPE, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("tokenizer: parse tokenizer.json: %w", err)
	}
	if strings.ToUpper(tj.Model.Type) != "BPE" {
		return nil, fmt.Errorf("tokenizer: unsupported model %q", tj.Model.Type)
	}

	encoder := make(map[string]int, len(tj.Model.Vocab)+len(tj.AddedTokens))
	maxID := -1
	for tok, id := range tj.Model.Vocab {
		encoder[tok] = id
		maxID = max(maxID, id)
	}
	for _, at := range tj.AddedTokens {
		encoder[at.Content] = at.ID
		maxID = max(maxID, at.ID)
	}
	if maxID < 0 {
		return nil, fmt.Errorf("tokenizer: empty vocabulary")
	}
	decoder := make([]string, maxID+1)
	for tok, id := range encoder {
		if id < 0 {
			return nil, fmt.Errorf("tokenizer: negative id %d for %q", id, tok)
		}
		decoder[id] = tok
	}

	pattern, err := buildPattern(tj.PreTokenizer)
	if err != nil {
		return nil, err
	}
	byteEncoder, byteDecoder := bytesToUnicode()
	t := &BPE{
		encoder:      encoder,
		decoder:      decoder,
		bpeRanks:     parseMerges(tj.Model.Merges),
		cache:        make(map[string][]string),
		byteEncoder:  byteEncoder,
		byteDecoder:  byteDecoder,
		pattern:      pattern,
		unkID:        -1,
		ignoreMerges: tj.Model.IgnoreMerges,
		stops:        make(map[int]struct{}),
	}
	if id, ok := encoder[tj.Model.UnkToken]; ok && tj.Model.UnkToken != "" {
		t.unkID = id
	}

	var added []string
	for _, at := range tj.AddedTokens {
		if at.Special {
			added = append(added, at.Content)
		}
	}
	t.special = collectSpecials(decoder, added)

	for _, s := range DefaultStopTokens {
		if id, ok := encoder[s]; ok {
			t.stops[id] = struct{}{}
		}
	}
	for _, id := range stopIDs {
		t.stops[id] = struct{}{}
	}
	return t, nil
}

func parseMerges(raw []any) map[Pair]int {
	ranks := make(map[Pair]int, len(raw))
	rank := 0
	for _, m := range raw {
		line := ""
		switch v := m.(type) {
		case string:
			line = v
		case []any:
			if len(v) == 2 {
				a, aok := v[0].(string)
				b, bok := v[1].(string)
				if aok && bok {
					line = a + " " + b
				}
			}
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			continue
		}
		p := Pair{A: parts[0], B: parts[1]}
		if _, ok := ranks[p]; !ok {
			ranks[p] = rank
			rank++
		}
	}
	return ranks
}

func (t *BPE) Encode(text string) ([]int, error) {
	var ids []int
	for _, part := range splitSpecials(text, t.special) {
		if part.isSpecial {
			ids = append(ids, t.encoder[part.text])
			continue
		}
		for _, piece := range t.pattern.FindAllString(part.text, -1) {
			for _, sym := range t.bpe(t.byteEncode(piece)) {
				id, ok := t.encoder[sym]
				if !ok {
					if t.unkID >= 0 {
						ids = append(ids, t.unkID)
						continue
					}
					return nil, fmt.Errorf("tokenizer: unknown token %q", sym)
				}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (t *BPE) Decode(id int) (string, error) {
	if id < 0 || id >= len(t.decoder) {
		return "", fmt.Errorf("tokenizer: id out of range: %d", id)
	}
	token := t.decoder[id]
	if isSpecialToken(token) {
		return token, nil
	}
	b := make([]byte, 0, len(token))
	for _, r := range token {
		if by, ok := t.byteDecoder[string(r)]; ok {
			b = append(b, by)
		} else {
			b = append(b, string(r)...)
		}
	}
	return string(b), nil
}

func (t *BPE) IsStop(id int) bool {
	_, ok := t.stops[id]
	return ok
}

// VocabSize is the number of decodable ids.
func (t *BPE) VocabSize() int { return len(t.decoder) }

// TokenID returns the id of an exact vocabulary entry.
func (t *BPE) TokenID(s string) (int, bool) {
	id, ok := t.encoder[s]
	return id, ok
}

func (t *BPE) byteEncode(s string) string {
	var b strings.Builder
	for _, by := range []byte(s) {
		b.WriteString(t.byteEncoder[by])
	}
	return b.String()
}

func (t *BPE) bpe(token string) []string {
	if v, ok := t.cache[token]; ok {
		return v
	}
	if t.ignoreMerges {
		if _, ok := t.encoder[token]; ok {
			out := []string{token}
			t.cache[token] = out
			return out
		}
	}
	word := splitRunes(token)
	pairs := getPairs(word)
	for len(pairs) > 0 {
		bestRank := int(^uint(0) >> 1)
		bestPair := Pair{}
		found := false
		for p := range pairs {
			if rank, ok := t.bpeRanks[p]; ok && rank < bestRank {
				bestRank = rank
				bestPair = p
				found = true
			}
		}
		if !found {
			break
		}
		word = mergePair(word, bestPair)
		if len(word) == 1 {
			break
		}
		pairs = getPairs(word)
	}
	t.cache[token] = word
	return word
}

func buildPattern(pre preTokenizerJSON) (*regexp.Regexp, error) {
	pat := `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`
	if pre.Type == "Sequence" {
		for _, p := range pre.Pretokenizers {
			if p.Type == "Split" && p.Pattern.Regex != "" {
				pat = p.Pattern.Regex
				break
			}
		}
	}
	// Qwen and Llama 3 patterns use lookahead, which Go regexp lacks.
	if strings.Contains(pat, `(?!\S)`) || strings.Contains(pat, "(?i:") {
		pat = `(?:'[sS]|'[tT]|'[rR][eE]|'[vV][eE]|'[mM]|'[lL][lL]|'[dD])|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+`
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: pre-tokenizer pattern: %w", err)
	}
	return re, nil
}
