package chunker

import (
	"strings"
	"unicode"

	"github.com/memoriakit/memoria/pkg/types"
)

// Segment is a token-bounded slice of the input text, produced by the
// sentence splitter. The token range is half-open: [StartToken, EndToken).
type Segment struct {
	Text       string
	StartToken int
	EndToken   int
}

// TokenCount returns the number of tokens the segment spans.
func (s Segment) TokenCount() int {
	return s.EndToken - s.StartToken
}

// Tokenize splits text into whitespace-delimited tokens. Token indices are
// positions in the returned slice; all chunk and segment ranges refer to them.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// JoinTokens reassembles the text for a half-open token range.
func JoinTokens(tokens []string, start, end int) string {
	return strings.Join(tokens[start:end], " ")
}

// abbreviations that end with a period but do not terminate a sentence.
// Compared lowercase with the trailing period kept.
var abbreviations = map[string]struct{}{
	"mr.": {}, "mrs.": {}, "ms.": {}, "dr.": {}, "prof.": {},
	"sr.": {}, "jr.": {}, "st.": {}, "vs.": {}, "etc.": {},
	"e.g.": {}, "i.e.": {}, "cf.": {}, "approx.": {}, "dept.": {},
	"fig.": {}, "no.": {}, "inc.": {}, "ltd.": {}, "co.": {},
	"corp.": {}, "jan.": {}, "feb.": {}, "mar.": {}, "apr.": {},
	"jun.": {}, "jul.": {}, "aug.": {}, "sep.": {}, "sept.": {},
	"oct.": {}, "nov.": {}, "dec.": {}, "mon.": {}, "tue.": {},
	"wed.": {}, "thu.": {}, "fri.": {}, "sat.": {}, "sun.": {},
}

// SentenceSplitter splits text into token-bounded segments. The primary
// strategy is sentence-terminal punctuation with an abbreviation/decimal
// guard; any sentence longer than the configured window falls back to fixed
// windows advancing by WindowSize-Overlap tokens, so adjacent windows overlap
// by Overlap tokens.
type SentenceSplitter struct {
	cfg types.ChunkingConfig
}

// NewSentenceSplitter validates the configuration and returns a splitter.
func NewSentenceSplitter(cfg types.ChunkingConfig) (*SentenceSplitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SentenceSplitter{cfg: cfg}, nil
}

// Split segments text. It is pure and deterministic; empty or whitespace-only
// input yields an empty slice.
func (s *SentenceSplitter) Split(text string) []Segment {
	tokens := Tokenize(text)
	return s.SplitTokens(tokens)
}

// SplitTokens segments an already tokenized text. Callers that need the token
// slice afterwards (to rebuild chunk text) use this form to tokenize once.
func (s *SentenceSplitter) SplitTokens(tokens []string) []Segment {
	if len(tokens) == 0 {
		return []Segment{}
	}

	segments := make([]Segment, 0)
	sentenceStart := 0
	for i, tok := range tokens {
		if !endsSentence(tok) && i != len(tokens)-1 {
			continue
		}
		segments = append(segments, s.window(tokens, sentenceStart, i+1)...)
		sentenceStart = i + 1
	}

	return segments
}

// window emits a single segment for a sentence that fits the window, or a
// series of overlapping fixed windows for one that does not.
func (s *SentenceSplitter) window(tokens []string, start, end int) []Segment {
	if end-start <= s.cfg.WindowSize {
		return []Segment{{
			Text:       JoinTokens(tokens, start, end),
			StartToken: start,
			EndToken:   end,
		}}
	}

	stride := s.cfg.WindowSize - s.cfg.Overlap
	segments := make([]Segment, 0, (end-start)/stride+1)
	for ws := start; ws < end; ws += stride {
		we := ws + s.cfg.WindowSize
		if we > end {
			we = end
		}
		segments = append(segments, Segment{
			Text:       JoinTokens(tokens, ws, we),
			StartToken: ws,
			EndToken:   we,
		})
		if we == end {
			break
		}
	}
	return segments
}

// endsSentence reports whether a token terminates a sentence. Terminal
// punctuation counts unless the token is a known abbreviation, an initial
// ("J."), or a number ("3." in an enumeration, "3.14" never matches).
func endsSentence(tok string) bool {
	trimmed := strings.TrimRight(tok, `"')]}`)
	if trimmed == "" {
		return false
	}

	last := trimmed[len(trimmed)-1]
	switch last {
	case '!', '?':
		return true
	case '.':
		// fall through to the period guards below
	default:
		return false
	}

	lower := strings.ToLower(trimmed)
	if _, ok := abbreviations[lower]; ok {
		return false
	}

	// "J." style initials
	if len(trimmed) == 2 && unicode.IsUpper(rune(trimmed[0])) {
		return false
	}

	// "3." enumeration markers and bare decimals
	if len(trimmed) >= 2 && trimmed[len(trimmed)-2] >= '0' && trimmed[len(trimmed)-2] <= '9' {
		return false
	}

	// "U.S." and "e.g." style multi-period abbreviations
	if strings.Count(trimmed, ".") > 1 && !strings.HasSuffix(trimmed, "...") {
		return false
	}

	return true
}
