package similarity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	urlRegex     = regexp.MustCompile(`https?://\S+|www\.\S+`)
	mentionRegex = regexp.MustCompile(`@\w+`)
	hashtagRegex = regexp.MustCompile(`#\w+`)
	noiseRegex   = regexp.MustCompile(`[^a-z\s]+`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

// KeyGenerator produces grouping keys for near-duplicate condition evaluations.
// Two interactions sharing the same leading normalized tokens and the same
// condition prompt prefix collapse to the same key, so a single evaluator call
// can serve the whole group within a batch.
//
// This is a heuristic fingerprint, not semantic equivalence: two substantively
// different texts sharing the same token prefix are grouped together. The
// precision loss is an accepted trade-off against remote evaluation cost, and
// both prefix lengths are tunable.
type KeyGenerator struct {
	tokenPrefix  int
	promptPrefix int
}

// NewKeyGenerator returns a KeyGenerator truncating normalized text to
// tokenPrefix tokens and condition prompts to promptPrefix characters.
// Non-positive values fall back to the standard 12 / 120.
func NewKeyGenerator(tokenPrefix int, promptPrefix int) *KeyGenerator {
	if tokenPrefix <= 0 {
		tokenPrefix = 12
	}
	if promptPrefix <= 0 {
		promptPrefix = 120
	}
	return &KeyGenerator{tokenPrefix: tokenPrefix, promptPrefix: promptPrefix}
}

// Key computes the grouping key for one (condition, source, text) triple.
// The source identifier is kept in clear so keys never group across channels.
func (g *KeyGenerator) Key(conditionPrompt string, sourceID string, text string) string {
	tokens := g.Normalize(text)

	prompt := conditionPrompt
	if len(prompt) > g.promptPrefix {
		prompt = prompt[:g.promptPrefix]
	}

	h := sha256.Sum256([]byte(tokens + "\x00" + prompt))
	return sourceID + ":" + hex.EncodeToString(h[:])[:16]
}

// Normalize lowercases the text, strips URLs, @mentions, #hashtags, digits and
// punctuation, collapses whitespace and truncates to the leading token prefix.
func (g *KeyGenerator) Normalize(text string) string {
	s := strings.ToLower(text)
	s = urlRegex.ReplaceAllString(s, " ")
	s = mentionRegex.ReplaceAllString(s, " ")
	s = hashtagRegex.ReplaceAllString(s, " ")
	s = noiseRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))

	if s == "" {
		return ""
	}
	tokens := strings.Split(s, " ")
	if len(tokens) > g.tokenPrefix {
		tokens = tokens[:g.tokenPrefix]
	}
	return strings.Join(tokens, " ")
}
