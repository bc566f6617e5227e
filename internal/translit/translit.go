// Package translit converts romanized Hindi into Devanagari.
//
// Conversion follows the ITRANS scheme. The raw Converter is fallible;
// callers on the request path use Safe, which never fails and returns the
// original text when conversion is not possible.
package translit

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"semantic-similarity/internal/metrics"
)

// ErrUnsupported is returned for input outside the ITRANS alphabet.
var ErrUnsupported = errors.New("unsupported input for transliteration")

// Transliterator renders romanized text in native script. It never fails.
type Transliterator interface {
	Transliterate(text string) string
}

// Converter is a fallible romanized-to-native conversion.
type Converter interface {
	Convert(text string) (string, error)
}

type kind int

const (
	kindVowel kind = iota
	kindConsonant
	kindMark   // anusvara, visarga, chandrabindu, avagraha: keep the inherent vowel
	kindHalant // explicit virama
	kindSymbol // digits, dandas, om: end any pending consonant
)

type token struct {
	kind  kind
	text  string
	matra string
}

const virama = "्"

var itransTable = map[string]token{
	// vowels
	"a":   {kindVowel, "अ", ""},
	"aa":  {kindVowel, "आ", "ा"},
	"A":   {kindVowel, "आ", "ा"},
	"i":   {kindVowel, "इ", "ि"},
	"ii":  {kindVowel, "ई", "ी"},
	"I":   {kindVowel, "ई", "ी"},
	"ee":  {kindVowel, "ई", "ी"},
	"u":   {kindVowel, "उ", "ु"},
	"uu":  {kindVowel, "ऊ", "ू"},
	"U":   {kindVowel, "ऊ", "ू"},
	"oo":  {kindVowel, "ऊ", "ू"},
	"RRi": {kindVowel, "ऋ", "ृ"},
	"R^i": {kindVowel, "ऋ", "ृ"},
	"RRI": {kindVowel, "ॠ", "ॄ"},
	"R^I": {kindVowel, "ॠ", "ॄ"},
	"LLi": {kindVowel, "ऌ", "ॢ"},
	"L^i": {kindVowel, "ऌ", "ॢ"},
	"LLI": {kindVowel, "ॡ", "ॣ"},
	"L^I": {kindVowel, "ॡ", "ॣ"},
	"e":   {kindVowel, "ए", "े"},
	"ai":  {kindVowel, "ऐ", "ै"},
	"o":   {kindVowel, "ओ", "ो"},
	"au":  {kindVowel, "औ", "ौ"},

	// consonants
	"k":   {kindConsonant, "क", ""},
	"kh":  {kindConsonant, "ख", ""},
	"g":   {kindConsonant, "ग", ""},
	"gh":  {kindConsonant, "घ", ""},
	"~N":  {kindConsonant, "ङ", ""},
	"c":   {kindConsonant, "च", ""},
	"ch":  {kindConsonant, "च", ""},
	"Ch":  {kindConsonant, "छ", ""},
	"chh": {kindConsonant, "छ", ""},
	"j":   {kindConsonant, "ज", ""},
	"jh":  {kindConsonant, "झ", ""},
	"~n":  {kindConsonant, "ञ", ""},
	"T":   {kindConsonant, "ट", ""},
	"Th":  {kindConsonant, "ठ", ""},
	"D":   {kindConsonant, "ड", ""},
	"Dh":  {kindConsonant, "ढ", ""},
	"N":   {kindConsonant, "ण", ""},
	"t":   {kindConsonant, "त", ""},
	"th":  {kindConsonant, "थ", ""},
	"d":   {kindConsonant, "द", ""},
	"dh":  {kindConsonant, "ध", ""},
	"n":   {kindConsonant, "न", ""},
	"p":   {kindConsonant, "प", ""},
	"ph":  {kindConsonant, "फ", ""},
	"b":   {kindConsonant, "ब", ""},
	"bh":  {kindConsonant, "भ", ""},
	"m":   {kindConsonant, "म", ""},
	"y":   {kindConsonant, "य", ""},
	"r":   {kindConsonant, "र", ""},
	"l":   {kindConsonant, "ल", ""},
	"v":   {kindConsonant, "व", ""},
	"w":   {kindConsonant, "व", ""},
	"sh":  {kindConsonant, "श", ""},
	"Sh":  {kindConsonant, "ष", ""},
	"shh": {kindConsonant, "ष", ""},
	"s":   {kindConsonant, "स", ""},
	"h":   {kindConsonant, "ह", ""},
	"L":   {kindConsonant, "ळ", ""},
	"x":   {kindConsonant, "क्ष", ""},
	"kSh": {kindConsonant, "क्ष", ""},
	"GY":  {kindConsonant, "ज्ञ", ""},
	"j~n": {kindConsonant, "ज्ञ", ""},
	"dny": {kindConsonant, "ज्ञ", ""},
	"q":   {kindConsonant, "क़", ""},
	"K":   {kindConsonant, "ख़", ""},
	"G":   {kindConsonant, "ग़", ""},
	"z":   {kindConsonant, "ज़", ""},
	"J":   {kindConsonant, "ज़", ""},
	"f":   {kindConsonant, "फ़", ""},
	".D":  {kindConsonant, "ड़", ""},
	".Dh": {kindConsonant, "ढ़", ""},
	"Y":   {kindConsonant, "य़", ""},

	// marks
	"M":  {kindMark, "ं", ""},
	".n": {kindMark, "ं", ""},
	".m": {kindMark, "ं", ""},
	"H":  {kindMark, "ः", ""},
	".N": {kindMark, "ँ", ""},
	".a": {kindMark, "ऽ", ""},
	".h": {kindHalant, virama, ""},

	// symbols
	"OM":  {kindSymbol, "ॐ", ""},
	"AUM": {kindSymbol, "ॐ", ""},
	"|":   {kindSymbol, "।", ""},
	"||":  {kindSymbol, "॥", ""},
	"0":   {kindSymbol, "०", ""},
	"1":   {kindSymbol, "१", ""},
	"2":   {kindSymbol, "२", ""},
	"3":   {kindSymbol, "३", ""},
	"4":   {kindSymbol, "४", ""},
	"5":   {kindSymbol, "५", ""},
	"6":   {kindSymbol, "६", ""},
	"7":   {kindSymbol, "७", ""},
	"8":   {kindSymbol, "८", ""},
	"9":   {kindSymbol, "९", ""},
}

var maxTokenLen = func() int {
	n := 0
	for k := range itransTable {
		if len(k) > n {
			n = len(k)
		}
	}
	return n
}()

// ITRANS converts ITRANS romanization to Devanagari.
type ITRANS struct{}

// Convert transliterates text. Spaces and ASCII punctuation outside the
// scheme are copied through; letters outside the scheme and non-ASCII
// runes are rejected with ErrUnsupported. Rejection covers the whole text:
// "mera naam Ram hai" fails on R and is never partially converted.
// Output is NFC-normalized.
func (ITRANS) Convert(text string) (string, error) {
	var b strings.Builder
	b.Grow(len(text) * 3)

	// pending is set while the last written consonant has no vowel yet.
	pending := false
	for i := 0; i < len(text); {
		c := text[i]
		if c >= utf8.RuneSelf {
			r, _ := utf8.DecodeRuneInString(text[i:])
			return "", fmt.Errorf("%w: rune %q at byte %d", ErrUnsupported, r, i)
		}

		tok, n, ok := longestToken(text[i:])
		if !ok {
			if isASCIILetter(c) {
				return "", fmt.Errorf("%w: letter %q at byte %d", ErrUnsupported, c, i)
			}
			if pending {
				b.WriteString(virama)
				pending = false
			}
			b.WriteByte(c)
			i++
			continue
		}

		switch tok.kind {
		case kindVowel:
			if pending {
				b.WriteString(tok.matra)
				pending = false
			} else {
				b.WriteString(tok.text)
			}
		case kindConsonant:
			if pending {
				b.WriteString(virama)
			}
			b.WriteString(tok.text)
			pending = true
		case kindMark:
			pending = false
			b.WriteString(tok.text)
		case kindHalant:
			pending = false
			b.WriteString(virama)
		case kindSymbol:
			if pending {
				b.WriteString(virama)
				pending = false
			}
			b.WriteString(tok.text)
		}
		i += n
	}
	if pending {
		b.WriteString(virama)
	}
	return norm.NFC.String(b.String()), nil
}

func longestToken(s string) (token, int, bool) {
	n := maxTokenLen
	if len(s) < n {
		n = len(s)
	}
	for ; n > 0; n-- {
		if tok, ok := itransTable[s[:n]]; ok {
			return tok, n, true
		}
	}
	return token{}, 0, false
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Safe adapts a Converter to the infallible Transliterator contract:
// any error or panic from the converter yields the original text.
type Safe struct {
	conv Converter
	log  *slog.Logger
}

// NewSafe wraps conv. A nil logger discards fallback diagnostics.
func NewSafe(conv Converter, log *slog.Logger) *Safe {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Safe{conv: conv, log: log}
}

// Transliterate returns the converted text, or text unchanged on failure.
func (s *Safe) Transliterate(text string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.fallback(fmt.Errorf("transliteration panic: %v", rec))
			out = text
		}
	}()
	converted, err := s.conv.Convert(text)
	if err != nil {
		s.fallback(err)
		return text
	}
	return converted
}

func (s *Safe) fallback(err error) {
	metrics.TransliterationFallbacks.Inc()
	s.log.Debug("transliteration failed; keeping original text", "err", err)
}
