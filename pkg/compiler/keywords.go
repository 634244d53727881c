package compiler

import "strings"

// aliases lists alternative spellings that lex to the same token kind.
var aliases = map[string]TokenType{
	"PIC":        PICTURE,
	"COMP":       COMPUTATIONAL,
	"SPACE":      SPACES,
	"ZERO":       ZEROS,
	"ZEROES":     ZEROS,
	"QUOTE":      QUOTES,
	"HIGH-VALUE": HIGH_VALUES,
	"LOW-VALUE":  LOW_VALUES,
	"THROUGH":    THRU,
	"CORR":       CORRESPONDING,
}

// keywords maps every reserved word and symbol to its token kind.
var keywords = buildKeywords()

var longestKeyword int

func buildKeywords() map[string]TokenType {
	m := make(map[string]TokenType, len(tokenNames)+len(aliases))
	for tt := LPAREN; tt < keywordEnd; tt++ {
		if tt == keywordStart {
			continue
		}
		m[tokenNames[tt]] = tt
	}
	for word, tt := range aliases {
		m[word] = tt
	}
	for word := range m {
		if len(word) > longestKeyword {
			longestKeyword = len(word)
		}
	}
	return m
}

// LookupKeyword returns the token kind of a reserved word or symbol.
// Matching ignores case.
func LookupKeyword(s string) (TokenType, bool) {
	tt, ok := keywords[strings.ToUpper(s)]
	return tt, ok
}

// LongestKeyword is the length of the longest entry in the keyword table,
// which bounds the lexer's maximal-munch search.
func LongestKeyword() int {
	return longestKeyword
}

func isSymbol(tt TokenType) bool {
	return tt >= LPAREN && tt < keywordStart
}
