package texttemplate

import "strconv"

// The lexer scans tagged template text and yields text, variable tags
// {=...}, and identity-tagged block tags {name<N> params} / {/name<N>}.
// Anything else, including a lone brace, is text. When ids is set, only
// the identities listed there are block tags.

type tokenKind int

const (
	tokEOF   tokenKind = iota
	tokText            // literal text
	tokVar             // {=...}
	tokOpen            // {name<N> params}
	tokClose           // {/name<N>}
)

type token struct {
	kind   tokenKind
	val    string // text, variable content or block params
	name   string
	id     int
	pos    int // byte offset in source
	length int
}

type lexer struct {
	src string
	i   int
	n   int
	ids map[blockID]bool
}

func newLexer(src string, ids map[blockID]bool) *lexer {
	return &lexer{src: src, n: len(src), ids: ids}
}

func (l *lexer) known(name string, id int) bool {
	return l.ids == nil || l.ids[blockID{name, id}]
}

// line returns the 1-based line of a byte offset.
func (l *lexer) line(pos int) int {
	line := 1
	for i := 0; i < pos && i < l.n; i++ {
		if l.src[i] == '\n' {
			line++
		}
	}
	return line
}

// nextToken returns the next token in the stream.
func (l *lexer) nextToken() token {
	if l.i >= l.n {
		return token{kind: tokEOF, pos: l.i}
	}
	start := l.i
	for l.i < l.n {
		if l.src[l.i] == '{' {
			if tok, ok := l.scanTag(l.i); ok {
				if l.i > start {
					// Emit pending text first; the tag is rescanned next call.
					return token{kind: tokText, val: l.src[start:l.i], pos: start, length: l.i - start}
				}
				l.i += tok.length
				return tok
			}
		}
		l.i++
	}
	return token{kind: tokText, val: l.src[start:l.n], pos: start, length: l.n - start}
}

// scanTag tries to read a tag starting at pos without consuming input.
func (l *lexer) scanTag(pos int) (token, bool) {
	i := pos + 1
	if i >= l.n {
		return token{}, false
	}
	if l.src[i] == '=' {
		end := indexByteFrom(l.src, '}', i)
		if end < 0 {
			return token{}, false
		}
		return token{kind: tokVar, val: l.src[i+1 : end], pos: pos, length: end + 1 - pos}, true
	}
	kind := tokOpen
	if l.src[i] == '/' {
		kind = tokClose
		i++
	}
	nameStart := i
	for i < l.n && isAlpha(l.src[i]) {
		i++
	}
	if i == nameStart {
		return token{}, false
	}
	name := l.src[nameStart:i]
	idStart := i
	for i < l.n && isDigit(l.src[i]) {
		i++
	}
	if i == idStart {
		return token{}, false
	}
	id, err := strconv.Atoi(l.src[idStart:i])
	if err != nil {
		return token{}, false
	}
	if kind == tokClose {
		if i >= l.n || l.src[i] != '}' || !l.known(name, id) {
			return token{}, false
		}
		return token{kind: tokClose, name: name, id: id, pos: pos, length: i + 1 - pos}, true
	}
	end := i
	for end < l.n && l.src[end] != '}' && l.src[end] != '{' {
		end++
	}
	if end >= l.n || l.src[end] != '}' {
		return token{}, false
	}
	if end > i && !isSpace(l.src[i]) {
		return token{}, false
	}
	if !l.known(name, id) {
		return token{}, false
	}
	return token{kind: tokOpen, name: name, id: id, val: l.src[i:end], pos: pos, length: end + 1 - pos}, true
}

func indexByteFrom(s string, c byte, from int) int {
	for j := from; j < len(s); j++ {
		if s[j] == c {
			return j
		}
	}
	return -1
}

func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
