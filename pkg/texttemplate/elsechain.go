package texttemplate

import (
	"regexp"
	"strconv"
)

// ElseMarker prefixes the condition of an if block that continues an
// existing if/elseif/else chain.
const ElseMarker = "::NL_ELSE_FALSE"

var (
	elseTag = regexp.MustCompile(`\{else([0-9]+)\}`)
	// An elseif needs a condition; a bare {elseif3} is left for the parser
	// to reject.
	elseifTag = regexp.MustCompile(`\{elseif([0-9]+)(\s+[^{}\s][^{}]*)\}`)
)

// RewriteElseChains turns tagged else/elseif tags into primitive if blocks
// that share the identity of the chain they belong to:
//
//	{else3}         -> {/if3}{if3 ::NL_ELSE_FALSE}
//	{elseif3 a==b}  -> {/if3}{if3 ::NL_ELSE_FALSE a==b}
//
// It must run after TagNesting.
func RewriteElseChains(text string) string {
	return rewriteElseChains(text, nil)
}

// rewriteElseChains rewrites only the else/elseif tags listed in ids; a
// nil ids rewrites every match.
func rewriteElseChains(text string, ids map[blockID]bool) string {
	rewrite := func(re *regexp.Regexp, name, repl string) {
		text = re.ReplaceAllStringFunc(text, func(tag string) string {
			m := re.FindStringSubmatchIndex(tag)
			id, err := strconv.Atoi(tag[m[2]:m[3]])
			if err != nil || (ids != nil && !ids[blockID{name, id}]) {
				return tag
			}
			return string(re.ExpandString(nil, repl, tag, m))
		})
	}
	rewrite(elseTag, "else", "{/if${1}}{if${1} "+ElseMarker+"}")
	rewrite(elseifTag, "elseif", "{/if${1}}{if${1} "+ElseMarker+"${2}}")
	return text
}
