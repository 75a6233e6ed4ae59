package texttemplate

import (
	"regexp"
	"strconv"
	"strings"
)

// blockTag matches an untagged block tag: {name params}, {/name}. The name
// is alphabetic and followed by whitespace or the closing brace, so
// variable tags ({=...}) and text such as {color: red} are left alone.
var blockTag = regexp.MustCompile(`\{\s*(/?)\s*([a-zA-Z]+)((?:\s[^{}]*)?)\}`)

type openTag struct {
	id   int
	line int
}

// blockID names one tag identity emitted by the tagger, e.g. {"if", 3}.
type blockID struct {
	name string
	id   int
}

// TagNesting gives every block tag pair a unique identity:
//
//	{if x}{if y}{=v}{/if}{/if} -> {if0 x}{if1 y}{=v}{/if1}{/if0}
//
// Identities come from one counter shared by all tag names, in order of
// the opening tags. else and elseif take the identity of the innermost
// open if. Tags are matched line by line, so a single tag must not span
// lines; bodies may. Unbalanced input fails with *UnmatchedCloseTagError
// or *UnclosedTagError.
func TagNesting(text string) (string, error) {
	tagged, _, err := tagNesting(text)
	return tagged, err
}

// tagNesting also returns the identities it emitted, so the parser can tell
// them apart from source text that merely looks tagged, such as {item1}.
func tagNesting(text string) (string, map[blockID]bool, error) {
	lines := strings.Split(text, "\n")
	stacks := map[string][]openTag{}
	ids := map[blockID]bool{}
	counter := 0
	var err error
	for i, line := range lines {
		lineNo := i + 1
		lines[i] = blockTag.ReplaceAllStringFunc(line, func(tag string) string {
			if err != nil {
				return tag
			}
			m := blockTag.FindStringSubmatch(tag)
			slash, name, rest := m[1], m[2], strings.TrimRight(m[3], " \t\r")
			switch {
			case name == "else" || name == "elseif":
				open := stacks["if"]
				if len(open) == 0 {
					err = &UnmatchedCloseTagError{Tag: slash + name, Line: lineNo}
					return tag
				}
				id := open[len(open)-1].id
				ids[blockID{name, id}] = true
				return "{" + slash + name + strconv.Itoa(id) + rest + "}"
			case slash == "":
				stacks[name] = append(stacks[name], openTag{id: counter, line: lineNo})
				ids[blockID{name, counter}] = true
				out := "{" + name + strconv.Itoa(counter) + rest + "}"
				counter++
				return out
			default:
				open := stacks[name]
				if len(open) == 0 {
					err = &UnmatchedCloseTagError{Tag: "/" + name, Line: lineNo}
					return tag
				}
				top := open[len(open)-1]
				stacks[name] = open[:len(open)-1]
				return "{/" + name + strconv.Itoa(top.id) + "}"
			}
		})
		if err != nil {
			return "", nil, err
		}
	}
	// Report the earliest unclosed tag so the error is deterministic.
	var unclosed *UnclosedTagError
	for name, open := range stacks {
		for _, o := range open {
			if unclosed == nil || o.line < unclosed.Line || (o.line == unclosed.Line && name < unclosed.Tag) {
				unclosed = &UnclosedTagError{Tag: name, Line: o.line}
			}
		}
	}
	if unclosed != nil {
		return "", nil, unclosed
	}
	return strings.Join(lines, "\n"), ids, nil
}
