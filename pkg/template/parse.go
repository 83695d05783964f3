package template

import (
	"fmt"
	"strings"
	"unicode"
)

// parse turns raw mustache-style source into a node tree. Recognised tags:
//
//	{{name}}          variable lookup
//	{{helper a b}}     named helper call, first token matched against
//	                   the fixed helper set
//	{{#name}}...{{/name}}   section: render body once per truthy value
//	{{^name}}...{{/name}}   inverted section: render body when falsy/absent
//
// Anything outside {{ }} is literal text, copied through unchanged.
func parse(src string) ([]node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	nodes, rest, err := parseNodes(tokens, "")
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("unmatched section close %q", rest[0].tag)
	}
	return nodes, nil
}

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenTag
)

type token struct {
	kind tokenKind
	text string // literal text, for tokenText
	tag  string // raw tag body between {{ and }}, for tokenTag
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	for {
		open := strings.Index(src, "{{")
		if open == -1 {
			if len(src) > 0 {
				tokens = append(tokens, token{kind: tokenText, text: src})
			}
			return tokens, nil
		}
		if open > 0 {
			tokens = append(tokens, token{kind: tokenText, text: src[:open]})
		}
		close := strings.Index(src[open:], "}}")
		if close == -1 {
			return nil, fmt.Errorf("unterminated tag starting at offset %d", open)
		}
		tag := src[open+2 : open+close]
		tokens = append(tokens, token{kind: tokenTag, tag: strings.TrimSpace(tag)})
		src = src[open+close+2:]
	}
}

// parseNodes consumes tokens until it sees a {{/closing}} tag matching
// openName (the empty string at the top level, where no close is expected),
// returning the parsed body and the unconsumed remainder.
func parseNodes(tokens []token, openName string) ([]node, []token, error) {
	var nodes []node
	for len(tokens) > 0 {
		tok := tokens[0]
		if tok.kind == tokenText {
			nodes = append(nodes, textNode{text: tok.text})
			tokens = tokens[1:]
			continue
		}

		switch {
		case strings.HasPrefix(tok.tag, "/"):
			name := strings.TrimSpace(tok.tag[1:])
			if name != openName {
				return nil, nil, fmt.Errorf("mismatched section close: expected %q, got %q", openName, name)
			}
			return nodes, tokens[1:], nil

		case strings.HasPrefix(tok.tag, "#"):
			name := strings.TrimSpace(tok.tag[1:])
			body, rest, err := parseNodes(tokens[1:], name)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, sectionNode{name: name, body: body})
			tokens = rest

		case strings.HasPrefix(tok.tag, "^"):
			name := strings.TrimSpace(tok.tag[1:])
			body, rest, err := parseNodes(tokens[1:], name)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, sectionNode{name: name, inverted: true, body: body})
			tokens = rest

		default:
			var fields []string // whitespace-separated; a "quoted literal" stays one field
			inQuote, start := false, -1
			for i, r := range tok.tag + " " {
				if r == '"' {
					inQuote = !inQuote
				}
				if i == len(tok.tag) || (!inQuote && unicode.IsSpace(r)) {
					if start >= 0 {
						fields, start = append(fields, tok.tag[start:i]), -1
					}
				} else if start < 0 {
					start = i
				}
			}
			if len(fields) == 0 {
				return nil, nil, fmt.Errorf("empty tag")
			}
			if isHelperName(fields[0]) {
				nodes = append(nodes, helperNode{name: fields[0], args: fields[1:]})
			} else {
				if len(fields) != 1 {
					return nil, nil, fmt.Errorf("unknown helper %q", fields[0])
				}
				nodes = append(nodes, variableNode{name: fields[0]})
			}
			tokens = tokens[1:]
		}
	}
	if openName != "" {
		return nil, nil, fmt.Errorf("unterminated section %q", openName)
	}
	return nodes, nil, nil
}
