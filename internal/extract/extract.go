// Package extract isolates runnable code from a free-text generation response.
package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const fence = "```"

// Block is one fenced region of a response.
type Block struct {
	// Tag is the language tag after the opening fence, lower-cased; empty when untagged.
	Tag  string
	Body string
}

// Tagged reports whether the block is explicitly marked as Python.
func (b Block) Tagged() bool {
	switch b.Tag {
	case "python", "python3", "py":
		return true
	}
	return false
}

// Code returns the executable part of response. Python-tagged fences win over
// untagged ones; each matching body is trimmed and the bodies are joined in
// order without a separator. A response without usable fences is returned
// trimmed.
func Code(response string) string {
	blocks := Blocks(response)

	if code, ok := join(blocks, Block.Tagged); ok {
		return code
	}
	if code, ok := join(blocks, func(b Block) bool { return b.Tag == "" }); ok {
		return code
	}
	return strings.TrimSpace(response)
}

func join(blocks []Block, keep func(Block) bool) (string, bool) {
	var b strings.Builder
	found := false
	for _, blk := range blocks {
		if !keep(blk) {
			continue
		}
		found = true
		b.WriteString(strings.TrimSpace(blk.Body))
	}
	return strings.TrimSpace(b.String()), found
}

// Blocks parses every closed fence in response in order of appearance.
// An opening fence without a matching close is not a block.
func Blocks(response string) []Block {
	var out []Block
	rest := response
	for {
		open := strings.Index(rest, fence)
		if open < 0 {
			return out
		}
		rest = rest[open+len(fence):]

		tagEnd := strings.IndexFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || r == '`'
		})
		if tagEnd < 0 {
			return out
		}
		tag, body := rest[:tagEnd], rest[tagEnd:]

		closing := closingFence(body)
		if closing < 0 {
			return out
		}
		if closing == 0 && tag != "" {
			// ```print(1)``` carries code where a tag would be.
			tag, body = "", tag
		} else {
			body = body[:closing]
		}
		out = append(out, Block{Tag: strings.ToLower(tag), Body: body})

		consumed := tagEnd + closing + len(fence)
		rest = rest[consumed:]
	}
}

// closingFence returns the offset of the first fence in body that can close a
// block: one at the very start or one preceded by whitespace. Backticks inside
// the code, as in x='```', do not end the block.
func closingFence(body string) int {
	from := 0
	for {
		i := strings.Index(body[from:], fence)
		if i < 0 {
			return -1
		}
		at := from + i
		if at == 0 {
			return 0
		}
		if r, _ := utf8.DecodeLastRuneInString(body[:at]); unicode.IsSpace(r) {
			return at
		}
		from = at + 1
	}
}
