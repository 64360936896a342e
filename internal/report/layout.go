// Package report turns an analysis JSON document into a paginated PDF memo.
package report

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

const (
	RootTitle = "Investment Memo"
	memoKey   = "investment_memo"

	headingGap   = 8.0
	paragraphGap = 6.0
)

type BlockKind int

const (
	BlockHeading BlockKind = iota
	BlockParagraph
	BlockSpacer
)

// Block is one flowable in the rendered document. Heights are in points.
type Block struct {
	Kind   BlockKind
	Text   string
	Level  int
	Height float64
}

var ErrInvalidDocument = errors.New("report: document is not valid JSON")

// Layout walks doc in key order and returns the flowables to render. The memo
// under "investment_memo" is used when present, otherwise the whole document.
func Layout(doc []byte) ([]Block, error) {
	if !json.Valid(doc) {
		return nil, ErrInvalidDocument
	}
	root := gjson.ParseBytes(doc)
	body := root
	if memo := root.Get(memoKey); memo.Exists() {
		body = memo
	}

	var blocks []Block
	var add func(title string, v gjson.Result, level int)
	add = func(title string, v gjson.Result, level int) {
		if title != "" {
			blocks = append(blocks, Block{Kind: BlockHeading, Text: title, Level: level})
		}
		blocks = append(blocks, Block{Kind: BlockSpacer, Height: headingGap})

		switch {
		case v.IsObject():
			v.ForEach(func(k, child gjson.Result) bool {
				add(TitleCase(strings.ReplaceAll(k.String(), "_", " ")), child, level+1)
				return true
			})
		case v.IsArray():
			v.ForEach(func(_, item gjson.Result) bool {
				add("", item, level+1)
				return true
			})
		default:
			blocks = append(blocks,
				Block{Kind: BlockParagraph, Text: scalarText(v)},
				Block{Kind: BlockSpacer, Height: paragraphGap},
			)
		}
	}
	add(RootTitle, body, 1)
	return blocks, nil
}

func scalarText(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.String()
	case gjson.True:
		return "True"
	case gjson.False:
		return "False"
	case gjson.Null:
		return "None"
	default:
		return v.Raw
	}
}

// TitleCase upper-cases every letter that follows a non-letter and lower-cases
// the rest, so "fy 25 26 revenue" becomes "Fy 25 26 Revenue".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
