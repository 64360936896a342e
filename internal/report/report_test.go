package report

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"company name":     "Company Name",
		"fy 25 26 revenue": "Fy 25 26 Revenue",
		"market size tam":  "Market Size Tam",
		"GTM strategy":     "Gtm Strategy",
		"don't":            "Don'T",
		"a1b":              "A1B",
		"":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, TitleCase(in), in)
	}
}

func TestLayoutWalk(t *testing.T) {
	doc := []byte(`{"investment_memo": {"company_name": "Sia", "key_features": ["chat", true], "score": 4.50, "note": null}}`)
	blocks, err := Layout(doc)
	require.NoError(t, err)

	want := []Block{
		{Kind: BlockHeading, Text: "Investment Memo", Level: 1},
		{Kind: BlockSpacer, Height: 8},

		{Kind: BlockHeading, Text: "Company Name", Level: 2},
		{Kind: BlockSpacer, Height: 8},
		{Kind: BlockParagraph, Text: "Sia"},
		{Kind: BlockSpacer, Height: 6},

		{Kind: BlockHeading, Text: "Key Features", Level: 2},
		{Kind: BlockSpacer, Height: 8},
		{Kind: BlockSpacer, Height: 8},
		{Kind: BlockParagraph, Text: "chat"},
		{Kind: BlockSpacer, Height: 6},
		{Kind: BlockSpacer, Height: 8},
		{Kind: BlockParagraph, Text: "True"},
		{Kind: BlockSpacer, Height: 6},

		{Kind: BlockHeading, Text: "Score", Level: 2},
		{Kind: BlockSpacer, Height: 8},
		{Kind: BlockParagraph, Text: "4.50"},
		{Kind: BlockSpacer, Height: 6},

		{Kind: BlockHeading, Text: "Note", Level: 2},
		{Kind: BlockSpacer, Height: 8},
		{Kind: BlockParagraph, Text: "None"},
		{Kind: BlockSpacer, Height: 6},
	}
	assert.Equal(t, want, blocks)
}

func TestLayoutWithoutMemoUsesWholeDocument(t *testing.T) {
	blocks, err := Layout([]byte(`{"summary": false}`))
	require.NoError(t, err)
	require.Len(t, blocks, 6)
	assert.Equal(t, "Summary", blocks[2].Text)
	assert.Equal(t, "False", blocks[4].Text)
}

func TestLayoutInvalid(t *testing.T) {
	_, err := Layout([]byte(`{"a":`))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestLayoutKeepsDocumentOrder(t *testing.T) {
	doc, err := os.ReadFile("testdata/sia_memo.json")
	require.NoError(t, err)
	blocks, err := Layout(doc)
	require.NoError(t, err)

	var headings []string
	for _, b := range blocks {
		if b.Kind == BlockHeading && b.Level == 2 {
			headings = append(headings, b.Text)
		}
	}
	assert.Equal(t, []string{
		"Company Name", "Date", "Author", "Executive Summary", "Company Overview",
		"Problem And Market Opportunity", "Solution And Product", "Team", "Traction And Gtm",
		"Business Model", "Financial Projections", "The Ask", "Potential Risks",
	}, headings)
}

func TestRender(t *testing.T) {
	doc, err := os.ReadFile("testdata/sia_memo.json")
	require.NoError(t, err)

	out, err := NewPDFRenderer().Render(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Greater(t, len(out), 1000)
}
