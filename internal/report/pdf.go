package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

type textStyle struct {
	font        string
	style       string
	size        float64
	leading     float64
	spaceBefore float64
	spaceAfter  float64
}

var (
	heading1 = textStyle{font: "Helvetica", style: "B", size: 18, leading: 22, spaceAfter: 6}
	heading2 = textStyle{font: "Helvetica", style: "B", size: 14, leading: 18, spaceBefore: 10, spaceAfter: 6}
	normal   = textStyle{font: "Times", style: "", size: 10, leading: 12}
)

// PDFRenderer renders analysis documents as A4 PDFs.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render lays out doc and returns the PDF bytes.
func (r *PDFRenderer) Render(doc []byte) ([]byte, error) {
	blocks, err := Layout(doc)
	if err != nil {
		return nil, err
	}
	return RenderBlocks(blocks)
}

func RenderBlocks(blocks []Block) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(72, 72, 72)
	pdf.SetAutoPageBreak(true, 72)
	pdf.SetTitle(RootTitle, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-48)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.AddPage()

	for _, b := range blocks {
		switch b.Kind {
		case BlockHeading:
			st := heading2
			if b.Level == 1 {
				st = heading1
			}
			writeText(pdf, st, tr(b.Text))
		case BlockParagraph:
			writeText(pdf, normal, tr(b.Text))
		case BlockSpacer:
			pdf.Ln(b.Height)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeText(pdf *gofpdf.Fpdf, st textStyle, text string) {
	if st.spaceBefore > 0 {
		pdf.Ln(st.spaceBefore)
	}
	pdf.SetFont(st.font, st.style, st.size)
	pdf.MultiCell(0, st.leading, text, "", "L", false)
	if st.spaceAfter > 0 {
		pdf.Ln(st.spaceAfter)
	}
}
