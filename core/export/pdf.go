package export

import (
	"bytes"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
)

const (
	pdfFont       = "Helvetica"
	pdfRowHeight  = 7.0
	pdfCellMargin = 1.5
	pdfMaxWeight  = 40 // max characters a column claims when sharing the page width
)

// PDF renders a title, the generation date and the table, repeating the header on each page.
func PDF(t Table, at time.Time) ([]byte, error) {
	orientation := "P"
	if len(t.Header) > 5 {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("") // utf-8 → cp1252 for the core fonts

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 9)
	pdf.CellFormat(0, 6, "Generated on "+at.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := columnWidths(pdf, t)
	header := func() {
		pdf.SetFont(pdfFont, "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range t.Header {
			pdf.CellFormat(widths[i], pdfRowHeight, fitText(pdf, tr, h, widths[i]), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(pdfFont, "", 9)
	}
	header()

	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range t.Rows {
		if pdf.GetY()+pdfRowHeight > pageH-bottom {
			pdf.AddPage()
			header()
		}
		for i := range t.Header {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(widths[i], pdfRowHeight, fitText(pdf, tr, cell, widths[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(t.Rows) == 0 {
		pdf.SetFont(pdfFont, "I", 9)
		pdf.CellFormat(0, pdfRowHeight, "No data", "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// columnWidths shares the usable page width between columns, in proportion to
// their longest content (capped at pdfMaxWeight characters).
func columnWidths(pdf *fpdf.Fpdf, t Table) []float64 {
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right

	weights := make([]float64, len(t.Header))
	var total float64
	for i, h := range t.Header {
		n := utf8.RuneCountInString(h)
		for _, row := range t.Rows {
			if i < len(row) {
				if l := utf8.RuneCountInString(row[i]); l > n {
					n = l
				}
			}
		}
		if n > pdfMaxWeight {
			n = pdfMaxWeight
		}
		if n < 4 {
			n = 4
		}
		weights[i] = float64(n)
		total += weights[i]
	}

	widths := make([]float64, len(weights))
	for i, w := range weights {
		widths[i] = usable * w / total
	}
	return widths
}

// fitText translates the UTF-8 text s with tr, truncated with an ellipsis so that it
// fits a cell of width w. Truncation happens on s, before translation.
func fitText(pdf *fpdf.Fpdf, tr func(string) string, s string, w float64) string {
	max := w - 2*pdfCellMargin
	if out := tr(s); pdf.GetStringWidth(out) <= max {
		return out
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(tr(string(runes)+"...")) > max {
		runes = runes[:len(runes)-1]
	}
	return tr(string(runes) + "...")
}
