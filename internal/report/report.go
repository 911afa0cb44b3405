package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"intelliquery/internal/config"
	"intelliquery/internal/models"
)

// Builder renders a conversation history as a PDF document with a title
// header, file references, and role-labelled messages.
type Builder struct {
	cfg       *config.ReportConfig
	fileNames []string
	now       func() time.Time
}

func NewBuilder(cfg *config.ReportConfig, fileNames []string) *Builder {
	return &Builder{cfg: cfg, fileNames: fileNames, now: time.Now}
}

// Build renders the exchanges into PDF bytes. An empty history still
// produces a valid document with a placeholder message.
func (b *Builder) Build(exchanges []models.Exchange) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("helvetica", "B", 16)
		pdf.CellFormat(0, 10, b.cfg.Title, "", 1, "C", false, 0, "")
		pdf.Ln(5)

		if len(b.fileNames) > 0 {
			pdf.SetFont("helvetica", "I", 10)
			pdf.CellFormat(0, 10, "Files: "+strings.Join(b.fileNames, ", "), "", 1, "L", false, 0, "")
		}

		pdf.SetFont("helvetica", "I", 10)
		pdf.CellFormat(0, 10, "Generated on: "+b.now().Format("2006-01-02 15:04:05"), "", 1, "R", false, 0, "")
		w, _ := pdf.GetPageSize()
		pdf.Line(10, pdf.GetY(), w-10, pdf.GetY())
		pdf.Ln(10)
	})

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("helvetica", "I", 8)

		if b.cfg.Link != "" {
			pdf.SetX(10)
			pdf.SetTextColor(0, 102, 204)
			pdf.WriteLinkString(10, b.cfg.Title, b.cfg.Link)
		}

		pdf.SetX(-30)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()

	if len(exchanges) == 0 {
		addMessage(pdf, "System", "No conversations available.")
	}
	for _, ex := range exchanges {
		addMessage(pdf, "User", ex.Question)
		addMessage(pdf, "Assistant", ex.Answer)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("generating pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func addMessage(pdf *fpdf.Fpdf, role, content string) {
	w, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()

	pdf.Line(left, pdf.GetY()-2, w-right, pdf.GetY()-2)
	pdf.Ln(5)

	pdf.SetFont("helvetica", "B", 12)
	const roleLabelWidth = 30
	pdf.CellFormat(roleLabelWidth, 10, role+":", "", 0, "L", false, 0, "")

	pdf.SetFont("helvetica", "", 11)
	contentWidth := w - right - left - roleLabelWidth
	pdf.MultiCell(contentWidth, 10, content, "", "J", false)
	pdf.Ln(5)
}
