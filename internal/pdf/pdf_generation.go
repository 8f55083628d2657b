package pdf

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"wedhub/internal/models"
)

// InvoiceGenerator renders invoices as A4 PDFs.
type InvoiceGenerator struct {
	FontPath string // путь до TTF; пусто, то встроенный Helvetica
	Brand    string
	fontName string
}

func NewInvoiceGenerator(fontPath, brand string) *InvoiceGenerator {
	g := &InvoiceGenerator{FontPath: fontPath, Brand: brand, fontName: "Helvetica"}
	if fontPath != "" {
		g.fontName = "DejaVu"
	}
	return g
}

// RenderInvoice writes the invoice document to w.
func (g *InvoiceGenerator) RenderInvoice(w io.Writer, inv *models.Invoice, vendor *models.Vendor) error {
	if inv == nil {
		return fmt.Errorf("render invoice: nil invoice")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.SetAuthor(g.Brand, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	g.addUTF8Font(pdf)
	pdf.AddPage()

	// ===== Заголовок
	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 12)
	pdf.CellFormat(0, 7, fmt.Sprintf("%s  |  %s", inv.InvoiceNumber, inv.Status), "", 1, "C", false, 0, "")
	g.hr(pdf)
	pdf.Ln(3)

	g.sectionTitle(pdf, "Parties")
	if vendor != nil {
		g.kvLine(pdf, "Vendor", vendor.BusinessName)
		if vendor.Email != "" {
			g.kvLine(pdf, "Vendor email", vendor.Email)
		}
		if vendor.Phone != "" {
			g.kvLine(pdf, "Vendor phone", vendor.Phone)
		}
	}
	g.kvLine(pdf, "Customer", inv.UserID.String())
	g.kvLine(pdf, "Inquiry", inv.InquiryID.String())
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Details")
	g.kvLine(pdf, "Type", string(inv.Type))
	g.kvLine(pdf, "Issued", inv.IssueDate.Format("02 Jan 2006"))
	g.kvLine(pdf, "Due", inv.DueDate.Format("02 Jan 2006"))
	if inv.Description != "" {
		pdf.Ln(1)
		pdf.SetFont(g.fontName, "", 11)
		pdf.MultiCell(0, 6, inv.Description, "", "L", false)
	}
	pdf.Ln(2)
	g.hr(pdf)

	// ===== Суммы
	g.sectionTitle(pdf, "Amounts")
	g.amountLine(pdf, "Subtotal", inv.Subtotal.StringFixed(2), inv.Currency, false)
	g.amountLine(pdf, "Tax", inv.TaxAmount.StringFixed(2), inv.Currency, false)
	g.amountLine(pdf, "Discount", "-"+inv.DiscountAmount.StringFixed(2), inv.Currency, false)
	g.amountLine(pdf, "Total", inv.TotalAmount.StringFixed(2), inv.Currency, true)
	g.amountLine(pdf, "Paid", inv.PaidAmount.StringFixed(2), inv.Currency, false)
	g.amountLine(pdf, "Balance due", inv.TotalAmount.Sub(inv.PaidAmount).StringFixed(2), inv.Currency, true)

	if inv.Notes != "" {
		pdf.Ln(2)
		g.hr(pdf)
		g.sectionTitle(pdf, "Notes")
		pdf.MultiCell(0, 6, inv.Notes, "", "L", false)
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s  -  page %d/{nb}", g.Brand, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}

// ===== helpers =====

func (g *InvoiceGenerator) addUTF8Font(pdf *gofpdf.Fpdf) {
	if g.FontPath == "" {
		return
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}

func (g *InvoiceGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *InvoiceGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *InvoiceGenerator) amountLine(pdf *gofpdf.Fpdf, key, amount, currency string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont(g.fontName, style, 11)
	pdf.CellFormat(100, 6, key, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, amount+" "+currency, "", 1, "R", false, 0, "")
}

func (g *InvoiceGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}
