// Package certificate renders the donor's certificate of appreciation as a
// single-page PDF.
package certificate

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

// Details is what the certificate prints.
type Details struct {
	DonorName   string
	Amount      float64
	ProjectName string
	Date        time.Time
	Issuer      string // organisation name in the footer
}

// Filename suggests a download name, e.g. "Asha-Clean River-Certificate.pdf".
func (d Details) Filename() string {
	return fmt.Sprintf("%s-%s-Certificate.pdf", d.DonorName, d.ProjectName)
}

// FormatAmount prints whole amounts without decimals ("Rs.500") and keeps
// two places otherwise ("Rs.250.50").
func FormatAmount(amount float64) string {
	if amount == float64(int64(amount)) {
		return "Rs." + strconv.FormatInt(int64(amount), 10)
	}
	return "Rs." + strconv.FormatFloat(amount, 'f', 2, 64)
}

// Write renders the certificate to w.
//
// The core PDF fonts only cover cp1252, so text goes through fpdf's
// UTF-8 translator. Characters outside cp1252 degrade instead of failing.
func Write(w io.Writer, d Details) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate of Appreciation", true)
	if d.Issuer != "" {
		pdf.SetAuthor(d.Issuer, true)
	}
	if !d.Date.IsZero() {
		pdf.SetCreationDate(d.Date)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	// double border
	pdf.SetDrawColor(30, 64, 175)
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, pageW-20, pageH-20, "D")
	pdf.SetLineWidth(0.5)
	pdf.Rect(14, 14, pageW-28, pageH-28, "D")

	centered := func(y float64, style string, size float64, text string) {
		pdf.SetFont("Helvetica", style, size)
		pdf.SetXY(20, y)
		pdf.CellFormat(pageW-40, size/2, tr(text), "", 0, "C", false, 0, "")
	}

	pdf.SetTextColor(30, 64, 175)
	centered(40, "B", 32, "Certificate of Appreciation")

	pdf.SetTextColor(60, 60, 60)
	centered(70, "", 16, "This certificate is proudly presented to")

	pdf.SetTextColor(0, 0, 0)
	centered(90, "B", 36, d.DonorName)

	pdf.SetTextColor(60, 60, 60)
	centered(120, "", 20, fmt.Sprintf("For donating %s to the project", FormatAmount(d.Amount)))
	centered(135, "I", 20, d.ProjectName)

	footer := d.Issuer
	if !d.Date.IsZero() {
		date := d.Date.Format("2 January 2006")
		if footer != "" {
			footer += ", " + date
		} else {
			footer = date
		}
	}
	if footer != "" {
		centered(pageH-40, "", 12, footer)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("certificate: rendering PDF: %w", err)
	}
	return nil
}
