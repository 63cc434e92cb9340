// Package pdfsvc renders certificates as PDF documents.
package pdfsvc

import (
	"bytes"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
)

// A4 landscape, in points. Layout coordinates below are measured from the bottom-left corner.
const (
	pageWidth  = 842.0
	pageHeight = 595.0
	margin     = 50.0
	qrSize     = 80.0
	qrPixels   = 256
	fontFamily = "Helvetica"
)

type rgb struct{ r, g, b int }

var (
	colorAccent = rgb{0, 240, 255}
	colorText   = rgb{28, 31, 41}
	colorMuted  = rgb{148, 163, 184}
	colorBand   = rgb{245, 247, 250}
	colorRule   = rgb{230, 230, 235}
)

// CertificateRenderer draws certificates with fpdf and embeds a QR code of the verify URL.
type CertificateRenderer struct {
	brand string
}

var _ certificate.Renderer = (*CertificateRenderer)(nil)

func NewCertificateRenderer(brand string) *CertificateRenderer {
	if brand == "" {
		brand = "Kulmis Academy"
	}
	return &CertificateRenderer{brand: brand}
}

func (r *CertificateRenderer) Render(cert certificate.Certificate, verifyURL string) ([]byte, error) {
	qr, err := qrcode.Encode(verifyURL, qrcode.Medium, qrPixels)
	if err != nil {
		return nil, errors.Wrap(err, "encoding qr code")
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Certificate "+cert.CertificateID, true)
	pdf.SetCreator(r.brand, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// header band and accent line
	setFill(pdf, colorBand)
	pdf.Rect(0, 0, pageWidth, 120, "F")
	line(pdf, colorAccent, 2, margin, pageHeight-95, pageWidth-margin, pageHeight-95)

	centered(pdf, tr(r.brand), "B", 24, colorText, pageHeight-70)
	centered(pdf, "Certificate of Completion", "B", 18, colorText, pageHeight-115)

	bodyY := pageHeight - 220
	centered(pdf, "This is to certify that", "", 12, colorMuted, bodyY)
	centered(pdf, tr(cert.FullName), "B", 20, colorText, bodyY-36)
	centered(pdf, "has successfully completed the course", "", 12, colorMuted, bodyY-64)
	centered(pdf, tr(cert.CourseTitle), "B", 16, colorAccent, bodyY-96)
	centered(pdf, tr("at "+r.brand+", demonstrating dedication and mastery of the subject."), "", 10, colorMuted, bodyY-120)

	// footer
	line(pdf, colorRule, 1, margin, 140, pageWidth-margin, 140)
	text(pdf, "Date: "+cert.CompletionDate.UTC().Format(certificate.DateLayout), "", 10, colorMuted, margin, 115)
	text(pdf, "Certificate ID: "+cert.CertificateID, "", 9, colorMuted, margin, 95)
	text(pdf, "Authorized Signature", "", 9, colorMuted, pageWidth-margin-120, 115)
	line(pdf, colorText, 0.5, pageWidth-margin-120, 108, pageWidth-margin, 108)

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qr))
	pdf.ImageOptions("qr", pageWidth/2-qrSize/2, pageHeight-30-qrSize, qrSize, qrSize, false, opts, 0, "")
	centered(pdf, tr("Verify at "+displayURL(verifyURL)), "", 8, colorMuted, 18)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "writing pdf")
	}
	return buf.Bytes(), nil
}

func setFill(pdf *fpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }

// line draws between two points given from the bottom-left corner.
func line(pdf *fpdf.Fpdf, c rgb, width, x1, y1, x2, y2 float64) {
	pdf.SetDrawColor(c.r, c.g, c.b)
	pdf.SetLineWidth(width)
	pdf.Line(x1, pageHeight-y1, x2, pageHeight-y2)
}

// text writes `s` with its baseline at (x, y) from the bottom-left corner.
func text(pdf *fpdf.Fpdf, s, style string, size float64, c rgb, x, y float64) {
	pdf.SetFont(fontFamily, style, size)
	pdf.SetTextColor(c.r, c.g, c.b)
	pdf.Text(x, pageHeight-y, s)
}

func centered(pdf *fpdf.Fpdf, s, style string, size float64, c rgb, y float64) {
	pdf.SetFont(fontFamily, style, size)
	text(pdf, s, style, size, c, pageWidth/2-pdf.GetStringWidth(s)/2, y)
}

func displayURL(u string) string {
	u = strings.TrimPrefix(u, "https://")
	return strings.TrimPrefix(u, "http://")
}
