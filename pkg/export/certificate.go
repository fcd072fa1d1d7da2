package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Certificate carries the data rendered onto a completion certificate.
type Certificate struct {
	StudentName string
	SchoolName  string
	State       string
	CompletedAt time.Time
	Courses     []CertificateCourse
}

// CertificateCourse summarises one passed course on the certificate.
type CertificateCourse struct {
	Label    string
	Sessions int
	Score    int
}

// CertificateRenderer renders enrollment completion certificates as PDF.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render produces the PDF bytes for a certificate.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	if cert.StudentName == "" || cert.SchoolName == "" {
		return nil, fmt.Errorf("certificate requires student and school names")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 24)
	pdf.CellFormat(0, 14, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, cert.StudentName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "has completed the full driving curriculum at", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 14)
	label := cert.SchoolName
	if cert.State != "" {
		label = fmt.Sprintf("%s (%s)", cert.SchoolName, cert.State)
	}
	pdf.CellFormat(0, 10, label, "", 1, "C", false, 0, "")
	pdf.Ln(8)

	if len(cert.Courses) > 0 {
		pdf.SetFont("Arial", "B", 10)
		colWidth := 220.0 / 3.0
		for _, header := range []string{"Course", "Sessions", "Exam Score"} {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 10)
		for _, course := range cert.Courses {
			pdf.CellFormat(colWidth, 7, course.Label, "1", 0, "", false, 0, "")
			pdf.CellFormat(colWidth, 7, fmt.Sprintf("%d", course.Sessions), "1", 0, "C", false, 0, "")
			pdf.CellFormat(colWidth, 7, fmt.Sprintf("%d / 100", course.Score), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(6)
	}

	pdf.SetFont("Arial", "I", 10)
	completed := cert.CompletedAt
	if completed.IsZero() {
		completed = time.Now().UTC()
	}
	pdf.CellFormat(0, 8, fmt.Sprintf("Completed on %s", completed.Format("02 January 2006")), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
