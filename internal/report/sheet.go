// Package report renders printable artifacts: the host-stand booking sheet
// and the QR code handed to walk-in parties.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

var sheetColumns = []struct {
	title string
	width float64
}{
	{"Time", 18},
	{"Area", 24},
	{"Guests", 16},
	{"Name", 46},
	{"Phone", 34},
	{"Notes", 52},
}

// BookingSheet renders one A4 page (continued as needed) listing bookings,
// which the caller passes already sorted by time slot.
func BookingSheet(date time.Time, bookings []domain.Booking, generatedAt time.Time) ([]byte, error) {
	const op = "report.BookingSheet"

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Bookings "+date.Format(domain.DateLayout), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Bookings for "+date.Format("Monday, 02 January 2006"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("%d bookings, %d guests. Generated %s",
		len(bookings), totalGuests(bookings), generatedAt.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range sheetColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(bookings) == 0 {
		pdf.CellFormat(0, 7, "No bookings.", "1", 1, "C", false, 0, "")
	}

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, b := range bookings {
		row := []string{
			b.TimeSlot,
			string(b.Environment),
			strconv.Itoa(b.Guests),
			tr(b.Customer.Name),
			b.Customer.Phone,
			tr(truncate(b.Observations, 30)),
		}
		for i, c := range sheetColumns {
			pdf.CellFormat(c.width, 7, row[i], "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

// QueueQR encodes url as a PNG of size pixels.
func QueueQR(url string, size int) ([]byte, error) {
	const op = "report.QueueQR"

	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return png, nil
}

func totalGuests(bookings []domain.Booking) int {
	n := 0
	for _, b := range bookings {
		n += b.Guests
	}
	return n
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
