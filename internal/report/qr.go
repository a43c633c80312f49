package report

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/skip2/go-qrcode"
)

// QR code size bounds in pixels.
const (
	MinQRSize     = 100
	MaxQRSize     = 1000
	DefaultQRSize = 256
)

// QRService renders report links as QR codes.
type QRService struct {
	baseURL string
}

// NewQRService creates a QR service for links under baseURL.
func NewQRService(baseURL string) *QRService {
	return &QRService{baseURL: baseURL}
}

// ReportURL returns the public link to an analysis report.
func (s *QRService) ReportURL(analysisID string) string {
	return s.baseURL + "/v1/analysis/results/" + analysisID
}

// GeneratePNG generates a QR code for content as PNG bytes.
// size is clamped to [MinQRSize, MaxQRSize].
func (s *QRService) GeneratePNG(content string, size int) ([]byte, error) {
	if size < MinQRSize {
		size = MinQRSize
	}
	if size > MaxQRSize {
		size = MaxQRSize
	}

	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportPNG generates the QR code for an analysis report link.
func (s *QRService) ReportPNG(analysisID string, size int) ([]byte, error) {
	return s.GeneratePNG(s.ReportURL(analysisID), size)
}
