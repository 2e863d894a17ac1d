package services

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	certificateWidth  = 1600
	certificateHeight = 1130
)

// CertificateCard is what gets printed on a certificate image.
type CertificateCard struct {
	LearnerName string
	CourseTitle string
	Number      string
	IssuedAt    time.Time
}

var (
	fontsOnce    sync.Once
	regularFont  *truetype.Font
	boldFont     *truetype.Font
	fontsLoadErr error
)

func loadCertificateFonts() error {
	fontsOnce.Do(func() {
		regularFont, fontsLoadErr = truetype.Parse(goregular.TTF)
		if fontsLoadErr != nil {
			fontsLoadErr = fmt.Errorf("failed to parse regular font: %w", fontsLoadErr)
			return
		}
		boldFont, fontsLoadErr = truetype.Parse(gobold.TTF)
		if fontsLoadErr != nil {
			fontsLoadErr = fmt.Errorf("failed to parse bold font: %w", fontsLoadErr)
		}
	})
	return fontsLoadErr
}

func fontFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// RenderCertificatePNG draws a landscape certificate and encodes it as PNG.
func RenderCertificatePNG(card CertificateCard) ([]byte, error) {
	if err := loadCertificateFonts(); err != nil {
		return nil, err
	}
	const w, h = float64(certificateWidth), float64(certificateHeight)
	dc := gg.NewContext(certificateWidth, certificateHeight)

	dc.SetRGB(0.99, 0.98, 0.95)
	dc.Clear()

	// Double frame
	dc.SetRGB(0.16, 0.27, 0.45)
	dc.SetLineWidth(14)
	dc.DrawRectangle(40, 40, w-80, h-80)
	dc.Stroke()
	dc.SetLineWidth(3)
	dc.DrawRectangle(70, 70, w-140, h-140)
	dc.Stroke()

	dc.SetFontFace(fontFace(boldFont, 72))
	dc.DrawStringAnchored("Certificate of Completion", w/2, 250, 0.5, 0.5)

	dc.SetRGB(0.3, 0.3, 0.3)
	dc.SetFontFace(fontFace(regularFont, 34))
	dc.DrawStringAnchored("This certifies that", w/2, 380, 0.5, 0.5)

	dc.SetRGB(0.1, 0.1, 0.1)
	dc.SetFontFace(fontFace(boldFont, 64))
	dc.DrawStringAnchored(card.LearnerName, w/2, 480, 0.5, 0.5)

	dc.SetRGB(0.3, 0.3, 0.3)
	dc.SetFontFace(fontFace(regularFont, 34))
	dc.DrawStringAnchored("has successfully completed the course", w/2, 580, 0.5, 0.5)

	dc.SetRGB(0.16, 0.27, 0.45)
	dc.SetFontFace(fontFace(boldFont, 48))
	dc.DrawStringWrapped(card.CourseTitle, w/2, 680, 0.5, 0.5, w-360, 1.3, gg.AlignCenter)

	dc.SetRGB(0.35, 0.35, 0.35)
	dc.SetFontFace(fontFace(regularFont, 26))
	dc.DrawStringAnchored("Issued "+card.IssuedAt.UTC().Format("January 2, 2006"), 180, h-160, 0, 0.5)
	dc.DrawStringAnchored("No. "+card.Number, w-180, h-160, 1, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
