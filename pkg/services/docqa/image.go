package docqa

import (
	"bytes"

	"github.com/disintegration/imaging"
)

// loadPage decodes the image and re-encodes it as an opaque RGB JPEG.
// Alpha is dropped, not composited.
func loadPage(path string) (Page, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return Page{}, err
	}

	img := imaging.Clone(src)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return Page{}, err
	}

	b := img.Bounds()
	return Page{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}
