package decode

import (
	"context"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"claimscan/internal/camera"
)

// softwareDecoder runs the portable in-process QR reader. It works on every
// platform and carries the bidirectional inversion attempts: a QR printed
// light-on-dark decodes on the inverted pass.
type softwareDecoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}

	// img wraps the current frame's pixels; its shape is updated only when
	// the frame dimensions change.
	img *image.Gray
}

func newSoftwareDecoder() *softwareDecoder {
	return &softwareDecoder{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
		img: &image.Gray{},
	}
}

func (d *softwareDecoder) Decode(ctx context.Context, frame camera.Frame) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pix) < frame.Width*frame.Height {
		return "", false, nil
	}

	if d.img.Stride != frame.Width || d.img.Rect.Dx() != frame.Width || d.img.Rect.Dy() != frame.Height {
		d.img.Stride = frame.Width
		d.img.Rect = image.Rect(0, 0, frame.Width, frame.Height)
	}
	d.img.Pix = frame.Pix

	source := gozxing.NewLuminanceSourceFromImage(d.img)
	if value, ok := d.tryDecode(source); ok {
		return value, true, nil
	}
	if value, ok := d.tryDecode(source.Invert()); ok {
		return value, true, nil
	}
	return "", false, nil
}

func (d *softwareDecoder) tryDecode(source gozxing.LuminanceSource) (string, bool) {
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return "", false
	}
	result, err := d.reader.Decode(bitmap, d.hints)
	if err != nil {
		// NotFound and checksum failures are routine for frames without a
		// readable code.
		return "", false
	}
	return result.GetText(), true
}
