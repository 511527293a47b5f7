//go:build gocv

package dataset

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// decodeImage decodes through OpenCV, which covers formats (TIFF, JPEG 2000) the Go
// decoders do not.
func decodeImage(data []byte) (image.Image, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrap(err, "gocv decode")
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.New("gocv decode produced an empty matrix")
	}
	return mat.ToImage()
}
