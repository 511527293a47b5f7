package dataset

import (
	"bufio"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/preprocess"
)

const (
	cifarSide       = 32
	cifarPlane      = cifarSide * cifarSide
	cifarRecordSize = 1 + 3*cifarPlane
	cifarClasses    = 10
)

// cifarFiles maps a split to the binary batches it is read from, in order.
var cifarFiles = map[Split][]string{
	SplitTest:  {"test_batch.bin"},
	SplitTrain: {"data_batch_1.bin", "data_batch_2.bin", "data_batch_3.bin", "data_batch_4.bin", "data_batch_5.bin"},
}

func readCIFAR10(root string, split Split, limit int, transform *preprocess.Transform) ([]Sample, error) {
	files, ok := cifarFiles[split]
	if !ok {
		return nil, errors.Errorf("unknown split %q", split)
	}

	samples := make([]Sample, 0, limit)
	for _, name := range files {
		if len(samples) >= limit {
			break
		}

		path := filepath.Join(root, name)
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening CIFAR-10 batch %s", path)
		}

		samples, err = decodeCIFAR10(f, samples, limit, transform)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "reading CIFAR-10 batch %s", path)
		}
	}

	return samples, nil
}

// decodeCIFAR10 appends records from r until limit samples are held or the stream ends.
func decodeCIFAR10(r io.Reader, samples []Sample, limit int, transform *preprocess.Transform) ([]Sample, error) {
	br := bufio.NewReader(r)
	record := make([]byte, cifarRecordSize)

	for len(samples) < limit {
		if _, err := io.ReadFull(br, record); err != nil {
			if errors.Is(err, io.EOF) {
				return samples, nil
			}
			return nil, errors.Wrapf(err, "short record after %d samples", len(samples))
		}

		label := int(record[0])
		if label >= cifarClasses {
			return nil, errors.Errorf("record %d has label %d outside [0,%d)", len(samples), label, cifarClasses)
		}

		samples = append(samples, Sample{
			Index: len(samples),
			Label: label,
			Image: transform.Apply(cifarImage(record[1:])),
		})
	}

	return samples, nil
}

// cifarImage converts planar R, G, B bytes into an RGBA image.
func cifarImage(planes []byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cifarSide, cifarSide))
	for i := 0; i < cifarPlane; i++ {
		img.SetRGBA(i%cifarSide, i/cifarSide, color.RGBA{
			R: planes[i],
			G: planes[cifarPlane+i],
			B: planes[2*cifarPlane+i],
			A: 255,
		})
	}
	return img
}
