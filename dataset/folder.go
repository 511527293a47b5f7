package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/preprocess"
)

// ImageFile represents an image file in a class folder.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Label is the index of the class folder the file lives in.
	Label int
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// ListImageFolder enumerates <root>/<split>/<class>/<file> in index order.
//
// Classes are the sub-directories of the split sorted by name; their position is the label.
// Files are sorted by name within each class, and classes follow each other in label order.
//
// Arguments:
//   - root: The dataset root directory.
//   - split: The split directory to enumerate.
//
// Returns:
//   - []string: The class names, indexed by label.
//   - []ImageFile: The image files in index order.
//   - error: Error if the directory cannot be read.
func ListImageFolder(root string, split Split) ([]string, []ImageFile, error) {
	dir := filepath.Join(root, string(split))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading split directory %s", dir)
	}

	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)

	var files []ImageFile
	for label, class := range classes {
		classDir := filepath.Join(dir, class)
		items, err := os.ReadDir(classDir)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reading class directory %s", classDir)
		}

		var names []string
		for _, item := range items {
			if item.IsDir() {
				continue
			}
			if imageExtensions[strings.ToLower(filepath.Ext(item.Name()))] {
				names = append(names, item.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			files = append(files, ImageFile{Path: filepath.Join(classDir, name), Label: label})
		}
	}

	return classes, files, nil
}

func readFolder(root string, split Split, limit int, transform *preprocess.Transform) ([]Sample, error) {
	_, files, err := ListImageFolder(root, split)
	if err != nil {
		return nil, err
	}
	if len(files) > limit {
		files = files[:limit]
	}

	samples := make([]Sample, 0, len(files))
	for i, file := range files {
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading image %s", file.Path)
		}

		img, err := decodeImage(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding image %s", file.Path)
		}

		samples = append(samples, Sample{
			Index: i,
			Label: file.Label,
			Image: transform.Apply(img),
		})
	}

	return samples, nil
}
