// Package assignment deals fields of view out to researchers at random.
package assignment

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"tilescanfov/internal/models"
	"tilescanfov/pkg/roi"
)

var fieldPattern = regexp.MustCompile(`Field-(\d+)_`)

// FieldNumber extracts n from a file name following the "Field-<n>_..."
// convention of cropped field images.
func FieldNumber(name string) (int, bool) {
	m := fieldPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Assign shuffles fields with a generator seeded by seed and deals them
// round-robin, so researcher i receives shuffled fields i, i+N, i+2N...
// Every researcher gets an entry, possibly with no fields.
func Assign(fields, researchers []string, seed uint64) ([]models.Assignment, error) {
	if len(researchers) == 0 {
		return nil, errors.Wrap(roi.ErrUnsupportedConfiguration, "no researchers to assign fields to")
	}

	shuffled := append([]string(nil), fields...)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	out := make([]models.Assignment, len(researchers))
	for i, r := range researchers {
		out[i] = models.Assignment{Researcher: r, Fields: []string{}}
	}
	for i, f := range shuffled {
		out[i%len(out)].Fields = append(out[i%len(out)].Fields, f)
	}
	return out, nil
}

// MarkerDir is the directory holding the cropped fields of one marker.
type MarkerDir struct {
	Marker string
	Dir    string
}

// Link creates, for every researcher and marker, a directory
// <outDir>/Researcher-<name>/<marker>_Unlabeled_Fields holding symbolic
// links to that researcher's field images. Links are prefixed with their
// position in the researcher's list so the labeling order survives sorting
// by name.
func Link(outDir string, assignments []models.Assignment, markers []MarkerDir) error {
	for _, m := range markers {
		entries, err := os.ReadDir(m.Dir)
		if err != nil {
			return errors.Wrapf(err, "failed to list fields of %s", m.Marker)
		}
		files := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, e.Name())
			}
		}

		for _, a := range assignments {
			dst := filepath.Join(outDir, researcherPrefix+a.Researcher, m.Marker+unlabeledSuffix)
			if err := os.MkdirAll(dst, 0755); err != nil {
				return errors.Wrap(err, "failed to create researcher directory")
			}
			for i, field := range a.Fields {
				file, ok := findField(files, field)
				if !ok {
					return errors.Errorf("no image for %s in %s", field, m.Dir)
				}
				target, err := filepath.Abs(filepath.Join(m.Dir, file))
				if err != nil {
					return errors.Wrap(err, "failed to resolve field path")
				}
				link := filepath.Join(dst, fmt.Sprintf("%d%s", i+1, file))
				if err := replaceLink(target, link); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// replaceLink points link at target, replacing a link left by an earlier
// run. Anything other than a symbolic link in the way is an error.
func replaceLink(target, link string) error {
	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return errors.Errorf("%s exists and is not a link", link)
		}
		if err := os.Remove(link); err != nil {
			return errors.Wrapf(err, "failed to replace %s", link)
		}
	}
	if err := os.Symlink(target, link); err != nil {
		return errors.Wrapf(err, "failed to link %s", filepath.Base(link))
	}
	return nil
}

// findField returns the file holding field. Numbered fields are matched by
// number so Field-1 never picks up Field-12; other names, such as grid
// fields, by prefix. Files may carry a leading labeling position.
func findField(files []string, field string) (string, bool) {
	n, numbered := FieldNumber(field + "_")
	for _, f := range files {
		if numbered {
			if m, ok := FieldNumber(f); ok && m == n {
				return f, true
			}
			continue
		}
		if strings.HasPrefix(trimPosition(f), field+"_") {
			return f, true
		}
	}
	return "", false
}

// trimPosition strips the labeling position prefixed to linked field files.
func trimPosition(name string) string {
	return strings.TrimLeft(name, "0123456789")
}
