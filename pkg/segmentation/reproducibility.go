package segmentation

import (
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"tilescanfov/pkg/assignment"
	"tilescanfov/pkg/imageio"
	"tilescanfov/pkg/roi"
	"tilescanfov/pkg/roifile"
)

// FieldScore is the agreement between the first and the second labeling of
// one field of view.
type FieldScore struct {
	Field  int
	Rater1 string
	Rater2 string
	Similarity
}

// Reproducibility scores every relabeled field below labelDir against the
// first researcher's segmentation of the same field.
//
// labelDir holds a Relabeled-By-<rater> directory with the linked fields,
// the copied *FieldBoundary.yaml and a *_Segmentations directory, next to
// the Researcher-<rater> directories the links point into. Segmentation
// files are found by the "Segmentation_Field-<n>_" part of their name and
// compared foreground against foreground inside the field boundary. Fields
// missing either segmentation are skipped.
func Reproducibility(labelDir string, threshold float64, logger *slog.Logger) ([]FieldScore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	relabeled, err := filepath.Glob(filepath.Join(labelDir, "Relabeled-By-*"))
	if err != nil || len(relabeled) == 0 {
		return nil, errors.Errorf("no Relabeled-By- directory in %s", labelDir)
	}
	relabelDir := relabeled[0]
	rater2 := strings.TrimPrefix(filepath.Base(relabelDir), "Relabeled-By-")

	window, err := openBoundary(relabelDir)
	if err != nil {
		return nil, err
	}

	unlabeled, err := filepath.Glob(filepath.Join(relabelDir, "*_Unlabeled_Fields"))
	if err != nil || len(unlabeled) == 0 {
		return nil, errors.Errorf("no _Unlabeled_Fields directory in %s", relabelDir)
	}
	entries, err := os.ReadDir(unlabeled[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to list relabeled fields")
	}

	scores := []FieldScore{}
	opts := Options{Foreground: true, Window: &window, Threshold: threshold}
	for _, e := range entries {
		n, ok := assignment.FieldNumber(e.Name())
		if !ok {
			continue
		}
		second, ok := findSegmentation(relabelDir, n)
		if !ok {
			logger.Debug("field not relabeled yet", slog.Int("field", n))
			continue
		}

		// the relabel link points at the first researcher's link
		target, err := os.Readlink(filepath.Join(unlabeled[0], e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to follow %s", e.Name())
		}
		raterDir := filepath.Base(filepath.Dir(filepath.Dir(target)))
		first, ok := findSegmentation(filepath.Join(labelDir, raterDir), n)
		if !ok {
			logger.Debug("field missing first labeling", slog.Int("field", n), slog.String("rater", raterDir))
			continue
		}

		segA, err := imageio.LoadGray(first, roi.PixelCalibration)
		if err != nil {
			return nil, err
		}
		segB, err := imageio.LoadGray(second, roi.PixelCalibration)
		if err != nil {
			return nil, err
		}
		sim, err := Compare(segA, segB, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compare field %d", n)
		}
		scores = append(scores, FieldScore{
			Field:      n,
			Rater1:     strings.TrimPrefix(raterDir, "Researcher-"),
			Rater2:     rater2,
			Similarity: sim,
		})
	}
	return scores, nil
}

func openBoundary(dir string) (roi.Region, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*FieldBoundary.yaml"))
	if err != nil || len(matches) == 0 {
		return roi.Region{}, errors.Wrapf(roifile.ErrNotFound, "field boundary in %s", dir)
	}
	set, err := roifile.Open(matches[0])
	if err != nil {
		return roi.Region{}, err
	}
	regions := set.Regions()
	if len(regions) == 0 {
		return roi.Region{}, errors.Wrapf(roi.ErrDegenerateRegion, "%s holds no boundary", matches[0])
	}
	return regions[0], nil
}

// findSegmentation returns the segmentation of field n in any
// *_Segmentations directory of dir.
func findSegmentation(dir string, n int) (string, bool) {
	files, err := filepath.Glob(filepath.Join(dir, "*_Segmentations", "*"))
	if err != nil {
		return "", false
	}
	for _, f := range files {
		name := filepath.Base(f)
		i := strings.Index(name, "Segmentation_")
		if i < 0 {
			continue
		}
		if m, ok := assignment.FieldNumber(name[i:]); ok && m == n {
			return f, true
		}
	}
	return "", false
}

// WriteScores saves scores as CSV with one row per field.
func WriteScores(path string, scores []FieldScore) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create score file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Field_of_View_Number", "Rater1", "Rater2", "DC", "JI"}); err != nil {
		return err
	}
	for _, s := range scores {
		record := []string{
			strconv.Itoa(s.Field),
			s.Rater1,
			s.Rater2,
			strconv.FormatFloat(s.Dice, 'f', -1, 64),
			strconv.FormatFloat(s.Jaccard, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
