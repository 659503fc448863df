package assignment

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"tilescanfov/internal/models"
	"tilescanfov/pkg/roi"
)

const (
	researcherPrefix = "Researcher-"
	relabelPrefix    = "Relabeled-By-"
	unlabeledSuffix  = "_Unlabeled_Fields"
)

// RelabelDir returns the directory holding the fields relabeler labels a
// second time.
func RelabelDir(dir, relabeler string) string {
	return filepath.Join(dir, relabelPrefix+relabeler)
}

// ReadAssignments rebuilds the assignments from the Researcher-<name>
// directories Link created in dir. Each researcher's fields are read from
// their first <marker>_Unlabeled_Fields directory, in labeling order.
func ReadAssignments(dir string) ([]models.Assignment, error) {
	researchers, err := filepath.Glob(filepath.Join(dir, researcherPrefix+"*"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to search for researchers")
	}

	out := make([]models.Assignment, 0, len(researchers))
	for _, rdir := range researchers {
		markers, err := filepath.Glob(filepath.Join(rdir, "*"+unlabeledSuffix))
		if err != nil || len(markers) == 0 {
			continue
		}
		entries, err := os.ReadDir(markers[0])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", markers[0])
		}

		type positioned struct {
			pos   int
			field string
		}
		var fields []positioned
		for _, e := range entries {
			name := e.Name()
			rest := trimPosition(name)
			pos, err := strconv.Atoi(name[:len(name)-len(rest)])
			if err != nil {
				continue
			}
			field, _, _ := strings.Cut(rest, "_")
			fields = append(fields, positioned{pos, field})
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].pos < fields[j].pos })

		a := models.Assignment{
			Researcher: strings.TrimPrefix(filepath.Base(rdir), researcherPrefix),
			Fields:     make([]string, len(fields)),
		}
		for i, f := range fields {
			a.Fields[i] = f.field
		}
		out = append(out, a)
	}
	return out, nil
}

// relabelCount is ceil(fraction * n). The small slack keeps products such
// as 0.3 * 10 = 3.0000000000000004 from rounding up to 4.
func relabelCount(fraction float64, n int) int {
	k := int(math.Ceil(fraction*float64(n) - 1e-9))
	return max(0, min(k, n))
}

// SelectForRelabel draws ceil(fraction * n) of the n fields of every
// researcher and returns them, shuffled together, in the order they should
// be relabeled. The same seed gives the same selection.
func SelectForRelabel(assignments []models.Assignment, fraction float64, seed uint64) ([]models.Relabel, error) {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return nil, errors.Wrapf(roi.ErrUnsupportedConfiguration, "relabel fraction %v outside [0, 1]", fraction)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	picks := []models.Relabel{}
	for _, a := range assignments {
		fields := append([]string(nil), a.Fields...)
		rng.Shuffle(len(fields), func(i, j int) { fields[i], fields[j] = fields[j], fields[i] })
		for _, f := range fields[:relabelCount(fraction, len(fields))] {
			picks = append(picks, models.Relabel{Researcher: a.Researcher, Field: f})
		}
	}
	rng.Shuffle(len(picks), func(i, j int) { picks[i], picks[j] = picks[j], picks[i] })
	return picks, nil
}

// LinkRelabel creates Relabeled-By-<relabeler>/<marker>_Unlabeled_Fields in
// dir for every marker the researchers were given, linking the picked
// fields in order to the files the first researcher labeled. The field
// boundary file, when given, is copied next to them.
func LinkRelabel(dir, relabeler string, picks []models.Relabel, boundaryPath string) error {
	markers, err := filepath.Glob(filepath.Join(dir, researcherPrefix+"*", "*"+unlabeledSuffix))
	if err != nil {
		return errors.Wrap(err, "failed to search for marker directories")
	}
	names := map[string]bool{}
	for _, m := range markers {
		names[filepath.Base(m)] = true
	}
	if len(names) == 0 {
		return errors.Errorf("no %s directories below %s", unlabeledSuffix, dir)
	}

	base := RelabelDir(dir, relabeler)
	for marker := range names {
		dst := filepath.Join(base, marker)
		if err := os.MkdirAll(dst, 0755); err != nil {
			return errors.Wrap(err, "failed to create relabel directory")
		}

		for i, p := range picks {
			src := filepath.Join(dir, researcherPrefix+p.Researcher, marker)
			entries, err := os.ReadDir(src)
			if err != nil {
				return errors.Wrapf(err, "failed to list fields of %s", p.Researcher)
			}
			files := make([]string, 0, len(entries))
			for _, e := range entries {
				files = append(files, e.Name())
			}
			file, ok := findField(files, p.Field)
			if !ok {
				return errors.Errorf("no image for %s in %s", p.Field, src)
			}
			target, err := filepath.Abs(filepath.Join(src, file))
			if err != nil {
				return errors.Wrap(err, "failed to resolve field path")
			}
			link := filepath.Join(dst, fmt.Sprintf("%d%s", i+1, trimPosition(file)))
			if err := replaceLink(target, link); err != nil {
				return err
			}
		}
	}

	if boundaryPath == "" {
		return nil
	}
	return copyFile(boundaryPath, filepath.Join(base, filepath.Base(boundaryPath)))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open field boundary")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "failed to create field boundary copy")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "failed to copy field boundary")
	}
	return out.Close()
}
