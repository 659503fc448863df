package imageio

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const rotationPrefix = "RotationInDegrees_"

// RotationFileName returns the name of the file recording the rotation
// applied to imageName.
func RotationFileName(imageName string) string {
	return rotationPrefix + imageName + ".txt"
}

// WriteRotation records that imageName was rotated by degrees.
func WriteRotation(dir, imageName string, degrees float64) error {
	path := filepath.Join(dir, RotationFileName(imageName))
	data := strconv.FormatFloat(degrees, 'g', -1, 64)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return errors.Wrap(err, "failed to write rotation file")
	}
	return nil
}

// ReadRotation looks for a rotation file in dir and returns the image name it
// belongs to and the recorded angle. found is false, with a zero angle, when
// dir holds no rotation file. When there are several the first is used and
// a warning goes to logger, or slog.Default() if logger is nil.
func ReadRotation(dir string, logger *slog.Logger) (imageName string, degrees float64, found bool, err error) {
	matches, err := filepath.Glob(filepath.Join(dir, rotationPrefix+"*.txt"))
	if err != nil {
		return "", 0, false, errors.Wrap(err, "failed to search for rotation file")
	}
	if len(matches) == 0 {
		return "", 0, false, nil
	}
	if len(matches) > 1 {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("several rotation files found",
			slog.String("dir", dir),
			slog.Int("count", len(matches)),
			slog.String("using", filepath.Base(matches[0])))
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", 0, false, errors.Wrap(err, "failed to read rotation file")
	}
	degrees, err = strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return "", 0, false, errors.Wrapf(err, "invalid rotation in %s", filepath.Base(matches[0]))
	}

	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(matches[0]), rotationPrefix), ".txt")
	return name, degrees, true, nil
}
