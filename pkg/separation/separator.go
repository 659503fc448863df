// Package separation splits the channels of a tile scan into fields of view
// and writes everything researchers need to label them.
package separation

import (
	"encoding/csv"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"tilescanfov/internal/models"
	"tilescanfov/pkg/imageio"
	"tilescanfov/pkg/roi"
	"tilescanfov/pkg/roifile"
	"tilescanfov/pkg/tiling"
	"tilescanfov/pkg/visualization"
)

// Params holds the separation parameters.
type Params struct {
	// InputDir is the directory holding the channel images and, when the
	// scan was rotated, its RotationInDegrees_<name>.txt file. All output is
	// written below it.
	InputDir string

	// Channels are the images of the same scanned area. The first one is
	// tiled; every channel is cropped with the same fields.
	Channels []models.Channel

	// FieldSize and FieldOverlap are in the physical unit of Calibration.
	FieldSize    float64
	FieldOverlap float64

	// Calibration converts the physical sizes to pixels.
	Calibration roi.Calibration

	// Rotation overrides the rotation file when non-nil.
	Rotation *float64

	// BlankThreshold, Tolerance and SkipCleanup are passed to the tiler.
	BlankThreshold float64
	Tolerance      float64
	SkipCleanup    bool

	// Normalize stretches the contrast of every field, clipping Saturation
	// percent of its pixels.
	Normalize  bool
	Saturation float64

	// Layout is LayoutRotated (the default when empty) or LayoutGrid.
	Layout string

	// Area, when set, keeps only the fields whose rotation centre lies in it.
	Area *roi.Region

	// SaveOverlay writes the fields drawn over the first channel, and each
	// field cut out of that drawing.
	SaveOverlay bool

	// Logger receives progress records. Nil means slog.Default().
	Logger *slog.Logger
}

const (
	// LayoutRotated carves rotated fields out of the imaged area.
	LayoutRotated = "rotated"

	// LayoutGrid lays an axis-aligned grid of half-overlapping fields over
	// the whole canvas, ignoring rotation, overlap and image content.
	LayoutGrid = "grid"
)

// Separator runs the separation of one tile scan.
//
// The process consists of several steps:
// 1. Loading the channels and checking they cover the same area
// 2. Resolving the rotation the scan was straightened with
// 3. Converting the field size and overlap to pixels
// 4. Tiling the first channel into fields of view
// 5. Cropping and saving every field of every channel
// 6. Saving the field ROIs, boundary and locations
// 7. Optionally saving an overlay for visual inspection
type Separator struct {
	params *Params
	logger *slog.Logger

	// images holds the decoded channels in params.Channels order
	images []image.Image

	// imageName identifies the scan in output file names
	imageName string

	rotation     float64
	fieldSize    int
	fieldOverlap int

	result    *tiling.Result
	outputDir string
}

// NewSeparator creates a new separator with the provided parameters.
func NewSeparator(params *Params) *Separator {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Separator{params: params, logger: logger}
}

// Process runs the complete separation pipeline
func (s *Separator) Process() error {
	if len(s.params.Channels) == 0 {
		return errors.Wrap(roi.ErrEmptyInput, "no channels to separate")
	}

	s.logger.Info("Step 1: Loading channels", slog.Int("channels", len(s.params.Channels)))
	if err := s.loadChannels(); err != nil {
		return errors.Wrap(err, "failed to load channels")
	}

	s.logger.Info("Step 2: Resolving rotation")
	if err := s.resolveRotation(); err != nil {
		return errors.Wrap(err, "failed to resolve rotation")
	}

	s.logger.Info("Step 3: Converting field size to pixels")
	if err := s.convertSizes(); err != nil {
		return errors.Wrap(err, "failed to convert field size")
	}

	s.logger.Info("Step 4: Tiling into fields of view",
		slog.Int("fieldSize", s.fieldSize),
		slog.Int("fieldOverlap", s.fieldOverlap),
		slog.Float64("rotation", s.rotation))
	if err := s.tile(); err != nil {
		return errors.Wrap(err, "failed to tile image")
	}

	s.logger.Info("Step 5: Saving fields of view", slog.Int("fields", len(s.result.Fields)))
	for i, ch := range s.params.Channels {
		if err := s.saveFields(s.images[i], ch.Marker); err != nil {
			return errors.Wrapf(err, "failed to save fields of %s", ch.Marker)
		}
	}

	s.logger.Info("Step 6: Saving field ROIs and locations")
	s.logAreas()
	if err := s.saveROIs(); err != nil {
		return errors.Wrap(err, "failed to save field ROIs")
	}
	if err := s.saveLocations(); err != nil {
		return errors.Wrap(err, "failed to save field locations")
	}

	if s.params.SaveOverlay {
		s.logger.Info("Step 7: Saving overlay")
		if err := s.saveOverlay(); err != nil {
			// the overlay is only a visual aid
			s.logger.Warn("failed to save overlay", slog.Any("error", err))
		}
	}

	return nil
}

// Fields returns the fields found by Process
func (s *Separator) Fields() []tiling.FieldOfView {
	if s.result == nil {
		return []tiling.FieldOfView{}
	}
	return s.result.Fields
}

// Result returns the full tiling result, nil before Process
func (s *Separator) Result() *tiling.Result { return s.result }

// OutputDir returns the directory the fields are written below
func (s *Separator) OutputDir() string { return s.outputDir }

// loadChannels decodes every channel and checks they share one size
func (s *Separator) loadChannels() error {
	s.images = make([]image.Image, 0, len(s.params.Channels))
	for _, ch := range s.params.Channels {
		path := ch.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.params.InputDir, path)
		}
		img, err := imageio.Load(path)
		if err != nil {
			return err
		}
		if len(s.images) > 0 && img.Bounds() != s.images[0].Bounds() {
			return errors.Wrapf(roi.ErrUnsupportedConfiguration,
				"channel %s is %v but %s is %v; all channels must image the same area",
				ch.Marker, img.Bounds().Size(), s.params.Channels[0].Marker, s.images[0].Bounds().Size())
		}
		s.images = append(s.images, img)
		s.logger.Debug("loaded channel", slog.String("marker", ch.Marker), slog.String("path", path))
	}
	return nil
}

// resolveRotation picks the override, then the rotation file, then zero.
// The image name comes from the rotation file when there is one and from
// the first channel otherwise.
func (s *Separator) resolveRotation() error {
	first := filepath.Base(s.params.Channels[0].Path)
	s.imageName = strings.TrimSuffix(first, filepath.Ext(first))

	name, degrees, found, err := imageio.ReadRotation(s.params.InputDir, s.logger)
	if err != nil {
		return err
	}
	if found {
		s.imageName = name
		s.rotation = degrees
	}
	if s.params.Rotation != nil {
		s.rotation = *s.params.Rotation
	}
	return nil
}

func (s *Separator) convertSizes() error {
	size, err := s.params.Calibration.RawX(s.params.FieldSize)
	if err != nil {
		return err
	}
	overlap, err := s.params.Calibration.RawX(s.params.FieldOverlap)
	if err != nil {
		return err
	}
	s.fieldSize = int(math.Round(size))
	s.fieldOverlap = int(math.Round(overlap))

	s.outputDir = filepath.Join(s.params.InputDir, "FieldsOfView", s.label())
	return nil
}

func (s *Separator) tile() error {
	first := imageio.NewGrayBuffer(s.images[0], s.params.Calibration)

	var (
		result *tiling.Result
		err    error
	)
	switch s.params.Layout {
	case "", LayoutRotated:
		result, err = s.tileRotated(first)
	case LayoutGrid:
		result, err = tiling.Grid(first.Bounds(), s.fieldSize)
	default:
		err = errors.Wrapf(roi.ErrUnsupportedConfiguration, "unknown layout %q", s.params.Layout)
	}
	if err != nil {
		return err
	}

	if s.params.Area != nil {
		before := len(result.Fields)
		result.Fields = tiling.FieldsInArea(result.Fields, *s.params.Area)
		s.logger.Info("restricted fields to area",
			slog.Int("before", before),
			slog.Int("after", len(result.Fields)))
	}
	s.result = result
	return nil
}

func (s *Separator) tileRotated(first *imageio.GrayBuffer) (*tiling.Result, error) {
	partitioner := tiling.NewPartitioner(&tiling.Params{
		FieldSize:      s.fieldSize,
		FieldOverlap:   s.fieldOverlap,
		Rotation:       s.rotation,
		Tolerance:      s.params.Tolerance,
		BlankThreshold: s.params.BlankThreshold,
		SkipCleanup:    s.params.SkipCleanup,
		Logger:         s.logger,
	})
	return partitioner.Tile(first)
}

// logAreas reports the calibrated area of the imaged region and of every
// field's non-overlapping boundary
func (s *Separator) logAreas() {
	cal := s.params.Calibration
	if area, unit, err := roi.Area(s.result.Relevant, cal); err == nil {
		s.logger.Info("relevant area", slog.Float64("area", area), slog.String("unit", unit))
	}
	for _, f := range s.result.Fields {
		area, unit, err := roi.Area(f.Boundary, cal)
		if err != nil {
			s.logger.Warn("failed to measure field", slog.String("field", f.Name), slog.Any("error", err))
			continue
		}
		s.logger.Debug("field area", slog.String("field", f.Name), slog.Float64("area", area), slog.String("unit", unit))
	}
}

// saveFields crops, optionally normalizes and saves every field of img
func (s *Separator) saveFields(img image.Image, marker string) error {
	dir := filepath.Join(s.outputDir, marker)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create field directory")
	}

	for _, f := range s.result.Fields {
		field, err := imageio.CropRegion(img, f.Region)
		if err != nil {
			return errors.Wrapf(err, "failed to crop %s", f.Name)
		}
		if s.params.Normalize {
			field = imageio.Normalize(field, s.params.Saturation)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.tif", f.Name, s.imageName))
		if err := imageio.SaveTIFF(field, path); err != nil {
			return err
		}
	}
	return nil
}

func (s *Separator) saveROIs() error {
	fieldsPath := filepath.Join(s.params.InputDir, "ROIs", s.label()+".yaml")
	if err := roifile.Save(fieldsPath, roifile.FromFields(s.result.Fields)); err != nil {
		return err
	}

	name := fmt.Sprintf("%s%s Field of View Boundary", formatPhysical(s.params.FieldSize), s.params.Calibration.LengthUnit())
	boundary, ok := roifile.FromRegion(name, s.result.BoundaryTemplate)
	if !ok {
		return errors.Wrap(roi.ErrDegenerateRegion, "field boundary is not a rectangle")
	}
	boundaryPath := filepath.Join(s.outputDir,
		fmt.Sprintf("%s%sFieldBoundary.yaml", formatPhysical(s.params.FieldSize), s.params.Calibration.LengthUnit()))
	return roifile.Save(boundaryPath, boundary)
}

// saveLocations writes Field_Number,X,Y with the rotation centre of every
// field in physical units
func (s *Separator) saveLocations() error {
	path := filepath.Join(s.outputDir,
		fmt.Sprintf("%s%sFieldLocations_%s.csv", formatPhysical(s.params.FieldSize), s.params.Calibration.LengthUnit(), s.imageName))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create location file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Field_Number", "X", "Y"}); err != nil {
		return err
	}
	for _, loc := range tiling.Locations(s.result.Fields, s.params.Calibration) {
		record := []string{
			strconv.Itoa(loc.Number),
			strconv.FormatFloat(loc.X, 'f', -1, 64),
			strconv.FormatFloat(loc.Y, 'f', -1, 64),
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

func (s *Separator) saveOverlay() error {
	viewer := visualization.NewViewer(s.images[0])
	viewer.DrawRegion(s.result.Relevant, visualization.RelevantColor)
	viewer.DrawFields(s.result.Fields)
	if err := viewer.SaveOverlay(filepath.Join(s.outputDir, "FieldOverlay_"+s.imageName+".png")); err != nil {
		return err
	}

	if err := viewer.SaveFieldSequence(s.result.Fields, filepath.Join(s.outputDir, "OverlayFields_"+s.imageName)); err != nil {
		return err
	}

	mask := roi.Rasterize(s.result.Relevant, s.images[0].Bounds())
	return imageio.SavePNG(visualization.MaskImage(mask), filepath.Join(s.outputDir, "RelevantRegion_"+s.imageName+".png"))
}

// label names the output of this field size, e.g. "60umFields_15umOverlap"
func (s *Separator) label() string {
	unit := s.params.Calibration.LengthUnit()
	return fmt.Sprintf("%s%sFields_%s%sOverlap",
		formatPhysical(s.params.FieldSize), unit, formatPhysical(s.params.FieldOverlap), unit)
}

func formatPhysical(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
