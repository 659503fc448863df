package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tilescanfov/internal/logging"
	"tilescanfov/internal/models"
	"tilescanfov/pkg/assignment"
	"tilescanfov/pkg/config"
	"tilescanfov/pkg/imageio"
	"tilescanfov/pkg/roi"
	"tilescanfov/pkg/roifile"
	"tilescanfov/pkg/segmentation"
	"tilescanfov/pkg/separation"
)

const usage = `Usage: tilescanfov <command> [flags]

Commands:
  separate     split a tile scan into fields of view
  compare      score two segmentations with Dice and Jaccard
  assign       deal fields of view out to researchers
  relabel      pick a share of each researcher's fields for a second labeling
  rotate       straighten a tile scan and record the rotation
  init-config  write the default configuration file

Run "tilescanfov <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "separate":
		err = runSeparate(args)
	case "compare":
		err = runCompare(args)
	case "assign":
		err = runAssign(args)
	case "relabel":
		err = runRelabel(args)
	case "rotate":
		err = runRotate(args)
	case "init-config":
		err = runInitConfig(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(1)
	}

	if err != nil {
		slog.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

// channelList collects repeated -channel MARKER=PATH flags
type channelList []models.Channel

func (c *channelList) String() string {
	parts := make([]string, len(*c))
	for i, ch := range *c {
		parts[i] = ch.Marker + "=" + ch.Path
	}
	return strings.Join(parts, ",")
}

func (c *channelList) Set(v string) error {
	marker, path, ok := strings.Cut(v, "=")
	if !ok || marker == "" || path == "" {
		return fmt.Errorf("channel %q is not MARKER=PATH", v)
	}
	*c = append(*c, models.Channel{Marker: marker, Path: path})
	return nil
}

// loadConfig reads the config file, installs the configured logger as the
// default and returns both
func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel(), cfg.Output.JSONLogs)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// setFlags returns the names of the flags given on the command line
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func runSeparate(args []string) error {
	fs := flag.NewFlagSet("separate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Configuration file")
	inputDir := fs.String("input", "", "Directory containing the channel images")
	var channels channelList
	fs.Var(&channels, "channel", "Channel as MARKER=PATH, repeatable; the first is tiled")
	size := fs.Float64("size", 0, "Field size in calibrated units (overrides config)")
	overlap := fs.Float64("overlap", 0, "Field overlap in calibrated units (overrides config)")
	rotation := fs.Float64("rotation", 0, "Rotation in degrees (overrides config and rotation file)")
	overlay := fs.Bool("overlay", false, "Save an overlay of the fields (overrides config)")
	layout := fs.String("layout", "", "Field layout, rotated or grid (overrides config)")
	areaPath := fs.String("area", "", "ROI file of the area to keep fields from")
	fs.Parse(args)

	if *inputDir == "" || len(channels) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["size"] {
		cfg.Fields.Size = *size
	}
	if set["overlap"] {
		cfg.Fields.Overlap = *overlap
	}
	if set["rotation"] {
		cfg.Fields.Rotation = rotation
	}
	if set["overlay"] {
		cfg.Output.SaveOverlay = *overlay
	}
	if set["layout"] {
		cfg.Fields.Layout = *layout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	params := &separation.Params{
		InputDir:       *inputDir,
		Channels:       channels,
		FieldSize:      cfg.Fields.Size,
		FieldOverlap:   cfg.Fields.Overlap,
		Calibration:    cfg.Calibration,
		Rotation:       cfg.Fields.Rotation,
		BlankThreshold: cfg.Region.BlankThreshold,
		Tolerance:      cfg.Region.ContainmentTolerance,
		SkipCleanup:    cfg.Region.SkipCleanup,
		Normalize:      cfg.Output.Normalize,
		Saturation:     cfg.Output.Saturation,
		SaveOverlay:    cfg.Output.SaveOverlay,
		Layout:         cfg.Fields.Layout,
		Logger:         logger,
	}
	if *areaPath != "" {
		area, err := openUnion(*areaPath)
		if err != nil {
			return err
		}
		params.Area = area
	}

	separator := separation.NewSeparator(params)
	startTime := time.Now()
	if err := separator.Process(); err != nil {
		return err
	}

	res := separator.Result()
	fmt.Printf("Separated %d fields of view in %.2f seconds\n", len(res.Fields), time.Since(startTime).Seconds())
	fmt.Printf("Field size: %d px, overlap: %d px, rotation: %.2f degrees\n", res.FieldSize, res.FieldOverlap, res.Rotation)
	fmt.Printf("Fields saved to: %s\n", separator.OutputDir())
	return nil
}

func runCompare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Configuration file")
	pathA := fs.String("a", "", "First segmentation image")
	pathB := fs.String("b", "", "Second segmentation image")
	background := fs.Bool("background", false, "Compare the unsegmented pixels inside the boundary")
	boundaryPath := fs.String("boundary", "", "ROI file holding the field boundary")
	relabeled := fs.String("relabeled", "", "Labeling directory to score every relabeled field in")
	csvPath := fs.String("csv", "", "Write the relabeled field scores to this CSV file")
	fs.Parse(args)

	if *relabeled == "" && (*pathA == "" || *pathB == "") {
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	if *relabeled != "" {
		scores, err := segmentation.Reproducibility(*relabeled, cfg.Region.ForegroundThreshold, logger)
		if err != nil {
			return err
		}
		for _, sc := range scores {
			fmt.Printf("Field %d (%s vs %s): Dice %.4f, Jaccard %.4f\n", sc.Field, sc.Rater1, sc.Rater2, sc.Dice, sc.Jaccard)
		}
		if *csvPath == "" {
			return nil
		}
		return segmentation.WriteScores(*csvPath, scores)
	}

	segA, err := imageio.LoadGray(*pathA, cfg.Calibration)
	if err != nil {
		return err
	}
	segB, err := imageio.LoadGray(*pathB, cfg.Calibration)
	if err != nil {
		return err
	}

	opts := segmentation.Options{Foreground: !*background, Threshold: cfg.Region.ForegroundThreshold}
	if *boundaryPath != "" {
		window, err := openUnion(*boundaryPath)
		if err != nil {
			return err
		}
		opts.Window = window
	}

	sim, err := segmentation.Compare(segA, segB, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Dice: %.4f\n", sim.Dice)
	fmt.Printf("Jaccard: %.4f\n", sim.Jaccard)
	return nil
}

// openUnion reads an ROI file and merges its regions into one, nil when the
// file holds none
func openUnion(path string) (*roi.Region, error) {
	set, err := roifile.Open(path)
	if err != nil {
		return nil, err
	}
	regions := set.Regions()
	if len(regions) == 0 {
		return nil, nil
	}
	union, err := roi.Union(regions...)
	if err != nil {
		return nil, err
	}
	return &union, nil
}

func runAssign(args []string) error {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Configuration file")
	roiPath := fs.String("rois", "", "ROI file of the fields to assign")
	researchers := fs.String("researchers", "", "Comma separated researcher initials (overrides config)")
	seed := fs.Uint64("seed", 0, "Shuffle seed (overrides config)")
	fieldsDir := fs.String("fields", "", "Directory with one subdirectory of field images per marker")
	outDir := fs.String("out", "", "Directory for the researcher folders (default: the fields directory)")
	fs.Parse(args)

	if *roiPath == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["researchers"] {
		cfg.Assignment.Researchers = splitList(*researchers)
	}
	if set["seed"] {
		cfg.Assignment.Seed = *seed
	}

	rois, err := roifile.Open(*roiPath)
	if err != nil {
		return err
	}
	assignments, err := assignment.Assign(rois.Names(), cfg.Assignment.Researchers, cfg.Assignment.Seed)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		fmt.Printf("%s: %s\n", a.Researcher, strings.Join(a.Fields, ", "))
	}

	if *fieldsDir == "" {
		return nil
	}
	markers, err := markerDirs(*fieldsDir)
	if err != nil {
		return err
	}
	dst := *outDir
	if dst == "" {
		dst = *fieldsDir
	}
	logger.Info("linking fields", slog.Int("markers", len(markers)), slog.String("out", dst))
	return assignment.Link(dst, assignments, markers)
}

// markerDirs lists the marker subdirectories of a fields directory
func markerDirs(dir string) ([]assignment.MarkerDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	markers := make([]assignment.MarkerDir, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "Researcher-") {
			continue
		}
		markers = append(markers, assignment.MarkerDir{Marker: e.Name(), Dir: filepath.Join(dir, e.Name())})
	}
	return markers, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runRelabel(args []string) error {
	fs := flag.NewFlagSet("relabel", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Configuration file")
	dir := fs.String("dir", "", "Directory holding the Researcher- folders")
	relabeler := fs.String("relabeler", "", "Initials of the researcher labeling a second time")
	percent := fs.Float64("percent", 0, "Percentage of each researcher's fields to relabel (overrides config)")
	seed := fs.Uint64("seed", 0, "Shuffle seed (overrides config)")
	boundary := fs.String("boundary", "", "Field boundary file to copy (default: *FieldBoundary.yaml in the directory)")
	fs.Parse(args)

	if *dir == "" || *relabeler == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["percent"] {
		cfg.Assignment.RelabelPercent = *percent
	}
	if set["seed"] {
		cfg.Assignment.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	boundaryPath := *boundary
	if boundaryPath == "" {
		if matches, _ := filepath.Glob(filepath.Join(*dir, "*FieldBoundary.yaml")); len(matches) > 0 {
			boundaryPath = matches[0]
		}
	}

	assignments, err := assignment.ReadAssignments(*dir)
	if err != nil {
		return err
	}
	picks, err := assignment.SelectForRelabel(assignments, cfg.Assignment.RelabelPercent/100, cfg.Assignment.Seed)
	if err != nil {
		return err
	}
	for i, p := range picks {
		fmt.Printf("%d: %s (%s)\n", i+1, p.Field, p.Researcher)
	}

	logger.Info("linking relabel fields",
		slog.Int("fields", len(picks)),
		slog.String("relabeler", *relabeler),
		slog.String("boundary", boundaryPath))
	return assignment.LinkRelabel(*dir, *relabeler, picks, boundaryPath)
}

func runRotate(args []string) error {
	fs := flag.NewFlagSet("rotate", flag.ExitOnError)
	input := fs.String("input", "", "Tile scan to straighten")
	degrees := fs.Float64("degrees", 0, "Clockwise rotation in degrees")
	outputDir := fs.String("output", "", "Output directory (default: next to the input)")
	fs.Parse(args)

	if *input == "" {
		fs.Usage()
		os.Exit(1)
	}

	img, err := imageio.Load(*input)
	if err != nil {
		return err
	}
	dir := *outputDir
	if dir == "" {
		dir = filepath.Dir(*input)
	}
	base := filepath.Base(*input)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	rotated := imageio.Rotate(img, *degrees)
	out := filepath.Join(dir, name+"_rotated.tif")
	if err := imageio.SaveTIFF(rotated, out); err != nil {
		return err
	}
	if err := imageio.WriteRotation(dir, name, *degrees); err != nil {
		return err
	}
	fmt.Printf("Rotated %s by %s degrees to %s\n", base, strconv.FormatFloat(*degrees, 'g', -1, 64), out)
	return nil
}

func runInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	output := fs.String("output", "config.yaml", "Path of the configuration file to write")
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	if _, err := os.Stat(*output); err == nil && !*force {
		return fmt.Errorf("%s already exists, use -force to overwrite", *output)
	}
	if err := config.CreateDefaultConfigFile(*output); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to: %s\n", *output)
	return nil
}
