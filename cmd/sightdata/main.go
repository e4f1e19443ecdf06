// sightdata turns a directory of numbered 2D slices into a surface mesh.
//
// The slices are stacked into a float32 volume, the boundary of the voxels
// above the threshold is extracted, point normals are generated and the
// mesh is written as a compressed CBOR stream readable by codec.ReadFile.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"sightdata/internal/slices"
	"sightdata/pkg/codec"
	"sightdata/pkg/compress"
	"sightdata/pkg/config"
	"sightdata/pkg/imagedata"
	"sightdata/pkg/logging"
	"sightdata/pkg/memory"
	"sightdata/pkg/mesh"
	"sightdata/pkg/mesher"
	"sightdata/pkg/meshtools"
	"sightdata/pkg/visualization"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	input         string
	configPath    string
	writeConfig   string
	output        string
	threshold     float64
	extractSlices bool
	slicesDir     string
	dev           bool
	logFile       string
}

func run(args []string, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("sightdata", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.input, "input", "i", "", "directory containing the numbered 2D slices")
	flagSet.StringVarP(&opts.configPath, "config", "c", "config.yaml", "YAML configuration file, defaults are used when missing")
	flagSet.StringVar(&opts.writeConfig, "write-config", "", "write the default configuration to this path and exit")
	flagSet.StringVarP(&opts.output, "output", "o", "output.sdcb", "encoded mesh file")
	flagSet.Float64VarP(&opts.threshold, "threshold", "t", 0, "normalized intensity of inside voxels (overrides mesher.threshold)")
	flagSet.BoolVar(&opts.extractSlices, "extract-slices", false, "save the loaded volume as slices along every axis")
	flagSet.StringVar(&opts.slicesDir, "slices-dir", "extracted_slices", "directory receiving the extracted slices")
	flagSet.BoolVar(&opts.dev, "dev", false, "debug level, human readable logs")
	flagSet.StringVar(&opts.logFile, "log-file", "", "rotating log file (overrides logging.file)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.writeConfig != "" {
		if err := config.CreateDefaultConfigFile(opts.writeConfig); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Default configuration written to %s\n", opts.writeConfig)
		return nil
	}
	if opts.input == "" {
		flagSet.PrintDefaults()
		return errors.New("--input is required")
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("threshold") {
		cfg.Mesher.Threshold = opts.threshold
	}
	if opts.logFile != "" {
		cfg.Logging.File = opts.logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Development: opts.dev,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
		Compress:    cfg.Logging.Compress,
	})
	defer logger.Sync()

	return process(cfg, &opts, logger, stdout)
}

func process(cfg *config.Config, opts *options, logger *zap.Logger, stdout io.Writer) error {
	manager, cleanup, err := cfg.NewManager(memory.WithLogger(logger.Named("memory")))
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	loader := slices.NewLoader(slices.Params{
		SliceGap:     cfg.Processing.SliceGap,
		PixelSpacing: cfg.Processing.PixelSpacing,
		NumCores:     cfg.Processing.NumCores,
	}, slices.WithLogger(logger.Named("slices")))
	img, err := loader.LoadImage(opts.input, imagedata.WithManager(manager))
	if err != nil {
		return err
	}

	if opts.extractSlices {
		if err := extractSlices(img, opts.slicesDir, logger); err != nil {
			return err
		}
	}

	ms := mesher.New(mesher.Params{
		Threshold:   cfg.Mesher.Threshold,
		Triangulate: cfg.Mesher.Triangulate,
		GrowStep:    cfg.Mesh.GrowStep,
	}, mesher.WithLogger(logger.Named("mesher")), mesher.WithMeshOptions(mesh.WithManager(manager)))
	m, err := ms.Extract(img)
	if err != nil {
		return fmt.Errorf("surface extraction failed: %w", err)
	}
	if m.NumCells() == 0 {
		return fmt.Errorf("no voxel reaches threshold %g", cfg.Mesher.Threshold)
	}

	if _, err := m.ShrinkToFit(); err != nil {
		return err
	}
	if cfg.Mesher.Normals {
		if err := meshtools.GeneratePointNormals(m); err != nil {
			return fmt.Errorf("normal generation failed: %w", err)
		}
	}

	lo, hi, err := meshtools.Bounds(m)
	if err != nil {
		return err
	}
	closed, err := meshtools.IsClosed(m)
	if err != nil {
		return err
	}

	tag, err := compress.ParseTag(cfg.Output.Compression)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(opts.output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := codec.WriteFile(opts.output, m, tag); err != nil {
		return err
	}
	written, err := os.Stat(opts.output)
	if err != nil {
		return err
	}

	stats := manager.Stats()
	logger.Info("mesh written",
		zap.String("output", opts.output),
		zap.Int("points", m.NumPoints()),
		zap.Int("cells", m.NumCells()),
		zap.Bool("closed", closed),
		zap.Int("dumps", stats.Dumps),
		zap.Duration("elapsed", time.Since(start)))

	fmt.Fprintf(stdout, "Volume: %v\n", img)
	fmt.Fprintf(stdout, "Mesh: %d points, %d %s cells, closed: %t\n", m.NumPoints(), m.NumCells(), m.CellType(), closed)
	fmt.Fprintf(stdout, "Bounds: (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
	fmt.Fprintf(stdout, "Memory: %s in mesh, %s resident, %s dumped\n",
		humanize.Bytes(uint64(m.AllocatedSizeInBytes())),
		humanize.Bytes(uint64(stats.ResidentBytes)),
		humanize.Bytes(uint64(stats.DumpedBytes)))
	fmt.Fprintf(stdout, "Output: %s (%s, %s)\n", opts.output, humanize.Bytes(uint64(written.Size())), tag)
	fmt.Fprintf(stdout, "Completed in %.2f seconds\n", time.Since(start).Seconds())
	return nil
}

func extractSlices(img *imagedata.Image, dir string, logger *zap.Logger) error {
	viewer, err := visualization.NewViewer(img)
	if err != nil {
		return err
	}
	for _, axis := range []visualization.Axis{visualization.X, visualization.Y, visualization.Z} {
		axisDir := filepath.Join(dir, axis.String())
		n, err := viewer.SaveSliceSequence(axis, axisDir, "png")
		if err != nil {
			logger.Warn("failed to save slices", zap.Stringer("axis", axis), zap.Error(err))
			continue
		}
		logger.Info("slices saved", zap.Stringer("axis", axis), zap.String("dir", axisDir), zap.Int("count", n))
	}
	return nil
}
