// Package slices loads numbered 2D slice files into a volume image.
package slices

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"gonum.org/v1/gonum/stat"

	"sightdata/internal/models"
	"sightdata/pkg/dtype"
	"sightdata/pkg/imagedata"
)

// Extensions lists the slice file types recognized by Load.
var Extensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp"}

// Params controls slice loading.
type Params struct {
	// SliceGap is the physical distance between consecutive slices in mm
	SliceGap float64

	// PixelSpacing is the in-plane size of a pixel in mm
	PixelSpacing float64

	// NumCores bounds the number of slices converted concurrently
	NumCores int
}

// DefaultParams returns unit spacing and every core.
func DefaultParams() Params {
	return Params{SliceGap: 1, PixelSpacing: 1, NumCores: runtime.NumCPU()}
}

// Loader reads slice directories.
type Loader struct {
	params Params
	logger *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used to report progress.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// NewLoader returns a loader with the given parameters.
func NewLoader(params Params, opts ...Option) *Loader {
	if params.NumCores < 1 {
		params.NumCores = 1
	}
	l := &Loader{params: params, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func isSlice(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// extractNumber returns the number made of the digits of the base name,
// 0 when there are none.
func extractNumber(filename string) int {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	return img, err
}

// Load reads every slice file of dir ordered by the number in its name.
// All slices must have the same size.
func (l *Loader) Load(dir string) (*models.Stack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading slice directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && isSlice(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}

	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})

	stack := &models.Stack{PixelSpacing: l.params.PixelSpacing, SliceGap: l.params.SliceGap}
	for i, name := range files {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}

		bounds := img.Bounds()
		if i == 0 {
			stack.Width, stack.Height = bounds.Dx(), bounds.Dy()
		} else if bounds.Dx() != stack.Width || bounds.Dy() != stack.Height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d",
				name, bounds.Dx(), bounds.Dy(), stack.Width, stack.Height)
		}

		stack.Slices = append(stack.Slices, models.Slice{
			Image:    img,
			Index:    i,
			Number:   extractNumber(name),
			Filename: name,
			Position: float64(i) * l.params.SliceGap,
		})
	}

	l.logger.Info("slices loaded",
		zap.String("dir", dir),
		zap.Int("count", len(stack.Slices)),
		zap.Int("width", stack.Width),
		zap.Int("height", stack.Height))
	return stack, nil
}

// ToImage converts a stack into a float32 gray scale volume with values in
// [0, 1]. Slice i becomes z = i; spacing comes from the stack.
func (l *Loader) ToImage(stack *models.Stack, opts ...imagedata.Option) (*imagedata.Image, error) {
	if stack.Depth() == 0 {
		return nil, fmt.Errorf("empty slice stack")
	}

	img := imagedata.New(opts...)
	size := [3]int{stack.Width, stack.Height, stack.Depth()}
	if _, err := img.Resize(size, dtype.Float32Type, imagedata.GrayScale, true); err != nil {
		return nil, err
	}
	img.SetSpacing([3]float64{stack.PixelSpacing, stack.PixelSpacing, stack.SliceGap})

	lock, err := img.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	values, err := imagedata.Values[float32](img)
	if err != nil {
		return nil, err
	}

	// Slices are converted in parallel, each worker owning a contiguous
	// range of z planes.
	plane := stack.Width * stack.Height
	workers := min(l.params.NumCores, stack.Depth())
	chunk := (stack.Depth() + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < stack.Depth(); start += chunk {
		end := min(start+chunk, stack.Depth())
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for z := start; z < end; z++ {
				imageToFloat(stack.Slices[z].Image, values[z*plane:(z+1)*plane], stack.Width)
			}
		}(start, end)
	}
	wg.Wait()

	if ce := l.logger.Check(zap.DebugLevel, "volume built"); ce != nil {
		samples := make([]float64, len(values))
		for i, v := range values {
			samples[i] = float64(v)
		}
		mean, std := stat.MeanStdDev(samples, nil)
		ce.Write(zap.Stringer("image", img), zap.Float64("mean", mean), zap.Float64("stddev", std))
	}
	return img, nil
}

// imageToFloat writes the luminance of img into dst, row by row.
func imageToFloat(img image.Image, dst []float32, width int) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			dst[(y-bounds.Min.Y)*width+(x-bounds.Min.X)] = float32(g.Y) / 65535
		}
	}
}

// LoadImage loads dir and converts it in one step.
func (l *Loader) LoadImage(dir string, opts ...imagedata.Option) (*imagedata.Image, error) {
	stack, err := l.Load(dir)
	if err != nil {
		return nil, err
	}
	return l.ToImage(stack, opts...)
}
