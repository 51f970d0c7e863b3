package decoder

import (
	"fmt"
	"image"
	"os"

	"gopkg.in/yaml.v3"
)

// Region is a sub-rectangle of a frame in normalized coordinates (0..1).
type Region struct {
	Name   string  `yaml:"name"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Rect converts the region to pixel coordinates for a width x height frame.
func (r Region) Rect(width, height int) image.Rectangle {
	x0 := int(r.X * float64(width))
	y0 := int(r.Y * float64(height))
	x1 := int((r.X + r.Width) * float64(width))
	y1 := int((r.Y + r.Height) * float64(height))
	return image.Rect(x0, y0, x1, y1)
}

// Validate checks that the region lies inside the unit square.
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region %q: width and height must be positive", r.Name)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > 1 || r.Y+r.Height > 1 {
		return fmt.Errorf("region %q: must lie within the frame", r.Name)
	}
	return nil
}

// Strategy is the ordered list of regions attempted for every frame.
type Strategy []Region

// FullFrame only decodes the whole image.
func FullFrame() Strategy {
	return Strategy{{Name: "full", Width: 1, Height: 1}}
}

// DefaultStrategy tries the whole frame, its four quadrants and the centre.
// Single-result decoders pick up more barcodes per frame this way.
func DefaultStrategy() Strategy {
	return Strategy{
		{Name: "full", Width: 1, Height: 1},
		{Name: "top-left", Width: 0.5, Height: 0.5},
		{Name: "top-right", X: 0.5, Width: 0.5, Height: 0.5},
		{Name: "bottom-left", Y: 0.5, Width: 0.5, Height: 0.5},
		{Name: "bottom-right", X: 0.5, Y: 0.5, Width: 0.5, Height: 0.5},
		{Name: "center", X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5},
	}
}

type strategyFile struct {
	Regions []Region `yaml:"regions"`
}

// LoadStrategy reads a YAML file of the form
//
//	regions:
//	  - {name: full, x: 0, y: 0, width: 1, height: 1}
func LoadStrategy(path string) (Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region file: %w", err)
	}
	return ParseStrategy(data)
}

// ParseStrategy decodes and validates a YAML region list.
func ParseStrategy(data []byte) (Strategy, error) {
	var file strategyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse region file: %w", err)
	}
	if len(file.Regions) == 0 {
		return nil, fmt.Errorf("region file defines no regions")
	}
	for _, r := range file.Regions {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return Strategy(file.Regions), nil
}
