// Package sceneio reads extracted SLSTR product directories into raster
// grids via GDAL's NetCDF driver.
package sceneio

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/couchcryptid/lst-ingest/internal/domain"
)

// NetCDF files inside an extracted SL_2_LST___ product.
const (
	lstFile      = "LST_in.nc"
	flagsFile    = "flags_in.nc"
	geodeticFile = "geodetic_in.nc"
)

// Subdataset variable names.
const (
	lstVar = "LST"
	latVar = "latitude_in"
	lonVar = "longitude_in"
)

var registerOnce sync.Once

// Reader loads the temperature, geodetic, and cloud flag grids of an
// extracted scene.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a scene reader. GDAL drivers are registered on first
// use, process-wide.
func NewReader(logger *slog.Logger) *Reader {
	registerOnce.Do(godal.RegisterAll)
	return &Reader{logger: logger}
}

// ReadGrids locates the product's NetCDF files under dir and reads the
// temperature, coordinate, and cloud flag grids. Cloud flag variables
// missing from the product are skipped; the three core grids are required.
func (r *Reader) ReadGrids(dir string) (domain.RawSceneGrids, error) {
	files, err := locateFiles(dir)
	if err != nil {
		return domain.RawSceneGrids{}, err
	}

	tempK, err := readVar(files[lstFile], lstVar)
	if err != nil {
		return domain.RawSceneGrids{}, fmt.Errorf("read %s: %w", lstVar, err)
	}
	lat, err := readVar(files[geodeticFile], latVar)
	if err != nil {
		return domain.RawSceneGrids{}, fmt.Errorf("read %s: %w", latVar, err)
	}
	lon, err := readVar(files[geodeticFile], lonVar)
	if err != nil {
		return domain.RawSceneGrids{}, fmt.Errorf("read %s: %w", lonVar, err)
	}

	flags := make(map[string]domain.Grid)
	for _, name := range domain.CloudFlagNames {
		grid, err := readVar(files[flagsFile], name)
		if err != nil {
			r.logger.Debug("cloud flag not present in scene", "flag", name, "error", err)
			continue
		}
		flags[name] = grid
	}

	return domain.RawSceneGrids{
		TemperatureK: tempK,
		PixelLat:     lat,
		PixelLon:     lon,
		Flags:        flags,
	}, nil
}

// locateFiles walks the extracted directory for the three NetCDF files; the
// product zip nests them under the product-title directory.
func locateFiles(dir string) (map[string]string, error) {
	wanted := map[string]string{lstFile: "", flagsFile: "", geodeticFile: ""}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		if existing, ok := wanted[name]; ok && existing == "" {
			wanted[name] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	for name, path := range wanted {
		if path == "" {
			return nil, fmt.Errorf("scene directory %s is missing %s", dir, name)
		}
	}
	return wanted, nil
}

func readVar(ncPath, variable string) (domain.Grid, error) {
	ds, err := godal.Open(fmt.Sprintf("NETCDF:%q:%s", ncPath, variable))
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("variable %s has no raster band", variable)
	}
	band := bands[0]
	xSize := band.Structure().SizeX
	ySize := band.Structure().SizeY

	data := make([]float64, xSize*ySize)
	if err := band.Read(0, 0, data, xSize, ySize); err != nil {
		return nil, err
	}

	grid := make(domain.Grid, ySize)
	for i := range grid {
		grid[i] = data[i*xSize : (i+1)*xSize]
	}
	return grid, nil
}
