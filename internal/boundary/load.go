package boundary

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"mouzamap.org/internal/geometry"
	"mouzamap.org/internal/logging"
)

// LoadFile decodes the GeoJSON file at path. Files ending in .gz, or carrying
// a gzip header, are decompressed transparently.
func LoadFile(path string, nameKeys []string) (geometry.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer logging.SafeCloseWithLogging(f, slog.Default(), "geojson_file")

	fc, err := Decode(f, nameKeys)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return fc, nil
}

// Source describes where district and mouza boundaries come from.
type Source struct {
	DataDir       string
	DistrictsFile string
	MouzasFile    string
	DistrictKeys  []string
	MouzaKeys     []string

	// UseSample serves the built-in sample collections when a data file
	// does not exist.
	UseSample bool
	Logger    *slog.Logger
}

// Collections is the pair of feature collections an index is built from.
type Collections struct {
	Districts geometry.FeatureCollection
	Mouzas    geometry.FeatureCollection
	// Sample is true when either collection came from the built-in sample.
	Sample bool
}

// Load reads both collections.
func (s Source) Load() (Collections, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	districtKeys := s.DistrictKeys
	if len(districtKeys) == 0 {
		districtKeys = geometry.DistrictNameKeys
	}
	mouzaKeys := s.MouzaKeys
	if len(mouzaKeys) == 0 {
		mouzaKeys = geometry.MouzaNameKeys
	}

	var out Collections
	var err error
	var sample bool

	out.Districts, sample, err = s.loadOne(logger, s.DistrictsFile, districtKeys, SampleDistricts)
	if err != nil {
		return Collections{}, err
	}
	out.Sample = sample

	out.Mouzas, sample, err = s.loadOne(logger, s.MouzasFile, mouzaKeys, SampleMouzas)
	if err != nil {
		return Collections{}, err
	}
	out.Sample = out.Sample || sample

	skipped := 0
	for _, f := range out.Districts {
		skipped += f.Skipped
	}
	for _, f := range out.Mouzas {
		skipped += f.Skipped
	}
	if skipped > 0 {
		logger.Warn("dropped malformed vertices while loading boundaries",
			slog.Int("vertices", skipped))
	}

	logger.Info("boundaries loaded",
		slog.Int("districts", len(out.Districts)),
		slog.Int("mouzas", len(out.Mouzas)),
		slog.Bool("sample", out.Sample))
	return out, nil
}

func (s Source) loadOne(logger *slog.Logger, name string, keys []string, sample func() geometry.FeatureCollection) (geometry.FeatureCollection, bool, error) {
	path := name
	if path != "" && s.DataDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(s.DataDir, path)
	}

	if path == "" {
		if s.UseSample {
			return sample(), true, nil
		}
		return nil, false, errors.New("no boundary file configured")
	}

	fc, err := LoadFile(path, keys)
	if err != nil {
		if s.UseSample && errors.Is(err, fs.ErrNotExist) {
			logger.Warn("boundary file not found, using sample data", slog.String("path", path))
			return sample(), true, nil
		}
		return nil, false, err
	}
	return fc, false, nil
}
