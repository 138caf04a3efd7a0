// Package boundary reads district and mouza boundaries from GeoJSON and turns
// them into geometry features with resolved display names.
package boundary

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"mouzamap.org/internal/geometry"
)

// ErrNoFeatures is returned when a document decodes but holds no features.
var ErrNoFeatures = errors.New("geojson document has no features")

const maxDocumentSize = 256 * 1024 * 1024

// Decode reads a GeoJSON FeatureCollection or single Feature from r, which
// may be gzip compressed. Names are resolved from nameKeys in order.
//
// Well-formed documents are decoded with orb. If that fails, features are
// decoded one at a time with a lenient reader that drops vertices which are
// missing or non-numeric instead of rejecting the whole document.
func Decode(r io.Reader, nameKeys []string) (geometry.FeatureCollection, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	} else {
		r = br
	}

	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading geojson: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("geojson document exceeds size limit of %d bytes", maxDocumentSize)
	}

	var fc geometry.FeatureCollection
	if strict, err := decodeStrict(data); err == nil {
		for _, f := range strict.Features {
			fc = append(fc, fromOrb(f, nameKeys))
		}
	} else {
		fc, err = decodeLenient(data, nameKeys)
		if err != nil {
			return nil, err
		}
	}

	if len(fc) == 0 {
		return nil, ErrNoFeatures
	}
	return fc, nil
}

func decodeStrict(data []byte) (*geojson.FeatureCollection, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if strings.EqualFold(probe.Type, "Feature") {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	}
	return geojson.UnmarshalFeatureCollection(data)
}

func fromOrb(f *geojson.Feature, nameKeys []string) geometry.Feature {
	props := map[string]any(f.Properties)
	out := geometry.Feature{
		Name:       geometry.ResolveName(props, nameKeys),
		Properties: props,
	}

	switch g := f.Geometry.(type) {
	case orb.Polygon:
		out.Geometry = geometry.NewPolygon(ringsFromOrb(g)...)
	case orb.MultiPolygon:
		polys := make([][]geometry.Ring, 0, len(g))
		for _, p := range g {
			polys = append(polys, ringsFromOrb(p))
		}
		out.Geometry = geometry.NewMultiPolygon(polys...)
	}
	return out
}

func ringsFromOrb(p orb.Polygon) []geometry.Ring {
	rings := make([]geometry.Ring, 0, len(p))
	for _, r := range p {
		ring := make(geometry.Ring, 0, len(r))
		for _, pt := range r {
			ring = append(ring, geometry.Point{Lat: pt.Lat(), Lng: pt.Lon()})
		}
		rings = append(rings, ring)
	}
	return rings
}

type lenientFeature struct {
	Properties map[string]any `json:"properties"`
	Geometry   *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

func decodeLenient(data []byte, nameKeys []string) (geometry.FeatureCollection, error) {
	var doc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}

	raw := doc.Features
	if strings.EqualFold(doc.Type, "Feature") {
		raw = []json.RawMessage{data}
	}

	fc := make(geometry.FeatureCollection, 0, len(raw))
	for _, msg := range raw {
		var lf lenientFeature
		if err := json.Unmarshal(msg, &lf); err != nil {
			// A feature that is not even an object carries nothing usable.
			continue
		}
		f := geometry.Feature{
			Name:       geometry.ResolveName(lf.Properties, nameKeys),
			Properties: lf.Properties,
		}
		if lf.Geometry != nil {
			var coords any
			_ = json.Unmarshal(lf.Geometry.Coordinates, &coords)
			switch strings.ToLower(lf.Geometry.Type) {
			case "polygon":
				rings, skipped := ringsFromAny(coords)
				f.Geometry = geometry.NewPolygon(rings...)
				f.Skipped = skipped
			case "multipolygon":
				parts, _ := coords.([]any)
				polys := make([][]geometry.Ring, 0, len(parts))
				for _, part := range parts {
					rings, skipped := ringsFromAny(part)
					polys = append(polys, rings)
					f.Skipped += skipped
				}
				f.Geometry = geometry.NewMultiPolygon(polys...)
			}
		}
		fc = append(fc, f)
	}
	return fc, nil
}

func ringsFromAny(v any) ([]geometry.Ring, int) {
	arr, _ := v.([]any)
	skipped := 0
	rings := make([]geometry.Ring, 0, len(arr))
	for _, r := range arr {
		verts, _ := r.([]any)
		ring := make(geometry.Ring, 0, len(verts))
		for _, vv := range verts {
			pair, ok := vv.([]any)
			if !ok || len(pair) < 2 {
				skipped++
				continue
			}
			lng, okLng := toFloat(pair[0])
			lat, okLat := toFloat(pair[1])
			if !okLng || !okLat {
				skipped++
				continue
			}
			ring = append(ring, geometry.Point{Lat: lat, Lng: lng})
		}
		rings = append(rings, ring)
	}
	return rings, skipped
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
