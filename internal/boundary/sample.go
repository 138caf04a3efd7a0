package boundary

import "mouzamap.org/internal/geometry"

// SampleDistricts returns a small district collection shaped like a real
// export: names under DISTRICT, one district with a hole and one split in
// two parts.
func SampleDistricts() geometry.FeatureCollection {
	return geometry.FeatureCollection{
		sampleFeature("DISTRICT", "Tawang", geometry.NewPolygon(
			box(27.50, 91.60, 27.90, 92.10),
		)),
		sampleFeature("DISTRICT", "West Kameng", geometry.NewPolygon(
			box(27.00, 92.10, 27.70, 92.90),
			// Reserved forest carved out of the district.
			box(27.30, 92.45, 27.40, 92.55),
		)),
		sampleFeature("DISTRICT", "Lohit", geometry.NewMultiPolygon(
			[]geometry.Ring{box(27.60, 95.90, 28.10, 96.50)},
			[]geometry.Ring{box(27.40, 96.60, 27.55, 96.80)},
		)),
	}
}

// SampleMouzas returns mouzas for SampleDistricts, keyed by MOUZA_NAME.
func SampleMouzas() geometry.FeatureCollection {
	return geometry.FeatureCollection{
		sampleFeature("MOUZA_NAME", "Lumla", geometry.NewPolygon(box(27.52, 91.65, 27.62, 91.80))),
		sampleFeature("MOUZA_NAME", "Jang", geometry.NewPolygon(box(27.55, 91.95, 27.65, 92.05))),
		sampleFeature("MOUZA_NAME", "Kitpi", geometry.NewPolygon(box(27.70, 91.80, 27.85, 91.95))),
		sampleFeature("MOUZA_NAME", "Bomdila", geometry.NewPolygon(box(27.20, 92.30, 27.30, 92.45))),
		sampleFeature("MOUZA_NAME", "Rupa", geometry.NewPolygon(box(27.10, 92.60, 27.25, 92.75))),
		sampleFeature("MOUZA_NAME", "Sessa Reserve", geometry.NewPolygon(box(27.33, 92.48, 27.37, 92.52))),
		sampleFeature("MOUZA_NAME", "Tezu", geometry.NewPolygon(box(27.80, 96.05, 27.95, 96.25))),
		sampleFeature("MOUZA_NAME", "Sunpura", geometry.NewPolygon(box(27.42, 96.65, 27.50, 96.75))),
		sampleFeature("MOUZA_NAME", "Wakro", geometry.NewPolygon(box(27.65, 96.30, 27.75, 96.45))),
	}
}

func sampleFeature(key, name string, g geometry.Geometry) geometry.Feature {
	return geometry.Feature{
		Name:       name,
		Properties: map[string]any{key: name},
		Geometry:   g,
	}
}

func box(minLat, minLng, maxLat, maxLng float64) geometry.Ring {
	return geometry.Ring{
		{Lat: minLat, Lng: minLng},
		{Lat: minLat, Lng: maxLng},
		{Lat: maxLat, Lng: maxLng},
		{Lat: maxLat, Lng: minLng},
		{Lat: minLat, Lng: minLng},
	}
}
