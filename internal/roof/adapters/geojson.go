// Package adapters converts between reconstruction results and GeoJSON.
package adapters

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/rooftop/internal/roof"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

// FacesToFeatureCollection returns one Polygon feature per output face,
// carrying the face attributes as properties. Heights are in the
// elevation_* properties; geometries stay 2D.
func FacesToFeatureCollection(res *roof.Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if res == nil {
		return fc
	}
	for _, fa := range res.Faces {
		feature := geojson.NewFeature(fa.Polygon)
		feature.ID = fa.RingID
		feature.Properties = geojson.Properties{
			"run_id":        res.RunID.String(),
			"face_id":       int(fa.FaceID),
			"plane_id":      fa.PlaneID,
			"ring_id":       fa.RingID,
			"rms":           fa.RMS,
			"roof_type":     string(fa.RoofType),
			"area":          fa.Area,
			"slope_deg":     fa.SlopeDeg,
			"azimuth_deg":   fa.AzimuthDeg,
			"point_count":   fa.PointCount,
			"elevation_min": fa.Elevation.Min,
			"elevation_p50": fa.Elevation.P50,
			"elevation_p70": fa.Elevation.P70,
			"elevation_max": fa.Elevation.Max,
			"fallback":      res.Fallback,
		}
		fc.Append(feature)
	}
	return fc
}

// FootprintFromGeometry converts a Polygon or MultiPolygon into a validated
// footprint. A MultiPolygon contributes its largest part.
func FootprintFromGeometry(g orb.Geometry) (model.Footprint, error) {
	var poly orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		poly = v
	case orb.MultiPolygon:
		best := math.Inf(-1)
		for _, p := range v {
			if a := planar.Area(p); a > best {
				best, poly = a, p
			}
		}
	case nil:
		return model.Footprint{}, model.NewStageError("footprint", model.ErrDegenerateGeometry, "no geometry")
	default:
		return model.Footprint{}, model.NewStageError("footprint", model.ErrDegenerateGeometry,
			"unsupported geometry %s", g.GeoJSONType())
	}
	if len(poly) == 0 {
		return model.Footprint{}, model.NewStageError("footprint", model.ErrDegenerateGeometry, "empty polygon")
	}
	return model.NewFootprint(poly)
}

// FootprintFromFeature reads the footprint from a GeoJSON feature.
func FootprintFromFeature(f *geojson.Feature) (model.Footprint, error) {
	if f == nil {
		return model.Footprint{}, fmt.Errorf("nil feature")
	}
	return FootprintFromGeometry(f.Geometry)
}
