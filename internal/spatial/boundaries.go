package spatial

import (
	"io"

	"github.com/paulmach/orb/geojson"

	"weather-explorer/internal/models"
)

// ParseBoundaries decodes a shapefile-derived GeoJSON FeatureCollection of
// SA4 boundaries. Feature properties follow the ABS 2021 release naming
// (SA4_CODE21, SA4_NAME21, STE_NAME21, AREASQKM21).
func ParseBoundaries(r io.Reader) ([]*models.Region, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, &models.ValidationError{
			Field:   "boundaries",
			Message: "undecodable boundary GeoJSON: " + err.Error(),
		}
	}

	regions := make([]*models.Region, 0, len(fc.Features))
	for _, feature := range fc.Features {
		code := propString(feature, "SA4_CODE21")
		if code == "" {
			return nil, &models.ValidationError{
				Field:   "SA4_CODE21",
				Message: "boundary feature missing region code",
			}
		}

		geometry, err := geojson.NewGeometry(feature.Geometry).MarshalJSON()
		if err != nil {
			return nil, err
		}

		region := &models.Region{
			SA4Code:   code,
			Name:      propString(feature, "SA4_NAME21"),
			StateName: propString(feature, "STE_NAME21"),
			Geometry:  geometry,
		}
		if area, ok := propFloat(feature, "AREASQKM21"); ok {
			region.AreaSqKm = &area
		}

		regions = append(regions, region)
	}

	return regions, nil
}

func propString(feature *geojson.Feature, key string) string {
	if v, ok := feature.Properties[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func propFloat(feature *geojson.Feature, key string) (float64, bool) {
	if v, ok := feature.Properties[key]; ok {
		if f, ok := v.(float64); ok {
			return f, true
		}
	}
	return 0, false
}
