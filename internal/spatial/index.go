// Package spatial resolves station coordinates to their containing SA4
// statistical-area polygons.
package spatial

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"weather-explorer/internal/models"
)

type indexedRegion struct {
	code     string
	geometry orb.Geometry
	bound    orb.Bound
}

// Index answers point-in-polygon containment queries against the immutable
// SA4 boundary set. All geometries are WGS84 (EPSG:4326), matching the
// station roster's coordinates.
type Index struct {
	regions []indexedRegion
}

// NewIndex builds an index over the given regions. Regions whose geometry is
// missing or undecodable are rejected.
func NewIndex(regions []*models.Region) (*Index, error) {
	idx := &Index{regions: make([]indexedRegion, 0, len(regions))}

	for _, region := range regions {
		if len(region.Geometry) == 0 {
			return nil, &models.ValidationError{
				Field:   "geometry",
				Value:   region.SA4Code,
				Message: "region has no geometry",
			}
		}

		geom, err := geojson.UnmarshalGeometry(region.Geometry)
		if err != nil {
			return nil, &models.ValidationError{
				Field:   "geometry",
				Value:   region.SA4Code,
				Message: "undecodable region geometry: " + err.Error(),
			}
		}

		g := geom.Geometry()
		idx.regions = append(idx.regions, indexedRegion{
			code:     region.SA4Code,
			geometry: g,
			bound:    g.Bound(),
		})
	}

	// Overlapping boundaries are a known ambiguity in the source data: the
	// first containing polygon wins, so iteration order must be deterministic.
	// Region code ascending.
	sort.Slice(idx.regions, func(i, j int) bool {
		return idx.regions[i].code < idx.regions[j].code
	})

	return idx, nil
}

// Resolve returns the code of the region whose polygon contains the point,
// or ok=false when no region does. "No containing region" is a valid outcome
// (offshore stations, points just outside every boundary), not an error.
func (idx *Index) Resolve(lon, lat float64) (string, bool) {
	point := orb.Point{lon, lat}

	for _, region := range idx.regions {
		if !region.bound.Contains(point) {
			continue
		}
		if contains(region.geometry, point) {
			return region.code, true
		}
	}

	return "", false
}

// Size returns the number of indexed regions.
func (idx *Index) Size() int {
	return len(idx.regions)
}

func contains(geometry orb.Geometry, point orb.Point) bool {
	switch g := geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, point)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, point)
	default:
		return false
	}
}
