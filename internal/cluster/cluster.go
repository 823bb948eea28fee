// Package cluster groups resolved locations for display and throttles how often that grouping is recomputed.
package cluster

import (
	"math"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

// DefaultThreshold is the merge distance in degrees
const DefaultThreshold = 0.5

// Cluster groups records with a single greedy pass.
//
// Records are visited in order. Each unconsumed record seeds a new cluster, then every later
// unconsumed record whose planar distance to the cluster's current centroid is strictly below
// threshold joins it and moves the centroid. Membership therefore depends on input order.
// Records without finite coordinates are ignored.
func Cluster(records []models.LocationRecord, threshold float64) []models.Cluster {
	points := make([]models.LocationRecord, 0, len(records))
	for _, r := range records {
		if r.Resolved() {
			points = append(points, r)
		}
	}

	consumed := make([]bool, len(points))
	clusters := make([]models.Cluster, 0, len(points))

	for i, seed := range points {
		if consumed[i] {
			continue
		}
		consumed[i] = true

		c := models.Cluster{
			Lat:   seed.Lat,
			Lng:   seed.Lng,
			Count: 1,
			IPs:   []string{seed.IP},
			Seed:  seed,
		}

		for j := i + 1; j < len(points); j++ {
			if consumed[j] {
				continue
			}

			candidate := points[j]
			if distance(c.Lat, c.Lng, candidate.Lat, candidate.Lng) >= threshold {
				continue
			}

			c.Count++
			c.IPs = append(c.IPs, candidate.IP)
			n := float64(c.Count)
			c.Lat = (c.Lat*(n-1) + candidate.Lat) / n
			c.Lng = (c.Lng*(n-1) + candidate.Lng) / n
			consumed[j] = true
		}

		clusters = append(clusters, c)
	}

	return clusters
}

// distance is the euclidean distance in degrees, no great-circle correction
func distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := lat2 - lat1
	dLng := lng2 - lng1
	return math.Sqrt(dLat*dLat + dLng*dLng)
}
