package talkie

import (
	"hash/fnv"
	"math"
)

const metersPerDegree = 111320.0

// RadarPoint is an offset from the radar center. X grows east, Y grows north.
type RadarPoint struct {
	X float64
	Y float64
}

// Distance is the point's distance from the center.
func (p RadarPoint) Distance() float64 {
	return math.Hypot(p.X, p.Y)
}

// Project places remote relative to local on a radar of the given radius,
// where radius corresponds to rangeMeters. Points beyond the range are pinned
// to the rim. ok is false when either position is unknown.
func Project(local, remote *Coordinates, radius, rangeMeters float64) (p RadarPoint, ok bool) {
	if local == nil || remote == nil || rangeMeters <= 0 {
		return RadarPoint{}, false
	}
	north := (remote.Lat - local.Lat) * metersPerDegree
	east := (remote.Lng - local.Lng) * metersPerDegree * math.Cos(local.Lat*math.Pi/180)

	scale := radius / rangeMeters
	p = RadarPoint{X: east * scale, Y: north * scale}
	if d := p.Distance(); d > radius {
		p.X *= radius / d
		p.Y *= radius / d
	}
	return p, true
}

// FallbackPoint derives a stable position from id alone, between 30% and 90%
// of radius.
func FallbackPoint(id string, radius float64) RadarPoint {
	h := fnv.New32a()
	h.Write([]byte(id))
	sum := h.Sum32()

	angle := float64(sum%360) * math.Pi / 180
	dist := (0.3 + float64((sum>>16)%1000)/1000*0.6) * radius
	return RadarPoint{X: math.Cos(angle) * dist, Y: math.Sin(angle) * dist}
}

// PlaceBlips positions every record, projecting where both fixes are known.
func PlaceBlips(local *Coordinates, records []PresenceRecord, radius, rangeMeters float64) []RadarBlip {
	blips := make([]RadarBlip, 0, len(records))
	for _, rec := range records {
		point, ok := Project(local, rec.Coordinates, radius, rangeMeters)
		if !ok {
			point = FallbackPoint(rec.ParticipantID, radius)
		}
		blips = append(blips, RadarBlip{Record: rec, Point: point, Fallback: !ok})
	}
	return blips
}
