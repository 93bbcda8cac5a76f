// Package hashid computes the content-derived identifiers that deduplicate
// events, stations and records across flatfiles.
//
// Identifiers are 160-bit SHA-1 digests over '/'-joined serialized fields,
// rendered as 40 lowercase hex characters. Fields are quantized before
// hashing: a float becomes round(v*10^decimals) serialized in base 10, so
// the text feeding the digest is deterministic on every platform. NaN
// serializes as the literal "nan"; hashing never fails. Collisions are an
// accepted probabilistic risk (about 1e-11 at 19,000 hashes), never
// structurally prevented.
package hashid

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Quantize serializes v at the given decimal precision: round(v*10^decimals)
// in base 10. NaN yields "nan". Values too large for int64 fall back to
// fixed-notation float formatting, which stays deterministic.
func Quantize(v float64, decimals int) string {
	if math.IsNaN(v) {
		return "nan"
	}
	r := math.Round(v * math.Pow10(decimals))
	if math.Abs(r) < 1<<62 {
		return strconv.FormatInt(int64(r), 10)
	}
	return strconv.FormatFloat(r, 'f', 0, 64)
}

// Digest hashes the '/'-joined parts with SHA-1 and returns 40 hex chars.
func Digest(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "/")))
	return hex.EncodeToString(sum[:])
}

// Source carries the stored field values the identity digests derive from.
// Values come from the written record, after sentinel substitution, so an
// out-of-bound longitude hashes as "nan" exactly like an absent one.
type Source struct {
	TableName        string
	PGA              float64
	EventLongitude   float64
	EventLatitude    float64
	HypocenterDepth  float64
	EventTime        string
	StationLongitude float64
	StationLatitude  float64
}

// Triple is the computed identity of one record.
type Triple struct {
	EventID   string
	StationID string
	RecordID  string
}

// Compute derives the identity triple from src. Coordinates quantize at 5
// decimals, depth at 3, PGA at 0; the event time participates as its stored
// string. The record digest additionally binds the table name, so the same
// physical record ingested from two sources stays distinguishable.
func Compute(src Source) Triple {
	var (
		pga   = Quantize(src.PGA, 0)
		evLon = Quantize(src.EventLongitude, 5)
		evLat = Quantize(src.EventLatitude, 5)
		depth = Quantize(src.HypocenterDepth, 3)
		stLon = Quantize(src.StationLongitude, 5)
		stLat = Quantize(src.StationLatitude, 5)
	)
	return Triple{
		EventID:   Digest(evLon, evLat, depth, src.EventTime),
		StationID: Digest(stLon, stLat),
		RecordID:  Digest(src.TableName, pga, evLon, evLat, depth, src.EventTime, stLon, stLat),
	}
}
