package models

import "time"

// TimedFix is a recorded position at a unix timestamp in seconds.
type TimedFix struct {
	Timestamp int64   `json:"time" msgpack:"time"`
	Position  Point3D `json:"position" msgpack:"position"`
}

// Track is one drone's recorded path, ordered by non-decreasing timestamp.
type Track []TimedFix

// TrackPoint is the flat wire shape of a fix.
type TrackPoint struct {
	Time int64   `json:"time" msgpack:"time"`
	Lon  float64 `json:"lon" msgpack:"lon"`
	Lat  float64 `json:"lat" msgpack:"lat"`
	Alt  float64 `json:"alt" msgpack:"alt"`
}

// Points flattens the track into its wire shape.
func (t Track) Points() []TrackPoint {
	out := make([]TrackPoint, len(t))
	for i, f := range t {
		out[i] = TrackPoint{Time: f.Timestamp, Lon: f.Position.Lon, Lat: f.Position.Lat, Alt: f.Position.Alt}
	}
	return out
}

// TrackFromPoints is the inverse of Track.Points.
func TrackFromPoints(points []TrackPoint) Track {
	out := make(Track, len(points))
	for i, p := range points {
		out[i] = TimedFix{Timestamp: p.Time, Position: Point3D{Lon: p.Lon, Lat: p.Lat, Alt: p.Alt}}
	}
	return out
}

// RouteSummary describes the stored fixes of one drone.
type RouteSummary struct {
	DroneID        string    `json:"id"`
	StartTime      int64     `json:"start_time"`
	EndTime        int64     `json:"end_time"`
	StartTimestamp time.Time `json:"start_time_stamp"`
	EndTimestamp   time.Time `json:"end_time_stamp"`
	Duration       string    `json:"duration"`
	FixCount       int       `json:"fix_count"`
}

// FeedRecord is one line of the live drone CSV feed.
type FeedRecord struct {
	TimeStamp string  `json:"time_stamp"`
	Time      int64   `json:"time"`
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Alt       float64 `json:"alt"`
	Acc       float64 `json:"acc"`
	Fix       int     `json:"fix"`
	Lnk       int     `json:"lnk"`
	Eng       int     `json:"eng"`
	Sim       int     `json:"sim"`
}

// TimedFix converts the record into a track fix.
func (r FeedRecord) TimedFix() TimedFix {
	return TimedFix{Timestamp: r.Time, Position: Point3D{Lon: r.Lon, Lat: r.Lat, Alt: r.Alt}}
}

// ParseError describes a rejected input line.
type ParseError struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
}
