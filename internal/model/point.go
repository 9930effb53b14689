package model

import (
	"strconv"
	"time"
)

const (
	MeasurementVenue           = "venue"
	MeasurementZone            = "zone"
	MeasurementAccessPoint     = "access_point"
	MeasurementClient          = "client"
	MeasurementOsDistribution  = "os_distribution"
	MeasurementHostUsage       = "host_usage"
	MeasurementDisconnectCause = "ap_disconnect_cause"
)

// Point is one time-series sample. Field values are int64, float64 or string.
type Point struct {
	Measurement string            `json:"measurement"`
	Tags        map[string]string `json:"tags"`
	Fields      map[string]any    `json:"fields"`
	Time        time.Time         `json:"time"`
}

func NewPoint(measurement string, ts time.Time) Point {
	return Point{
		Measurement: measurement,
		Tags:        make(map[string]string),
		Fields:      make(map[string]any),
		Time:        ts,
	}
}

func (p Point) Tag(key, value string) Point {
	p.Tags[key] = value
	return p
}

func (p Point) Int(key string, v int64) Point {
	p.Fields[key] = v
	return p
}

func (p Point) Float(key string, v float64) Point {
	p.Fields[key] = v
	return p
}

func (p Point) Text(key, v string) Point {
	p.Fields[key] = v
	return p
}

// OptInt sets key only when v is present.
func (p Point) OptInt(key string, v *int64) Point {
	if v != nil {
		p.Fields[key] = *v
	}
	return p
}

func (p Point) OptFloat(key string, v *float64) Point {
	if v != nil {
		p.Fields[key] = *v
	}
	return p
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
