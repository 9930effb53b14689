package model

import (
	"time"

	"github.com/google/uuid"
)

// Batch is a group of points of a single measurement written in one store call.
type Batch struct {
	ID          string    `json:"id"`
	Measurement string    `json:"measurement"`
	Points      []Point   `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewBatch(measurement string, points []Point) *Batch {
	return &Batch{
		ID:          uuid.New().String(),
		Measurement: measurement,
		Points:      points,
		CreatedAt:   time.Now().UTC(),
	}
}

func (b *Batch) Len() int {
	return len(b.Points)
}
