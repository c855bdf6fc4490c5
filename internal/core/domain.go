package core

import (
	"errors"
	"math"
	"strings"
)

// DefaultYear is the year selected when the view first comes up.
const DefaultYear = 1996

type (
	// Record is one row of the whaling dataset: a drive hunt tally for a
	// single bay in a single year.
	Record struct {
		Seq        int     `json:"seq"` // load position, stable identity of the marker
		Location   string  `json:"location"`
		Year       int     `json:"year"`
		HuntCount  float64 `json:"hunts"`
		WhaleCount float64 `json:"whales"`
		SkinnValue float64 `json:"skinnValue"`
		Lat        float64 `json:"lat,omitempty"`
		Lon        float64 `json:"lon,omitempty"`
	}

	// YearSelected is the single inbound message that moves the view to a year.
	YearSelected struct {
		Year   int
		Source Source
	}

	Source string
)

const (
	SourceSlider     Source = "slider"
	SourceChart      Source = "chart"
	SourcePopupChart Source = "popup_chart"
	SourceRemote     Source = "remote"
	SourceStartup    Source = "startup"
)

var (
	ErrEmptyLocation = errors.New("empty location")
	ErrInvalidYear   = errors.New("invalid year")
	ErrNegativeCount = errors.New("negative count")
	ErrNonFinite     = errors.New("count is not a finite number")
)

func (r Record) Validate() error {
	if strings.TrimSpace(r.Location) == "" {
		return ErrEmptyLocation
	}
	if r.Year <= 0 {
		return ErrInvalidYear
	}
	for _, v := range [...]float64{r.HuntCount, r.WhaleCount, r.SkinnValue} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	if r.HuntCount < 0 || r.WhaleCount < 0 || r.SkinnValue < 0 {
		return ErrNegativeCount
	}
	return nil
}

// HasPosition reports whether the record carries map coordinates.
func (r Record) HasPosition() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Valid reports whether s is one of the known selection sources.
func (s Source) Valid() bool {
	switch s {
	case SourceSlider, SourceChart, SourcePopupChart, SourceRemote, SourceStartup:
		return true
	}
	return false
}
