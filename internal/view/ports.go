// Package view keeps the map, chart and label collaborators in step with the
// selected year.
package view

import "whaling/internal/core"

// Fade is the marker group transition state.
type Fade string

const (
	FadeOut Fade = "g-hidden"
	FadeIn  Fade = "g-visible"
)

type (
	// Labels shows the selected year and its total.
	Labels interface {
		SetYearLabel(year int)
		SetTotalLabel(text string)
	}

	// MapLayer renders one marker per record.
	MapLayer interface {
		// SetMarkerVisible flags a single marker. Changes show up on the next
		// layer refresh.
		SetMarkerVisible(seq int, visible bool)
		// SetLayerVisible toggles the whole layer; hiding then showing it
		// redraws the markers.
		SetLayerVisible(visible bool)
		// SetFade starts the marker group transition for year.
		SetFade(state Fade, year int)
	}

	// Chart highlights one point of the summary chart.
	Chart interface {
		Select(index int)
	}

	// Popup is the per-location detail panel.
	Popup interface {
		// Selected returns the location of the open popup.
		Selected() (location string, ok bool)
		Open(r core.Record)
		Close()
	}
)
