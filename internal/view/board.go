package view

import (
	"sync"

	"whaling/internal/core"
	"whaling/internal/events"
)

// Publisher receives every view change.
type Publisher interface {
	Publish(events.Event)
}

// Event types published by the Board.
const (
	EventLabels = "labels"
	EventLayer  = "layer"
	EventFade   = "fade"
	EventChart  = "chart"
	EventPopup  = "popup"
)

// Snapshot is the rendered state of the view.
type Snapshot struct {
	Year         int          `json:"year"`
	TotalLabel   string       `json:"total"`
	Visible      []int        `json:"visible"`
	LayerVisible bool         `json:"layerVisible"`
	Fade         Fade         `json:"fade"`
	FadeYear     int          `json:"fadeYear"`
	ChartIndex   int          `json:"chartIndex"`
	Popup        *core.Record `json:"popup,omitempty"`
}

type (
	labelsData struct {
		Year  int    `json:"year"`
		Total string `json:"total"`
	}
	layerData struct {
		Visible bool  `json:"visible"`
		Markers []int `json:"markers,omitempty"`
	}
	fadeData struct {
		State Fade `json:"state"`
		Year  int  `json:"year"`
	}
	chartData struct {
		Index int `json:"index"`
	}
)

// Board implements every collaborator port on server-side state that the
// HTTP layer renders and streams to browsers. Marker visibility is published
// with the layer, so browsers only redraw markers on a layer refresh.
type Board struct {
	mu           sync.Mutex
	pub          Publisher
	year         int
	total        string
	visible      []bool
	layerVisible bool
	fade         Fade
	fadeYear     int
	chartIndex   int
	popup        *core.Record
}

var (
	_ Labels   = (*Board)(nil)
	_ MapLayer = (*Board)(nil)
	_ Chart    = (*Board)(nil)
	_ Popup    = (*Board)(nil)
)

// NewBoard returns a board for n markers. pub may be nil.
func NewBoard(n int, pub Publisher) *Board {
	return &Board{
		pub:          pub,
		visible:      make([]bool, n),
		layerVisible: true,
		fade:         FadeOut,
		chartIndex:   -1,
	}
}

// Collaborators returns the board wired to every port.
func (b *Board) Collaborators() Collaborators {
	return Collaborators{Labels: b, Layer: b, Chart: b, Popup: b}
}

func (b *Board) SetYearLabel(year int) {
	b.mu.Lock()
	b.year = year
	ev := events.Event{Type: EventLabels, Data: labelsData{Year: b.year, Total: b.total}}
	b.mu.Unlock()
	b.publish(ev)
}

func (b *Board) SetTotalLabel(text string) {
	b.mu.Lock()
	b.total = text
	ev := events.Event{Type: EventLabels, Data: labelsData{Year: b.year, Total: b.total}}
	b.mu.Unlock()
	b.publish(ev)
}

func (b *Board) SetMarkerVisible(seq int, visible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq < 0 {
		return
	}
	if seq >= len(b.visible) {
		grown := make([]bool, seq+1)
		copy(grown, b.visible)
		b.visible = grown
	}
	b.visible[seq] = visible
}

func (b *Board) SetLayerVisible(visible bool) {
	b.mu.Lock()
	b.layerVisible = visible
	data := layerData{Visible: visible}
	if visible {
		data.Markers = b.visibleSeqsLocked()
	}
	b.mu.Unlock()
	b.publish(events.Event{Type: EventLayer, Data: data})
}

func (b *Board) SetFade(state Fade, year int) {
	b.mu.Lock()
	b.fade = state
	b.fadeYear = year
	b.mu.Unlock()
	b.publish(events.Event{Type: EventFade, Data: fadeData{State: state, Year: year}})
}

func (b *Board) Select(index int) {
	b.mu.Lock()
	b.chartIndex = index
	b.mu.Unlock()
	b.publish(events.Event{Type: EventChart, Data: chartData{Index: index}})
}

func (b *Board) Selected() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.popup == nil {
		return "", false
	}
	return b.popup.Location, true
}

func (b *Board) Open(r core.Record) {
	b.mu.Lock()
	b.popup = &r
	b.mu.Unlock()
	b.publish(events.Event{Type: EventPopup, Data: r})
}

func (b *Board) Close() {
	b.mu.Lock()
	b.popup = nil
	b.mu.Unlock()
	b.publish(events.Event{Type: EventPopup})
}

// Snapshot returns a copy of the current view state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		Year:         b.year,
		TotalLabel:   b.total,
		Visible:      b.visibleSeqsLocked(),
		LayerVisible: b.layerVisible,
		Fade:         b.fade,
		FadeYear:     b.fadeYear,
		ChartIndex:   b.chartIndex,
	}
	if b.popup != nil {
		p := *b.popup
		snap.Popup = &p
	}
	return snap
}

func (b *Board) visibleSeqsLocked() []int {
	out := []int{}
	for seq, v := range b.visible {
		if v {
			out = append(out, seq)
		}
	}
	return out
}

func (b *Board) publish(ev events.Event) {
	if b.pub != nil {
		b.pub.Publish(ev)
	}
}
