package core

import "sort"

// YearTotal is the aggregate for a single year.
type YearTotal struct {
	Year       int     `json:"year"`
	WhaleTotal float64 `json:"whales"`
	HuntTotal  float64 `json:"hunts"`
}

// YearTotals maps each year present in the records to its totals. Years are
// kept in ascending order; that order defines chart columns and indices.
type YearTotals struct {
	years  []int
	totals map[int]YearTotal
}

// BuildYearTotals groups records by year and sums whale and hunt counts.
// An empty input yields an empty mapping.
func BuildYearTotals(records []Record) YearTotals {
	yt := YearTotals{totals: make(map[int]YearTotal)}
	for _, r := range records {
		t, ok := yt.totals[r.Year]
		if !ok {
			t = YearTotal{Year: r.Year}
			yt.years = append(yt.years, r.Year)
		}
		t.WhaleTotal += r.WhaleCount
		t.HuntTotal += r.HuntCount
		yt.totals[r.Year] = t
	}
	sort.Ints(yt.years)
	return yt
}

// Len returns the number of distinct years.
func (yt YearTotals) Len() int {
	return len(yt.years)
}

// Years returns the years in ascending order.
func (yt YearTotals) Years() []int {
	return append([]int(nil), yt.years...)
}

// Lookup returns the totals for year and whether the year is present.
func (yt YearTotals) Lookup(year int) (YearTotal, bool) {
	t, ok := yt.totals[year]
	return t, ok
}

// Index returns the position of year in the key ordering, or -1.
func (yt YearTotals) Index(year int) int {
	i := sort.SearchInts(yt.years, year)
	if i < len(yt.years) && yt.years[i] == year {
		return i
	}
	return -1
}

// Totals returns the per-year totals in key order.
func (yt YearTotals) Totals() []YearTotal {
	out := make([]YearTotal, len(yt.years))
	for i, y := range yt.years {
		out[i] = yt.totals[y]
	}
	return out
}

// Bounds returns the first and last year. ok is false when empty.
func (yt YearTotals) Bounds() (first, last int, ok bool) {
	if len(yt.years) == 0 {
		return 0, 0, false
	}
	return yt.years[0], yt.years[len(yt.years)-1], true
}

// Columns returns the chart columns ("x" and "whales") in key order.
func (yt YearTotals) Columns() (x []int, whales []float64) {
	x = yt.Years()
	whales = make([]float64, len(x))
	for i, y := range x {
		whales[i] = yt.totals[y].WhaleTotal
	}
	return x, whales
}

// Partition splits records into those recorded in year and all others.
// Both slices preserve the input order.
func Partition(records []Record, year int) (visible, hidden []Record) {
	for _, r := range records {
		if r.Year == year {
			visible = append(visible, r)
		} else {
			hidden = append(hidden, r)
		}
	}
	return visible, hidden
}

// HarborSeries returns every record for location ordered by year.
func HarborSeries(records []Record, location string) []Record {
	var out []Record
	for _, r := range records {
		if r.Location == location {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// FindRecord returns the first record for (location, year).
func FindRecord(records []Record, location string, year int) (Record, bool) {
	for _, r := range records {
		if r.Location == location && r.Year == year {
			return r, true
		}
	}
	return Record{}, false
}
