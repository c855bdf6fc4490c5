package core

import (
	"math"
	"reflect"
	"testing"
)

func sampleRecords() []Record {
	return []Record{
		{Seq: 0, Location: "A", Year: 1995, WhaleCount: 2, HuntCount: 1},
		{Seq: 1, Location: "B", Year: 1995, WhaleCount: 3, HuntCount: 1},
		{Seq: 2, Location: "A", Year: 1996, WhaleCount: 5, HuntCount: 2},
	}
}

func TestBuildYearTotals(t *testing.T) {
	yt := BuildYearTotals(sampleRecords())
	if yt.Len() != 2 {
		t.Fatalf("expected 2 years, got %d", yt.Len())
	}
	for _, tc := range []struct {
		year  int
		whale float64
		hunt  float64
	}{
		{1995, 5, 2},
		{1996, 5, 2},
	} {
		got, ok := yt.Lookup(tc.year)
		if !ok {
			t.Fatalf("year %d missing", tc.year)
		}
		if got.WhaleTotal != tc.whale || got.HuntTotal != tc.hunt {
			t.Fatalf("year %d: got %+v", tc.year, got)
		}
	}
	if _, ok := yt.Lookup(1997); ok {
		t.Fatalf("unexpected entry for 1997")
	}
}

func TestBuildYearTotalsEmpty(t *testing.T) {
	yt := BuildYearTotals(nil)
	if yt.Len() != 0 {
		t.Fatalf("expected empty totals, got %d", yt.Len())
	}
	if _, _, ok := yt.Bounds(); ok {
		t.Fatalf("expected no bounds for empty totals")
	}
	if yt.Index(1996) != -1 {
		t.Fatalf("expected -1 index on empty totals")
	}
}

func TestYearTotalsSumMatchesRecords(t *testing.T) {
	records := []Record{
		{Location: "Hvalba", Year: 2001, WhaleCount: 41},
		{Location: "Tórshavn", Year: 1999, WhaleCount: 160},
		{Location: "Hvalba", Year: 1999, WhaleCount: 12.5},
		{Location: "Miðvágur", Year: 2001, WhaleCount: 0},
		{Location: "Klaksvík", Year: 2003, WhaleCount: 88},
	}
	var want float64
	for _, r := range records {
		want += r.WhaleCount
	}
	var got float64
	for _, tot := range BuildYearTotals(records).Totals() {
		got += tot.WhaleTotal
	}
	if got != want {
		t.Fatalf("sum of totals %v != sum of records %v", got, want)
	}
}

func TestYearTotalsOrderingAndIndex(t *testing.T) {
	records := []Record{
		{Location: "A", Year: 2003, WhaleCount: 1},
		{Location: "A", Year: 1990, WhaleCount: 1},
		{Location: "B", Year: 1996, WhaleCount: 1},
		{Location: "B", Year: 1990, WhaleCount: 1},
	}
	yt := BuildYearTotals(records)
	if want := []int{1990, 1996, 2003}; !reflect.DeepEqual(yt.Years(), want) {
		t.Fatalf("years = %v, want %v", yt.Years(), want)
	}
	x, whales := yt.Columns()
	for i, y := range x {
		if yt.Index(y) != i {
			t.Fatalf("Index(%d) = %d, want %d", y, yt.Index(y), i)
		}
	}
	if !reflect.DeepEqual(whales, []float64{2, 1, 1}) {
		t.Fatalf("whales column = %v", whales)
	}
	if yt.Index(1995) != -1 {
		t.Fatalf("expected -1 for absent year")
	}
	first, last, ok := yt.Bounds()
	if !ok || first != 1990 || last != 2003 {
		t.Fatalf("bounds = %d,%d,%v", first, last, ok)
	}
}

func TestPartition(t *testing.T) {
	records := sampleRecords()
	visible, hidden := Partition(records, 1995)
	if !reflect.DeepEqual(visible, records[:2]) {
		t.Fatalf("visible = %+v", visible)
	}
	if !reflect.DeepEqual(hidden, records[2:]) {
		t.Fatalf("hidden = %+v", hidden)
	}

	visible, hidden = Partition(records, 1800)
	if len(visible) != 0 || len(hidden) != len(records) {
		t.Fatalf("unexpected partition for absent year: %d/%d", len(visible), len(hidden))
	}
}

func TestHarborSeriesAndFind(t *testing.T) {
	records := []Record{
		{Location: "A", Year: 1997, WhaleCount: 7},
		{Location: "B", Year: 1995, WhaleCount: 3},
		{Location: "A", Year: 1995, WhaleCount: 2},
	}
	series := HarborSeries(records, "A")
	if len(series) != 2 || series[0].Year != 1995 || series[1].Year != 1997 {
		t.Fatalf("series = %+v", series)
	}
	if r, ok := FindRecord(records, "B", 1995); !ok || r.WhaleCount != 3 {
		t.Fatalf("FindRecord = %+v, %v", r, ok)
	}
	if _, ok := FindRecord(records, "B", 1997); ok {
		t.Fatalf("expected no record for B/1997")
	}
}

func TestFormatTotal(t *testing.T) {
	cases := map[float64]string{
		0:       "0 whales",
		5:       "5 whales",
		1234:    "1,234 whales",
		12.5:    "12.5 whales",
		12.25:   "12.25 whales",
		12.1:    "12.1 whales",
		1234.75: "1,234.75 whales",
		100000:  "100,000 whales",
	}
	for in, want := range cases {
		if got := FormatTotal(in); got != want {
			t.Errorf("FormatTotal(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestRecordValidate(t *testing.T) {
	cases := []struct {
		r   Record
		err error
	}{
		{Record{Location: "A", Year: 1996}, nil},
		{Record{Location: " ", Year: 1996}, ErrEmptyLocation},
		{Record{Location: "A"}, ErrInvalidYear},
		{Record{Location: "A", Year: 1996, WhaleCount: -1}, ErrNegativeCount},
		{Record{Location: "A", Year: 1996, WhaleCount: math.NaN()}, ErrNonFinite},
		{Record{Location: "A", Year: 1996, HuntCount: math.Inf(1)}, ErrNonFinite},
		{Record{Location: "A", Year: 1996, SkinnValue: math.Inf(-1)}, ErrNonFinite},
	}
	for i, tc := range cases {
		if err := tc.r.Validate(); err != tc.err {
			t.Fatalf("case %d: got %v, want %v", i, err, tc.err)
		}
	}
}
