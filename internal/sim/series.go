package sim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"
)

var (
	ErrEmptySeries = errors.New("sim: series has no points")
	ErrBadSeries   = errors.New("sim: malformed series row")
)

// Point is one hour of the ideal-power input the physics layer produced.
type Point struct {
	Timestamp  time.Time `json:"timestamp"`
	IdealWatts float64   `json:"ideal_watts"`
}

// Series is the hourly ideal-power input for one run.
type Series []Point

// LoadSeriesCSV reads a timestamp,ideal_watts CSV. A first row that does not
// parse as data is treated as a header; every later malformed row is an error.
func LoadSeriesCSV(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sim: open series (%s): %w", path, err)
	}
	defer f.Close()
	return parseSeries(f, path)
}

func parseSeries(r io.Reader, name string) (Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	var out Series
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrBadSeries, name, row+1, err)
		}
		row++

		p, err := parsePoint(record)
		if err != nil {
			if row == 1 {
				// Header row.
				continue
			}
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrBadSeries, name, row, err)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySeries, name)
	}
	return out, nil
}

func parsePoint(record []string) (Point, error) {
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return Point{}, fmt.Errorf("timestamp %q: %v", record[0], err)
	}
	watts, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("ideal_watts %q: %v", record[1], err)
	}
	if watts < 0 {
		return Point{}, fmt.Errorf("ideal_watts %v is negative", watts)
	}
	return Point{Timestamp: ts, IdealWatts: watts}, nil
}

// SyntheticSeries builds a clear-sky stand-in when no physics output is
// available: a half-sine bell between 06:00 and 18:00 local, zero at night.
func SyntheticSeries(start time.Time, hours int, peakWatts float64) Series {
	out := make(Series, 0, hours)
	for h := 0; h < hours; h++ {
		ts := start.Add(time.Duration(h) * time.Hour)
		out = append(out, Point{Timestamp: ts, IdealWatts: clearSkyWatts(ts, peakWatts)})
	}
	return out
}

func clearSkyWatts(ts time.Time, peakWatts float64) float64 {
	hour := float64(ts.Hour())
	if hour < 6 || hour >= 18 {
		return 0
	}
	return peakWatts * math.Sin(math.Pi*(hour-6)/12)
}
