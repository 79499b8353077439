package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"organicscan/classifier"
	"organicscan/spectral"
)

// Header is the CSV column layout: Sample_ID, F1..F8, Fruit, Organic.
func Header() []string {
	header := []string{"Sample_ID"}
	header = append(header, spectral.ChannelNames()...)
	return append(header, "Fruit", "Organic")
}

func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	row := make([]string, 0, spectral.ChannelCount+3)
	for _, s := range samples {
		row = row[:0]
		row = append(row, s.ID)
		for _, v := range s.Values {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		row = append(row, s.Fruit.String(), s.Status().String())
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV. Columns are located by header
// name, so extra columns and reordering are tolerated.
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty dataset")
		}
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range Header() {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("dataset is missing column %q", name)
		}
	}

	var samples []Sample
	channels := spectral.ChannelNames()
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		s := Sample{ID: record[index["Sample_ID"]]}
		for i, name := range channels {
			v, err := strconv.ParseFloat(record[index[name]], 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("line %d: column %s is not a finite number", line, name)
			}
			s.Values[i] = v
		}
		if s.Fruit, err = classifier.ParseFruit(record[index["Fruit"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		status, err := classifier.ParseOrganicStatus(record[index["Organic"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s.Organic = status == classifier.Organic
		samples = append(samples, s)
	}
	return samples, nil
}

func clip(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
