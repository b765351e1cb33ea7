package market

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/rebalance/date"
)

// this file contains functions to handle the import/export format.
// It should remain human readable, single file and be easy to merge into a database.

// jseries is the readable version of one series.
type jseries struct {
	Name    string             `json:"name"`
	Kind    Kind               `json:"kind"`
	History map[string]float64 `json:"history"`
}

// ImportJSONL imports series from 'r' in the import/export format.
//
// The import format is a JSONL file, where each line is a JSON object representing a series.
//
// A series is a single json object whose property 'name' contains the asset or indicator name,
// 'kind' is either "price" or "indicator" (price when empty), and property 'history' contains
// a single json object whose properties are dates parseable by the [date] package, and values
// are numbers.
//
// Lines for an already imported series are merged into it, later values win.
func ImportJSONL(r io.Reader, into *Data) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		var js jseries
		if err := json.Unmarshal(raw, &js); err != nil {
			return fmt.Errorf("line %d: cannot parse series: %w", line, err)
		}
		if js.Name == "" {
			return fmt.Errorf("line %d: series without a name", line)
		}
		if js.Kind == "" {
			js.Kind = Price
		}
		if js.Kind != Price && js.Kind != Indicator {
			return fmt.Errorf("line %d: unknown kind %q for %q", line, js.Kind, js.Name)
		}
		for day, value := range js.History {
			on, err := date.Parse(day)
			if err != nil {
				return fmt.Errorf("line %d: series %q: %w", line, js.Name, err)
			}
			if err := into.Append(js.Kind, js.Name, on, value); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	return scanner.Err()
}

// ExportJSONL exports every series of d to 'w' in the import/export format, prices first,
// each kind in lexical order.
func ExportJSONL(w io.Writer, d *Data) error {
	export := func(kind Kind, names []string) error {
		for _, name := range names {
			h := d.series(kind)[name]
			js := jseries{Name: name, Kind: kind, History: make(map[string]float64, h.Len())}
			for day, value := range h.Values() {
				js.History[day.String()] = value
			}
			data, err := json.Marshal(js)
			if err != nil {
				return fmt.Errorf("cannot marshal %s %q: %w", kind, name, err)
			}
			if _, err := w.Write(append(data, '\n')); err != nil {
				return fmt.Errorf("cannot write series format: %w", err)
			}
		}
		return nil
	}
	if err := export(Price, d.Assets()); err != nil {
		return err
	}
	return export(Indicator, d.Indicators())
}
