package market

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/rebalance/date"
)

// ImportJSONPath reads a JSON document from r, selects the rows at path and
// appends them to the series name of the given kind.
//
// Rows are either pairs `[date, value]` or objects with "date" and "value"
// properties. Values may be numbers or strings using a comma as decimal
// separator, as some quote pages publish them.
func ImportJSONPath(r io.Reader, path string, kind Kind, name string, into *Data) (int, error) {
	var jobj any
	if err := json.NewDecoder(r).Decode(&jobj); err != nil {
		return 0, fmt.Errorf("cannot decode json for %q: %w", name, err)
	}
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, fmt.Errorf("error evaluating %q for %q: %w", path, name, err)
	}
	rows, ok := jval.([]any)
	if !ok {
		return 0, fmt.Errorf("path %q for %q does not select a list of rows", path, name)
	}
	// because jsonpath is never clear about whether it returns a list of rows,
	// or a list of 1 answer being the list of rows: unwrap it.
	if len(rows) == 1 {
		if inner, ok := rows[0].([]any); ok && len(inner) > 0 {
			if _, isRow := inner[0].([]any); isRow {
				rows = inner
			} else if _, isRow := inner[0].(map[string]any); isRow {
				rows = inner
			}
		}
	}

	count := 0
	for i, row := range rows {
		var jday, jvalue any
		switch row := row.(type) {
		case []any:
			if len(row) < 2 {
				return count, fmt.Errorf("row %d of %q: expected [date, value], got %v", i, name, row)
			}
			jday, jvalue = row[0], row[1]
		case map[string]any:
			jday, jvalue = row["date"], row["value"]
		default:
			return count, fmt.Errorf("row %d of %q: unexpected %T", i, name, row)
		}
		sday, ok := jday.(string)
		if !ok {
			return count, fmt.Errorf("row %d of %q: date is not a string: %v", i, name, jday)
		}
		on, err := date.Parse(sday)
		if err != nil {
			return count, fmt.Errorf("row %d of %q: %w", i, name, err)
		}
		value, err := number(jvalue)
		if err != nil {
			return count, fmt.Errorf("row %d of %q: %w", i, name, err)
		}
		if err := into.Append(kind, name, on, value); err != nil {
			return count, fmt.Errorf("row %d: %w", i, err)
		}
		count++
	}
	return count, nil
}

func number(jval any) (float64, error) {
	switch v := jval.(type) {
	case float64:
		return v, nil
	case string:
		// sometimes values come as strings, with a decimal comma.
		s := strings.ReplaceAll(v, ",", ".")
		s = strings.ReplaceAll(s, " ", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN(), fmt.Errorf("value is an invalid string %q: %w", v, err)
		}
		return f, nil
	}
	return math.NaN(), fmt.Errorf("value is neither a float or string: %v", jval)
}
