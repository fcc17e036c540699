package menu

// csv.go turns an uploaded CSV file into bulk rows. It tolerates the
// artifacts real operator spreadsheets carry: invalid UTF-8, a title row
// above the header, Excel formula prefixes, currency symbols in prices,
// and a couple of alternate header spellings.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"
)

// headerIndex maps canonical column names to their position in the CSV row.
type headerIndex map[string]int

// headerAliases maps accepted header spellings (lowercase) to canonical
// column names.
var headerAliases = map[string]string{
	"id":            "id",
	"item id":       "id",
	"item_id":       "id",
	"name":          "name",
	"item name":     "name",
	"item_name":     "name",
	"description":   "description",
	"desc":          "description",
	"price":         "price",
	"cost":          "price",
	"category":      "category",
	"category name": "category",
	"category_name": "category",
	"tags":          "tags",
	"dietary":       "tags",
	"dietary tags":  "tags",
}

// requiredColumns must all be present in the header row.
var requiredColumns = []string{"name", "price", "category"}

// maxHeaderSearchRows is how many leading rows are scanned for the header.
const maxHeaderSearchRows = 10

// ParseBulkCSV parses uploaded CSV data into bulk rows. Row indices are
// zero-based positions within the data rows, matching the indices reported
// back in RowErrors.
func ParseBulkCSV(data []byte) ([]BulkRow, error) {
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse CSV: empty file")
	}

	headerRow, idx := findHeader(records)
	if headerRow < 0 {
		return nil, fmt.Errorf("parse CSV: header not found (need columns: %s)",
			strings.Join(requiredColumns, ", "))
	}

	var rows []BulkRow
	for _, record := range records[headerRow+1:] {
		if isEmptyRow(record) {
			continue
		}
		rows = append(rows, BulkRow{
			ID:          cellAt(record, idx, "id"),
			Name:        cellAt(record, idx, "name"),
			Description: cellAt(record, idx, "description"),
			Price:       FlexString(cellAt(record, idx, "price")),
			Category:    cellAt(record, idx, "category"),
			Tags:        splitTags(cellAt(record, idx, "tags")),
		})
	}
	return rows, nil
}

// findHeader scans the leading rows for one containing every required
// column under any accepted spelling.
func findHeader(records [][]string) (int, headerIndex) {
	limit := maxHeaderSearchRows
	if len(records) < limit {
		limit = len(records)
	}

	for i := 0; i < limit; i++ {
		idx := make(headerIndex)
		for pos, cell := range records[i] {
			canonical, ok := headerAliases[strings.ToLower(cleanCell(cell))]
			if !ok {
				continue
			}
			if _, dup := idx[canonical]; !dup {
				idx[canonical] = pos
			}
		}

		complete := true
		for _, col := range requiredColumns {
			if _, ok := idx[col]; !ok {
				complete = false
				break
			}
		}
		if complete {
			return i, idx
		}
	}
	return -1, nil
}

func cellAt(record []string, idx headerIndex, col string) string {
	pos, ok := idx[col]
	if !ok || pos >= len(record) {
		return ""
	}
	return cleanCell(record[pos])
}

// splitTags splits a tag cell on commas and semicolons.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var tags []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

// cleanCell removes common CSV artifacts from a cell value: surrounding
// whitespace and quotes, and Excel formula prefixes (="value").
func cleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// downstream parsing never chokes on exported spreadsheets.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
