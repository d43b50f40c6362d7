// Package output renders normalized records for the terminal and for files.
// JSON is the canonical form; pretty is for humans, csv flattens one record
// per row, markdown converts the captured page body for reading.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DONALDBZR/Crawly/pkg/models"
)

// Formatter renders records in one of the supported output formats.
type Formatter struct {
	// BaseURL, when set, resolves relative links in markdown output.
	BaseURL string
}

// Format renders the record in the named format: json, pretty, csv or
// markdown.
func (f Formatter) Format(record *models.NormalizedRecord, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(record)
	case "pretty":
		return formatPretty(record), nil
	case "csv":
		return formatCSV(record)
	case "markdown":
		return f.formatMarkdown(record)
	default:
		return "", fmt.Errorf("unknown output format: %s", format)
	}
}

func formatJSON(record *models.NormalizedRecord) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

var separator = strings.Repeat("─", 50)

func formatPretty(record *models.NormalizedRecord) string {
	lines := []string{
		separator,
		"Scrape Result: " + record.EntityType,
		separator,
		"Entity ID:    " + record.EntityID,
		"Timestamp:    " + record.Timestamp.Format(time.RFC3339),
	}

	if len(record.Data) > 0 {
		lines = append(lines, separator, "Data:")
		for _, key := range sortedKeys(record.Data) {
			value := record.Data[key]
			if nested, ok := nestedMap(value); ok {
				lines = append(lines, "  "+key+":")
				for _, k := range sortedKeys(nested) {
					lines = append(lines, fmt.Sprintf("    %s: %v", k, nested[k]))
				}
				continue
			}
			lines = append(lines, fmt.Sprintf("  %s: %v", key, value))
		}
	}

	lines = append(lines, separator)
	return strings.Join(lines, "\n")
}

// formatCSV flattens the record to a header row and a single value row.
// Nested maps in the data contribute key_subkey columns.
func formatCSV(record *models.NormalizedRecord) (string, error) {
	headers := []string{"entity_type", "entity_id", "timestamp"}
	values := []string{record.EntityType, record.EntityID, record.Timestamp.Format(time.RFC3339)}

	for _, key := range sortedKeys(record.Data) {
		value := record.Data[key]
		if nested, ok := nestedMap(value); ok {
			for _, k := range sortedKeys(nested) {
				headers = append(headers, key+"_"+k)
				values = append(values, stringify(nested[k]))
			}
			continue
		}
		headers = append(headers, key)
		values = append(values, stringify(value))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return "", err
	}
	if err := w.Write(values); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// stringify renders scalar values plainly and everything else as JSON, which
// keeps list-valued cells parseable.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// nestedMap normalizes the two map shapes records carry into one.
func nestedMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	}
	return nil, false
}
