package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Payload formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// DetectFormat picks JSON or JSON Lines from a content type or file name,
// falling back to sniffing the body.
func DetectFormat(hint string, body []byte) string {
	h := strings.ToLower(hint)
	switch {
	case strings.Contains(h, "ndjson"), strings.Contains(h, "jsonl"):
		return FormatJSONL
	case strings.Contains(h, "json"):
		return FormatJSON
	}
	trim := bytes.TrimSpace(body)
	if len(trim) > 0 && trim[0] == '[' {
		return FormatJSON
	}
	if bytes.Count(trim, []byte("\n")) > 0 {
		return FormatJSONL
	}
	return FormatJSON
}

// SplitRecords returns the individual lead records of a payload. A JSON
// payload is one object or an array of objects; JSON Lines is one per line.
func SplitRecords(body []byte, format string) ([]json.RawMessage, error) {
	trim := bytes.TrimSpace(body)
	if len(trim) == 0 {
		return nil, errors.New("empty payload")
	}

	switch format {
	case FormatJSONL:
		return splitLines(trim)
	case FormatJSON:
		if !json.Valid(trim) {
			return nil, errors.New("not valid json")
		}
		switch trim[0] {
		case '[':
			var arr []json.RawMessage
			if err := json.Unmarshal(trim, &arr); err != nil {
				return nil, err
			}
			return arr, nil
		case '{':
			return []json.RawMessage{json.RawMessage(trim)}, nil
		}
		return nil, errors.New("expected object or array")
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

func splitLines(body []byte) ([]json.RawMessage, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var out []json.RawMessage
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("line %d invalid json", lineNum)
		}
		out = append(out, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no non-empty lines")
	}
	return out, nil
}
