package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/fakeyudi/statemon/internal/monitor"
)

// ErrInvalidReport wraps every failure to recognise a report file.
var ErrInvalidReport = errors.New("not a valid statemon report")

// Parser deserializes a report file back into a Snapshot.
type Parser interface {
	Parse(data []byte) (*monitor.Snapshot, error)
}

// DetectParser picks a parser from the content: the Markdown sentinel, a
// leading '{' for JSON, and TOML otherwise.
func DetectParser(data []byte) Parser {
	switch {
	case bytes.Contains(data, []byte(versionSentinel)):
		return &MarkdownParser{}
	case bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")):
		return &JSONParser{}
	default:
		return &TOMLParser{}
	}
}

// JSONParser parses a JSON-encoded Snapshot.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*monitor.Snapshot, error) {
	var snap monitor.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %w", ErrInvalidReport, err)
	}
	return &snap, nil
}

// TOMLParser parses a TOML-encoded Snapshot.
type TOMLParser struct{}

func (p *TOMLParser) Parse(data []byte) (*monitor.Snapshot, error) {
	var snap monitor.Snapshot
	if err := toml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: failed to parse TOML: %w", ErrInvalidReport, err)
	}
	if snap.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session_id", ErrInvalidReport)
	}
	return &snap, nil
}

// MarkdownParser parses a Markdown report by extracting the embedded base64
// JSON payload from the sentinel comments.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) (*monitor.Snapshot, error) {
	content := string(data)

	if !strings.Contains(content, versionSentinel) {
		return nil, fmt.Errorf("%w: missing version sentinel", ErrInvalidReport)
	}

	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("%w: missing data payload", ErrInvalidReport)
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("%w: malformed data payload", ErrInvalidReport)
	}

	jsonBytes, err := base64.StdEncoding.DecodeString(content[start : start+end])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupted base64 payload: %w", ErrInvalidReport, err)
	}

	var snap monitor.Snapshot
	if err := json.Unmarshal(jsonBytes, &snap); err != nil {
		return nil, fmt.Errorf("%w: failed to parse embedded JSON: %w", ErrInvalidReport, err)
	}
	return &snap, nil
}
