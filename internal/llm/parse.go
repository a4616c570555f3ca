package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

var errNoJSONObject = errors.New("no JSON object found in model response")

// ParseSelectors turns model output into a FieldMapping.
//
// The whole content is tried as JSON first. Only when that fails is the first
// balanced {...} object extracted from surrounding text. The document is then
// validated strictly against the selectors schema. On failure, unknown roles,
// empty locators and stray top-level keys are dropped and the sanitized
// document must pass the schema. The returned bytes are the document the
// mapping was built from.
func ParseSelectors(content string, logger *slog.Logger) (entity.FieldMapping, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw := []byte(strings.TrimSpace(stripCodeFence(content)))
	if !json.Valid(raw) {
		obj, ok := ExtractJSONObject(content)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %w", common.ErrAnalysisFailed, errNoJSONObject)
		}
		logger.Warn("llm.analyze.bracket_fallback", "content_len", len(content), "object_len", len(obj))
		raw = []byte(obj)
	}

	strictErr := ValidateSelectors(raw)
	bindings, dropped, err := decodeSelectors(raw)
	if err != nil {
		logger.Error("llm.analyze.sanitize_failed", "error", err, "strict_error", strictErr)
		return nil, raw, fmt.Errorf("%w: %w", common.ErrAnalysisFailed, err)
	}
	if strictErr == nil && len(dropped) == 0 && len(bindings) > 0 {
		return bindings, raw, nil
	}

	clean := encodeSelectors(bindings)
	if err := ValidateSelectors(clean); err != nil {
		logger.Error("llm.analyze.schema_validation_failed",
			"error", err, "strict_error", strictErr, "dropped", dropped)
		return nil, clean, fmt.Errorf("%w: %w", common.ErrAnalysisFailed, err)
	}
	logger.Warn("llm.analyze.lenient_sanitize_applied", "strict_error", strictErr, "dropped", dropped)
	return bindings, clean, nil
}

// ExtractJSONObject returns the first balanced, well-formed {...} object in text.
func ExtractJSONObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := matchBrace(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace finds the brace closing the one at start, honoring JSON strings.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimPrefix(t, "json")
	return strings.TrimSuffix(strings.TrimSpace(t), "```")
}

// decodeSelectors walks the "selectors" object with a token decoder so the
// model's key order survives; a map would lose it.
func decodeSelectors(raw []byte) (entity.FieldMapping, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, nil, err
	}

	var (
		out     entity.FieldMapping
		dropped []string
		found   bool
	)
	seen := map[string]struct{}{}
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return nil, nil, err
		}
		if key != "selectors" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, nil, err
			}
			continue
		}
		found = true
		if err := expectDelim(dec, '{'); err != nil {
			return nil, nil, fmt.Errorf("selectors: %w", err)
		}
		for dec.More() {
			locator, err := stringToken(dec)
			if err != nil {
				return nil, nil, err
			}
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, nil, err
			}
			role, ok := v.(string)
			role = strings.ToLower(strings.TrimSpace(role))
			locator = strings.TrimSpace(locator)
			switch {
			case locator == "":
				dropped = append(dropped, "(empty locator)")
			case !ok || !constants.IsKnownRole(role):
				dropped = append(dropped, locator+"(role)")
			default:
				if _, dup := seen[locator]; dup {
					dropped = append(dropped, locator+"(duplicate)")
					continue
				}
				seen[locator] = struct{}{}
				out = append(out, entity.FieldBinding{Locator: locator, Role: constants.FieldRole(role)})
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, nil, err
		}
	}
	if !found {
		return nil, nil, errors.New(`response has no "selectors" object`)
	}
	return out, dropped, nil
}

func encodeSelectors(m entity.FieldMapping) []byte {
	var b bytes.Buffer
	b.WriteString(`{"selectors":{`)
	for i, fb := range m {
		if i > 0 {
			b.WriteByte(',')
		}
		k, _ := json.Marshal(fb.Locator)
		v, _ := json.Marshal(string(fb.Role))
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteString(`}}`)
	return b.Bytes()
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return s, nil
}
