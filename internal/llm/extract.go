package llm

import "fmt"

// ExtractJSON finds the first balanced JSON object in a model reply, which
// may be wrapped in prose or markdown code fences.
func ExtractJSON(output string) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, c := range output {
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
			if start != -1 {
				inString = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start == -1 {
				continue
			}
			depth--
			if depth == 0 {
				return []byte(output[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("no JSON object found in output")
}
