package types

// Whitespace is the separator class for command tokenization. Only these six
// bytes split tokens; other Unicode space characters do not.
const Whitespace = " \t\n\v\f\r"

func isSeparator(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Fields splits line on runs of the Whitespace class and returns the tokens
// in order. An all-separator or empty line yields no tokens.
func Fields(line []byte) []string {
	var fields []string
	for i := 0; i < len(line); {
		for i < len(line) && isSeparator(line[i]) {
			i++
		}
		start := i
		for i < len(line) && !isSeparator(line[i]) {
			i++
		}
		if start < i {
			fields = append(fields, string(line[start:i]))
		}
	}
	return fields
}
