package tokens

// Tokenize splits text into a Sequence: runs of ASCII letters, runs
// of ASCII digits, and single other non-space characters, with
// character offsets preserved. It is the same segmentation applied to
// phrase lexicon entries, so lexicon matching lines up with document
// tokens.
func Tokenize(text string) *Sequence {
	var (
		toks    []string
		offsets []int
		lengths []int
	)
	i, n := 0, len(text)
	for i < n {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
		case isLetter(c):
			j := i + 1
			for j < n && isLetter(text[j]) {
				j++
			}
			toks = append(toks, text[i:j])
			offsets = append(offsets, i)
			lengths = append(lengths, j-i)
			i = j
		case isDigit(c):
			j := i + 1
			for j < n && isDigit(text[j]) {
				j++
			}
			toks = append(toks, text[i:j])
			offsets = append(offsets, i)
			lengths = append(lengths, j-i)
			i = j
		default:
			toks = append(toks, text[i:i+1])
			offsets = append(offsets, i)
			lengths = append(lengths, 1)
			i++
		}
	}
	return &Sequence{
		SourceText: text,
		Tokens:     toks,
		Offsets:    offsets,
		Lengths:    lengths,
	}
}

func isLetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
