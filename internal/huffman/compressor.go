package huffman

import "unicode/utf8"

// Packed is the wire form of a chat text.
type Packed struct {
	Encoded bool   `json:"encoded"`
	Text    string `json:"text"`
	Codes   Table  `json:"codes,omitempty"`
}

// Compressor decides whether a text is worth encoding.
type Compressor struct {
	// MinLength is the rune count below which a text is sent verbatim.
	MinLength int
}

// Pack encodes text unless it is shorter than MinLength.
func (c Compressor) Pack(text string) Packed {
	if text == "" || utf8.RuneCountInString(text) < c.MinLength {
		return Packed{Text: text}
	}
	bits, codes := Encode(text)
	return Packed{Encoded: true, Text: bits, Codes: codes}
}

// Unpack returns the original text of p.
func Unpack(p Packed) (string, error) {
	if !p.Encoded {
		return p.Text, nil
	}
	return Decode(p.Text, p.Codes)
}
