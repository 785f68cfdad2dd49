// Package huffman implements the canonical prefix code used to compress chat
// payloads. Messages travel as a bit string plus a flat symbol -> code table so a
// receiver never needs the merge tree.
package huffman

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCodec is returned when a bit string and code table do not decode cleanly.
var ErrCodec = errors.New("codec error")

// Table maps a symbol (one rune, as a string) to its code of '0' and '1' bits.
type Table map[string]string

// node is a vertex of the merge tree. seq orders nodes of equal frequency so the
// tree shape is deterministic for a given input.
type node struct {
	symbol string
	freq   int
	seq    int
	left   *node
	right  *node
}

func (n *node) leaf() bool {
	return n.left == nil && n.right == nil
}

type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].freq != q[j].freq {
		return q[i].freq < q[j].freq
	}
	return q[i].seq < q[j].seq
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(*node)) }

func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

// Encode builds a prefix code for text and returns the encoded bits with the table
// used to produce them. Empty input yields an empty bit string and an empty table.
func Encode(text string) (string, Table) {
	if text == "" {
		return "", Table{}
	}

	root := buildTree(text)
	codes := make(Table)
	if root.leaf() {
		// A one-symbol alphabet still needs a non-empty code.
		codes[root.symbol] = "0"
	} else {
		assignCodes(root, "", codes)
	}

	var b strings.Builder
	for _, r := range text {
		b.WriteString(codes[string(r)])
	}
	return b.String(), codes
}

func buildTree(text string) *node {
	freq := make(map[string]int)
	var order []string
	for _, r := range text {
		sym := string(r)
		if _, seen := freq[sym]; !seen {
			order = append(order, sym)
		}
		freq[sym]++
	}

	q := make(nodeQueue, 0, len(order))
	seq := 0
	for _, sym := range order {
		q = append(q, &node{symbol: sym, freq: freq[sym], seq: seq})
		seq++
	}
	heap.Init(&q)

	for q.Len() > 1 {
		left := heap.Pop(&q).(*node)
		right := heap.Pop(&q).(*node)
		heap.Push(&q, &node{freq: left.freq + right.freq, seq: seq, left: left, right: right})
		seq++
	}
	return heap.Pop(&q).(*node)
}

// assignCodes walks the tree in pre-order, 0 for left edges and 1 for right edges.
func assignCodes(n *node, prefix string, codes Table) {
	if n.leaf() {
		codes[n.symbol] = prefix
		return
	}
	assignCodes(n.left, prefix+"0", codes)
	assignCodes(n.right, prefix+"1", codes)
}

// Decode reverses Encode. Bits are accumulated until they exactly match a code;
// a bit string that leaves unmatched bits, contains characters other than 0/1, or
// is paired with a table that is not a valid prefix code is an ErrCodec.
func Decode(bits string, codes Table) (string, error) {
	if bits == "" {
		return "", nil
	}
	if err := codes.Validate(); err != nil {
		return "", err
	}

	reverse := make(map[string]string, len(codes))
	for sym, code := range codes {
		reverse[code] = sym
	}

	var out strings.Builder
	start := 0
	for i := 0; i < len(bits); i++ {
		if bits[i] != '0' && bits[i] != '1' {
			return "", fmt.Errorf("%w: invalid bit %q at offset %d", ErrCodec, bits[i], i)
		}
		if sym, ok := reverse[bits[start:i+1]]; ok {
			out.WriteString(sym)
			start = i + 1
		}
	}
	if start != len(bits) {
		return "", fmt.Errorf("%w: %d trailing bits do not match any code", ErrCodec, len(bits)-start)
	}
	return out.String(), nil
}

// Validate checks that every code is a non-empty bit string and that no code is a
// prefix of another.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty code table", ErrCodec)
	}

	codes := make([]string, 0, len(t))
	for sym, code := range t {
		if len([]rune(sym)) != 1 {
			return fmt.Errorf("%w: symbol %q is not a single character", ErrCodec, sym)
		}
		if code == "" {
			return fmt.Errorf("%w: empty code for symbol %q", ErrCodec, sym)
		}
		if strings.Trim(code, "01") != "" {
			return fmt.Errorf("%w: code %q for symbol %q is not binary", ErrCodec, code, sym)
		}
		codes = append(codes, code)
	}

	// After sorting, a code that prefixes others sorts directly before one of them.
	sort.Strings(codes)
	for i := 1; i < len(codes); i++ {
		if strings.HasPrefix(codes[i], codes[i-1]) {
			return fmt.Errorf("%w: code %q is a prefix of %q", ErrCodec, codes[i-1], codes[i])
		}
	}
	return nil
}
