package merge

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	// ErrBinaryContent is returned for input that is not valid UTF-8.
	ErrBinaryContent = errors.New("input is not valid UTF-8 text")

	// ErrTooManyLines is returned when the three inputs together hold more
	// distinct lines than there are line runes.
	ErrTooManyLines = errors.New("too many distinct lines to merge")
)

// DiffMatchPatch is a line-granular diff3 merge. Each side is diffed
// against the ancestor with diffmatchpatch; the resulting hunks are
// spliced into the ancestor unless a hunk from one side touches or
// overlaps a different hunk from the other.
type DiffMatchPatch struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewDiffMatchPatch returns the primitive with the diff timeout disabled,
// so output depends only on the input.
func NewDiffMatchPatch() *DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &DiffMatchPatch{dmp: dmp}
}

// hunk replaces ancestor lines [start, end) with lines.
type hunk struct {
	start, end int
	lines      []string
}

func (h hunk) equal(o hunk) bool {
	if h.start != o.start || h.end != o.end || len(h.lines) != len(o.lines) {
		return false
	}
	for i := range h.lines {
		if h.lines[i] != o.lines[i] {
			return false
		}
	}
	return true
}

// touches reports whether the closed ranges of h and o intersect.
func (h hunk) touches(o hunk) bool {
	return h.start <= o.end && o.start <= h.end
}

// MergeFile implements Primitive.
func (p *DiffMatchPatch) MergeFile(ancestor, ours, theirs []byte) ([]byte, bool, error) {
	if !utf8.Valid(ancestor) || !utf8.Valid(ours) || !utf8.Valid(theirs) {
		return nil, false, ErrBinaryContent
	}
	if string(ours) == string(theirs) {
		return ours, true, nil
	}

	enc := newLineEncoder()
	base := splitLines(string(ancestor))
	baseRunes, err := enc.encode(base)
	if err != nil {
		return nil, false, err
	}
	oursRunes, err := enc.encode(splitLines(string(ours)))
	if err != nil {
		return nil, false, err
	}
	theirsRunes, err := enc.encode(splitLines(string(theirs)))
	if err != nil {
		return nil, false, err
	}
	oursHunks := p.hunks(enc, baseRunes, oursRunes)
	theirsHunks := p.hunks(enc, baseRunes, theirsRunes)

	all := make([]hunk, 0, len(oursHunks)+len(theirsHunks))
	all = append(all, oursHunks...)
	for _, t := range theirsHunks {
		dup := false
		for _, o := range oursHunks {
			if o.equal(t) {
				dup = true
				break
			}
			if o.touches(t) {
				return nil, false, nil
			}
		}
		if !dup {
			all = append(all, t)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		return all[i].end < all[j].end
	})

	var out strings.Builder
	pos := 0
	for _, h := range all {
		for ; pos < h.start; pos++ {
			out.WriteString(base[pos])
		}
		for _, line := range h.lines {
			out.WriteString(line)
		}
		pos = h.end
	}
	for ; pos < len(base); pos++ {
		out.WriteString(base[pos])
	}
	return []byte(out.String()), true, nil
}

// hunks diffs side against base and returns the changes in base-line
// coordinates.
func (p *DiffMatchPatch) hunks(enc *lineEncoder, base, side []rune) []hunk {
	diffs := p.dmp.DiffMainRunes(base, side, false)

	var out []hunk
	var cur *hunk
	pos := 0
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	for _, d := range diffs {
		runes := []rune(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			pos += len(runes)
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &hunk{start: pos, end: pos}
			}
			pos += len(runes)
			cur.end = pos
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &hunk{start: pos, end: pos}
			}
			cur.lines = append(cur.lines, enc.decode(runes)...)
		}
	}
	flush()
	return out
}

// lineEncoder maps each distinct line to one rune so diffmatchpatch diffs
// whole lines. Runes skip the surrogate block, which would not survive a
// round trip through string.
type lineEncoder struct {
	index map[string]rune
	lines []string
}

func newLineEncoder() *lineEncoder {
	return &lineEncoder{index: make(map[string]rune)}
}

func (e *lineEncoder) encode(lines []string) ([]rune, error) {
	out := make([]rune, len(lines))
	for i, line := range lines {
		r, ok := e.index[line]
		if !ok {
			if len(e.lines) >= maxLines {
				return nil, ErrTooManyLines
			}
			r = lineRune(len(e.lines))
			e.index[line] = r
			e.lines = append(e.lines, line)
		}
		out[i] = r
	}
	return out, nil
}

func (e *lineEncoder) decode(runes []rune) []string {
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = e.lines[runeIndex(r)]
	}
	return out
}

const surrogateMin, surrogateSize = 0xD800, 0x800

// maxLines is the number of line runes in 1..utf8.MaxRune outside the
// surrogate block.
const maxLines = utf8.MaxRune - surrogateSize

func lineRune(i int) rune {
	r := rune(i + 1)
	if r >= surrogateMin {
		r += surrogateSize
	}
	return r
}

func runeIndex(r rune) int {
	if r >= surrogateMin+surrogateSize {
		r -= surrogateSize
	}
	return int(r) - 1
}

// splitLines splits s after each newline. A final line without a newline
// is kept as its own element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
