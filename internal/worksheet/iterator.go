// Package worksheet implements the pull-based worksheet row iterator
// described in spec §4.5: a state machine over sheetN.xml that emits one
// row at a time, honoring sparse columns, shared-string cells, and
// style-driven number formatting.
package worksheet

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/mholt-reader/xlsxreader/internal/colref"
	"github.com/mholt-reader/xlsxreader/internal/sharedstrings"
	"github.com/mholt-reader/xlsxreader/internal/styles"
	"github.com/mholt-reader/xlsxreader/internal/xmlpull"
)

// State is the row iterator's lifecycle state.
type State int

const (
	Closed State = iota
	OpenBeforeFirstRow
	InsideRow
	BetweenRows
	Ended
)

// Row is an ordered mapping from 0-based column index to value, per spec
// §3. A value is a string, or a time.Time when the iterator was built
// with ReturnDateTimeObjects and the cell is style-classified as a date
// or time. Keys may be remapped to letters by the caller via colref.
type Row struct {
	Values map[int]any
	Keys   []int // ascending, the keys actually present (dense after fill)
}

// Options configures row emission, mirroring the relevant subset of
// spec §6's Reader configuration.
type Options struct {
	SkipEmptyCells bool
}

// Iterator pulls rows from one worksheet part that has already been
// extracted to a seekable path on disk (see spec §2's data-flow note on
// extracting worksheet parts to a temp directory).
type Iterator struct {
	diskPath string
	strings  *sharedstrings.Store
	styleTbl *styles.Table
	opts     Options

	state     State
	rowNumber int
	valid     bool

	r      *xmlpull.Reader
	closer func() error
}

// New builds an Iterator over the worksheet XML already extracted to
// diskPath.
func New(diskPath string, strs *sharedstrings.Store, styleTbl *styles.Table, opts Options) *Iterator {
	return &Iterator{diskPath: diskPath, strings: strs, styleTbl: styleTbl, opts: opts, state: Closed}
}

// Rewind (re)opens the worksheet XML, per spec §4.5.
func (it *Iterator) Rewind() error {
	it.closeStream()
	stream, err := os.Open(it.diskPath)
	if err != nil {
		it.state = Ended
		it.valid = false
		return fmt.Errorf("worksheet: open %s: %w", it.diskPath, err)
	}
	it.closer = stream.Close
	it.r = xmlpull.Open(stream)
	it.rowNumber = 0
	it.valid = true
	it.state = OpenBeforeFirstRow
	return nil
}

func (it *Iterator) closeStream() {
	if it.closer != nil {
		it.closer()
		it.closer = nil
	}
	it.r = nil
}

// Valid reports whether the worksheet stream is still usable.
func (it *Iterator) Valid() bool { return it.valid }

// RowNumber returns the 1-based row number of the row last produced.
func (it *Iterator) RowNumber() int { return it.rowNumber }

// Close releases the underlying stream.
func (it *Iterator) Close() {
	it.closeStream()
	it.state = Closed
	it.valid = false
}

// Next implements spec §4.5's next(): advances row_number and produces
// the row with that 1-based identifier.
func (it *Iterator) Next() (Row, error) {
	it.rowNumber++
	if !it.valid || it.r == nil {
		return Row{}, fmt.Errorf("worksheet: Next called with no open stream")
	}

	// InsideRow: an earlier call left the reader on a <row> start tag
	// whose cells are not yet read; otherwise scan to the next one.
	if it.state != InsideRow {
		ok, err := it.r.NextNS("row", xmlpull.NSXLSXMain)
		if err != nil {
			it.valid = false
			it.state = Ended
			return Row{}, fmt.Errorf("worksheet: corrupt worksheet stream: %w", err)
		}
		if !ok {
			it.valid = false
			it.state = Ended
			return Row{}, nil
		}
	}

	declaredWidth := 0
	if spans, ok := it.r.Attribute("spans", xmlpull.NSNone); ok {
		declaredWidth = parseSpansWidth(spans)
	}

	actualRowNum := it.rowNumber
	if rAttr, ok := it.r.Attribute("r", xmlpull.NSNone); ok {
		if n, err := strconv.Atoi(rAttr); err == nil {
			actualRowNum = n
		}
	}

	if actualRowNum > it.rowNumber {
		// sparse: this <row> belongs to a later row number. Do not
		// consume its cells; stay on its start tag for a later Next and
		// emit a blank placeholder for the expected row number instead.
		it.state = InsideRow
		return it.blankRow(declaredWidth), nil
	}
	if actualRowNum != it.rowNumber {
		// this <row> declares an earlier row number: skip it and emit a
		// blank placeholder for the expected row number.
		if err := it.r.Skip(); err != nil {
			it.valid = false
			it.state = Ended
			return Row{}, fmt.Errorf("worksheet: skip unmatched row: %w", err)
		}
		return it.blankRow(declaredWidth), nil
	}

	it.state = InsideRow
	row, err := it.readRowCells(declaredWidth)
	it.state = BetweenRows
	return row, err
}

func (it *Iterator) blankRow(declaredWidth int) Row {
	if declaredWidth <= 0 {
		return Row{Values: map[int]any{}, Keys: nil}
	}
	values := make(map[int]any, declaredWidth)
	keys := make([]int, declaredWidth)
	for i := 0; i < declaredWidth; i++ {
		values[i] = ""
		keys[i] = i
	}
	return Row{Values: values, Keys: keys}
}

func (it *Iterator) readRowCells(declaredWidth int) (Row, error) {
	values := map[int]any{}
	maxIndex := declaredWidth - 1

	prevCol := -1
	for {
		if !it.r.Read() {
			it.valid = false
			return Row{}, fmt.Errorf("worksheet: unexpected EOF inside row %d", it.rowNumber)
		}
		if it.r.IsClosingTag() {
			if it.r.LocalName() == "row" {
				break
			}
			continue
		}
		if m, _ := it.r.MatchesElement("c", xmlpull.NSXLSXMain); m {
			col, cellType, styleIdx := readCellHead(it.r, prevCol)
			prevCol = col
			if col > maxIndex {
				maxIndex = col
			}
			if !it.opts.SkipEmptyCells {
				if _, exists := values[col]; !exists {
					values[col] = ""
				}
			}
			raw, err := it.readCellValue(cellType)
			if err != nil {
				// malformed sub-element: skip, emit best-obtainable row
				continue
			}
			var value any = raw
			if raw != "" || cellType != "" {
				if formatted, ferr := it.formatCellValue(raw, styleIdx); ferr == nil {
					value = formatted
				}
			}
			values[col] = value
			continue
		}
		// everything else at this level (e.g. <mergeCell>, stray
		// whitespace): ignore and keep reading tokens linearly.
	}

	return it.finishRow(values, maxIndex), nil
}

// readCellHead consumes a <c> start element's attributes: column index
// (from r=, or prevCol+1), shared-string flag, and style index.
func readCellHead(r *xmlpull.Reader, prevCol int) (col int, cellType string, styleIdx int) {
	cellType, _ = r.Attribute("t", xmlpull.NSNone)
	styleIdx = -1
	if s, ok := r.Attribute("s", xmlpull.NSNone); ok {
		if n, err := strconv.Atoi(s); err == nil {
			styleIdx = n
		}
	}
	if ref, ok := r.Attribute("r", xmlpull.NSNone); ok {
		letters, _ := colref.SplitCellRef(ref)
		if idx := colref.ToIndex(letters); idx >= 0 {
			return idx, cellType, styleIdx
		}
	}
	return prevCol + 1, cellType, styleIdx
}

// readCellValue reads the <v> or <is> child of the current <c> and
// resolves shared strings, per spec §4.5.
func (it *Iterator) readCellValue(cellType string) (string, error) {
	value := ""
	for {
		if !it.r.Read() {
			return value, fmt.Errorf("worksheet: unexpected EOF inside cell")
		}
		if it.r.IsClosingTag() {
			if it.r.LocalName() == "c" {
				return value, nil
			}
			continue
		}
		if m, _ := it.r.MatchesElement("v", xmlpull.NSXLSXMain); m {
			text, err := it.r.Text()
			if err != nil {
				return value, err
			}
			value = text
			if cellType == "s" {
				if idx, cerr := strconv.Atoi(text); cerr == nil && it.strings != nil {
					resolved, serr := it.strings.Get(idx)
					if serr == nil {
						value = resolved
					}
				}
			}
			continue
		}
		if m, _ := it.r.MatchesElement("is", xmlpull.NSXLSXMain); m {
			text, err := it.readInlineStr()
			if err != nil {
				return value, err
			}
			value = text
			continue
		}
		if m, _ := it.r.MatchesElement("f", xmlpull.NSXLSXMain); m {
			if err := it.r.Skip(); err != nil {
				return value, err
			}
			continue
		}
	}
}

func (it *Iterator) readInlineStr() (string, error) {
	var out string
	for {
		if !it.r.Read() {
			return out, fmt.Errorf("worksheet: unexpected EOF inside inline string")
		}
		if it.r.IsClosingTag() {
			if it.r.LocalName() == "is" {
				return out, nil
			}
			continue
		}
		if m, _ := it.r.MatchesElement("t", xmlpull.NSXLSXMain); m {
			text, err := it.r.Text()
			if err != nil {
				return out, err
			}
			out += text
		}
	}
}

func (it *Iterator) formatCellValue(value string, styleIdx int) (any, error) {
	if it.styleTbl == nil {
		return value, nil
	}
	if styleIdx > 0 {
		return it.styleTbl.FormatValue(value, styleIdx)
	}
	if value != "" {
		return it.styleTbl.FormatValue(value, -1) // -1 resolves to general formatting for "0/unknown but truthy"
	}
	return value, nil
}

// finishRow implements the post-row densification from spec §4.5.
func (it *Iterator) finishRow(values map[int]any, maxIndex int) Row {
	if maxIndex >= 0 && !it.opts.SkipEmptyCells {
		for i := 0; i <= maxIndex; i++ {
			if _, ok := values[i]; !ok {
				values[i] = ""
			}
		}
	}
	keys := make([]int, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	if it.opts.SkipEmptyCells {
		nonEmpty := make([]int, 0, len(keys))
		for _, k := range keys {
			if s, ok := values[k].(string); !ok || s != "" {
				nonEmpty = append(nonEmpty, k)
			}
		}
		if len(nonEmpty) == 0 {
			return Row{Values: map[int]any{0: nil}, Keys: []int{0}}
		}
		keys = nonEmpty
	}

	return Row{Values: values, Keys: keys}
}

func parseSpansWidth(spans string) int {
	for i := 0; i < len(spans); i++ {
		if spans[i] == ':' {
			n, err := strconv.Atoi(spans[i+1:])
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}
