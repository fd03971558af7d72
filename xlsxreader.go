// Package xlsxreader is a pull-based, memory-bounded reader for Office
// Open XML SpreadsheetML (.xlsx) packages. It unzips the package, walks
// its relationship graph, resolves shared-string references through a
// tiered cache/spill strategy, interprets cell styles and number formats,
// and exposes each worksheet as a lazy row iterator.
//
// Basic usage:
//
//	r, err := xlsxreader.Open("report.xlsx")
//	if err != nil {
//	    // handle error
//	}
//	defer r.Close()
//	for r.Next() {
//	    row := r.Row()
//	    _ = row
//	}
//	if len(r.Warnings()) > 0 {
//	    log.Println("Warnings:", xlsxreader.FormatWarnings(r.Warnings()))
//	}
package xlsxreader

import (
	"fmt"
	"os"

	"github.com/mholt-reader/xlsxreader/format"
	"github.com/mholt-reader/xlsxreader/internal/colref"
	"github.com/mholt-reader/xlsxreader/internal/relpkg"
	"github.com/mholt-reader/xlsxreader/internal/sharedstrings"
	"github.com/mholt-reader/xlsxreader/internal/styles"
	"github.com/mholt-reader/xlsxreader/internal/worksheet"
	"github.com/mholt-reader/xlsxreader/internal/xmlpull"
	"github.com/mholt-reader/xlsxreader/internal/zippkg"
	"github.com/mholt-reader/xlsxreader/localedefaults"
)

// SheetInfo is the workbook metadata exposed for one worksheet: its
// declared name and visibility, per spec §3's Worksheet metadata,
// supplemented with the sheet-visibility flag from SPEC_FULL.md.
type SheetInfo struct {
	Name       string
	RelID      string
	Visibility Visibility
}

// Visibility is the <sheet state=...> attribute, read-only metadata that
// does not affect iteration.
type Visibility int

const (
	Visible Visibility = iota
	Hidden
	VeryHidden
)

// Reader is the façade described in spec §4.6: open/close lifecycle,
// sheet enumeration and switching, and the currently active row
// iterator.
type Reader struct {
	cfg Config

	archive *zippkg.Archive
	graph   *relpkg.Graph
	strs    *sharedstrings.Store
	styleTbl *styles.Table

	sheets      []SheetInfo
	currentIdx  int
	iter        *worksheet.Iterator
	currentRow  worksheet.Row

	tempDir   string
	tempFiles []string

	warnings []Warning
}

// Open opens path and fully initializes the façade: relationship graph,
// shared-strings prescan, styles table. The returned Reader must be
// closed by the caller.
func Open(path string, opts ...Option) (*Reader, error) {
	cfg := defaultConfig()
	loc := localedefaults.System()
	cfg.DecimalSeparator = loc.DecimalSeparator
	cfg.ThousandSeparator = loc.ThousandSeparator
	cfg.CurrencyCode = loc.CurrencyCode
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := checkPackageKind(path); err != nil {
		return nil, err
	}

	ar, err := zippkg.Open(path)
	if err != nil {
		return nil, wrapErr(IoUnreadable, err)
	}

	r := &Reader{cfg: cfg, archive: ar, currentIdx: -1}

	tempBase := cfg.TempDir
	if tempBase == "" {
		tempBase = os.TempDir()
	}
	tempDir, err := os.MkdirTemp(tempBase, "xlsxreader-")
	if err != nil {
		ar.Close()
		return nil, wrapErr(IoUnreadable, fmt.Errorf("create temp dir: %w", err))
	}
	r.tempDir = tempDir

	if err := r.initialize(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// checkPackageKind rejects a well-formed zip that is a different OOXML
// package kind (DOCX, PPTX, ODT) with a clear InvalidArg error, instead
// of letting it fail deep inside relationship resolution.
func checkPackageKind(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return wrapErr(IoUnreadable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return wrapErr(IoUnreadable, err)
	}

	kind, err := format.Detect(f, info.Size())
	if err != nil {
		return wrapErr(IoUnreadable, err)
	}
	switch kind {
	case format.XLSX, format.Unknown:
		return nil
	case format.NotAZip:
		return wrapErr(InvalidArg, fmt.Errorf("%s is not a zip archive", path))
	default:
		return wrapErr(InvalidArg, fmt.Errorf("%s looks like a %s package, not XLSX", path, kind))
	}
}

func (r *Reader) initialize() error {
	graph, err := relpkg.Resolve(r.archive)
	if err != nil {
		return wrapErr(CorruptPackage, err)
	}

	declared, date1904, err := readWorkbookSheets(r.archive, graph.Workbook.OriginalPath)
	if err != nil {
		return wrapErr(CorruptPackage, err)
	}
	graph.Date1904 = date1904
	graph.ResolveSheets(declared)
	r.graph = graph

	r.sheets = make([]SheetInfo, len(graph.Sheets))
	for i, s := range graph.Sheets {
		r.sheets[i] = SheetInfo{Name: s.Name, RelID: s.RelID, Visibility: visibilityFromState(s.State)}
	}

	strs, warnings := sharedstrings.Open(r.archive, graph.SharedStrings.OriginalPath, r.tempDir, r.cfg.SharedStrings)
	r.strs = strs
	for _, w := range warnings {
		r.warnings = append(r.warnings, Warning{Part: "xl/sharedStrings.xml", Err: w})
	}
	r.tempFiles = append(r.tempFiles, strs.TempFiles()...)

	fcfg := styles.FormatConfig{
		CustomizedFormats:     r.cfg.CustomizedFormats,
		ForceDateFormat:       r.cfg.ForceDateFormat,
		ForceTimeFormat:       r.cfg.ForceTimeFormat,
		ForceDatetimeFormat:   r.cfg.ForceDatetimeFormat,
		DecimalSeparator:      r.cfg.DecimalSeparator,
		ThousandSeparator:     r.cfg.ThousandSeparator,
		CurrencyCode:          r.cfg.CurrencyCode,
		ReturnDateTimeObjects: r.cfg.ReturnDateTimeObjects,
		Date1904:              graph.Date1904,
	}
	styleTbl, err := styles.Load(r.archive, graph.Styles.OriginalPath, fcfg)
	if err != nil {
		r.warnings = append(r.warnings, Warning{Part: "xl/styles.xml", Err: err})
		styleTbl, _ = styles.Load(r.archive, "", fcfg)
	}
	r.styleTbl = styleTbl

	if len(r.sheets) > 0 {
		r.ChangeSheet(0)
	}
	return nil
}

func visibilityFromState(state string) Visibility {
	switch state {
	case "hidden":
		return Hidden
	case "veryHidden":
		return VeryHidden
	default:
		return Visible
	}
}

// readWorkbookSheets pull-parses workbook.xml for <sheet> entries and the
// date1904 flag, per the data flow in spec §2.
func readWorkbookSheets(ar *zippkg.Archive, partPath string) ([]relpkg.DeclaredSheet, bool, error) {
	stream, err := ar.Open(partPath)
	if err != nil {
		return nil, false, fmt.Errorf("reading workbook part: %w", err)
	}
	defer stream.Close()

	r := xmlpull.Open(stream)
	defer r.Close()

	var sheets []relpkg.DeclaredSheet
	date1904 := false
	for r.Read() {
		if m, _ := r.MatchesElement("workbookPr", xmlpull.NSXLSXMain); m {
			if v, ok := r.Attribute("date1904", xmlpull.NSNone); ok {
				date1904 = v == "1" || v == "true"
			}
			continue
		}
		if m, _ := r.MatchesElement("sheet", xmlpull.NSXLSXMain); m {
			name, _ := r.Attribute("name", xmlpull.NSNone)
			relID, _ := r.Attribute("id", xmlpull.NSRelDoc)
			state, _ := r.Attribute("state", xmlpull.NSNone)
			sheets = append(sheets, relpkg.DeclaredSheet{Name: name, RelID: relID, State: state})
		}
	}
	return sheets, date1904, nil
}

// Sheets returns the ordered list of worksheets, per spec §6.
func (r *Reader) Sheets() []SheetInfo {
	out := make([]SheetInfo, len(r.sheets))
	copy(out, r.sheets)
	return out
}

// ChangeSheet switches the active worksheet and rewinds iteration. An
// out-of-range index returns false and does not mutate state, per spec
// §7's NotFound policy.
func (r *Reader) ChangeSheet(index int) bool {
	if index < 0 || index >= len(r.sheets) {
		return false
	}
	if r.iter != nil {
		r.iter.Close()
	}

	sheetPath, extractErr := r.extractSheetPart(r.graph.Sheets[index].OriginalPath)
	if extractErr != nil {
		r.warnings = append(r.warnings, Warning{Part: r.graph.Sheets[index].OriginalPath, Err: extractErr})
		return false
	}

	r.iter = worksheet.New(sheetPath, r.strs, r.styleTbl, worksheet.Options{SkipEmptyCells: r.cfg.SkipEmptyCells})
	if err := r.iter.Rewind(); err != nil {
		r.warnings = append(r.warnings, Warning{Part: sheetPath, Err: err})
		return false
	}
	r.currentIdx = index
	r.currentRow = worksheet.Row{}
	return true
}

// ChangeSheetByName switches the active worksheet by its declared name,
// returning ErrSheetNotFound when no sheet has that name.
func (r *Reader) ChangeSheetByName(name string) error {
	for i, s := range r.sheets {
		if s.Name == name {
			if !r.ChangeSheet(i) {
				return fmt.Errorf("xlsxreader: sheet %q: %w", name, ErrSheetNotFound)
			}
			return nil
		}
	}
	return ErrSheetNotFound
}

// extractSheetPart decompresses the worksheet part to the reader's temp
// directory, giving the row iterator a seekable on-disk path to reopen
// on every ChangeSheet/Rewind, per spec §2's data flow.
func (r *Reader) extractSheetPart(originalPath string) (string, error) {
	diskPath, err := r.archive.Extract(originalPath, r.tempDir)
	if err != nil {
		return "", fmt.Errorf("extracting worksheet part: %w", err)
	}
	r.tempFiles = append(r.tempFiles, diskPath)
	return diskPath, nil
}

// Next advances the active worksheet iterator by one row and reports
// whether a row is available.
func (r *Reader) Next() bool {
	if r.iter == nil || !r.iter.Valid() {
		return false
	}
	row, err := r.iter.Next()
	if err != nil {
		r.warnings = append(r.warnings, Warning{Part: r.graph.Sheets[r.currentIdx].OriginalPath, Err: err})
		return false
	}
	if !r.iter.Valid() {
		return false
	}
	r.currentRow = row
	return true
}

// Row returns the row most recently produced by Next, remapped to
// column-letter keys when WithOutputColumnNames is set. A value is a
// string, or a time.Time when WithReturnDateTimeObjects is set and the
// cell is a date/time cell.
func (r *Reader) Row() map[string]any {
	out := make(map[string]any, len(r.currentRow.Keys))
	for _, k := range r.currentRow.Keys {
		key := fmt.Sprintf("%d", k)
		if r.cfg.OutputColumnNames {
			key = colref.ToLetters(k)
		}
		out[key] = r.currentRow.Values[k]
	}
	return out
}

// OrderedRow returns the row most recently produced by Next as parallel
// slices: column keys in ascending order (letters when
// WithOutputColumnNames is set, numeric strings otherwise) and their
// values. Unlike Row, the order matches the worksheet's column order.
func (r *Reader) OrderedRow() (keys []string, values []any) {
	keys = make([]string, len(r.currentRow.Keys))
	values = make([]any, len(r.currentRow.Keys))
	for i, k := range r.currentRow.Keys {
		key := fmt.Sprintf("%d", k)
		if r.cfg.OutputColumnNames {
			key = colref.ToLetters(k)
		}
		keys[i] = key
		values[i] = r.currentRow.Values[k]
	}
	return keys, values
}

// RowNumber returns the 1-based row number of the row last produced.
func (r *Reader) RowNumber() int {
	if r.iter == nil {
		return 0
	}
	return r.iter.RowNumber()
}

// Valid reports whether the active worksheet iterator can still produce
// rows.
func (r *Reader) Valid() bool {
	return r.iter != nil && r.iter.Valid()
}

// Count returns the number of rows seen so far on the active worksheet.
func (r *Reader) Count() int {
	return r.RowNumber()
}

// Rewind reopens the active worksheet from its first row.
func (r *Reader) Rewind() error {
	if r.iter == nil {
		return fmt.Errorf("xlsxreader: no active sheet")
	}
	return r.iter.Rewind()
}

// Warnings returns every non-fatal issue accumulated since Open.
func (r *Reader) Warnings() []Warning {
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Close releases the zip archive, the shared-strings store, and the
// reader's temp directory. Unlink/rmdir failures are swallowed, per
// spec §7.
func (r *Reader) Close() error {
	if r.iter != nil {
		r.iter.Close()
	}
	if r.strs != nil {
		r.strs.Close()
	}
	if r.archive != nil {
		r.archive.Close()
	}
	if r.tempDir != "" {
		_ = os.RemoveAll(r.tempDir)
	}
	return nil
}

// SheetCount mirrors the teacher's PageCount()-style metadata accessors.
func (r *Reader) SheetCount() int { return len(r.sheets) }

// TempFiles returns every spill and extracted-part path created for this
// Reader, mirroring spec §4.3's temp_files(); Close removes them all.
func (r *Reader) TempFiles() []string {
	out := make([]string, len(r.tempFiles))
	copy(out, r.tempFiles)
	return out
}
