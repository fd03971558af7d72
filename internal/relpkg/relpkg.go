// Package relpkg resolves the OOXML package-relationship graph: it reads
// the root _rels/.rels file to find the workbook, then the workbook's own
// .rels file to find worksheets, sharedStrings, and styles.
package relpkg

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/mholt-reader/xlsxreader/internal/xmlpull"
	"github.com/mholt-reader/xlsxreader/internal/zippkg"
)

// Element is a single resolved relationship: an in-package path plus the
// id it was addressed by.
type Element struct {
	ID           string
	OriginalPath string
	Valid        bool
}

// SheetRef is a worksheet relationship paired with its workbook-declared
// name and visibility.
type SheetRef struct {
	Name         string
	RelID        string
	State        string // "", "hidden", "veryHidden"
	OriginalPath string
}

// Graph is the resolved relationship graph for one package.
type Graph struct {
	Workbook      Element
	SharedStrings Element
	Styles        Element
	Sheets        []SheetRef // ordered by the numeric suffix of RelID, per spec
	Date1904      bool

	sheetPathsByRelID map[string]string
}

// ErrCorruptPackage is returned when the workbook relationship is missing
// or invalid.
type ErrCorruptPackage struct {
	Reason string
}

func (e *ErrCorruptPackage) Error() string {
	return fmt.Sprintf("relpkg: corrupt package: %s", e.Reason)
}

// Resolve walks the root and workbook relationship files and returns the
// resolved graph. It does not yet read workbook.xml for sheet names; call
// ResolveSheets after loading the workbook part.
func Resolve(ar *zippkg.Archive) (*Graph, error) {
	rootRels, err := readRelationships(ar, "_rels/.rels")
	if err != nil {
		return nil, fmt.Errorf("relpkg: reading root relationships: %w", err)
	}

	g := &Graph{}
	var workbookRel rawRelationship
	found := false
	for _, r := range rootRels {
		if discriminator(r.Type) == "officeDocument" {
			workbookRel = r
			found = true
			break
		}
	}
	if !found {
		return nil, &ErrCorruptPackage{Reason: "no officeDocument relationship in _rels/.rels"}
	}

	workbookPath := normalizeTarget(workbookRel.Target, "")
	g.Workbook = Element{ID: workbookRel.ID, OriginalPath: workbookPath, Valid: ar.Locate(workbookPath)}
	if !g.Workbook.Valid {
		return nil, &ErrCorruptPackage{Reason: fmt.Sprintf("workbook part %s missing from package", workbookPath)}
	}

	workbookRelsPath := RelationshipsPathFor(workbookPath)
	wbRels, err := readRelationships(ar, workbookRelsPath)
	if err != nil {
		return nil, fmt.Errorf("relpkg: reading workbook relationships: %w", err)
	}

	workbookDir := path.Dir(workbookPath)
	if workbookDir == "." {
		workbookDir = ""
	}

	sheetPaths := make(map[string]string)
	for _, r := range wbRels {
		target := normalizeTarget(r.Target, workbookDir)
		switch discriminator(r.Type) {
		case "worksheet":
			sheetPaths[r.ID] = target
		case "sharedStrings":
			g.SharedStrings = Element{ID: r.ID, OriginalPath: target, Valid: ar.Locate(target)}
		case "styles":
			g.Styles = Element{ID: r.ID, OriginalPath: target, Valid: ar.Locate(target)}
		default:
			// ignored silently, per spec
		}
	}

	g.sheetPathsByRelID = sheetPaths
	return g, nil
}

// ResolveSheets fills in g.Sheets from the parsed workbook's declared
// <sheet> entries (name, rId, state), matching them against the
// worksheet relationship targets found by Resolve, and orders them by
// the numeric suffix of the relationship id per spec.
func (g *Graph) ResolveSheets(declared []DeclaredSheet) {
	sheets := make([]SheetRef, 0, len(declared))
	for _, d := range declared {
		p, ok := g.sheetPathsByRelID[d.RelID]
		if !ok {
			continue
		}
		sheets = append(sheets, SheetRef{Name: d.Name, RelID: d.RelID, State: d.State, OriginalPath: p})
	}
	sortSheetsByRelIDSuffix(sheets)
	g.Sheets = sheets
}

// DeclaredSheet is one <sheet> entry from workbook.xml, before relationship
// resolution.
type DeclaredSheet struct {
	Name  string
	RelID string
	State string
}

func sortSheetsByRelIDSuffix(sheets []SheetRef) {
	// insertion sort is fine: workbooks have dozens of sheets, not millions.
	for i := 1; i < len(sheets); i++ {
		j := i
		for j > 0 && relIDSuffix(sheets[j-1].RelID) > relIDSuffix(sheets[j].RelID) {
			sheets[j-1], sheets[j] = sheets[j], sheets[j-1]
			j--
		}
	}
}

func relIDSuffix(relID string) int {
	i := len(relID)
	for i > 0 && relID[i-1] >= '0' && relID[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(relID[i:])
	if err != nil {
		return 0
	}
	return n
}

func discriminator(relType string) string {
	if idx := strings.LastIndex(relType, "/"); idx >= 0 {
		return relType[idx+1:]
	}
	return relType
}

// normalizeTarget applies spec §4.2 path normalization: backslashes
// become slashes; a leading slash means absolute-in-package; otherwise
// the target is relative to referDir (the parent of the referring file's
// _rels directory).
func normalizeTarget(target, referDir string) string {
	target = strings.ReplaceAll(target, "\\", "/")
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	if referDir == "" {
		return path.Clean(target)
	}
	return path.Clean(referDir + "/" + target)
}

// RelationshipsPathFor returns the .rels file that describes p, per the
// utility in spec §4.2.
func RelationshipsPathFor(p string) string {
	if p == "" {
		return "_rels/.rels"
	}
	if strings.HasSuffix(p, "/") {
		return p + "_rels/.rels"
	}
	dir := path.Dir(p)
	base := path.Base(p)
	if dir == "." {
		return "_rels/" + base + ".rels"
	}
	return dir + "/_rels/" + base + ".rels"
}

type rawRelationship struct {
	ID     string
	Type   string
	Target string
}

func readRelationships(ar *zippkg.Archive, relsPath string) ([]rawRelationship, error) {
	if !ar.Locate(relsPath) {
		// absence of a non-root .rels file is reported by the caller via
		// an empty slice; absence of the root file is the caller's problem.
		return nil, nil
	}
	stream, err := ar.Open(relsPath)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	r := xmlpull.Open(stream)
	defer r.Close()

	var rels []rawRelationship
	for r.Read() {
		if m, _ := r.MatchesElement("Relationship", xmlpull.NSRelPkg); m {
			id, _ := r.Attribute("Id", xmlpull.NSNone)
			typ, _ := r.Attribute("Type", xmlpull.NSNone)
			tgt, _ := r.Attribute("Target", xmlpull.NSNone)
			rels = append(rels, rawRelationship{ID: id, Type: typ, Target: tgt})
		}
	}
	return rels, nil
}
