package xlsxreader

import "fmt"

// Warning is one non-fatal issue surfaced during reading: a failed
// shared-strings prescan, a styles load error, a worksheet part that
// could not be extracted or opened, or an early worksheet termination.
// Malformed spill lines and malformed cell sub-elements are recovered
// silently and produce no Warning. Warnings never replace an error at an API boundary; they
// accumulate alongside a successful result, the way callers of this
// package are expected to log them.
type Warning struct {
	Part string // the package part involved, e.g. "xl/sharedStrings.xml"
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Part, w.Err)
}

// FormatWarnings renders a slice of Warning for logging.
//
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", xlsxreader.FormatWarnings(warnings))
//	}
func FormatWarnings(warnings []Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	out := ""
	for i, w := range warnings {
		if i > 0 {
			out += "; "
		}
		out += w.String()
	}
	return out
}
