// Command xlsxdump opens an XLSX file and either lists its sheets or
// dumps one sheet as tab-separated rows to stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mholt-reader/xlsxreader"
)

func main() {
	list := flag.Bool("list", false, "list sheet names and exit")
	sheet := flag.String("sheet", "", "sheet name to dump (default: first sheet)")
	skipEmpty := flag.Bool("skip-empty", false, "omit gaps between populated cells")
	colNames := flag.Bool("col-names", false, "use column letters (A, B, ...) instead of numeric indexes")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: xlsxdump [-list] [-sheet NAME] [-skip-empty] [-col-names] FILE.xlsx")
		os.Exit(2)
	}

	r, err := xlsxreader.Open(flag.Arg(0),
		xlsxreader.WithSkipEmptyCells(*skipEmpty),
		xlsxreader.WithOutputColumnNames(*colNames),
	)
	if err != nil {
		log.Fatalf("xlsxdump: open: %v", err)
	}
	defer r.Close()

	if *list {
		for _, s := range r.Sheets() {
			fmt.Printf("%s\t%s\n", s.Name, visibilityString(s.Visibility))
		}
		return
	}

	if *sheet != "" {
		if err := r.ChangeSheetByName(*sheet); err != nil {
			log.Fatalf("xlsxdump: %v", err)
		}
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	for r.Next() {
		_, values := r.OrderedRow()
		for i, v := range values {
			if i > 0 {
				w.WriteByte('\t')
			}
			fmt.Fprintf(w, "%v", v)
		}
		w.WriteByte('\n')
	}

	if warnings := r.Warnings(); len(warnings) > 0 {
		log.Println("Warnings:", xlsxreader.FormatWarnings(warnings))
	}
}

func visibilityString(v xlsxreader.Visibility) string {
	switch v {
	case xlsxreader.Hidden:
		return "hidden"
	case xlsxreader.VeryHidden:
		return "veryHidden"
	default:
		return "visible"
	}
}

