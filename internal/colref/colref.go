// Package colref converts between spreadsheet column letters and 0-based
// column indices (A=0, B=1, ..., Z=25, AA=26, AB=27, ...).
package colref

import "strings"

// ToIndex converts a column letter string to a 0-indexed column number.
// It returns -1 if col contains anything other than A-Z/a-z letters.
func ToIndex(col string) int {
	if col == "" {
		return -1
	}
	col = strings.ToUpper(col)
	result := 0
	for _, c := range col {
		if c < 'A' || c > 'Z' {
			return -1
		}
		result = result*26 + int(c-'A') + 1
	}
	return result - 1
}

// ToLetters converts a 0-indexed column number to its letter form.
// 0=A, 1=B, ..., 25=Z, 26=AA, 27=AB, ...
func ToLetters(index int) string {
	if index < 0 {
		return ""
	}

	var b []byte
	index++
	for index > 0 {
		index--
		b = append([]byte{byte('A' + index%26)}, b...)
		index /= 26
	}
	return string(b)
}

// SplitCellRef splits a cell reference such as "AA100" into its column
// letters and row-number substrings without parsing the row number.
func SplitCellRef(ref string) (letters, digits string) {
	i := 0
	for i < len(ref) && isLetter(ref[i]) {
		i++
	}
	return ref[:i], ref[i:]
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
