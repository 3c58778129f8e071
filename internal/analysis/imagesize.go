package analysis

import (
	"strconv"
	"strings"

	"github.com/ironsheep/meme-etl/internal/table"
)

// ParseImageSize extracts height and width from an image_size cell.
//
// Accepted forms are an integer-list cell, a JSON array such as
// "[480, 640, 3]" and a tuple string such as "(480, 640, 3)". At least two
// integers are required; ok is false otherwise.
func ParseImageSize(v table.Value) (height, width int64, ok bool) {
	switch v.Kind() {
	case table.KindInts:
		ints := v.IntList()
		if len(ints) < 2 {
			return 0, 0, false
		}
		return ints[0], ints[1], true
	case table.KindString:
		return parseSizeString(v.Str())
	}
	return 0, 0, false
}

func parseSizeString(s string) (int64, int64, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, 0, false
	}
	first, last := s[0], s[len(s)-1]
	if !(first == '[' && last == ']') && !(first == '(' && last == ')') {
		return 0, 0, false
	}

	var dims []int64
	for _, part := range strings.Split(s[1:len(s)-1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		dims = append(dims, n)
	}
	if len(dims) < 2 {
		return 0, 0, false
	}
	return dims[0], dims[1], true
}
