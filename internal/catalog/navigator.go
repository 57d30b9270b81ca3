package catalog

import (
	"strconv"
	"strings"
)

func normalize(offset, pageSize int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return offset, pageSize
}

// Previous is the offset one page back, never below zero.
func Previous(offset, pageSize int) int {
	offset, pageSize = normalize(offset, pageSize)
	return max(0, offset-pageSize)
}

// Next is the offset one page forward. It is not bounded; an empty page past
// the end is a valid server answer.
func Next(offset, pageSize int) int {
	offset, pageSize = normalize(offset, pageSize)
	return offset + pageSize
}

func atoiOr(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

// PreviousRaw is Previous over unparsed inputs: a missing or non-numeric
// offset counts as 0 and page size as DefaultPageSize.
func PreviousRaw(offset, pageSize string) int {
	return Previous(atoiOr(offset, 0), atoiOr(pageSize, DefaultPageSize))
}

// NextRaw is Next over unparsed inputs.
func NextRaw(offset, pageSize string) int {
	return Next(atoiOr(offset, 0), atoiOr(pageSize, DefaultPageSize))
}
