package registry

import (
	"slices"
	"strings"
	"time"
)

var timeNow = time.Now

// sortFiles orders newest first; ULIDs break ties.
func sortFiles(files []*File) {
	slices.SortFunc(files, func(a, b *File) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}
