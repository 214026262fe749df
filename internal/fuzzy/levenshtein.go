package fuzzy

// LevenshteinDistance counts the single-rune insertions, deletions and
// substitutions needed to turn a into b.
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	// a shared prefix or suffix never costs an edit
	for len(ra) > 0 && len(rb) > 0 && ra[0] == rb[0] {
		ra, rb = ra[1:], rb[1:]
	}
	for len(ra) > 0 && len(rb) > 0 && ra[len(ra)-1] == rb[len(rb)-1] {
		ra, rb = ra[:len(ra)-1], rb[:len(rb)-1]
	}
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// row[j] holds the distance between the first i runes of ra and the first
	// j runes of rb; diag is the previous row's value at j-1.
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			above := row[j]
			if ra[i-1] == rb[j-1] {
				row[j] = diag
			} else {
				row[j] = 1 + min(diag, above, row[j-1])
			}
			diag = above
		}
	}
	return row[len(rb)]
}
