package records

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"bizbalance/internal/core"
)

// CategoriesFile is the optional seed file read from the data directory.
const CategoriesFile = "seed_categories.txt"

// LoadCategories returns the suggested categories: the default list followed
// by any extra entries in <dir>/seed_categories.txt. A missing file is not an
// error.
func LoadCategories(dir string) []string {
	cats := append([]string(nil), core.DefaultCategories...)
	if dir != "" {
		cats = append(cats, readLines(filepath.Join(dir, CategoriesFile))...)
	}
	return Dedupe(cats)
}

// MergeCategories appends categories seen in transactions to the suggested
// list, keeping first-seen order.
func MergeCategories(base []string, txs []core.Transaction) []string {
	out := append([]string(nil), base...)
	for _, t := range txs {
		out = append(out, t.Category)
	}
	return Dedupe(out)
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Dedupe drops blanks and case-insensitive duplicates, preserving order.
func Dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
