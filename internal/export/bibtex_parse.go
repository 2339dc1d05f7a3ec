package export

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/matsen/citenet/internal/doi"
)

// BibTeXIndex indexes existing BibTeX entries for deduplication.
type BibTeXIndex struct {
	// Keys maps citation keys to true for existence check
	Keys map[string]bool
	// DOIs maps normalized DOI values to citation keys
	DOIs map[string]string
}

// NewBibTeXIndex creates an empty BibTeX index.
func NewBibTeXIndex() *BibTeXIndex {
	return &BibTeXIndex{
		Keys: make(map[string]bool),
		DOIs: make(map[string]string),
	}
}

// HasEntry returns true if the entry already exists. DOI is the primary
// match; the citation key is the fallback.
func (idx *BibTeXIndex) HasEntry(key, id string) bool {
	if id != "" {
		if _, exists := idx.DOIs[doi.Normalize(id)]; exists {
			return true
		}
	}
	return idx.Keys[key]
}

var (
	entryStartRegex = regexp.MustCompile(`@\w+\{([^,]+),`)
	doiFieldRegex   = regexp.MustCompile(`(?i)^\s*doi\s*=\s*[\{"]([^\}"]+)[\}"]`)
)

// ParseBibTeXFile builds an index from an existing .bib file.
// Returns an empty index if the file doesn't exist.
func ParseBibTeXFile(path string) (*BibTeXIndex, error) {
	idx := NewBibTeXIndex()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var currentKey string

	for scanner.Scan() {
		line := scanner.Text()

		if matches := entryStartRegex.FindStringSubmatch(line); len(matches) > 1 {
			currentKey = strings.TrimSpace(matches[1])
			idx.Keys[currentKey] = true
		}

		if matches := doiFieldRegex.FindStringSubmatch(line); len(matches) > 1 {
			if d := doi.Normalize(matches[1]); d != "" && currentKey != "" {
				idx.DOIs[d] = currentKey
			}
		}
	}

	return idx, scanner.Err()
}

// AppendToBibFile appends BibTeX content to a file.
func AppendToBibFile(path, content string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString("\n" + content)
	return err
}
