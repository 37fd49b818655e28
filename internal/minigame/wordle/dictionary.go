package wordle

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
)

//go:embed words.txt
var defaultWords string

// Dictionary answers membership and picks secrets.
type Dictionary interface {
	Contains(word string) bool
	Random(r *rand.Rand) string
}

// WordList is an in-memory Dictionary of WordLength-letter words.
type WordList struct {
	words []string
	set   map[string]struct{}
}

// ParseWordList reads one word per line. Blank lines and lines starting with '#' are
// skipped; words that are not WordLength ASCII letters are dropped.
func ParseWordList(r io.Reader) (*WordList, error) {
	wl := &WordList{set: make(map[string]struct{})}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		w, ok := normalize(line)
		if !ok {
			continue
		}
		if _, dup := wl.set[w]; dup {
			continue
		}
		wl.set[w] = struct{}{}
		wl.words = append(wl.words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	if len(wl.words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return wl, nil
}

// DefaultWordList is the embedded list.
func DefaultWordList() *WordList {
	wl, err := ParseWordList(strings.NewReader(defaultWords))
	if err != nil {
		panic("wordle: embedded word list: " + err.Error())
	}
	return wl
}

// LoadWordList reads path, or returns the embedded list when path is empty.
func LoadWordList(path string) (*WordList, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultWordList(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	return ParseWordList(f)
}

func (wl *WordList) Contains(word string) bool {
	w, ok := normalize(word)
	if !ok {
		return false
	}
	_, found := wl.set[w]
	return found
}

func (wl *WordList) Random(r *rand.Rand) string {
	return wl.words[r.Intn(len(wl.words))]
}

func (wl *WordList) Len() int { return len(wl.words) }

func normalize(s string) (string, bool) {
	w := strings.ToLower(strings.TrimSpace(s))
	if len(w) != WordLength {
		return "", false
	}
	for i := 0; i < len(w); i++ {
		if w[i] < 'a' || w[i] > 'z' {
			return "", false
		}
	}
	return w, true
}
