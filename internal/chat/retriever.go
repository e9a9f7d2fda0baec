package chat

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed regulations/*.md
var regulationFS embed.FS

const chunkSize = 500

var boostTerms = []string{"idle", "emission", "bs-vi", "violation", "limit", "zone"}

type Chunk struct {
	ID      string
	Source  string
	Content string
}

// Retriever scores regulation chunks by keyword overlap with a query.
type Retriever struct {
	chunks []Chunk
}

// NewRetriever indexes the regulation documents bundled with the binary.
func NewRetriever() (*Retriever, error) {
	sub, err := fs.Sub(regulationFS, "regulations")
	if err != nil {
		return nil, err
	}
	return LoadRetriever(sub)
}

// LoadRetriever indexes every markdown file at the root of fsys.
func LoadRetriever(fsys fs.FS) (*Retriever, error) {
	names, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	r := &Retriever{}
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		source := strings.TrimSuffix(path.Base(name), path.Ext(name))
		r.chunks = append(r.chunks, chunkDocument(source, string(content))...)
	}
	return r, nil
}

func (r *Retriever) Len() int {
	return len(r.chunks)
}

// Search returns up to max chunks ordered by descending score. Chunks with no
// overlap are never returned.
func (r *Retriever) Search(query string, max int) []Chunk {
	lowered := strings.ToLower(query)
	terms := uniqueTerms(lowered)

	type scored struct {
		score int
		chunk Chunk
	}
	var hits []scored
	for _, c := range r.chunks {
		content := strings.ToLower(c.Content)
		score := 0
		for _, term := range terms {
			score += strings.Count(content, term)
		}
		for _, term := range boostTerms {
			if strings.Contains(lowered, term) && strings.Contains(content, term) {
				score += 5
			}
		}
		if score > 0 {
			hits = append(hits, scored{score: score, chunk: c})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > max {
		hits = hits[:max]
	}
	out := make([]Chunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.chunk)
	}
	return out
}

// Context renders chunks as a prompt section.
func Context(chunks []Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", c.Source, c.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Citations returns the distinct, human readable document titles of chunks.
func Citations(chunks []Chunk) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range chunks {
		title := titleCase(strings.ReplaceAll(c.Source, "_", " "))
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		out = append(out, title)
	}
	return out
}

func chunkDocument(source, content string) []Chunk {
	var chunks []Chunk
	add := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{
			ID:      fmt.Sprintf("%s_chunk_%d", source, len(chunks)),
			Source:  source,
			Content: text,
		})
	}

	for i, section := range strings.Split(content, "\n## ") {
		if i > 0 {
			section = "## " + section
		}
		if len(section) <= chunkSize {
			add(section)
			continue
		}

		var current strings.Builder
		for _, para := range strings.Split(section, "\n\n") {
			if current.Len()+len(para) > chunkSize && current.Len() > 0 {
				add(current.String())
				current.Reset()
			}
			current.WriteString(para)
			current.WriteString("\n\n")
		}
		add(current.String())
	}
	return chunks
}

func uniqueTerms(s string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, f := range strings.Fields(s) {
		f = strings.Trim(f, "?!.,:;\"'()")
		if len(f) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		switch strings.ToLower(w) {
		case "bs", "vi":
			words[i] = strings.ToUpper(w)
		default:
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}
