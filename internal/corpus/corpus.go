// Package corpus loads the grant records that retrieval runs over.
//
// A corpus is an ordered, immutable list of grants. The position of a grant
// in the source file (header excluded) is its Index, and every other
// component refers to grants by that Index.
package corpus

// Required column names, matched case-insensitively after trimming.
const (
	ColumnTitle    = "award_title"
	ColumnCategory = "category"
	ColumnAbstract = "abstract"
)

// RequiredColumns lists the columns every corpus source must provide.
var RequiredColumns = []string{ColumnTitle, ColumnCategory, ColumnAbstract}

// Grant is one funded-research record.
type Grant struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Abstract string `json:"abstract"`
}

// Corpus is the ordered collection of grants.
type Corpus struct {
	Source string
	grants []Grant
}

// New builds a corpus from grants, reassigning Index to slice position.
func New(source string, grants []Grant) *Corpus {
	out := make([]Grant, len(grants))
	for i, g := range grants {
		g.Index = i
		out[i] = g
	}
	return &Corpus{Source: source, grants: out}
}

// Len returns the number of grants.
func (c *Corpus) Len() int { return len(c.grants) }

// Get returns the grant at index i.
func (c *Corpus) Get(i int) (Grant, bool) {
	if i < 0 || i >= len(c.grants) {
		return Grant{}, false
	}
	return c.grants[i], true
}

// Grants returns a copy of all grants in order.
func (c *Corpus) Grants() []Grant {
	out := make([]Grant, len(c.grants))
	copy(out, c.grants)
	return out
}

// Abstracts returns the abstracts in corpus order.
func (c *Corpus) Abstracts() []string {
	out := make([]string, len(c.grants))
	for i, g := range c.grants {
		out[i] = g.Abstract
	}
	return out
}

// Categories returns the distinct categories with their grant counts.
func (c *Corpus) Categories() map[string]int {
	counts := make(map[string]int)
	for _, g := range c.grants {
		counts[g.Category]++
	}
	return counts
}
