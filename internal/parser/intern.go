package parser

// maxPooledIDs bounds an idPool; past it strings are returned as-is.
const maxPooledIDs = 4096

// idPool deduplicates the id and name columns of a feed, which repeat on
// every line reported by the same drone. A pool belongs to one Parse call.
type idPool struct {
	pool map[string]string
	max  int
}

func newIDPool(max int) *idPool {
	return &idPool{pool: make(map[string]string, 64), max: max}
}

// intern returns the pooled copy of s.
func (p *idPool) intern(s string) string {
	if pooled, ok := p.pool[s]; ok {
		return pooled
	}
	if len(p.pool) >= p.max {
		return s
	}
	p.pool[s] = s
	return s
}

func (p *idPool) len() int {
	return len(p.pool)
}
