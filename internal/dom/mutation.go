package dom

// Node is an element a mutation added to the document.
type Node interface {
	Tag() string
	ContainsMedia() bool
}

// Mutation is one batch of structural changes: the element nodes added
// anywhere under the observed subtree.
type Mutation struct {
	Added []Node
}

// Relevant reports whether n is, or contains, a playable or embedding element.
func Relevant(n Node) bool {
	return IsMediaHostTag(n.Tag()) || n.ContainsMedia()
}

// Relevant reports whether any added node warrants a re-scan.
func (m Mutation) Relevant() bool {
	for _, n := range m.Added {
		if Relevant(n) {
			return true
		}
	}
	return false
}
