package foreign

import "strings"

// Path is the traversal path from a root namespace to a proxy, e.g.
// tensorflow.train.GradientDescentOptimizer().minimize.
type Path []string

// Child returns the path extended by name.
func (p Path) Child(name string) Path {
	cpy := make(Path, len(p), len(p)+1)
	copy(cpy, p)
	return append(cpy, name)
}

// Called returns the path of the result of calling p.
func (p Path) Called() Path {
	if len(p) == 0 {
		return Path{"()"}
	}
	cpy := make(Path, len(p))
	copy(cpy, p)
	cpy[len(cpy)-1] += "()"
	return cpy
}

func (p Path) String() string {
	return strings.Join(p, ".")
}
