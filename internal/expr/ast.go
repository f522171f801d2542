// Package expr parses and evaluates a small expression language over
// foreign proxies, used by the interactive shell.
//
// The language covers what is needed to drive a foreign namespace:
//
//	x = tf.placeholder(tf.float32, shape=shape(?, 2), name="x")
//	y = tf.reduce_sum(x, axis=0)
//	with tf.Session() as s: s.run(y, feed_dict={x: [[1.0, 2.0]]})
//
// Integer and float literals keep their type: 2 is an int and 2.0 a
// double. shape(...) builds a shape whose ? or None entries are unknown.
// Dict literals with only string keys build a dict; any other key makes a
// keyed map, matched by object identity.
package expr

import (
	"text/scanner"

	"github.com/feather-lang/foreign"
)

// Node is a parsed expression or statement.
type Node interface {
	Pos() scanner.Position
}

type (
	// Ident is a bare name.
	Ident struct {
		At   scanner.Position
		Name string
	}

	// Literal is a constant value.
	Literal struct {
		At    scanner.Position
		Value *foreign.Obj
	}

	// ShapeLit is shape(d0, d1, ...).
	ShapeLit struct {
		At   scanner.Position
		Dims []Node
	}

	// ListLit is [a, b, ...].
	ListLit struct {
		At    scanner.Position
		Items []Node
	}

	// TupleLit is (a, b, ...) with at least one comma.
	TupleLit struct {
		At    scanner.Position
		Items []Node
	}

	// DictLit is {k: v, ...}.
	DictLit struct {
		At     scanner.Position
		Keys   []Node
		Values []Node
	}

	// Attr is X.Name.
	Attr struct {
		X    Node
		Name string
	}

	// Call is Fn(args, name=value, ...).
	Call struct {
		Fn     Node
		Args   []Node
		Kwargs []Kwarg
	}

	// Assign is Name = Value.
	Assign struct {
		At    scanner.Position
		Name  string
		Value Node
	}

	// Import is import Module [as Alias]. Module may be dotted.
	Import struct {
		At     scanner.Position
		Module []string
		Alias  string
	}

	// With is with Ctx as Name: Body.
	With struct {
		At   scanner.Position
		Ctx  Node
		Name string // may be empty
		Body Node
	}
)

// Kwarg is a keyword argument of a call.
type Kwarg struct {
	Name  string
	Value Node
}

func (n *Ident) Pos() scanner.Position    { return n.At }
func (n *Literal) Pos() scanner.Position  { return n.At }
func (n *ShapeLit) Pos() scanner.Position { return n.At }
func (n *ListLit) Pos() scanner.Position  { return n.At }
func (n *TupleLit) Pos() scanner.Position { return n.At }
func (n *DictLit) Pos() scanner.Position  { return n.At }
func (n *Attr) Pos() scanner.Position     { return n.X.Pos() }
func (n *Call) Pos() scanner.Position     { return n.Fn.Pos() }
func (n *Assign) Pos() scanner.Position   { return n.At }
func (n *Import) Pos() scanner.Position   { return n.At }
func (n *With) Pos() scanner.Position     { return n.At }
