package foreign_test

import (
	"errors"
	"fmt"

	"github.com/feather-lang/foreign"
	"github.com/feather-lang/foreign/graph"
	"github.com/feather-lang/foreign/internal/toyflow"
)

// This example walks a framework namespace, builds a small graph and runs
// it inside a session that is closed on the way out.
func Example() {
	rt := graph.New()
	defer rt.Close()
	if err := toyflow.Register(rt, "tf"); err != nil {
		panic(err)
	}

	tf, _ := foreign.Import(rt, "tf")
	x, _ := tf.Method("placeholder", "float32", foreign.KW("shape", foreign.Shape(foreign.Unknown, 2)))
	loss, _ := tf.Method("reduce_sum", x)
	sgd, _ := tf.Get("train.GradientDescentOptimizer")
	opt, _ := sgd.Call(0.5)
	step, _ := opt.Method("minimize", loss)

	feed := foreign.NewKeyedMap()
	feed.Set(x, [][]float64{{1, 2}, {3, 4}})

	sess, _ := tf.Method("Session")
	err := foreign.With(sess, func(s *foreign.Proxy) error {
		for i := 0; i < 3; i++ {
			if _, err := s.Method("run", step, foreign.KW("feed_dict", feed)); err != nil {
				return err
			}
		}
		out, err := s.Method("run", loss, foreign.KW("feed_dict", feed))
		if err != nil {
			return err
		}
		fmt.Println("loss:", out.Interface())
		return nil
	})
	fmt.Println("err:", err)

	iterations, _ := opt.Attr("iterations")
	closed, _ := sess.Attr("closed")
	fmt.Println("iterations:", iterations.Interface())
	fmt.Println("closed:", closed.Interface())
	// Output:
	// loss: 10
	// err: <nil>
	// iterations: 3
	// closed: true
}

// Integers and floats keep their Go type at the boundary. A parameter that
// expects an integer rejects a float, even a whole one.
func ExampleFrom() {
	for _, v := range []any{2, 2.0, []float64{2}, foreign.Shape(2)} {
		obj, _ := foreign.From(v)
		fmt.Printf("%-6s -> %s %s\n", fmt.Sprint(v), obj.Type(), obj)
	}
	// Output:
	// 2      -> int 2
	// 2      -> double 2.0
	// [2]    -> array array(float64, shape=[1])
	// [2]    -> shape [2]
}

func ExampleNewKeyedMap() {
	x := &foreign.RefType{ID: 1, TypeName: "Tensor", Repr: "<Tensor 'x:0'>"}

	feed := foreign.NewKeyedMap()
	feed.Set(x, 1.5)

	_, byRef := feed.Get(x)
	_, byName := feed.Get("x")
	fmt.Println(byRef, byName)
	// Output: true false
}

func ExampleWith() {
	rt := graph.New()
	defer rt.Close()
	toyflow.Register(rt, "tf")

	tf, _ := foreign.Import(rt, "tf")
	sess, _ := tf.Method("Session")

	errDiverged := errors.New("diverged")
	err := foreign.With(sess, func(*foreign.Proxy) error {
		return errDiverged
	})

	exits, _ := sess.Attr("exits")
	fmt.Println(errors.Is(err, errDiverged), exits.Interface())
	// Output: true 1
}
