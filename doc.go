// Package foreign provides dynamic proxies over a foreign object graph,
// such as a deep-learning framework running in another runtime.
//
// # Overview
//
// foreign lets Go code walk and call into a namespace it has no static
// bindings for. It provides:
//
//   - Proxies that resolve members at access time, never at bind time
//   - A value marshaler that keeps integers and floats apart
//   - Shape and keyed-map constructors for arguments a plain list or map
//     cannot express
//   - A scoped context manager that always runs the exit half
//
// The foreign side sits behind the [Runtime] interface. Two runtimes ship
// with the module: package graph hosts a Go object graph in process, and
// package python drives a Python interpreter over pipes.
//
// # Quick Start
//
//	rt, _ := python.Start(python.Config{})
//	defer rt.Close()
//
//	tf, _ := foreign.Import(rt, "tensorflow")
//	f32, _ := tf.Attr("float32")
//	x, _ := tf.Method("placeholder", f32,
//	    foreign.KW("shape", foreign.Shape(foreign.Unknown, 784)))
//	loss, _ := tf.Method("reduce_sum", x, foreign.KW("axis", foreign.Axis(1)))
//
//	sess, _ := tf.Method("Session")
//	err := foreign.With(sess, func(s *foreign.Proxy) error {
//	    feed := foreign.NewKeyedMap()
//	    feed.Set(x, batch)
//	    out, err := s.Method("run", loss, foreign.KW("feed_dict", feed))
//	    ...
//	})
//
// # Resolution
//
// [Proxy.Attr] asks the runtime for a member every time it is called. The
// result is a namespace, a callable, an object or a plain value; a missing
// member is a [*ResolutionError] naming the full path, and
// errors.Is(err, ErrNotFound) holds. [Proxy.Resolve] reports the same
// outcome as a [Resolution] variant instead of an error.
//
// Names starting with an upper-case letter are constructors by convention
// only. They are called exactly like functions.
//
// # Marshaling
//
// Conversion follows the Go type, never the magnitude of a value:
//
//   - int kinds → int, and 2 never becomes 2.0
//   - float kinds → double, and 2.0 never becomes 2
//   - numeric slices of any rank → array; a slice of length one stays a
//     rank-1 array of shape [1] and is never unwrapped to a scalar
//   - []Dim or [Shape] → shape, a list whose [Unknown] entries cross the
//     boundary as None
//   - map[string]T → dict; maps keyed by foreign objects go through
//     [NewKeyedMap] and are matched by identity, never by name
//
// Axis arguments are passed through as written. The marshaler never
// renumbers them: [Axis] 0 is the first dimension.
//
// # Context Managers
//
// [With] enters a foreign context manager, runs the block and exits. Exit
// runs whenever enter succeeded, including after a block error or panic. The
// block's error is returned unchanged; an exit failure is reported as an
// [*ExitError] that unwraps to both the exit error and the block's error, so
// neither is lost. A panic is re-raised after exit.
//
// # Concurrency
//
// Calls are synchronous and block until the foreign side answers. There are
// no timeouts or cancellation at this layer, and a foreign session shared
// between goroutines must be serialized by the caller.
package foreign
