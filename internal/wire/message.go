package wire

// Operations understood by a bridge.
const (
	OpImport  = "import"
	OpGetAttr = "getattr"
	OpCall    = "call"
	OpEnter   = "enter"
	OpExit    = "exit"
	OpDir     = "dir"
	OpClose   = "close"
)

// Request is sent by the host for every operation.
type Request struct {
	Op      string   `json:"op"`
	Module  string   `json:"module,omitempty"`
	Ref     uint64   `json:"ref,omitempty"`
	Name    string   `json:"name,omitempty"`
	Args    []*Value `json:"args,omitempty"`
	Kwargs  []Kwarg  `json:"kwargs,omitempty"`
	Failure *Failure `json:"failure,omitempty"` // exit: error that ended the block
}

// Kwarg is a keyword argument on the wire. Order is preserved.
type Kwarg struct {
	Name  string `json:"name"`
	Value *Value `json:"value"`
}

// Failure describes an error raised on either side.
type Failure struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
	NotFound  bool   `json:"not_found,omitempty"` // missing module or attribute
}

// Response answers a Request. Exactly one of Value, Names and Error is
// meaningful for a given operation.
type Response struct {
	Value *Value   `json:"value,omitempty"`
	Names []string `json:"names,omitempty"`
	Error *Failure `json:"error,omitempty"`
}
