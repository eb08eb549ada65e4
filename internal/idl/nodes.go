package idl

// Node is the closed set of intermediate nodes the driver interprets.
type Node interface {
	Info() *NodeInfo
	node()
}

// NodeInfo holds the static properties computed while lowering.
type NodeInfo struct {
	Actions    []ReferenceAction
	Directions DirectionSet
	// Groupable nodes may share a Step with their neighbours.
	Groupable bool
	// FirstRequests are the requests that may be consumed first when the
	// node runs; NoRequest and BreakRequest mark the ways it may complete
	// without consuming any.
	FirstRequests RequestSet
	// ConsumesRequests is set when the node, or any node below it, reads
	// from the evaluator.
	ConsumesRequests bool
	// Responds is set when the node, or any node below it, answers the
	// evaluator.
	Responds bool
}

type baseNode struct {
	info NodeInfo
}

func (b *baseNode) Info() *NodeInfo { return &b.info }
func (*baseNode) node()             {}

type (
	// StatementNode wraps a read, write, checkpoint, break, exit or return.
	StatementNode struct {
		baseNode
		Statement Statement
	}

	// CallArgumentsNode consumes the function_call request of a call.
	CallArgumentsNode struct {
		baseNode
		Call *CallStatement
	}

	// CallCallbacksNode serves the callbacks the process invokes during a
	// call. Bodies are aligned with Call.Callbacks.
	CallCallbacksNode struct {
		baseNode
		Call   *CallStatement
		Bodies []*BlockNode
	}

	// CallReturnNode reads the return value and answers the evaluator.
	CallReturnNode struct {
		baseNode
		Call *CallStatement
	}

	// CallbackEndNode consumes the acknowledgement of a procedure callback.
	CallbackEndNode struct {
		baseNode
	}

	RequestLookaheadNode struct {
		baseNode
	}

	// ResolveIfNode assigns Cond from the pending request. Then and Else
	// include the requests following the if when a branch can fall through.
	ResolveIfNode struct {
		baseNode
		Cond *ReferenceExpr
		Then RequestSet
		Else RequestSet
	}

	ResolveSwitchNode struct {
		baseNode
		Value *ReferenceExpr
		Cases []ResolveCase
	}

	IfNode struct {
		baseNode
		Cond Expression
		Then *BlockNode
		// Else is an empty block when the source has no else branch.
		Else *BlockNode
	}

	SwitchNode struct {
		baseNode
		Value Expression
		Cases []*CaseNode
	}

	// ForNode runs Body once per index value in [0, Range). Fills lists
	// the array references it allocates, one level above the loop index.
	ForNode struct {
		baseNode
		Index *Variable
		Range Expression
		Body  *BlockNode
		Scope *Scope
		Fills []Reference
	}

	LoopNode struct {
		baseNode
		Body  *BlockNode
		Scope *Scope
	}

	// Step is a batch of nodes moving data in at most one direction.
	Step struct {
		baseNode
		Children []Node
	}

	BlockNode struct {
		baseNode
		Children []Node
	}
)

// ResolveCase pairs a switch label with the requests that select it.
type ResolveCase struct {
	Label    int64
	Requests RequestSet
}

// CaseNode is a lowered switch arm.
type CaseNode struct {
	Labels []int64
	Body   *BlockNode
}
