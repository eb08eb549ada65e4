package idl

import (
	"fmt"
	"strings"
)

// Describe renders the constants, method signatures and globals of the
// interface. The output only depends on the source text.
func (i *Interface) Describe() string {
	var b strings.Builder
	for _, c := range i.Constants {
		fmt.Fprintf(&b, "const %s = %d;\n", c.Name, c.Value)
	}
	for _, m := range i.Methods {
		b.WriteString(m.Signature())
		if !m.HasCallbacks() {
			b.WriteString(";\n")
			continue
		}
		b.WriteString(" callbacks {\n")
		for _, cb := range m.Callbacks {
			fmt.Fprintf(&b, "    %s;\n", cb.Signature())
		}
		b.WriteString("}\n")
	}
	if len(i.Globals) > 0 {
		names := make([]string, len(i.Globals))
		for k, g := range i.Globals {
			names[k] = g.Name + strings.Repeat("[]", g.Dimensions)
		}
		fmt.Fprintf(&b, "global %s;\n", strings.Join(names, ", "))
	}
	return b.String()
}

// Dump renders the lowered node tree, one node per line.
func (i *Interface) Dump() string {
	var b strings.Builder
	dumpNode(&b, i.root, 0)
	return b.String()
}

func dumpNode(b *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	line := func(format string, args ...interface{}) {
		b.WriteString(indent)
		fmt.Fprintf(b, format, args...)
		b.WriteString("\n")
	}

	switch n := n.(type) {
	case *BlockNode:
		line("block")
		for _, c := range n.Children {
			dumpNode(b, c, depth+1)
		}
	case *Step:
		line("step %s", directionsString(n.info.Directions))
		for _, c := range n.Children {
			dumpNode(b, c, depth+1)
		}
	case *StatementNode:
		line("%s", statementString(n.Statement))
	case *CallArgumentsNode:
		line("call-arguments %s", n.Call.Method.Name)
	case *CallCallbacksNode:
		line("call-callbacks %s", n.Call.Method.Name)
		for k, body := range n.Bodies {
			b.WriteString(indent + "  " + n.Call.Callbacks[k].Callback.Name + ":\n")
			dumpNode(b, body, depth+2)
		}
	case *CallReturnNode:
		line("call-return %s", n.Call.Method.Name)
	case *CallbackEndNode:
		line("callback-end")
	case *RequestLookaheadNode:
		line("lookahead")
	case *ResolveIfNode:
		line("resolve-if %s then=%v else=%v", n.Cond, n.Then.Sorted(), n.Else.Sorted())
	case *ResolveSwitchNode:
		line("resolve-switch %s", n.Value)
	case *IfNode:
		line("if %s", ExpressionString(n.Cond))
		dumpNode(b, n.Then, depth+1)
		dumpNode(b, n.Else, depth+1)
	case *SwitchNode:
		line("switch %s", ExpressionString(n.Value))
		for _, cs := range n.Cases {
			b.WriteString(fmt.Sprintf("%s  case %v:\n", indent, cs.Labels))
			dumpNode(b, cs.Body, depth+2)
		}
	case *ForNode:
		line("for %s to %s", n.Index.Name, ExpressionString(n.Range))
		dumpNode(b, n.Body, depth+1)
	case *LoopNode:
		line("loop")
		dumpNode(b, n.Body, depth+1)
	default:
		line("%T", n)
	}
}

func directionsString(s DirectionSet) string {
	var parts []string
	for _, d := range []Direction{Downward, Upward} {
		if s.Has(d) {
			parts = append(parts, d.String())
		}
	}
	if len(parts) == 0 {
		return "[]"
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func statementString(s Statement) string {
	exprs := func(args []Expression) string {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = ExpressionString(a)
		}
		return strings.Join(parts, ", ")
	}
	switch s := s.(type) {
	case *ReadStatement:
		parts := make([]string, len(s.Args))
		for i, a := range s.Args {
			parts[i] = a.String()
		}
		return "read " + strings.Join(parts, ", ")
	case *WriteStatement:
		return "write " + exprs(s.Args)
	case *CheckpointStatement:
		return "checkpoint"
	case *BreakStatement:
		return "break"
	case *ExitStatement:
		return "exit"
	case *ReturnStatement:
		return "return " + ExpressionString(s.Value)
	}
	return fmt.Sprintf("%T", s)
}
