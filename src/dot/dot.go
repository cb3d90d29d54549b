// Package dot renders the AST, per-function CFGs and the call graph as Graphviz DOT text, grounded on the
// node-per-line / "nodeN -> nodeM" edge convention the original implementation's ast.c/cfg_builder.c/calltree.c
// used for the same three diagrams. The teacher repo has no DOT exporter of its own to imitate, so this package
// follows the nodetype.go Print-style recursive walk instead (see DESIGN.md): plain text generation over
// strings.Builder needs no third-party library.
package dot

import (
	"fmt"
	"strings"

	"noobikc/src/ir"
)

// ---------------------
// ----- Functions -----
// ---------------------

// AST renders root (a PROGRAM node) as a "digraph AST" DOT document, one box per node labelled with its
// NodeType and, where present, its Data payload.
func AST(root *ir.Node) string {
	var sb strings.Builder
	sb.WriteString("digraph AST {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded, fontname=\"Courier\", fontsize=10];\n\n")
	counter := 0
	writeASTNode(&sb, root, &counter)
	sb.WriteString("}\n")
	return sb.String()
}

func writeASTNode(sb *strings.Builder, n *ir.Node, counter *int) int {
	id := *counter
	*counter++
	fmt.Fprintf(sb, "  node%d [label=%q];\n", id, n.String())
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		childID := *counter
		fmt.Fprintf(sb, "  node%d -> node%d;\n", id, childID)
		writeASTNode(sb, c, counter)
	}
	return id
}

// CFG renders every function's control-flow graph as one "digraph CFG" document, each function's nodes grouped
// in their own cluster subgraph so a multi-function program renders as clearly separated lanes.
func CFG(cfgs []*ir.CFG) string {
	var sb strings.Builder
	sb.WriteString("digraph CFG {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [fontname=\"Courier\", fontsize=10];\n")
	sb.WriteString("  edge [fontname=\"Courier\", fontsize=9];\n\n")

	for fi, cfg := range cfgs {
		fmt.Fprintf(&sb, "  subgraph cluster_%d {\n", fi)
		fmt.Fprintf(&sb, "    label=%q;\n", cfg.FuncName)
		fmt.Fprintf(&sb, "    style=filled; color=\"#F0F0F0\"; bgcolor=\"#F9F9F9\";\n\n")
		for _, n := range cfg.Nodes {
			fmt.Fprintf(&sb, "    n%d_%d [label=%q, shape=%s];\n", fi, n.Id, nodeLabel(n), nodeShape(n))
		}
		sb.WriteString("  }\n")
		for _, n := range cfg.Nodes {
			if n.DefaultNext != nil {
				fmt.Fprintf(&sb, "  n%d_%d -> n%d_%d;\n", fi, n.Id, fi, n.DefaultNext.Id)
			}
			if n.ConditionalNext != nil {
				fmt.Fprintf(&sb, "  n%d_%d -> n%d_%d [label=\"true\", style=dashed];\n", fi, n.Id, fi, n.ConditionalNext.Id)
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

func nodeLabel(n *ir.CFGNode) string {
	if n.HasError {
		return "[ERROR] " + n.Label
	}
	return n.Label
}

func nodeShape(n *ir.CFGNode) string {
	switch n.Kind {
	case ir.Condition:
		return "diamond"
	case ir.Start, ir.End:
		return "ellipse"
	case ir.CFGError:
		return "octagon"
	default:
		return "box"
	}
}

// CallTree renders a CallGraph as a "digraph CallTree" document, one edge per (caller, callee) pair labelled
// with its call count when greater than one.
func CallTree(cg *ir.CallGraph) string {
	var sb strings.Builder
	sb.WriteString("digraph CallTree {\n")
	sb.WriteString("  rankdir=TD;\n")
	sb.WriteString("  node [fontname=\"Courier\", fontsize=10, shape=box, style=filled, fillcolor=lightblue];\n")
	sb.WriteString("  edge [fontname=\"Courier\", fontsize=9];\n\n")

	seen := make(map[string]bool)
	declareNode := func(name string) {
		if !seen[name] {
			seen[name] = true
			fmt.Fprintf(&sb, "  %q;\n", name)
		}
	}
	for _, e := range cg.Edges() {
		declareNode(e.Caller)
		declareNode(e.Callee)
	}
	for _, e := range cg.Edges() {
		if e.Count > 1 {
			fmt.Fprintf(&sb, "  %q -> %q [label=\"x%d\"];\n", e.Caller, e.Callee, e.Count)
		} else {
			fmt.Fprintf(&sb, "  %q -> %q;\n", e.Caller, e.Callee)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
