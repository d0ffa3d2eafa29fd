// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package prompt

import (
	"text/template"
	"text/template/parse"
)

// refNode records the field chains a template reads from its root data,
// e.g. .brand_voice.emotion becomes brand_voice -> emotion.
type refNode struct {
	children map[string]*refNode
	ranged   bool // ranged over or joined, so it must be a list
}

func newRefNode() *refNode {
	return &refNode{children: map[string]*refNode{}}
}

func (r *refNode) add(path []string, ranged bool) {
	node := r
	for _, p := range path {
		next, ok := node.children[p]
		if !ok {
			next = newRefNode()
			node.children[p] = next
		}
		node = next
	}
	node.ranged = node.ranged || ranged
}

func (r *refNode) leaf() bool { return len(r.children) == 0 }

// fillMissing returns a copy of ctx in which every field the template
// reads from the root exists, so text/template never prints "<no value>".
// Missing leaves become "" (or an empty list when ranged over or passed
// to join) and
// missing parents become empty string maps, which keeps conditionals on
// absent keys false; templates are parsed with missingkey=zero so reads
// through those maps yield "". ctx itself is not modified.
func fillMissing(tmpl *template.Template, ctx Context) map[string]any {
	refs := newRefNode()
	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			walk(t.Tree.Root, []string{}, refs)
		}
	}
	return fillMap(map[string]any(ctx), refs)
}

func fillMap(src map[string]any, refs *refNode) map[string]any {
	out := make(map[string]any, len(src)+len(refs.children))
	for k, v := range src {
		out[k] = v
	}
	for key, ref := range refs.children {
		v, ok := out[key]
		if ref.leaf() {
			if !ok || v == nil {
				out[key] = emptyLeaf(ref)
			}
			continue
		}
		nested, isMap := v.(map[string]any)
		switch {
		case !ok || v == nil || (isMap && len(nested) == 0):
			out[key] = emptyBranch(ref)
		case isMap:
			out[key] = fillMap(nested, ref)
		}
	}
	return out
}

func emptyLeaf(ref *refNode) any {
	if ref.ranged {
		return []string{}
	}
	return ""
}

// emptyBranch stands in for an absent parent key. It is falsy in if and
// with when every child is a plain leaf.
func emptyBranch(ref *refNode) any {
	for _, child := range ref.children {
		if !child.leaf() || child.ranged {
			return fillMap(nil, ref)
		}
	}
	return map[string]string{}
}

// walk collects field references. prefix is the path "." currently
// points to, or nil when dot is something other than a root path (inside
// range, or a with over a non-field pipeline).
func walk(node parse.Node, prefix []string, refs *refNode) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			walk(c, prefix, refs)
		}
	case *parse.ActionNode:
		walkPipe(n.Pipe, prefix, refs, false)
	case *parse.IfNode:
		walkPipe(n.Pipe, prefix, refs, false)
		walk(n.List, prefix, refs)
		walk(n.ElseList, prefix, refs)
	case *parse.WithNode:
		walkPipe(n.Pipe, prefix, refs, false)
		walk(n.List, dotPath(n.Pipe, prefix), refs)
		walk(n.ElseList, prefix, refs)
	case *parse.RangeNode:
		walkPipe(n.Pipe, prefix, refs, true)
		walk(n.List, nil, refs)
		walk(n.ElseList, prefix, refs)
	case *parse.TemplateNode:
		walkPipe(n.Pipe, prefix, refs, false)
	}
}

func walkPipe(pipe *parse.PipeNode, prefix []string, refs *refNode, ranged bool) {
	if pipe == nil {
		return
	}
	// Only a bare field is known to be the ranged value.
	ranged = ranged && len(pipe.Cmds) == 1 && len(pipe.Cmds[0].Args) == 1
	for i, cmd := range pipe.Cmds {
		// {{.tags | join ", "}} pipes a bare field into join.
		piped := i+1 < len(pipe.Cmds) && isJoin(pipe.Cmds[i+1]) && len(cmd.Args) == 1
		list := ranged || isJoin(cmd) || piped
		for _, arg := range cmd.Args {
			walkArg(arg, prefix, refs, list)
		}
	}
}

func isJoin(cmd *parse.CommandNode) bool {
	if len(cmd.Args) == 0 {
		return false
	}
	id, ok := cmd.Args[0].(*parse.IdentifierNode)
	return ok && id.Ident == "join"
}

func walkArg(arg parse.Node, prefix []string, refs *refNode, ranged bool) {
	switch a := arg.(type) {
	case *parse.FieldNode:
		if prefix != nil {
			refs.add(append(append([]string{}, prefix...), a.Ident...), ranged)
		}
	case *parse.VariableNode:
		if len(a.Ident) > 1 && a.Ident[0] == "$" {
			refs.add(a.Ident[1:], ranged)
		}
	case *parse.PipeNode:
		walkPipe(a, prefix, refs, false)
	case *parse.ChainNode:
		walkArg(a.Node, prefix, refs, false)
	}
}

// dotPath returns the root path dot refers to inside a with block whose
// pipeline is a single field chain, or nil otherwise.
func dotPath(pipe *parse.PipeNode, prefix []string) []string {
	if prefix == nil || pipe == nil || len(pipe.Decl) > 0 || len(pipe.Cmds) != 1 {
		return nil
	}
	args := pipe.Cmds[0].Args
	if len(args) != 1 {
		return nil
	}
	f, ok := args[0].(*parse.FieldNode)
	if !ok {
		return nil
	}
	return append(append([]string{}, prefix...), f.Ident...)
}
