package vgraph

// PassNode is a unary node configured entirely by NodeOptions. It draws its
// input through the node program into its own target: with the default
// program it copies, with custom shaders it filters.
type PassNode struct {
	*node
}

// NewPassNode creates a node from opts. Invalid options destroy the
// context, as any other construction failure does.
func NewPassNode(ctx *Context, opts NodeOptions) *PassNode {
	ctx.lock()
	defer ctx.unlock()
	if opts.Name == "" {
		opts.Name = "pass"
	}
	p := &PassNode{}
	p.node = newNode(ctx, opts)
	p.init(p, p)
	return p
}
