package params

// Group is a Parent assembled from fields and named children.
type Group struct {
	fields   []Field
	names    []string
	children map[string]Node
}

// NewGroup creates a group holding fields.
func NewGroup(fields ...Field) *Group {
	return &Group{
		fields:   fields,
		children: make(map[string]Node),
	}
}

// Add registers a named child. A later call with the same name replaces
// the child but keeps its position.
func (g *Group) Add(name string, n Node) *Group {
	if _, ok := g.children[name]; !ok {
		g.names = append(g.names, name)
	}
	g.children[name] = n
	return g
}

// Fields implements Node.
func (g *Group) Fields() []Field {
	return g.fields
}

// Children implements Parent.
func (g *Group) Children() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Child implements Parent.
func (g *Group) Child(name string) (Node, bool) {
	n, ok := g.children[name]
	return n, ok
}

// Empty is a Node without fields.
type Empty struct{}

// Fields implements Node.
func (Empty) Fields() []Field {
	return nil
}
