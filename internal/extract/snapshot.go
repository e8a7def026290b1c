package extract

// Props is one bundle of internal component state observed at a single step
// of a node's state chain walk. Values are decoded JSON: strings, numbers,
// or nested maps.
type Props map[string]any

// str digs a string value out of a props bundle, following nested maps.
func (p Props) str(path ...string) string {
	var cur any = map[string]any(p)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[key]
		if !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}

// Ancestor is one level of a node's ancestor chain, carrying the texts of
// the sibling subtrees at that level in document order.
type Ancestor struct {
	SiblingTexts []string
}

// Node is a text-bearing element of a rendered thread snapshot. StateChain
// holds the internal component state encountered while walking upward from
// the node, nearest entries first, already bounded by the capturing side.
type Node struct {
	Text        string
	ChildLevels int
	StateChain  []Props
	Ancestors   []Ancestor
}

// Snapshot is the extractor's view of the currently rendered thread pane.
// It is produced in one shot by the surface capability; extraction never
// navigates or scrolls.
type Snapshot struct {
	Nodes []Node
}
