package engine

import (
	"time"

	"github.com/example/comment-platform/internal/store"
)

// Node is the wire shape of a comment. A tombstone exposes only its
// position in the tree: user and content are never emitted once a
// comment is removed, regardless of who asks.
type Node struct {
	ID       int64     `json:"id"`
	Removed  bool      `json:"removed"`
	User     *string   `json:"user,omitempty"`
	Datetime time.Time `json:"datetime"`
	Content  *string   `json:"content,omitempty"`
	Article  string    `json:"article"`
	Parent   *int64    `json:"parent"`
	Replies  []Node    `json:"replies,omitempty"`
}

func format(c store.Comment) Node {
	n := Node{
		ID:       c.ID,
		Removed:  c.Removed,
		Datetime: c.Datetime,
		Article:  c.Article,
		Parent:   c.Parent,
	}
	if !c.Removed {
		n.User = c.User
		n.Content = c.Content
	}
	return n
}

// buildForest assembles the forest from flat rows. Comments address
// each other by id only, so the rows group into an arena keyed by
// parent id and the tree is built by recursive lookup. Input order
// (datetime ascending) carries through to both levels.
func buildForest(rows []store.Comment) []Node {
	children := make(map[int64][]store.Comment)
	var roots []store.Comment
	for _, c := range rows {
		if c.Parent == nil {
			roots = append(roots, c)
		} else {
			children[*c.Parent] = append(children[*c.Parent], c)
		}
	}
	out := make([]Node, 0, len(roots))
	for _, r := range roots {
		out = append(out, buildNode(r, children))
	}
	return out
}

func buildNode(c store.Comment, children map[int64][]store.Comment) Node {
	n := format(c)
	for _, child := range children[c.ID] {
		n.Replies = append(n.Replies, buildNode(child, children))
	}
	return n
}
