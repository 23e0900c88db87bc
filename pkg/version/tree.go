// SPDX-License-Identifier: MPL-2.0

package version

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

const (
	rootNode = 0
	noNode   = -1
)

type (
	// Tree is an ordered map from Version to V, stored as a trie with one node
	// per version part. A node is present iff a value has been stored for its
	// exact version; absent nodes only exist to hold present descendants.
	//
	// The zero Tree is empty and ready to use.
	Tree[V any] struct {
		nodes []treeNode[V]
		free  []int
		count int
	}

	treeNode[V any] struct {
		parent  int
		part    int
		kids    []int // sorted by part
		present bool
		ver     Version
		value   V
	}
)

// NewTree returns an empty tree.
func NewTree[V any]() *Tree[V] {
	return &Tree[V]{}
}

func (t *Tree[V]) init() {
	if len(t.nodes) == 0 {
		t.nodes = append(t.nodes, treeNode[V]{parent: noNode})
	}
}

// Len returns the number of versions present in the tree.
func (t *Tree[V]) Len() int { return t.count }

// IsEmpty reports whether the tree holds no versions.
func (t *Tree[V]) IsEmpty() bool { return t.count == 0 }

// Clear removes every version.
func (t *Tree[V]) Clear() {
	t.nodes, t.free, t.count = nil, nil, 0
}

// Put stores value for v, replacing any value already stored for the same parts.
// Put panics if v is the zero Version.
func (t *Tree[V]) Put(v Version, value V) {
	if v.IsZero() {
		panic("version: Tree.Put with zero Version")
	}
	t.init()
	n := rootNode
	for _, p := range v.parts {
		n = t.ensureChild(n, p)
	}
	node := &t.nodes[n]
	if !node.present {
		t.count++
	}
	node.present = true
	node.ver = v
	node.value = value
}

// PutAll copies every entry of other into t.
func (t *Tree[V]) PutAll(other *Tree[V]) {
	for v, value := range other.All() {
		t.Put(v, value)
	}
}

// Get returns the value stored for v.
func (t *Tree[V]) Get(v Version) (V, bool) {
	if n := t.find(v); n != noNode && t.nodes[n].present {
		return t.nodes[n].value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether a value is stored for v.
func (t *Tree[V]) Contains(v Version) bool {
	_, ok := t.Get(v)
	return ok
}

// Remove deletes the value stored for v and prunes ancestors left without
// values or children. It reports whether anything was removed.
func (t *Tree[V]) Remove(v Version) bool {
	n := t.find(v)
	if n == noNode || !t.nodes[n].present {
		return false
	}
	var zero V
	t.nodes[n].present = false
	t.nodes[n].ver = Version{}
	t.nodes[n].value = zero
	t.count--

	for n != rootNode && !t.nodes[n].present && len(t.nodes[n].kids) == 0 {
		parent := t.nodes[n].parent
		kids := t.nodes[parent].kids
		if i, ok := t.search(kids, t.nodes[n].part); ok {
			t.nodes[parent].kids = slices.Delete(kids, i, i+1)
		}
		t.release(n)
		n = parent
	}
	return true
}

// All iterates the present versions depth-first: a version precedes the
// versions nested below it, and siblings are visited in ascending part order.
func (t *Tree[V]) All() iter.Seq2[Version, V] {
	return func(yield func(Version, V) bool) {
		if len(t.nodes) == 0 {
			return
		}
		t.walk(rootNode, yield)
	}
}

func (t *Tree[V]) walk(n int, yield func(Version, V) bool) bool {
	node := &t.nodes[n]
	if node.present && !yield(node.ver, node.value) {
		return false
	}
	for _, kid := range t.nodes[n].kids {
		if !t.walk(kid, yield) {
			return false
		}
	}
	return true
}

// Versions returns the present versions in iteration order.
func (t *Tree[V]) Versions() []Version {
	out := make([]Version, 0, t.count)
	for v := range t.All() {
		out = append(out, v)
	}
	return out
}

// SubTree returns a new, independent tree holding v and every version nested
// below it.
func (t *Tree[V]) SubTree(v Version) *Tree[V] {
	out := NewTree[V]()
	if n := t.find(v); n != noNode {
		t.walk(n, func(ver Version, value V) bool {
			out.Put(ver, value)
			return true
		})
	}
	return out
}

// FindLowest returns the first version in iteration order.
func (t *Tree[V]) FindLowest() (Version, bool) {
	for v := range t.All() {
		return v, true
	}
	return Version{}, false
}

// FindHighest returns the latest version, preferring GA releases over
// pre-releases even when the pre-release is provably later.
func (t *Tree[V]) FindHighest() (Version, bool) {
	if t.IsEmpty() {
		return Version{}, false
	}
	return t.result(t.highest(rootNode))
}

// FindHighestFor returns the latest version (again preferring GA) that is
// substitutable for v.
func (t *Tree[V]) FindHighestFor(v Version) (Version, bool) {
	if t.IsEmpty() || v.IsZero() {
		return Version{}, false
	}
	return t.result(t.highestFor(rootNode, v, 0))
}

// FindLowestSubstitutable returns the first version in iteration order that is
// substitutable for v.
func (t *Tree[V]) FindLowestSubstitutable(v Version) (Version, bool) {
	for ver := range t.All() {
		if ver.IsSubstitutableFor(v) {
			return ver, true
		}
	}
	return Version{}, false
}

// FindClosest returns the present version that most closely derives from v:
// v itself, its deepest zero-extended form, or else the nearest present
// version that precedes it.
func (t *Tree[V]) FindClosest(v Version) (Version, bool) {
	if t.IsEmpty() || v.IsZero() {
		return Version{}, false
	}
	return t.result(t.closest(rootNode, v, 0))
}

// String renders the trie, one node per line.
func (t *Tree[V]) String() string {
	var sb strings.Builder
	sb.WriteString("VersionTree")
	if len(t.nodes) > 0 {
		t.render(&sb, rootNode, "", "")
	}
	return sb.String()
}

func (t *Tree[V]) render(sb *strings.Builder, n int, first, indent string) {
	node := &t.nodes[n]
	if n != rootNode {
		sb.WriteByte('\n')
		sb.WriteString(first)
		sb.WriteString(strconv.Itoa(node.part))
		if node.present {
			fmt.Fprintf(sb, ":  %s=%v", node.ver, node.value)
		}
	}
	for i, kid := range node.kids {
		next := indent + "|  "
		if i == len(node.kids)-1 {
			next = indent + "   "
		}
		t.render(sb, kid, indent+"|- ", next)
	}
}

func (t *Tree[V]) result(n int) (Version, bool) {
	if n == noNode {
		return Version{}, false
	}
	return t.nodes[n].ver, true
}

func (t *Tree[V]) find(v Version) int {
	if len(t.nodes) == 0 || v.IsZero() {
		return noNode
	}
	n := rootNode
	for _, p := range v.parts {
		if n = t.child(n, p); n == noNode {
			return noNode
		}
	}
	return n
}

func (t *Tree[V]) search(kids []int, part int) (int, bool) {
	return slices.BinarySearchFunc(kids, part, func(kid, p int) int {
		return cmp.Compare(t.nodes[kid].part, p)
	})
}

func (t *Tree[V]) child(n, part int) int {
	if i, ok := t.search(t.nodes[n].kids, part); ok {
		return t.nodes[n].kids[i]
	}
	return noNode
}

func (t *Tree[V]) ensureChild(n, part int) int {
	i, ok := t.search(t.nodes[n].kids, part)
	if ok {
		return t.nodes[n].kids[i]
	}
	kid := t.alloc(treeNode[V]{parent: n, part: part})
	t.nodes[n].kids = slices.Insert(t.nodes[n].kids, i, kid)
	return kid
}

func (t *Tree[V]) alloc(node treeNode[V]) int {
	if k := len(t.free); k > 0 {
		n := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[n] = node
		return n
	}
	t.nodes = append(t.nodes, node)
	return len(t.nodes) - 1
}

func (t *Tree[V]) release(n int) {
	t.nodes[n] = treeNode[V]{parent: noNode}
	t.free = append(t.free, n)
}

func (t *Tree[V]) isGA(n int) bool {
	return n != noNode && t.nodes[n].ver.IsGA()
}

func (t *Tree[V]) closest(n int, v Version, i int) int {
	part := 0
	if i < v.Len() {
		part = v.Part(i)
	}
	if kid := t.child(n, part); kid != noNode {
		if found := t.closest(kid, v, i+1); found != noNode {
			return found
		}
	}
	kids := t.nodes[n].kids
	for k := len(kids) - 1; k >= 0; k-- {
		if kid := &t.nodes[kids[k]]; kid.part < part && kid.present {
			return kids[k]
		}
	}
	if t.nodes[n].present && part >= 0 {
		return n
	}
	return noNode
}

// highest picks, from n down, the latest version, letting any GA release win
// over every pre-release.
func (t *Tree[V]) highest(n int) int {
	best := noNode
	kids := t.nodes[n].kids
	for k := len(kids) - 1; k >= 0; k-- {
		cand := t.highest(kids[k])
		if cand == noNode {
			continue
		}
		if best == noNode || (!t.isGA(best) && t.isGA(cand)) {
			best = cand
		}
	}
	return t.preferSelf(n, best)
}

func (t *Tree[V]) highestFor(n int, v Version, i int) int {
	parts := v.Len()
	match := parts - 1
	if !v.IsGA() {
		if v.Part(parts-1) < 0 {
			match--
		} else {
			match -= 2
		}
	}

	if i < match {
		part := v.Part(i)
		if kid := t.child(n, part); kid != noNode {
			return t.highestFor(kid, v, i+1)
		}
		if part == 0 && t.nodes[n].present && allZero(v.parts[i+1:]) {
			return n
		}
		return noNode
	}

	if i < parts {
		part := v.Part(i)
		best := noNode
		kids := t.nodes[n].kids
		for k := len(kids) - 1; k >= 0 && t.nodes[kids[k]].part >= part; k-- {
			var cand int
			if t.nodes[kids[k]].part == part {
				cand = t.highestFor(kids[k], v, i+1)
			} else {
				cand = t.highest(kids[k])
			}
			if cand == noNode {
				continue
			}
			switch {
			case best == noNode:
				best = cand
			case t.isGA(best):
			case t.isGA(cand):
				best = cand
			case t.nodes[cand].ver.Category().IsMoreStableThan(t.nodes[best].ver.Category()):
				best = cand
			}
		}
		if best != noNode && t.isGA(best) {
			return best
		}
		if !t.nodes[n].ver.IsSubstitutableFor(v) {
			return best
		}
		return t.preferSelf(n, best)
	}

	return t.highest(n)
}

func (t *Tree[V]) preferSelf(n, best int) int {
	if best != noNode && t.isGA(best) {
		return best
	}
	node := &t.nodes[n]
	if node.present && (best == noNode || node.ver.IsGA()) {
		return n
	}
	return best
}

func allZero(parts []int) bool {
	for _, p := range parts {
		if p != 0 {
			return false
		}
	}
	return true
}
