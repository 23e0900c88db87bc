// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestTopologicalSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges [][2]string
		nodes []string
		want  []string
	}{
		{name: "empty"},
		{name: "single node", nodes: []string{"ecstasy"}, want: []string{"ecstasy"}},
		{
			name:  "chain",
			edges: [][2]string{{"ecstasy", "json"}, {"json", "app"}},
			want:  []string{"ecstasy", "json", "app"},
		},
		{
			name:  "diamond keeps insertion order",
			edges: [][2]string{{"ecstasy", "json"}, {"ecstasy", "net"}, {"json", "app"}, {"net", "app"}},
			want:  []string{"ecstasy", "json", "net", "app"},
		},
		{
			name:  "disconnected",
			nodes: []string{"z", "y"},
			edges: [][2]string{{"a", "b"}},
			want:  []string{"z", "y", "a", "b"},
		},
		{
			name:  "duplicate edges",
			edges: [][2]string{{"a", "b"}, {"a", "b"}},
			want:  []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New()
			for _, n := range tt.nodes {
				g.AddNode(n)
			}
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			got, err := g.TopologicalSort()
			if err != nil {
				t.Fatalf("TopologicalSort: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopologicalSort_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges [][2]string
		want  []string
	}{
		{name: "self loop", edges: [][2]string{{"a", "a"}}, want: []string{"a", "a"}},
		{name: "pair", edges: [][2]string{{"a", "b"}, {"b", "a"}}, want: []string{"a", "b", "a"}},
		{name: "triangle", edges: [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}, want: []string{"a", "b", "c", "a"}},
		{
			name:  "cycle with a tail",
			edges: [][2]string{{"root", "a"}, {"a", "b"}, {"b", "a"}, {"b", "tail"}},
			want:  []string{"a", "b", "a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			_, err := g.TopologicalSort()
			var cycle *CycleError
			if !errors.As(err, &cycle) || !errors.Is(err, ErrCycle) {
				t.Fatalf("error = %v, want *CycleError", err)
			}
			if !slices.Equal(cycle.Cycle, tt.want) {
				t.Errorf("Cycle = %v, want %v", cycle.Cycle, tt.want)
			}
		})
	}
}

func TestGraph_Successors(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddEdge("ecstasy", "json")
	g.AddEdge("ecstasy", "net")
	g.AddEdge("ecstasy", "json")
	if got := g.Successors("ecstasy"); !slices.Equal(got, []string{"json", "net"}) {
		t.Errorf("Successors() = %v", got)
	}
	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()

	err := &CycleError{Cycle: []string{"a", "b", "a"}}
	if got, want := err.Error(), "dependency cycle detected: a -> b -> a"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
