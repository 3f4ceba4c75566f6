package diagnosis

import "sort"

type Gap struct {
	Subskill   string   `json:"subskill"`
	Severity   float64  `json:"severity"`
	ErrorCount int      `json:"errorCount"`
	Focus      []string `json:"focus"`
}

type stats struct {
	diversity   float64
	categories  map[Category]int
	subskills   map[string]float64 // summed pattern severity
	total       int
	avgSeverity float64
}

func computeStats(errs []DetectedError) stats {
	s := stats{categories: map[Category]int{}, subskills: map[string]float64{}, total: len(errs)}
	sum := 0.0
	for _, e := range errs {
		s.categories[e.Category]++
		for _, sk := range e.Subskills {
			s.subskills[sk] += e.Severity
		}
		sum += e.Severity
	}
	if s.total > 0 {
		s.avgSeverity = sum / float64(s.total)
	}
	s.diversity = float64(len(s.categories)) / float64(len(Categories))
	return s
}

// node is either a decision (test set) or a leaf (subskill set). Nodes are
// built once and never mutated.
type node struct {
	name  string
	test  func(stats) bool // true selects left
	left  *node
	right *node

	subskill string
	focus    []string
}

func decision(name string, test func(stats) bool, left, right *node) *node {
	return &node{name: name, test: test, left: left, right: right}
}

func leaf(name, subskill string, focus ...string) *node {
	return &node{name: name, subskill: subskill, focus: focus}
}

func (n *node) isLeaf() bool { return n.test == nil }

func moreOf(a, b Category) func(stats) bool {
	return func(s stats) bool { return s.categories[a] > s.categories[b] }
}

func heavier(a, b string) func(stats) bool {
	return func(s stats) bool { return s.subskills[a] >= s.subskills[b] }
}

var gapTree = decision("category_diversity", func(s stats) bool { return s.diversity < 0.5 },
	decision("error_type", moreOf(CategoryLogic, CategoryBoundary),
		decision("logic_errors", heavier(Recursion, TwoPointer),
			leaf("recursion_errors", Recursion, "base case design", "recursive relation", "stack overflow prevention"),
			leaf("pointer_errors", TwoPointer, "pointer movement logic", "termination conditions"),
		),
		decision("boundary_errors", heavier(ArrayTraversal, Searching),
			leaf("array_bounds", ArrayTraversal, "index management", "loop bounds", "edge cases"),
			leaf("search_bounds", Searching, "binary search bounds", "mid calculation"),
		),
	),
	decision("complexity_check", moreOf(CategoryDataStructure, CategoryAlgorithm),
		decision("data_structure_errors", heavier(LinkedListOps, TreeTraversal),
			leaf("linear_ds", LinkedListOps, "pointer manipulation", "null handling", "memory management"),
			leaf("tree_ds", TreeTraversal, "traversal patterns", "null checks", "recursion in trees"),
		),
		decision("algorithm_errors", heavier(DynamicProgramming, GraphTraversal),
			leaf("optimization", DynamicProgramming, "state definition", "transition formula", "memoization"),
			leaf("graph_algo", GraphTraversal, "BFS vs DFS", "visited tracking", "graph representation"),
		),
	),
)

func traverse(n *node, s stats) Gap {
	for !n.isLeaf() {
		if n.test(s) {
			n = n.left
		} else {
			n = n.right
		}
	}
	return Gap{
		Subskill:   n.subskill,
		Severity:   s.avgSeverity,
		ErrorCount: s.total,
		Focus:      append([]string(nil), n.focus...),
	}
}

// directGaps reports every subskill hit by two or more errors.
func directGaps(errs []DetectedError) []Gap {
	bySkill := map[string][]DetectedError{}
	var order []string
	for _, e := range errs {
		for _, sk := range e.Subskills {
			if _, ok := bySkill[sk]; !ok {
				order = append(order, sk)
			}
			bySkill[sk] = append(bySkill[sk], e)
		}
	}
	var out []Gap
	for _, sk := range order {
		hits := bySkill[sk]
		if len(hits) < 2 {
			continue
		}
		out = append(out, Gap{
			Subskill:   sk,
			Severity:   Severity(hits),
			ErrorCount: len(hits),
			Focus:      FocusAreas(sk),
		})
	}
	return out
}

// Gaps walks the decision tree, adds direct per-subskill gaps and merges
// them by subskill. The result is ordered by severity, highest first.
func Gaps(errs []DetectedError) []Gap {
	if len(errs) == 0 {
		return nil
	}
	all := append([]Gap{traverse(gapTree, computeStats(errs))}, directGaps(errs)...)
	return mergeGaps(all)
}

func mergeGaps(gaps []Gap) []Gap {
	merged := map[string]*Gap{}
	var order []string
	for _, g := range gaps {
		cur, ok := merged[g.Subskill]
		if !ok {
			cp := g
			merged[g.Subskill] = &cp
			order = append(order, g.Subskill)
			continue
		}
		if g.Severity > cur.Severity {
			cur.Severity = g.Severity
		}
		cur.ErrorCount += g.ErrorCount
		cur.Focus = union(cur.Focus, g.Focus)
	}
	out := make([]Gap, 0, len(order))
	for _, sk := range order {
		out = append(out, *merged[sk])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}

func union(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
