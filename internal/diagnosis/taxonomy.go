package diagnosis

type Category string

const (
	CategoryLogic         Category = "logic"
	CategoryBoundary      Category = "boundary"
	CategoryComplexity    Category = "complexity"
	CategoryDataStructure Category = "data_structure"
	CategoryAlgorithm     Category = "algorithm"
	CategorySyntax        Category = "syntax"
	CategoryMemory        Category = "memory"
)

// Categories lists every category; category diversity is measured against it.
var Categories = []Category{
	CategoryLogic, CategoryBoundary, CategoryComplexity, CategoryDataStructure,
	CategoryAlgorithm, CategorySyntax, CategoryMemory,
}

const (
	ArrayTraversal     = "array_traversal"
	ArrayManipulation  = "array_manipulation"
	LinkedListOps      = "linked_list_ops"
	StackOps           = "stack_ops"
	QueueOps           = "queue_ops"
	TreeTraversal      = "tree_traversal"
	TreeManipulation   = "tree_manipulation"
	GraphTraversal     = "graph_traversal"
	GraphAlgorithms    = "graph_algorithms"
	Sorting            = "sorting"
	Searching          = "searching"
	Recursion          = "recursion"
	DynamicProgramming = "dynamic_programming"
	Greedy             = "greedy"
	Backtracking       = "backtracking"
	TwoPointer         = "two_pointer"
	SlidingWindow      = "sliding_window"
	HashTable          = "hash_table"
	HeapOps            = "heap_ops"
	BitManipulation    = "bit_manipulation"
)

// Subskills is the DSA skill catalog the patterns map onto.
var Subskills = []string{
	ArrayTraversal, ArrayManipulation, LinkedListOps, StackOps, QueueOps,
	TreeTraversal, TreeManipulation, GraphTraversal, GraphAlgorithms, Sorting,
	Searching, Recursion, DynamicProgramming, Greedy, Backtracking,
	TwoPointer, SlidingWindow, HashTable, HeapOps, BitManipulation,
}

// Pattern is one catalogued mistake. Slug is the error type recorded on
// learning events and matched against BKT error weights.
type Pattern struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Subskills   []string `json:"subskills"`
	Severity    float64  `json:"severity"`
}

var patterns = []Pattern{
	{"E001", "off_by_one", CategoryBoundary, "Off-by-one in loop", []string{ArrayTraversal}, 0.6},
	{"E002", "missing_base_case", CategoryLogic, "Incorrect base case in recursion", []string{Recursion}, 0.8},
	{"E003", "stack_operation_order", CategoryDataStructure, "Wrong stack operation order", []string{StackOps}, 0.7},
	{"E004", "sort_comparison", CategoryAlgorithm, "Incorrect sorting comparison", []string{Sorting}, 0.7},
	{"E005", "index_out_of_bounds", CategoryBoundary, "Array index out of bounds", []string{ArrayTraversal, ArrayManipulation}, 0.8},
	{"E006", "null_reference", CategoryLogic, "Missing null check", []string{LinkedListOps, TreeTraversal}, 0.9},
	{"E007", "time_limit_nested_loops", CategoryComplexity, "Nested loop inefficiency", []string{DynamicProgramming, ArrayTraversal}, 0.5},
	{"E008", "bfs_dfs_choice", CategoryAlgorithm, "Wrong BFS/DFS choice", []string{GraphTraversal, TreeTraversal}, 0.7},
	{"E009", "hash_collision", CategoryDataStructure, "Hash collision not handled", []string{HashTable}, 0.6},
	{"E010", "two_pointer_movement", CategoryLogic, "Incorrect two-pointer movement", []string{TwoPointer}, 0.7},
	{"E011", "window_size", CategoryBoundary, "Window size calculation error", []string{SlidingWindow}, 0.6},
	{"E012", "greedy_choice", CategoryAlgorithm, "Greedy choice not optimal", []string{Greedy}, 0.8},
	{"E013", "dp_state_transition", CategoryLogic, "DP state transition error", []string{DynamicProgramming}, 0.9},
	{"E014", "heap_property", CategoryDataStructure, "Heap property violation", []string{HeapOps}, 0.8},
	{"E015", "missing_pruning", CategoryAlgorithm, "Backtracking pruning missing", []string{Backtracking}, 0.6},
	{"E016", "linked_list_leak", CategoryMemory, "Memory leak in linked list", []string{LinkedListOps}, 0.7},
	{"E017", "bit_shift_direction", CategoryLogic, "Bit shift direction wrong", []string{BitManipulation}, 0.5},
	{"E018", "binary_search_bounds", CategoryBoundary, "Binary search bounds incorrect", []string{Searching}, 0.8},
}

var patternByID = func() map[string]Pattern {
	out := make(map[string]Pattern, len(patterns))
	for _, p := range patterns {
		out[p.ID] = p
	}
	return out
}()

// Patterns returns a copy of the catalog in id order.
func Patterns() []Pattern {
	return append([]Pattern(nil), patterns...)
}

func PatternByID(id string) (Pattern, bool) {
	p, ok := patternByID[id]
	return p, ok
}

var focusAreas = map[string][]string{
	ArrayTraversal:     {"loop bounds", "index arithmetic", "edge cases"},
	Recursion:          {"base cases", "recursive calls", "return values"},
	LinkedListOps:      {"pointer updates", "null checks", "edge nodes"},
	TreeTraversal:      {"traversal order", "null handling", "recursion"},
	DynamicProgramming: {"state definition", "transitions", "base cases"},
	TwoPointer:         {"pointer movement", "termination", "invariants"},
	SlidingWindow:      {"window size", "boundary updates", "optimization"},
	GraphTraversal:     {"visited set", "BFS/DFS choice", "termination"},
	Searching:          {"bounds", "mid calculation", "termination"},
	Sorting:            {"comparison logic", "stability", "complexity"},
}

func FocusAreas(subskill string) []string {
	if f, ok := focusAreas[subskill]; ok {
		return append([]string(nil), f...)
	}
	return []string{"fundamentals", "practice", "edge cases"}
}
