// Package assignment places pending field-service calls on engineers.
//
// A batch runs in three stages. AssignCalls validates the request and reads
// calls and engineers from the directories. The Allocator then walks the
// calls by descending priority: for each call it filters the pool, scores
// the eligible engineers, ranks them with the TieBreaker and applies the
// winner to a SimulatedState so later calls see the consumed workload and
// stock. Finally, unless the request is a dry run, each decision is
// committed through a commit.Committer; a failed commit turns that call into
// an UnassignedCall with reason validation_failed.
//
// Scores are in [0,100]. Totals keep full precision for ranking and are
// rounded to two decimals when serialised.
package assignment
