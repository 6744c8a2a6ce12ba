// Package batch holds the domain model of the batch execution engine.
//
// A Batch decomposes one large operation into batch jobs. Each Job claims a
// contiguous range of work items. PlanSeed decides which ranges the next seed
// activation creates, Progress summarizes execution, and Query is the
// validated, value-accumulated query over stored batches:
//
//	batches, err := batch.NewQuery(store).
//		Type("instance-migration").
//		OrderByID().Desc().
//		List(ctx)
//
// Query construction errors (null filter values, a missing sort direction)
// are reported by the terminal call (List, ListPage, Count, SingleResult).
package batch
