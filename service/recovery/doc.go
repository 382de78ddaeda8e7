// Package recovery removes a worker from the pool and repairs the task graph
// around it. The dead worker's tasks are moved first-fit onto the survivors
// and every contact naming an old identity is rewritten. When the survivors
// lack capacity, every job that owned one of those tasks is cancelled.
//
// A pass holds every worker lock, in registration order, for its whole
// duration; the registry is updated before the locks are released.
package recovery
