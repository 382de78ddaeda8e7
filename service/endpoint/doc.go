// Package endpoint binds the scheduler to HTTP. Requests and responses are
// JSON except for the program payload, which is served as JavaScript text.
//
//	GET    /                 state dump
//	POST   /register         {worker_id, n_cores}
//	POST   /heartbeat        {worker_id, active_tasks}
//	POST   /allocate         {client_id, new_tasks}
//	GET    /allocation       ?client_id=
//	GET    /pointers         ?client_id=
//	GET    /program          ?task_id=
//	DELETE /workers/{id}
//	GET    /metrics
package endpoint
