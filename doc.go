// Package fluxgrid is a centralized scheduler that maps client-submitted task
// graphs onto a pool of volunteer workers with limited core counts.
//
// Workers register with a core count and heartbeat periodically; every
// heartbeat reports the tasks still running and receives newly assigned ones.
// Clients submit a graph of vertices, each with an opaque program and the
// indices of the vertices it may contact, and get back one composite task id
// (client~vertex~worker) per vertex. A worker that stops heartbeating is
// deregistered: its tasks move to workers with spare cores and every contact
// naming them is rewritten, or the affected jobs are cancelled when no
// capacity is left.
//
//	srv, _ := fluxgrid.New(fluxgrid.WithConfig(cfg))
//	_ = srv.Start(ctx)
//	defer srv.Shutdown(ctx)
//	id, _ := srv.Register(ctx, "worker0", 4)
//	ids, _ := srv.Allocate(ctx, "client1", vertices)
//	tasks, _ := srv.Heartbeat(ctx, id, nil)
//
// The HTTP binding lives in service/endpoint and the command in cmd/fluxgrid.
package fluxgrid

// Version is reported in traces and by the command line.
const Version = "0.1.0"
