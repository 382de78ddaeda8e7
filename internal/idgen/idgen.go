package idgen

import "github.com/google/uuid"

// WorkerPrefix prefixes server-generated worker ids.
const WorkerPrefix = "w-"

// NewFunc returns a new globally unique identifier as string. It is a
// variable so tests can stub it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier.
func New() string { return NewFunc() }

// NewWorkerID returns an identifier for a worker that registered without one.
func NewWorkerID() string { return WorkerPrefix + NewFunc() }
