package main

import "time"

// shutdownTimeout bounds how long graceful shutdown waits for the worker
// and sender goroutines to drain before giving up.
const shutdownTimeout = 5 * time.Second
