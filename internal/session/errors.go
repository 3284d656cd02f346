package session

import "fmt"

// ErrConnection is returned once every connection attempt failed. It is
// fatal for a run.
type ErrConnection struct {
	error
}

func NewErrConnection(server string, attempts int, cause error) *ErrConnection {
	return &ErrConnection{fmt.Errorf("failed to connect to %s after %d attempt(s): %v", server, attempts, cause)}
}
