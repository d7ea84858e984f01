package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// Node ids per process kind. Server and worker processes must not share a node.
const (
	NodeServer int64 = 1
	NodeWorker int64 = 2
)

var (
	node    *snowflake.Node
	once    sync.Once
	initErr error
)

// Init initializes the Snowflake node with the given node ID.
// Subsequent calls are no-ops and return the first call's result.
func Init(nodeID int64) error {
	once.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
		if initErr != nil {
			initErr = fmt.Errorf("creating snowflake node %d: %w", nodeID, initErr)
		}
	})
	return initErr
}

// New generates a time-ordered int64 ID for persisted rows
// (automations, runs, tasks, audit logs). Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}

// NewString generates a random identifier for values that never become
// primary keys, such as events, queue jobs and request ids.
func NewString() string {
	return uuid.NewString()
}
