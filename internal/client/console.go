package client

import (
	"context"
	"sync"
)

// Console is the reviewer's working set of pending upgrade requests. It
// trusts the server's committed decisions: a successful decision removes
// the record locally without a refetch, and Refresh replaces the whole set
// to reconcile drift from concurrent reviewers.
type Console struct {
	api *APIClient

	mu      sync.Mutex
	pending []PendingTask
}

// NewConsole creates a Console over the given API client.
func NewConsole(api *APIClient) *Console {
	return &Console{api: api}
}

// Refresh re-queries the full pending set and replaces the local cache.
// ErrAccessDenied passes through untouched so the caller can surface the
// access-denied signal and navigate away; the call is never retried here.
func (c *Console) Refresh(ctx context.Context) error {
	tasks, err := c.api.Pending(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.pending = tasks
	c.mu.Unlock()
	return nil
}

// Decide issues an approve/reject verdict for the applicant's request. On
// success the record leaves the working set optimistically; on any failure
// the set is untouched and the caller must refresh to reconcile.
func (c *Console) Decide(ctx context.Context, applicantID, action, comment string) error {
	if err := c.api.Decide(ctx, applicantID, action, comment); err != nil {
		return err
	}

	c.mu.Lock()
	kept := c.pending[:0]
	for _, task := range c.pending {
		if task.User.ID != applicantID {
			kept = append(kept, task)
		}
	}
	c.pending = kept
	c.mu.Unlock()
	return nil
}

// Pending returns a snapshot of the current working set.
func (c *Console) Pending() []PendingTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]PendingTask, len(c.pending))
	copy(snapshot, c.pending)
	return snapshot
}

// DocumentURL resolves a task document's opaque path against the uploads
// base URL for the platform URL handler to open.
func (c *Console) DocumentURL(doc Document) string {
	return c.api.DocumentURL(doc.Path)
}
