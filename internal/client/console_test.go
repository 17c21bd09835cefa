package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type consoleServer struct {
	pending     []PendingTask
	decideCode  int
	decideCalls atomic.Int64
	forbidden   bool
}

func (s *consoleServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks/pending", func(w http.ResponseWriter, r *http.Request) {
		if s.forbidden {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"message": "admin privilege required"})
			return
		}
		json.NewEncoder(w).Encode(s.pending)
	})
	mux.HandleFunc("POST /tasks/{userId}/{action}", func(w http.ResponseWriter, r *http.Request) {
		s.decideCalls.Add(1)
		code := s.decideCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		if code != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]string{"message": "request already decided"})
		} else {
			json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
		}
	})
	return mux
}

func pendingFixtures() []PendingTask {
	return []PendingTask{
		{
			ID:            "req-1",
			Status:        StatePending,
			RequestedRole: "medical officer",
			User:          Applicant{ID: "user-1", Name: "Alice Brown", Email: "alice@example.com"},
			Documents:     []Document{{ID: "doc-1", FileName: "badge.jpg", Path: "user-1/doc-1.jpg", MimeType: "image/jpeg"}},
		},
		{
			ID:            "req-2",
			Status:        StatePending,
			RequestedRole: "epidemiologist",
			User:          Applicant{ID: "user-2", Name: "Ben Green", Email: "ben@example.com"},
		},
	}
}

func newTestConsole(t *testing.T, backend *consoleServer) *Console {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	return NewConsole(New(srv.URL, "reviewer-token"))
}

func TestConsoleRefreshLoadsPendingSet(t *testing.T) {
	backend := &consoleServer{pending: pendingFixtures()}
	console := newTestConsole(t, backend)

	require.NoError(t, console.Refresh(context.Background()))

	tasks := console.Pending()
	require.Len(t, tasks, 2)
	assert.Equal(t, "Alice Brown", tasks[0].User.Name)
	assert.Equal(t, "epidemiologist", tasks[1].RequestedRole)
}

func TestConsoleRefreshReplacesStaleSet(t *testing.T) {
	backend := &consoleServer{pending: pendingFixtures()}
	console := newTestConsole(t, backend)
	require.NoError(t, console.Refresh(context.Background()))

	// Another reviewer cleared the queue between refreshes.
	backend.pending = nil
	require.NoError(t, console.Refresh(context.Background()))
	assert.Empty(t, console.Pending())
}

func TestConsoleDecideRemovesRecordOnSuccess(t *testing.T) {
	backend := &consoleServer{pending: pendingFixtures()}
	console := newTestConsole(t, backend)
	require.NoError(t, console.Refresh(context.Background()))

	require.NoError(t, console.Decide(context.Background(), "user-1", "approve", ""))

	tasks := console.Pending()
	require.Len(t, tasks, 1)
	assert.Equal(t, "user-2", tasks[0].User.ID)
	assert.Equal(t, int64(1), backend.decideCalls.Load())
}

func TestConsoleDecideConflictLeavesSetUntouched(t *testing.T) {
	backend := &consoleServer{pending: pendingFixtures(), decideCode: http.StatusConflict}
	console := newTestConsole(t, backend)
	require.NoError(t, console.Refresh(context.Background()))

	err := console.Decide(context.Background(), "user-1", "reject", "blurry scan")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, console.Pending(), 2, "failed decision must not drop the record")
}

func TestConsoleRefreshPassesAccessDeniedThrough(t *testing.T) {
	backend := &consoleServer{forbidden: true}
	console := newTestConsole(t, backend)

	err := console.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestConsolePendingReturnsSnapshot(t *testing.T) {
	backend := &consoleServer{pending: pendingFixtures()}
	console := newTestConsole(t, backend)
	require.NoError(t, console.Refresh(context.Background()))

	snapshot := console.Pending()
	snapshot[0].User.ID = "mutated"
	assert.Equal(t, "user-1", console.Pending()[0].User.ID)
}
