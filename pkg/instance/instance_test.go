package instance

import "testing"

func TestIDPrefersWorkerID(t *testing.T) {
	t.Setenv("WORKER_ID", "worker-3")
	t.Setenv("DYNO", "web.1")
	if got := ID("worker"); got != "worker-3" {
		t.Fatalf("expected worker-3, got %s", got)
	}
}

func TestIDFallsBackToDynoThenKind(t *testing.T) {
	t.Setenv("WORKER_ID", "")
	t.Setenv("DYNO", "web.2")
	if got := ID("api"); got != "web.2" {
		t.Fatalf("expected web.2, got %s", got)
	}
	t.Setenv("DYNO", "")
	if got := ID("api"); got != "api-local" {
		t.Fatalf("expected api-local, got %s", got)
	}
}
