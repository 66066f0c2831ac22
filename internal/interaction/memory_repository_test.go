package interaction

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryRepositoryCRUD(t *testing.T) {
	r := NewMemoryRepository()

	id, err := r.Create(Interaction{Scope: "tenant-1", Platform: "youtube", Type: TypeComment, Text: "hello"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, found, err := r.Get(id)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if got.Text != "hello" || got.Processed() {
		t.Fatalf("unexpected interaction: %+v", got)
	}

	unprocessed, err := r.GetAllUnprocessed("tenant-1", 10)
	if err != nil {
		t.Fatalf("GetAllUnprocessed: %v", err)
	}
	if len(unprocessed) != 1 {
		t.Fatalf("expected 1 unprocessed interaction, got %d", len(unprocessed))
	}

	if other, _ := r.GetAllUnprocessed("tenant-2", 10); len(other) != 0 {
		t.Fatalf("scope filter ignored, got %d interactions", len(other))
	}
}

func TestMemoryRepositoryTryCommit(t *testing.T) {
	r := NewMemoryRepository()
	id, _ := r.Create(Interaction{Platform: "youtube", Type: TypeComment})

	committed, err := r.TryCommit(id, 42, time.Now())
	if err != nil || !committed {
		t.Fatalf("first commit should win: committed=%v err=%v", committed, err)
	}

	committed, err = r.TryCommit(id, 7, time.Now())
	if err != nil {
		t.Fatalf("losing commit must not error: %v", err)
	}
	if committed {
		t.Fatalf("second commit must lose")
	}

	got, _, _ := r.Get(id)
	if got.ProcessedByRuleID == nil || *got.ProcessedByRuleID != 42 {
		t.Fatalf("winner must never be overwritten, got %+v", got.ProcessedByRuleID)
	}
	if got.ProcessedAt == nil {
		t.Fatalf("ProcessedAt must be set with ProcessedByRuleID")
	}
}

func TestMemoryRepositoryCommitIsTerminal(t *testing.T) {
	r := NewMemoryRepository()
	winnerID, _ := r.Create(Interaction{Platform: "youtube", Type: TypeComment, Text: "first"})
	otherID, _ := r.Create(Interaction{Platform: "youtube", Type: TypeComment, Text: "second"})

	if committed, err := r.TryCommit(winnerID, 42, time.Now()); err != nil || !committed {
		t.Fatalf("TryCommit: committed=%v err=%v", committed, err)
	}

	// The commit marker is history, not a live reference: it must keep the
	// interaction out of the backlog even after rule 42 is deleted
	unprocessed, err := r.GetAllUnprocessed("", 0)
	if err != nil {
		t.Fatalf("GetAllUnprocessed: %v", err)
	}
	if len(unprocessed) != 1 || unprocessed[0].ID != otherID {
		t.Fatalf("backlog must hold only the uncommitted interaction, got %d", len(unprocessed))
	}

	got, _, _ := r.Get(winnerID)
	if got.ProcessedByRuleID == nil || *got.ProcessedByRuleID != 42 {
		t.Fatalf("commit marker must persist, got %v", got.ProcessedByRuleID)
	}
}

func TestMemoryRepositoryTryCommitConcurrent(t *testing.T) {
	r := NewMemoryRepository()
	id, _ := r.Create(Interaction{Platform: "youtube", Type: TypeComment})

	var wins int64
	var wg sync.WaitGroup
	for ruleID := int64(1); ruleID <= 50; ruleID++ {
		wg.Add(1)
		go func(ruleID int64) {
			defer wg.Done()
			committed, err := r.TryCommit(id, ruleID, time.Now())
			if err != nil {
				t.Errorf("TryCommit: %v", err)
				return
			}
			if committed {
				atomic.AddInt64(&wins, 1)
			}
		}(ruleID)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("exactly one concurrent commit must win, got %d", wins)
	}
}
