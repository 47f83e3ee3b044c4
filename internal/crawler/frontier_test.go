package crawler

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFrontierAdmitAtMostOnce(t *testing.T) {
	f := NewFrontier(nil)
	defer f.Close()

	const callers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Admit("http://x.com/page#section") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("Expected exactly one admission, got %d", admitted)
	}

	stats := f.Stats()
	if stats.Visited != 1 || stats.Pending != 1 {
		t.Errorf("Expected visited=1 pending=1, got %+v", stats)
	}

	url, ok := f.TryTake()
	if !ok || url != "http://x.com/page" {
		t.Errorf("Expected normalized URL, got %q ok=%v", url, ok)
	}
	if _, ok := f.TryTake(); ok {
		t.Error("Expected queue to be empty after one take")
	}
}

func TestFrontierAdmitFiltered(t *testing.T) {
	f := NewFrontier(nil)
	defer f.Close()

	for _, u := range []string{
		"http://x.com/sites/foo",
		"http://x.com/facebook/page",
		"http://x.com/?q=events/5",
		"http://x.com/page123",
		"http://x.com/%zz",
	} {
		if f.Admit(u) {
			t.Errorf("Expected %s to be rejected", u)
		}
	}

	if !f.Admit("http://x.com/page12") {
		t.Error("Expected http://x.com/page12 to be admitted")
	}

	if stats := f.Stats(); stats.Visited != 1 {
		t.Errorf("Filtered URLs must not enter the visited set, got %+v", stats)
	}
}

func TestFrontierTryTakeDoesNotDrain(t *testing.T) {
	f := NewFrontier(nil)
	defer f.Close()

	if _, ok := f.TryTake(); ok {
		t.Fatal("Expected empty take")
	}

	// An empty non-blocking poll is not exhaustion
	if !f.Admit("http://x.com/a") {
		t.Fatal("Expected admission after empty poll")
	}
	if url, ok := f.TryTake(); !ok || url != "http://x.com/a" {
		t.Errorf("Expected http://x.com/a, got %q ok=%v", url, ok)
	}
}

func TestFrontierNextWaitsForInFlight(t *testing.T) {
	f := NewFrontier(nil)
	defer f.Close()

	ctx := context.Background()
	f.Admit("http://x.com/")

	first, ok := f.Next(ctx)
	if !ok {
		t.Fatal("Expected first URL")
	}

	got := make(chan string, 1)
	go func() {
		url, ok := f.Next(ctx)
		if !ok {
			url = ""
		}
		got <- url
	}()

	// The second worker must block while the first is in flight
	select {
	case u := <-got:
		t.Fatalf("Next returned %q while an item was in flight", u)
	case <-time.After(50 * time.Millisecond):
	}

	f.Admit("http://x.com/child")
	f.Done() // release first

	select {
	case u := <-got:
		if u != "http://x.com/child" {
			t.Errorf("Expected child URL, got %q", u)
		}
	case <-time.After(time.Second):
		t.Fatal("Waiting worker never received the admitted URL")
	}

	if first != "http://x.com/" {
		t.Errorf("Expected start URL first, got %q", first)
	}

	select {
	case <-f.Drained():
		t.Fatal("Frontier drained while child in flight")
	default:
	}

	f.Done() // release child

	select {
	case <-f.Drained():
	case <-time.After(time.Second):
		t.Fatal("Frontier did not drain")
	}

	if _, ok := f.Next(ctx); ok {
		t.Error("Expected Next to return false after drain")
	}
	if f.Admit("http://x.com/late") {
		t.Error("Expected admission after drain to be refused")
	}
}

func TestFrontierDrainReleasesWaiters(t *testing.T) {
	f := NewFrontier(nil)
	defer f.Close()

	ctx := context.Background()
	f.Admit("http://x.com/")
	if _, ok := f.Next(ctx); !ok {
		t.Fatal("Expected URL")
	}

	const waiters = 3
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, ok := f.Next(ctx)
			results <- ok
		}()
	}

	time.Sleep(20 * time.Millisecond)
	f.Done()

	for i := 0; i < waiters; i++ {
		select {
		case ok := <-results:
			if ok {
				t.Error("Expected waiter to observe drain")
			}
		case <-time.After(time.Second):
			t.Fatal("Waiter was not released on drain")
		}
	}
}

func TestFrontierEmptyStartDrains(t *testing.T) {
	f := NewFrontier(nil)
	defer f.Close()

	if _, ok := f.Next(context.Background()); ok {
		t.Fatal("Expected empty frontier to drain immediately")
	}

	select {
	case <-f.Drained():
	default:
		t.Error("Expected Drained to be closed")
	}
}

func TestFrontierPreload(t *testing.T) {
	f := NewFrontier(nil)
	defer f.Close()

	n := f.Preload([]string{"http://x.com/a#top", "http://x.com/b", "http://x.com/b"})
	if n != 2 {
		t.Errorf("Expected 2 preloaded URLs, got %d", n)
	}

	if f.Admit("http://x.com/a") {
		t.Error("Preloaded URL must not be admitted")
	}
	if !f.Admit("http://x.com/c") {
		t.Error("Expected new URL to be admitted")
	}

	stats := f.Stats()
	if stats.Visited != 3 || stats.Pending != 1 {
		t.Errorf("Expected visited=3 pending=1, got %+v", stats)
	}
}

func TestFrontierNextContextCancel(t *testing.T) {
	f := NewFrontier(nil)
	defer f.Close()

	f.Admit("http://x.com/")
	if _, ok := f.Next(context.Background()); !ok {
		t.Fatal("Expected URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := f.Next(ctx); ok {
		t.Error("Expected Next to give up when the context is done")
	}
}

func TestFrontierClose(t *testing.T) {
	f := NewFrontier(nil)
	f.Close()
	f.Close()

	if f.Admit("http://x.com/") {
		t.Error("Expected closed frontier to refuse admissions")
	}
	if _, ok := f.Next(context.Background()); ok {
		t.Error("Expected closed frontier to return nothing")
	}
}
