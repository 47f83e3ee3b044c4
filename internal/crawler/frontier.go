package crawler

import (
	"context"
	"sync"

	"github.com/masahif/rebrandcrawl/internal/urlfilter"
)

// Frontier is the deduplicating work queue of the crawl. A single coordinator
// goroutine owns the visited set and the queue; every operation is a request
// on a channel, so admission is check-and-insert atomic without locks.
//
// The frontier drains when the queue is empty and no taken URL is still in
// flight. After that Next returns false for every caller.
type Frontier struct {
	filter *urlfilter.Filter

	admitCh   chan admitRequest
	takeCh    chan takeRequest
	doneCh    chan struct{}
	preloadCh chan preloadRequest
	statsCh   chan chan FrontierStats

	drained  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

type admitRequest struct {
	url   string
	reply chan bool
}

type takeRequest struct {
	block bool
	reply chan takeReply
}

type takeReply struct {
	url string
	ok  bool
}

type preloadRequest struct {
	urls  []string
	reply chan int
}

// NewFrontier starts the coordinator. Call Close to release it.
func NewFrontier(filter *urlfilter.Filter) *Frontier {
	if filter == nil {
		filter = urlfilter.Default()
	}

	f := &Frontier{
		filter:    filter,
		admitCh:   make(chan admitRequest),
		takeCh:    make(chan takeRequest),
		doneCh:    make(chan struct{}),
		preloadCh: make(chan preloadRequest),
		statsCh:   make(chan chan FrontierStats),
		drained:   make(chan struct{}),
		stop:      make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *Frontier) run() {
	visited := make(map[string]struct{})
	var queue []string
	var waiters []chan takeReply
	inFlight := 0
	isDrained := false

	drain := func() {
		isDrained = true
		for _, w := range waiters {
			w <- takeReply{}
		}
		waiters = nil
		close(f.drained)
	}

	for {
		select {
		case <-f.stop:
			return

		case req := <-f.admitCh:
			if _, seen := visited[req.url]; seen || isDrained {
				req.reply <- false
				continue
			}
			visited[req.url] = struct{}{}
			if len(waiters) > 0 {
				w := waiters[0]
				waiters = waiters[1:]
				inFlight++
				w <- takeReply{url: req.url, ok: true}
			} else {
				queue = append(queue, req.url)
			}
			req.reply <- true

		case req := <-f.takeCh:
			switch {
			case len(queue) > 0:
				u := queue[0]
				queue = queue[1:]
				inFlight++
				req.reply <- takeReply{url: u, ok: true}
			case !req.block:
				req.reply <- takeReply{}
			case isDrained:
				req.reply <- takeReply{}
			case inFlight == 0:
				// Nothing queued and nobody can add more.
				req.reply <- takeReply{}
				drain()
			default:
				waiters = append(waiters, req.reply)
			}

		case <-f.doneCh:
			if inFlight > 0 {
				inFlight--
			}
			if inFlight == 0 && len(queue) == 0 && !isDrained {
				drain()
			}

		case req := <-f.preloadCh:
			added := 0
			for _, u := range req.urls {
				if _, seen := visited[u]; !seen {
					visited[u] = struct{}{}
					added++
				}
			}
			req.reply <- added

		case reply := <-f.statsCh:
			reply <- FrontierStats{
				Visited:  len(visited),
				Pending:  len(queue),
				InFlight: inFlight,
			}
		}
	}
}

// Admit normalizes rawURL and enqueues it unless it is ignored by the filter
// or was admitted before. It reports whether the URL was enqueued.
func (f *Frontier) Admit(rawURL string) bool {
	u, err := urlfilter.Normalize(rawURL)
	if err != nil || f.filter.Ignored(u) {
		return false
	}

	reply := make(chan bool, 1)
	select {
	case f.admitCh <- admitRequest{url: u, reply: reply}:
		return <-reply
	case <-f.stop:
		return false
	}
}

// TryTake pops a URL without blocking. An empty result does not mean the
// crawl is over: other workers may still admit URLs.
func (f *Frontier) TryTake() (string, bool) {
	return f.take(context.Background(), false)
}

// Next blocks until a URL is available, the frontier drains or ctx is done.
// Every URL returned must be released with Done.
func (f *Frontier) Next(ctx context.Context) (string, bool) {
	return f.take(ctx, true)
}

func (f *Frontier) take(ctx context.Context, block bool) (string, bool) {
	reply := make(chan takeReply, 1)
	select {
	case f.takeCh <- takeRequest{block: block, reply: reply}:
	case <-ctx.Done():
		return "", false
	case <-f.stop:
		return "", false
	}

	select {
	case r := <-reply:
		return r.url, r.ok
	case <-ctx.Done():
		// The request may still be parked as a waiter; release whatever it
		// is handed later so the in-flight count stays balanced.
		go func() {
			select {
			case r := <-reply:
				if r.ok {
					f.Done()
				}
			case <-f.stop:
			}
		}()
		return "", false
	case <-f.stop:
		return "", false
	}
}

// Done releases a URL returned by Next or TryTake.
func (f *Frontier) Done() {
	select {
	case f.doneCh <- struct{}{}:
	case <-f.stop:
	}
}

// Preload inserts already-checked URLs into the visited set without queueing
// them. It returns how many were new.
func (f *Frontier) Preload(urls []string) int {
	normalized := make([]string, 0, len(urls))
	for _, raw := range urls {
		if u, err := urlfilter.Normalize(raw); err == nil {
			normalized = append(normalized, u)
		}
	}

	reply := make(chan int, 1)
	select {
	case f.preloadCh <- preloadRequest{urls: normalized, reply: reply}:
		return <-reply
	case <-f.stop:
		return 0
	}
}

// Stats returns the current frontier counters.
func (f *Frontier) Stats() FrontierStats {
	reply := make(chan FrontierStats, 1)
	select {
	case f.statsCh <- reply:
		return <-reply
	case <-f.stop:
		return FrontierStats{}
	}
}

// Drained is closed once the queue is empty and nothing is in flight.
func (f *Frontier) Drained() <-chan struct{} {
	return f.drained
}

// Close stops the coordinator. Pending callers return immediately.
func (f *Frontier) Close() {
	f.stopOnce.Do(func() { close(f.stop) })
}
