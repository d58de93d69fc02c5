package app

import (
	"context"
	"sync"

	"contest-service/internal/domain"
)

// LeaderboardFeed pushes fresh standings to live subscribers. Score changes
// only mark a contest dirty; one worker per watched contest recomputes and
// fans out, so writers never wait on the ranking.
type LeaderboardFeed struct {
	board *LeaderboardService
	limit int

	mu     sync.Mutex
	topics map[string]*feedTopic
}

type feedTopic struct {
	contestID   string
	subscribers map[chan domain.Leaderboard]struct{}
	dirty       chan struct{}
	done        chan struct{}
}

func NewLeaderboardFeed(board *LeaderboardService, limit int) *LeaderboardFeed {
	if limit <= 0 || limit > MaxLeaderboardLimit {
		limit = DefaultLeaderboardLimit
	}
	return &LeaderboardFeed{
		board:  board,
		limit:  limit,
		topics: make(map[string]*feedTopic),
	}
}

// Subscribe returns a channel that receives leaderboard updates for a contest,
// starting with the current standings. The caller must invoke the returned
// cancel function to avoid leaks.
func (f *LeaderboardFeed) Subscribe(ctx context.Context, contestID string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := f.board.GetLeaderboard(ctx, contestID, f.limit)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	f.mu.Lock()
	topic, ok := f.topics[contestID]
	if !ok {
		topic = &feedTopic{
			contestID:   contestID,
			subscribers: make(map[chan domain.Leaderboard]struct{}),
			dirty:       make(chan struct{}, 1),
			done:        make(chan struct{}),
		}
		f.topics[contestID] = topic
		go f.run(topic)
	}
	topic.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := topic.subscribers[ch]; !ok {
			return
		}
		delete(topic.subscribers, ch)
		close(ch)
		if len(topic.subscribers) == 0 {
			close(topic.done)
			delete(f.topics, contestID)
		}
	}
	return ch, cancel, nil
}

// ScoresChanged marks contestID dirty if anyone is watching it.
func (f *LeaderboardFeed) ScoresChanged(_ context.Context, contestID string) {
	f.mu.Lock()
	topic, ok := f.topics[contestID]
	f.mu.Unlock()
	if !ok {
		return
	}
	select {
	case topic.dirty <- struct{}{}:
	default:
	}
}

// Close stops every worker and closes all subscriber channels.
func (f *LeaderboardFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, topic := range f.topics {
		for ch := range topic.subscribers {
			delete(topic.subscribers, ch)
			close(ch)
		}
		close(topic.done)
		delete(f.topics, id)
	}
}

func (f *LeaderboardFeed) run(topic *feedTopic) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-topic.done
		cancel()
	}()

	for {
		select {
		case <-topic.done:
			return
		case <-topic.dirty:
			lb, err := f.board.compute(ctx, topic.contestID, f.limit)
			if err != nil {
				if ctx.Err() == nil {
					f.board.opts.log.Warn("live leaderboard refresh failed", "contest_id", topic.contestID, "error", err)
				}
				continue
			}
			f.broadcast(topic, lb)
		}
	}
}

func (f *LeaderboardFeed) broadcast(topic *feedTopic, lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range topic.subscribers {
		select {
		case ch <- lb:
		default:
			// drop the stale update so a slow reader never blocks the others
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
