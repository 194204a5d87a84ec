package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lp-tracker/internal/api"
	"lp-tracker/internal/config"
	"lp-tracker/internal/domain"
	"lp-tracker/internal/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		WorkerBatchSize:      20,
		WorkerJobDelay:       time.Microsecond,
		MaxRateLimitRetries:  5,
		StaleJobAfter:        10 * time.Minute,
		MatchSyncDelay:       30 * time.Second,
		DetectorAccountBatch: 25,
		DetectorQueueIDs:     []int{420},
		SnapshotQueueTypes:   []string{api.QueueRankedSolo},
		RunBudget:            time.Minute,
		DetectorInterval:     time.Minute,
		WorkerInterval:       time.Minute,
		SessionGap:           2 * time.Hour,
		MinMatchDuration:     5 * time.Minute,
		RemakeMaxDuration:    10 * time.Minute,
	}
}

type fakeQueue struct {
	mu       sync.Mutex
	jobs     []*domain.Job
	seq      int
	stale    int64
	delays   map[string]time.Duration
	failNext error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{delays: make(map[string]time.Duration)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, job domain.Job) (*domain.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.failNext != nil {
		err := q.failNext
		q.failNext = nil
		return nil, false, err
	}
	for _, j := range q.jobs {
		if j.UserID == job.UserID && j.GameID == job.GameID && j.Action == job.Action && !j.Status.Terminal() {
			existing := *j
			return &existing, false, nil
		}
	}

	q.seq++
	job.ID = fmt.Sprintf("job-%d", q.seq)
	job.Status = domain.JobPending
	job.CreatedAt = time.Now()
	q.jobs = append(q.jobs, &job)
	created := job
	return &created, true, nil
}

func (q *fakeQueue) add(job domain.Job) *domain.Job {
	j, _, _ := q.Enqueue(context.Background(), job)
	return j
}

func (q *fakeQueue) Claim(ctx context.Context, id string) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, err := q.find(id)
	if err != nil || j.Status != domain.JobPending {
		return nil, repository.ErrNotFound
	}
	j.Status = domain.JobProcessing
	claimed := *j
	return &claimed, nil
}

func (q *fakeQueue) Get(ctx context.Context, id string) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, err := q.find(id)
	if err != nil {
		return nil, err
	}
	found := *j
	return &found, nil
}

func (q *fakeQueue) Latest(ctx context.Context, userID, gameID string, action domain.JobAction) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.jobs) - 1; i >= 0; i-- {
		j := q.jobs[i]
		if j.UserID == userID && j.GameID == gameID && j.Action == action {
			found := *j
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (q *fakeQueue) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return q.stale, nil
}

func (q *fakeQueue) ClaimBatch(ctx context.Context, limit int) ([]domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []*domain.Job
	for _, j := range q.jobs {
		if j.Status == domain.JobPending && !j.AvailableAt.After(time.Now()) {
			pending = append(pending, j)
		}
	}
	sort.SliceStable(pending, func(a, b int) bool { return pending[a].Priority > pending[b].Priority })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]domain.Job, len(pending))
	for i, j := range pending {
		j.Status = domain.JobProcessing
		out[i] = *j
	}
	return out, nil
}

// processing returns the job only while it is claimed, like the repository
// transitions.
func (q *fakeQueue) processing(id string) (*domain.Job, error) {
	j, err := q.find(id)
	if err != nil {
		return nil, err
	}
	if j.Status != domain.JobProcessing {
		return nil, repository.ErrNotFound
	}
	return j, nil
}

func (q *fakeQueue) find(id string) (*domain.Job, error) {
	for _, j := range q.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (q *fakeQueue) Complete(ctx context.Context, id, result string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	j, err := q.processing(id)
	if err != nil {
		return err
	}
	j.Status = domain.JobCompleted
	j.Result = result
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, id, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	j, err := q.processing(id)
	if err != nil {
		return err
	}
	j.Status = domain.JobFailed
	j.ErrorMessage = errMsg
	return nil
}

func (q *fakeQueue) Requeue(ctx context.Context, id string, delay time.Duration, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	j, err := q.processing(id)
	if err != nil {
		return err
	}
	j.Status = domain.JobPending
	j.RetryCount++
	j.AvailableAt = time.Now().Add(delay)
	j.ErrorMessage = reason
	q.delays[id] = delay
	return nil
}

func (q *fakeQueue) Release(ctx context.Context, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, id := range ids {
		if j, err := q.find(id); err == nil && j.Status == domain.JobProcessing {
			j.Status = domain.JobPending
			n++
		}
	}
	return n, nil
}

func (q *fakeQueue) get(id string) domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, _ := q.find(id)
	if j == nil {
		return domain.Job{}
	}
	return *j
}

func (q *fakeQueue) byAction(action domain.JobAction) []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.Job
	for _, j := range q.jobs {
		if j.Action == action {
			out = append(out, *j)
		}
	}
	return out
}

type fakeSnapshots struct {
	mu         sync.Mutex
	rows       []domain.RankSnapshot
	candidates []domain.GameEndCandidate
	insertErr  error
}

func (s *fakeSnapshots) Insert(ctx context.Context, snapshot *domain.RankSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if snapshot.SnapshotType != domain.SnapshotManual {
		for _, r := range s.rows {
			if r.UserID == snapshot.UserID && r.GameID == snapshot.GameID &&
				r.SnapshotType == snapshot.SnapshotType && r.QueueType == snapshot.QueueType {
				return false, nil
			}
		}
	}
	snapshot.ID = fmt.Sprintf("snap-%d", len(s.rows)+1)
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}
	s.rows = append(s.rows, *snapshot)
	return true, nil
}

func (s *fakeSnapshots) GetByGame(ctx context.Context, userID, gameID, queueType string) ([]domain.RankSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RankSnapshot
	for _, r := range s.rows {
		if r.UserID == userID && r.GameID == gameID && r.QueueType == queueType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeSnapshots) ListSince(ctx context.Context, userID, queueType string, since time.Time) ([]domain.RankSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RankSnapshot
	for _, r := range s.rows {
		if r.UserID == userID && r.QueueType == queueType && r.GameID != "" && !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeSnapshots) HasPreGame(ctx context.Context, userID, gameID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.UserID == userID && r.GameID == gameID && r.SnapshotType == domain.SnapshotPreGame {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSnapshots) ListGameEndCandidates(ctx context.Context, minAge, maxAge time.Duration, limit int) ([]domain.GameEndCandidate, error) {
	return s.candidates, nil
}

type pollRecord struct {
	UserID string
	InGame bool
	GameID string
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts []domain.TrackedAccount
	polls    []pollRecord
}

func (a *fakeAccounts) Get(ctx context.Context, userID string) (*domain.TrackedAccount, error) {
	for _, acc := range a.accounts {
		if acc.UserID == userID {
			found := acc
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (a *fakeAccounts) ListForPolling(ctx context.Context, limit int) ([]domain.TrackedAccount, error) {
	if len(a.accounts) > limit {
		return a.accounts[:limit], nil
	}
	return a.accounts, nil
}

func (a *fakeAccounts) RecordPoll(ctx context.Context, userID string, inGame bool, gameID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.polls = append(a.polls, pollRecord{UserID: userID, InGame: inGame, GameID: gameID})
	return nil
}

// fakeLive answers spectator lookups by puuid; puuids without an entry are
// not in game.
type fakeLive struct {
	mu    sync.Mutex
	games map[string]*api.ActiveGame
	errs  map[string]error
	calls int
}

func (l *fakeLive) GetActiveGame(ctx context.Context, platform, puuid string) (*api.ActiveGame, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if err, ok := l.errs[puuid]; ok {
		return nil, err
	}
	if g, ok := l.games[puuid]; ok {
		return g, nil
	}
	return nil, &api.StatusError{Endpoint: "spectator_active_game", Code: 404}
}

// fakeRanked answers ranked lookups by puuid. Puuids in hang wait for ctx to
// end, like a request that outlives the run budget.
type fakeRanked struct {
	mu      sync.Mutex
	entries map[string][]api.LeagueEntry
	errs    map[string]error
	hang    map[string]bool
	order   []string
}

func (r *fakeRanked) GetLeagueEntries(ctx context.Context, platform, puuid string) ([]api.LeagueEntry, error) {
	r.mu.Lock()
	r.order = append(r.order, puuid)
	hang := r.hang[puuid]
	r.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, fmt.Errorf("league entries: %w", ctx.Err())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[puuid]; ok {
		return nil, err
	}
	return r.entries[puuid], nil
}

type fakeSyncer struct {
	n    int
	err  error
	jobs []domain.Job
}

func (s *fakeSyncer) Sync(ctx context.Context, job domain.Job) (int, error) {
	s.jobs = append(s.jobs, job)
	return s.n, s.err
}

type fakeMatches struct {
	mu      sync.Mutex
	matches []domain.Match
}

func (m *fakeMatches) UpsertBatch(ctx context.Context, matches []domain.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = append(m.matches, matches...)
	return nil
}

func (m *fakeMatches) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Match, error) {
	var out []domain.Match
	for _, match := range m.matches {
		if match.UserID == userID {
			out = append(out, match)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *fakeMatches) Exists(ctx context.Context, matchID, userID string) (bool, error) {
	for _, match := range m.matches {
		if match.MatchID == matchID && match.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func rateLimited(retryAfter time.Duration) error {
	return &api.StatusError{Endpoint: "league_entries", Code: 429, RetryAfter: retryAfter}
}
