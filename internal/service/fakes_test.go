package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/xscheduler/internal/models"
	"github.com/maheshrc27/xscheduler/internal/oauth1"
	"github.com/maheshrc27/xscheduler/internal/repository"
	"github.com/maheshrc27/xscheduler/internal/transfer"
)

// memPostRepo mirrors the conditional updates of the Postgres repository under
// one mutex, which is what makes the claim atomic.
type memPostRepo struct {
	mu     sync.Mutex
	posts  map[int64]*models.Post
	nextID int64

	// markPublishedErr, when set, makes MarkPublished fail like a lost database.
	markPublishedErr error
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: make(map[int64]*models.Post)}
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	return &c
}

func (r *memPostRepo) insert(p *models.Post) int64 {
	r.nextID++
	stored := clonePost(p)
	stored.ID = r.nextID
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.posts[stored.ID] = stored
	return stored.ID
}

func (r *memPostRepo) Create(_ context.Context, p *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(p), nil
}

func (r *memPostRepo) CreateLeased(_ context.Context, p *models.Post, lease repository.Lease) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := clonePost(p)
	c.Status = models.PostStatusScheduled
	c.LeaseToken = &lease.Token
	c.LeaseExpiresAt = &lease.ExpiresAt
	return r.insert(c), nil
}

func (r *memPostRepo) GetByID(_ context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (r *memPostRepo) GetByIDAndUser(_ context.Context, id, userID int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	return clonePost(p), nil
}

func (r *memPostRepo) ListByUser(_ context.Context, userID int64, status models.PostStatus) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID && (status == "" || p.Status == status) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.After(out[j].ScheduledFor) })
	return out, nil
}

func (r *memPostRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && !p.ScheduledFor.After(now) && p.LeaseToken == nil && p.RemoteID == nil {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPostRepo) UpdateContent(_ context.Context, p *models.Post, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.posts[p.ID]
	if !ok || stored.UserID != p.UserID || stored.Status == models.PostStatusPublished ||
		stored.RemoteID != nil || stored.LeaseToken != nil {
		return false, nil
	}
	stored.Content = p.Content
	stored.ScheduledFor = p.ScheduledFor
	stored.Status = p.Status
	stored.LastError = nil
	stored.UpdatedAt = now
	return true, nil
}

func (r *memPostRepo) claim(p *models.Post, lease repository.Lease, now time.Time) *models.Post {
	token := lease.Token
	expires := lease.ExpiresAt
	p.LeaseToken = &token
	p.LeaseExpiresAt = &expires
	p.UpdatedAt = now
	return clonePost(p)
}

func (r *memPostRepo) ClaimDue(_ context.Context, id int64, lease repository.Lease, now time.Time) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusScheduled || p.ScheduledFor.After(now) || p.RemoteID != nil || p.LeaseToken != nil {
		return nil, nil
	}
	return r.claim(p, lease, now), nil
}

func (r *memPostRepo) ClaimFailed(_ context.Context, id, userID int64, lease repository.Lease, now time.Time) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.UserID != userID || p.Status != models.PostStatusFailed || p.RemoteID != nil || p.LeaseToken != nil {
		return nil, nil
	}
	return r.claim(p, lease, now), nil
}

func (r *memPostRepo) MarkPublished(_ context.Context, id int64, leaseToken, remoteID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markPublishedErr != nil {
		return false, r.markPublishedErr
	}
	p, ok := r.posts[id]
	if !ok || p.LeaseToken == nil || *p.LeaseToken != leaseToken {
		return false, nil
	}
	p.Status = models.PostStatusPublished
	p.Published = true
	p.RemoteID = &remoteID
	p.LastError = nil
	p.LeaseToken = nil
	p.LeaseExpiresAt = nil
	p.UpdatedAt = now
	return true, nil
}

func (r *memPostRepo) ReconcilePublished(_ context.Context, id int64, remoteID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.RemoteID != nil || (p.LeaseToken != nil && !p.LeaseExpiresAt.Before(now)) {
		return false, nil
	}
	p.Status = models.PostStatusPublished
	p.Published = true
	p.RemoteID = &remoteID
	p.LastError = nil
	p.LeaseToken = nil
	p.LeaseExpiresAt = nil
	p.UpdatedAt = now
	return true, nil
}

func (r *memPostRepo) ListExpiredLeases(_ context.Context, now time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.LeaseToken != nil && p.LeaseExpiresAt.Before(now) && p.RemoteID == nil {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPostRepo) MarkFailed(_ context.Context, id int64, leaseToken, lastError string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.LeaseToken == nil || *p.LeaseToken != leaseToken || p.RemoteID != nil {
		return false, nil
	}
	p.Status = models.PostStatusFailed
	p.Published = false
	p.LastError = &lastError
	p.LeaseToken = nil
	p.LeaseExpiresAt = nil
	p.UpdatedAt = now
	return true, nil
}

func (r *memPostRepo) FailExpiredLeases(_ context.Context, now time.Time, reason string) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, p := range r.posts {
		if p.LeaseToken != nil && p.LeaseExpiresAt.Before(now) && p.RemoteID == nil {
			msg := reason
			p.Status = models.PostStatusFailed
			p.LastError = &msg
			p.LeaseToken = nil
			p.LeaseExpiresAt = nil
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memPostRepo) Remove(_ context.Context, id, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.UserID != userID {
		return false, nil
	}
	delete(r.posts, id)
	return true, nil
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts []*models.PublishAttempt
}

func (r *memAttemptRepo) Create(_ context.Context, a *models.PublishAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *a
	c.ID = int64(len(r.attempts) + 1)
	r.attempts = append(r.attempts, &c)
	return c.ID, nil
}

func (r *memAttemptRepo) ListByPost(_ context.Context, postID, userID int64) ([]*models.PublishAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.PostID == postID && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAttemptRepo) RecordedRemoteID(_ context.Context, postID int64) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.attempts) - 1; i >= 0; i-- {
		if a := r.attempts[i]; a.PostID == postID && a.RemoteID != "" {
			return a.RemoteID, true, nil
		}
	}
	return "", false, nil
}

type memSettingsRepo struct {
	mu       sync.Mutex
	settings map[int64]*models.XApiSettings
}

func newMemSettingsRepo() *memSettingsRepo {
	return &memSettingsRepo{settings: make(map[int64]*models.XApiSettings)}
}

func (r *memSettingsRepo) GetByUserID(_ context.Context, userID int64) (*models.XApiSettings, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[userID]
	if !ok {
		return nil, false, nil
	}
	c := *s
	return &c, true, nil
}

func (r *memSettingsRepo) Upsert(_ context.Context, s *models.XApiSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.settings[s.UserID] = &c
	return nil
}

func (r *memSettingsRepo) SetConnected(_ context.Context, userID int64, connected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[userID]; ok {
		s.IsConnected = connected && s.Complete()
	}
	return nil
}

type memUserRepo struct {
	mu      sync.Mutex
	handles map[int64]string
}

func (r *memUserRepo) GetByID(context.Context, int64) (*models.User, bool, error) {
	return nil, false, nil
}

func (r *memUserRepo) GetByGoogleID(context.Context, string) (*models.User, bool, error) {
	return nil, false, nil
}

func (r *memUserRepo) Create(context.Context, *models.User) (int64, error) {
	return 0, nil
}

func (r *memUserRepo) SetXHandle(_ context.Context, id int64, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles == nil {
		r.handles = make(map[int64]string)
	}
	r.handles[id] = handle
	return nil
}

// stubX counts remote calls and answers with publishFn / verifyFn.
type stubX struct {
	publishCalls atomic.Int32
	verifyCalls  atomic.Int32
	publishFn    func(ctx context.Context, text string) (string, error)
	verifyFn     func(ctx context.Context) (*transfer.XUser, error)
}

func (x *stubX) Publish(ctx context.Context, _ oauth1.Credentials, text string) (string, error) {
	x.publishCalls.Add(1)
	return x.publishFn(ctx, text)
}

func (x *stubX) Verify(ctx context.Context, _ oauth1.Credentials) (*transfer.XUser, error) {
	x.verifyCalls.Add(1)
	return x.verifyFn(ctx)
}

type recordingScheduler struct {
	mu    sync.Mutex
	tasks map[int64]time.Time
}

func (s *recordingScheduler) SchedulePublish(_ context.Context, postID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks == nil {
		s.tasks = make(map[int64]time.Time)
	}
	s.tasks[postID] = at
	return nil
}
