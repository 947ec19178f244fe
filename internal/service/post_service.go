package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rivo/uniseg"

	"github.com/maheshrc27/xscheduler/internal/models"
	"github.com/maheshrc27/xscheduler/internal/oauth1"
	"github.com/maheshrc27/xscheduler/internal/repository"
	"github.com/maheshrc27/xscheduler/internal/transfer"
)

// MaxPostLength is counted in extended grapheme clusters.
const MaxPostLength = 280

const expiredLeaseReason = "publish attempt did not finish before its lease expired"

// PublishScheduler arranges for ProcessDuePost to run for a post at a given
// time. Delivery is best effort; the periodic scan covers anything it misses.
type PublishScheduler interface {
	SchedulePublish(ctx context.Context, postID int64, at time.Time) error
}

type PostService interface {
	CreateDraft(ctx context.Context, userID int64, content string, scheduledFor time.Time) (*models.Post, error)
	Schedule(ctx context.Context, userID int64, content string, scheduledFor time.Time) (*models.Post, error)
	PublishNow(ctx context.Context, userID int64, content string) (*models.Post, error)
	ProcessDuePost(ctx context.Context, postID int64) (*models.Post, error)
	ProcessDuePosts(ctx context.Context) (*transfer.TriggerSummary, error)
	Retry(ctx context.Context, userID, postID int64) (*models.Post, error)
	Update(ctx context.Context, userID, postID int64, update *transfer.PostUpdate) (*models.Post, error)
	Delete(ctx context.Context, userID, postID int64) error
	Get(ctx context.Context, userID, postID int64) (*models.Post, error)
	List(ctx context.Context, userID int64, status string) ([]*models.Post, error)
	History(ctx context.Context, userID, postID int64) ([]*models.PublishAttempt, error)
	FailExpiredLeases(ctx context.Context) (int, error)
}

type PostOptions struct {
	PublishTimeout time.Duration
	LeaseTTL       time.Duration
	Concurrency    int
	BatchSize      int
	Now            func() time.Time
	LeaseToken     func() (string, error)
}

type postService struct {
	pr    repository.PostRepository
	pa    repository.PublishAttemptRepository
	creds CredentialService
	x     XService
	sched PublishScheduler
	opts  PostOptions
}

func NewPostService(
	pr repository.PostRepository,
	pa repository.PublishAttemptRepository,
	creds CredentialService,
	x XService,
	sched PublishScheduler,
	opts PostOptions) PostService {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 15 * time.Second
	}
	if opts.LeaseTTL <= opts.PublishTimeout {
		opts.LeaseTTL = 2 * opts.PublishTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LeaseToken == nil {
		opts.LeaseToken = func() (string, error) { return gonanoid.New() }
	}
	return &postService{
		pr:    pr,
		pa:    pa,
		creds: creds,
		x:     x,
		sched: sched,
		opts:  opts,
	}
}

func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return invalid("content", "content cannot be empty")
	}
	if n := uniseg.GraphemeClusterCount(content); n > MaxPostLength {
		return invalid("content", "content is %d characters, the limit is %d", n, MaxPostLength)
	}
	return nil
}

func validateFuture(scheduledFor, now time.Time) error {
	if scheduledFor.IsZero() {
		return invalid("scheduled_for", "scheduled time is required")
	}
	if !scheduledFor.After(now) {
		return invalid("scheduled_for", "scheduled time must be in the future")
	}
	return nil
}

func (s *postService) newLease(now time.Time) (repository.Lease, error) {
	token, err := s.opts.LeaseToken()
	if err != nil {
		return repository.Lease{}, err
	}
	return repository.Lease{Token: token, ExpiresAt: now.Add(s.opts.LeaseTTL)}, nil
}

func (s *postService) CreateDraft(ctx context.Context, userID int64, content string, scheduledFor time.Time) (*models.Post, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	if scheduledFor.IsZero() {
		scheduledFor = s.opts.Now()
	}

	post := &models.Post{
		UserID:       userID,
		Content:      content,
		ScheduledFor: scheduledFor,
		Status:       models.PostStatusDraft,
	}
	id, err := s.pr.Create(ctx, post)
	if err != nil {
		return nil, err
	}
	post.ID = id
	return post, nil
}

func (s *postService) Schedule(ctx context.Context, userID int64, content string, scheduledFor time.Time) (*models.Post, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	if err := validateFuture(scheduledFor, s.opts.Now()); err != nil {
		return nil, err
	}
	if _, err := s.creds.ResolveForPublish(ctx, userID); err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:       userID,
		Content:      content,
		ScheduledFor: scheduledFor,
		Status:       models.PostStatusScheduled,
	}
	id, err := s.pr.Create(ctx, post)
	if err != nil {
		return nil, err
	}
	post.ID = id

	s.enqueue(ctx, post)
	return post, nil
}

func (s *postService) enqueue(ctx context.Context, post *models.Post) {
	if s.sched == nil {
		return
	}
	if err := s.sched.SchedulePublish(ctx, post.ID, post.ScheduledFor); err != nil {
		slog.Warn("unable to enqueue publish task, the periodic scan will pick the post up",
			"post_id", post.ID, "error", err)
	}
}

// PublishNow records the post, already leased, and then publishes it. On a
// remote failure the returned post is in the failed state and the error is a
// *RemoteError or *TransportError.
func (s *postService) PublishNow(ctx context.Context, userID int64, content string) (*models.Post, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	creds, err := s.creds.ResolveForPublish(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	lease, err := s.newLease(now)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:       userID,
		Content:      content,
		ScheduledFor: now,
		Status:       models.PostStatusScheduled,
	}
	id, err := s.pr.CreateLeased(ctx, post, lease)
	if err != nil {
		return nil, err
	}
	post.ID = id
	post.LeaseToken = &lease.Token
	post.LeaseExpiresAt = &lease.ExpiresAt

	return s.publish(ctx, post, lease, creds)
}

// ProcessDuePost publishes one due scheduled post. Posts that are not due,
// already claimed or already published are left alone.
func (s *postService) ProcessDuePost(ctx context.Context, postID int64) (*models.Post, error) {
	now := s.opts.Now()
	lease, err := s.newLease(now)
	if err != nil {
		return nil, err
	}

	post, err := s.pr.ClaimDue(ctx, postID, lease, now)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, s.notClaimable(ctx, postID)
	}

	creds, err := s.creds.ResolveForPublish(ctx, post.UserID)
	if err != nil {
		slog.Info("due post cannot be published without usable credentials", "post_id", post.ID, "user_id", post.UserID, "error", err)
		return s.fail(ctx, post, lease, err)
	}

	return s.publish(ctx, post, lease, creds)
}

func (s *postService) notClaimable(ctx context.Context, postID int64) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	switch {
	case post == nil:
		return ErrPostNotFound
	case post.RemoteID != nil:
		return ErrAlreadyPublished
	default:
		return ErrPostNotClaimable
	}
}

// ProcessDuePosts scans for due posts and publishes each one at most once.
func (s *postService) ProcessDuePosts(ctx context.Context) (*transfer.TriggerSummary, error) {
	posts, err := s.pr.ListDue(ctx, s.opts.Now(), s.opts.BatchSize)
	if err != nil {
		return nil, err
	}

	summary := &transfer.TriggerSummary{Found: len(posts)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.opts.Concurrency)

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(postID int64) {
			defer wg.Done()
			defer func() { <-semaphore }()

			_, err := s.ProcessDuePost(ctx, postID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.Succeeded++
			case errors.Is(err, ErrPostNotClaimable), errors.Is(err, ErrAlreadyPublished), errors.Is(err, ErrPostNotFound):
				summary.Skipped++
			default:
				summary.Failed++
			}
		}(post.ID)
	}
	wg.Wait()

	slog.Info("processed due posts",
		"found", summary.Found, "succeeded", summary.Succeeded, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

// Retry re-publishes a failed post with its stored content.
func (s *postService) Retry(ctx context.Context, userID, postID int64) (*models.Post, error) {
	existing, err := s.pr.GetByIDAndUser(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrPostNotFound
	}
	if existing.RemoteID != nil {
		return nil, ErrAlreadyPublished
	}
	if existing.Status != models.PostStatusFailed {
		return nil, ErrPostNotClaimable
	}
	reconciled, err := s.reconcile(ctx, existing)
	if err != nil {
		return nil, err
	}
	if reconciled {
		return nil, ErrAlreadyPublished
	}

	creds, err := s.creds.ResolveForPublish(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	lease, err := s.newLease(now)
	if err != nil {
		return nil, err
	}
	post, err := s.pr.ClaimFailed(ctx, postID, userID, lease, now)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotClaimable
	}

	return s.publish(ctx, post, lease, creds)
}

// publish makes the remote call for a leased post and resolves the lease.
func (s *postService) publish(ctx context.Context, post *models.Post, lease repository.Lease, creds oauth1.Credentials) (*models.Post, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
	defer cancel()

	remoteID, err := s.x.Publish(callCtx, creds, post.Content)
	if err != nil {
		return s.fail(ctx, post, lease, err)
	}

	// The tweet exists now; the write must go through even if the caller
	// has gone away.
	resolveCtx := context.WithoutCancel(ctx)

	var marked bool
	for attempt := 0; attempt < 3; attempt++ {
		marked, err = s.pr.MarkPublished(resolveCtx, post.ID, lease.Token, remoteID, s.opts.Now())
		if err == nil {
			break
		}
		slog.Warn("retrying publish resolution", "post_id", post.ID, "attempt", attempt+1, "error", err)
		time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}
	if err != nil {
		// The attempt row keeps the remote id so the sweeper and Retry can
		// reconcile the post instead of publishing it twice.
		s.recordAttempt(resolveCtx, post, remoteID, nil)
		slog.Error("post published on X but the local record could not be updated",
			"post_id", post.ID, "remote_id", remoteID, "error", err)
		return nil, fmt.Errorf("post published on X as %s but not recorded: %w", remoteID, err)
	}
	if !marked {
		slog.Error("post published on X but its lease was gone", "post_id", post.ID, "remote_id", remoteID)
	}

	s.recordAttempt(resolveCtx, post, remoteID, nil)
	slog.Info("post published", "post_id", post.ID, "user_id", post.UserID, "remote_id", remoteID)

	post.Status = models.PostStatusPublished
	post.Published = true
	post.RemoteID = &remoteID
	post.LastError = nil
	post.LeaseToken = nil
	post.LeaseExpiresAt = nil
	return post, nil
}

// fail resolves the lease to failed and hands cause back to the caller.
func (s *postService) fail(ctx context.Context, post *models.Post, lease repository.Lease, cause error) (*models.Post, error) {
	resolveCtx := context.WithoutCancel(ctx)
	if errors.Is(cause, context.DeadlineExceeded) && !errors.Is(cause, ErrTransport) {
		cause = &TransportError{Err: cause}
	}

	message := failureMessage(cause)
	marked, err := s.pr.MarkFailed(resolveCtx, post.ID, lease.Token, message, s.opts.Now())
	if err != nil {
		slog.Error("unable to mark post failed, the lease sweeper will resolve it", "post_id", post.ID, "error", err)
	} else if !marked {
		slog.Warn("post lease was gone when marking it failed", "post_id", post.ID)
	}

	s.recordAttempt(resolveCtx, post, "", cause)
	slog.Info("post publish failed", "post_id", post.ID, "user_id", post.UserID, "retriable", Retriable(cause))

	post.Status = models.PostStatusFailed
	post.Published = false
	post.LastError = &message
	post.LeaseToken = nil
	post.LeaseExpiresAt = nil
	return post, cause
}

func failureMessage(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return string(remote.Body)
	}
	return err.Error()
}

func (s *postService) recordAttempt(ctx context.Context, post *models.Post, remoteID string, cause error) {
	if s.pa == nil {
		return
	}
	attempt := &models.PublishAttempt{
		UserID:   post.UserID,
		PostID:   post.ID,
		RemoteID: remoteID,
	}
	if cause != nil {
		attempt.ErrorMessage = failureMessage(cause)
		attempt.Retriable = Retriable(cause)
		var remote *RemoteError
		if errors.As(cause, &remote) {
			attempt.HTTPStatus = remote.StatusCode
		}
	}
	if _, err := s.pa.Create(ctx, attempt); err != nil {
		slog.Warn("unable to record publish attempt", "post_id", post.ID, "error", err)
	}
}

// Update edits a draft, scheduled or failed post and leaves it as a draft or
// scheduled post.
func (s *postService) Update(ctx context.Context, userID, postID int64, update *transfer.PostUpdate) (*models.Post, error) {
	if update == nil {
		return nil, invalid("post", "update is required")
	}
	status := models.PostStatus(update.Status)
	if status != models.PostStatusDraft && status != models.PostStatusScheduled {
		return nil, invalid("status", "status must be draft or scheduled")
	}
	if err := ValidateContent(update.Content); err != nil {
		return nil, err
	}
	now := s.opts.Now()
	if status == models.PostStatusScheduled {
		if err := validateFuture(update.ScheduledFor, now); err != nil {
			return nil, err
		}
		if _, err := s.creds.ResolveForPublish(ctx, userID); err != nil {
			return nil, err
		}
	}

	post, err := s.pr.GetByIDAndUser(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.Status == models.PostStatusPublished || post.RemoteID != nil || post.Leased(now) {
		return nil, ErrPostNotEditable
	}

	post.Content = update.Content
	post.Status = status
	if !update.ScheduledFor.IsZero() {
		post.ScheduledFor = update.ScheduledFor
	}

	ok, err := s.pr.UpdateContent(ctx, post, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPostNotEditable
	}
	post.LastError = nil
	post.UpdatedAt = now

	if status == models.PostStatusScheduled {
		s.enqueue(ctx, post)
	}
	return post, nil
}

func (s *postService) Delete(ctx context.Context, userID, postID int64) error {
	ok, err := s.pr.Remove(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPostNotFound
	}
	slog.Info("post deleted", "post_id", postID, "user_id", userID)
	return nil
}

func (s *postService) Get(ctx context.Context, userID, postID int64) (*models.Post, error) {
	post, err := s.pr.GetByIDAndUser(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64, status string) ([]*models.Post, error) {
	filter := models.PostStatus(status)
	if filter != "" && !filter.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	return s.pr.ListByUser(ctx, userID, filter)
}

func (s *postService) History(ctx context.Context, userID, postID int64) ([]*models.PublishAttempt, error) {
	if _, err := s.Get(ctx, userID, postID); err != nil {
		return nil, err
	}
	return s.pa.ListByPost(ctx, postID, userID)
}

// FailExpiredLeases turns posts whose publish attempt never reported back
// into failed posts.
//
// A post whose attempt history holds a remote id was accepted by X, so it is
// reconciled to published rather than failed.
func (s *postService) FailExpiredLeases(ctx context.Context) (int, error) {
	now := s.opts.Now()
	expired, err := s.pr.ListExpiredLeases(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, post := range expired {
		if _, err := s.reconcile(ctx, post); err != nil {
			return 0, err
		}
	}

	ids, err := s.pr.FailExpiredLeases(ctx, now, expiredLeaseReason)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		slog.Warn("publish lease expired, post marked failed", "post_id", id)
	}
	return len(ids), nil
}

// reconcile marks post published when an earlier attempt got a remote id
// from X that never reached the post row.
func (s *postService) reconcile(ctx context.Context, post *models.Post) (bool, error) {
	if s.pa == nil {
		return false, nil
	}
	remoteID, found, err := s.pa.RecordedRemoteID(ctx, post.ID)
	if err != nil || !found {
		return false, err
	}
	ok, err := s.pr.ReconcilePublished(ctx, post.ID, remoteID, s.opts.Now())
	if err != nil {
		return false, err
	}
	if ok {
		slog.Warn("post reconciled to published from its attempt history", "post_id", post.ID, "remote_id", remoteID)
	}
	return true, nil
}
