package services

import (
	"context"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"civichero-be/apperr"
	"civichero-be/geo"
	"civichero-be/lifecycle"
	"civichero-be/metrics"
	"civichero-be/models"
	"civichero-be/notify"
	"civichero-be/session"
	"civichero-be/storage"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

var ErrNotVerified = apperr.Validation("Please confirm you are human before submitting")

type IssueRepository interface {
	Insert(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	FindByReporter(ctx context.Context, reporterID primitive.ObjectID) ([]models.Issue, error)
	FindAll(ctx context.Context, sort models.IssueSort) ([]models.Issue, error)
	MarkSolved(ctx context.Context, id, solverID primitive.ObjectID, solutionImageURL string, at time.Time) (*models.Issue, error)
	Reopen(ctx context.Context, id, solverID primitive.ObjectID) error
	CountByStatus(ctx context.Context, reporterID primitive.ObjectID) (map[models.IssueStatus]int64, error)
}

// XPAwarder adds points to the durable profile and refreshes the session
// snapshot.
type XPAwarder interface {
	AwardXP(ctx context.Context, sess *session.Session, points int) error
}

type FileStore interface {
	Upload(ctx context.Context, bucket, filename string, data []byte) (string, error)
}

// Upload is an attached file as received from the client.
type Upload struct {
	Filename string
	Data     []byte
}

// NewIssueInput is a report as submitted. Status and ReporterID are accepted
// so handlers can bind raw client payloads, but Create always overrides them.
type NewIssueInput struct {
	Title         string
	Description   string
	Severity      models.Severity
	Location      string
	Latitude      *float64
	Longitude     *float64
	LocationError string
	Verified      bool
	Image         *Upload

	Status     models.IssueStatus
	ReporterID primitive.ObjectID
}

type IssueServiceConfig struct {
	ResolveAward int
}

type IssueService struct {
	issues   IssueRepository
	sessions XPAwarder
	files    FileStore
	events   notify.Publisher
	metrics  metrics.Recorder
	logger   *zap.Logger
	policy   *bluemonday.Policy
	award    int
	now      func() time.Time
}

func NewIssueService(
	issues IssueRepository,
	sessions XPAwarder,
	files FileStore,
	events notify.Publisher,
	rec metrics.Recorder,
	cfg IssueServiceConfig,
	logger *zap.Logger,
) *IssueService {
	if cfg.ResolveAward < 0 {
		cfg.ResolveAward = lifecycle.DefaultResolveAward
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &IssueService{
		issues:   issues,
		sessions: sessions,
		files:    files,
		events:   events,
		metrics:  rec,
		logger:   logger,
		policy:   bluemonday.StrictPolicy(),
		award:    cfg.ResolveAward,
		now:      time.Now,
	}
}

// ResolveAward is the XP an NGO earns per resolved issue.
func (s *IssueService) ResolveAward() int { return s.award }

// sanitize strips markup. Entities bluemonday escapes are decoded again
// since the result is stored as plain text, not HTML.
func (s *IssueService) sanitize(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(strings.TrimSpace(v))))
}

func resolveLocation(in NewIssueInput) (models.Location, error) {
	if err := geo.FromClientError(in.LocationError); err != nil {
		return models.Location{}, err
	}
	if strings.TrimSpace(in.Location) != "" {
		return geo.Parse(in.Location)
	}
	if in.Latitude != nil && in.Longitude != nil {
		return geo.New(*in.Latitude, *in.Longitude)
	}
	return models.Location{}, apperr.Validation("location is required")
}

// Create stores a new pending report owned by the caller.
func (s *IssueService) Create(ctx context.Context, sess *session.Session, in NewIssueInput) (*models.Issue, error) {
	if sess.Role() != models.Citizen {
		return nil, apperr.Forbidden("only citizens can report issues")
	}
	if !in.Verified {
		return nil, ErrNotVerified
	}

	title := s.sanitize(in.Title)
	description := s.sanitize(in.Description)
	switch {
	case title == "":
		return nil, apperr.Validation("title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return nil, apperr.Validation("title is too long")
	case utf8.RuneCountInString(description) > MaxDescriptionLength:
		return nil, apperr.Validation("description is too long")
	case !in.Severity.Valid():
		return nil, apperr.Validation("severity must be low, medium or high")
	}

	location, err := resolveLocation(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	issue := &models.Issue{
		ID:           primitive.NewObjectID(),
		Title:        title,
		Description:  description,
		Severity:     in.Severity,
		SeverityRank: in.Severity.Rank(),
		Status:       models.Pending,
		Location:     location,
		ReporterID:   sess.Profile.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if in.Image != nil {
		url, err := s.files.Upload(ctx, storage.IssueImages, in.Image.Filename, in.Image.Data)
		if err != nil {
			return nil, err
		}
		issue.ImageURL = &url
	}

	if err := s.issues.Insert(ctx, issue); err != nil {
		return nil, err
	}

	s.logger.Info("issue reported",
		zap.String("issue_id", issue.ID.Hex()),
		zap.String("user_id", sess.Profile.ID.Hex()),
		zap.String("severity", string(issue.Severity)))
	s.metrics.IssueCreated(string(issue.Severity))
	s.publish(ctx, notify.EventCreated, issue.ID)
	return issue, nil
}

// ListForReporter returns the caller's reports, newest first.
func (s *IssueService) ListForReporter(ctx context.Context, reporterID primitive.ObjectID) ([]models.Issue, error) {
	return s.issues.FindByReporter(ctx, reporterID)
}

func (s *IssueService) ListAll(ctx context.Context, sort models.IssueSort) ([]models.Issue, error) {
	if sort != models.SortSeverity {
		sort = models.SortRecent
	}
	return s.issues.FindAll(ctx, sort)
}

func (s *IssueService) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return s.issues.FindByID(ctx, id)
}

func (s *IssueService) CountByStatus(ctx context.Context, reporterID primitive.ObjectID) (map[models.IssueStatus]int64, error) {
	return s.issues.CountByStatus(ctx, reporterID)
}

// Resolve marks a pending issue solved by the session's NGO and awards XP.
// When image is set it is uploaded and its URL used as the solution image;
// otherwise the trimmed solutionImageURL is stored unchecked. If the award
// cannot be saved the issue is returned to pending.
func (s *IssueService) Resolve(ctx context.Context, sess *session.Session, issueID primitive.ObjectID, solutionImageURL string, image *Upload) (*models.Issue, error) {
	if sess.Role() != models.NGO {
		return nil, lifecycle.ErrNGORequired
	}

	current, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanTransition(current.Status, models.Solved) {
		s.metrics.ResolveConflict()
		return nil, lifecycle.ErrAlreadySolved
	}

	if image != nil {
		solutionImageURL, err = s.files.Upload(ctx, storage.SolutionImages, image.Filename, image.Data)
		if err != nil {
			return nil, err
		}
	}
	solutionImageURL = strings.TrimSpace(solutionImageURL)
	if err := lifecycle.CanResolve(current, sess.Role(), solutionImageURL); err != nil {
		return nil, err
	}

	solved, err := s.issues.MarkSolved(ctx, issueID, sess.Profile.ID, solutionImageURL, s.now())
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			s.metrics.ResolveConflict()
		}
		return nil, err
	}

	if err := s.sessions.AwardXP(ctx, sess, s.award); err != nil {
		if rerr := s.issues.Reopen(ctx, issueID, sess.Profile.ID); rerr != nil {
			s.logger.Error("failed to reopen issue after award failure",
				zap.String("issue_id", issueID.Hex()), zap.Error(rerr))
		}
		return nil, err
	}

	s.logger.Info("issue resolved",
		zap.String("issue_id", issueID.Hex()),
		zap.String("solver_id", sess.Profile.ID.Hex()),
		zap.Int("award", s.award))
	s.metrics.IssueResolved()
	s.metrics.XPAwarded(s.award)
	s.publish(ctx, notify.EventSolved, issueID)
	return solved, nil
}

func (s *IssueService) publish(ctx context.Context, typ string, id primitive.ObjectID) {
	if s.events == nil {
		return
	}
	ev := notify.Event{Type: typ, IssueID: id.Hex(), At: s.now().UTC()}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish change event", zap.String("type", typ), zap.Error(err))
	}
}
