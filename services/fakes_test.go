package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"civichero-be/lifecycle"
	"civichero-be/models"
	"civichero-be/notify"
	"civichero-be/repository"
	"civichero-be/session"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memIssues mirrors the conditional update semantics of the Mongo repository.
type memIssues struct {
	mu        sync.Mutex
	byID      map[primitive.ObjectID]models.Issue
	insertErr error
}

func newMemIssues() *memIssues {
	return &memIssues{byID: map[primitive.ObjectID]models.Issue{}}
}

func (m *memIssues) Insert(_ context.Context, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.byID[issue.ID] = *issue
	return nil
}

func (m *memIssues) FindByID(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrIssueNotFound
	}
	return &issue, nil
}

func (m *memIssues) sorted(keep func(models.Issue) bool, bySeverity bool) []models.Issue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Issue{}
	for _, issue := range m.byID {
		if keep(issue) {
			out = append(out, issue)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if bySeverity && out[i].SeverityRank != out[j].SeverityRank {
			return out[i].SeverityRank > out[j].SeverityRank
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *memIssues) FindByReporter(_ context.Context, reporterID primitive.ObjectID) ([]models.Issue, error) {
	return m.sorted(func(i models.Issue) bool { return i.ReporterID == reporterID }, false), nil
}

func (m *memIssues) FindAll(_ context.Context, s models.IssueSort) ([]models.Issue, error) {
	return m.sorted(func(models.Issue) bool { return true }, s == models.SortSeverity), nil
}

func (m *memIssues) MarkSolved(_ context.Context, id, solverID primitive.ObjectID, url string, at time.Time) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrIssueNotFound
	}
	if issue.Status != models.Pending {
		return nil, lifecycle.ErrAlreadySolved
	}
	issue.Status = models.Solved
	issue.SolverID = &solverID
	issue.SolutionImageURL = &url
	issue.SolvedAt = &at
	issue.UpdatedAt = at
	m.byID[id] = issue
	return &issue, nil
}

func (m *memIssues) Reopen(_ context.Context, id, solverID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue, ok := m.byID[id]
	if !ok || issue.Status != models.Solved || issue.SolverID == nil || *issue.SolverID != solverID {
		return nil
	}
	issue.Status = models.Pending
	issue.SolverID = nil
	issue.SolutionImageURL = nil
	issue.SolvedAt = nil
	m.byID[id] = issue
	return nil
}

func (m *memIssues) CountByStatus(_ context.Context, reporterID primitive.ObjectID) (map[models.IssueStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.IssueStatus]int64{models.Pending: 0, models.Solved: 0}
	for _, issue := range m.byID {
		if issue.ReporterID == reporterID {
			counts[issue.Status]++
		}
	}
	return counts, nil
}

// memUsers backs XPAwarder and RankingReader.
type memUsers struct {
	mu        sync.Mutex
	byID      map[primitive.ObjectID]models.User
	updateErr error
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{byID: map[primitive.ObjectID]models.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m *memUsers) AwardXP(_ context.Context, sess *session.Session, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	u := m.byID[sess.Profile.ID]
	u.XPPoints += points
	m.byID[u.ID] = u
	sess.Profile.XPPoints = u.XPPoints
	return nil
}

func (m *memUsers) xpOf(id primitive.ObjectID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].XPPoints
}

func (m *memUsers) TopByXP(_ context.Context, typ models.ProfileType, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.byID {
		if u.Type == typ {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XPPoints != out[j].XPPoints {
			return out[i].XPPoints > out[j].XPPoints
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeFiles struct {
	uploads []string
	err     error
}

func (f *fakeFiles) Upload(_ context.Context, bucket, filename string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	url := "https://files.example.com/files/" + bucket + "/" + filename
	f.uploads = append(f.uploads, url)
	return url, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
