package services

import (
	"context"

	"civichero-be/apperr"
	"civichero-be/models"
	"civichero-be/session"
)

type IssueStats struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	Solved  int64 `json:"solved"`
}

type CitizenDashboard struct {
	Profile     models.Profile     `json:"profile"`
	Issues      []models.Issue     `json:"issues"`
	Stats       IssueStats         `json:"stats"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type NGODashboard struct {
	Profile      models.Profile     `json:"profile"`
	Queue        []models.Issue     `json:"queue"`
	ResolveAward int                `json:"resolveAward"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
}

type DashboardService struct {
	issues      *IssueService
	leaderboard *LeaderboardService
}

func NewDashboardService(issues *IssueService, leaderboard *LeaderboardService) *DashboardService {
	return &DashboardService{issues: issues, leaderboard: leaderboard}
}

// Build returns the dashboard for the session's own profile type.
func (s *DashboardService) Build(ctx context.Context, sess *session.Session) (any, error) {
	switch sess.Role() {
	case models.Citizen:
		return s.Citizen(ctx, sess)
	case models.NGO:
		return s.NGO(ctx, sess)
	default:
		return nil, apperr.Forbidden("unknown profile type")
	}
}

func (s *DashboardService) Citizen(ctx context.Context, sess *session.Session) (*CitizenDashboard, error) {
	issues, err := s.issues.ListForReporter(ctx, sess.Profile.ID)
	if err != nil {
		return nil, err
	}
	counts, err := s.issues.CountByStatus(ctx, sess.Profile.ID)
	if err != nil {
		return nil, err
	}
	board, err := s.leaderboard.Top(ctx, models.Citizen, DefaultLeaderboardSize)
	if err != nil {
		return nil, err
	}

	return &CitizenDashboard{
		Profile: sess.Profile,
		Issues:  issues,
		Stats: IssueStats{
			Total:   counts[models.Pending] + counts[models.Solved],
			Pending: counts[models.Pending],
			Solved:  counts[models.Solved],
		},
		Leaderboard: board,
	}, nil
}

func (s *DashboardService) NGO(ctx context.Context, sess *session.Session) (*NGODashboard, error) {
	queue, err := s.issues.ListAll(ctx, models.SortSeverity)
	if err != nil {
		return nil, err
	}
	board, err := s.leaderboard.Top(ctx, models.NGO, DefaultLeaderboardSize)
	if err != nil {
		return nil, err
	}

	return &NGODashboard{
		Profile:      sess.Profile,
		Queue:        queue,
		ResolveAward: s.issues.ResolveAward(),
		Leaderboard:  board,
	}, nil
}
