package services

import (
	"context"

	"civichero-be/apperr"
	"civichero-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

type RankingReader interface {
	TopByXP(ctx context.Context, typ models.ProfileType, limit int) ([]models.User, error)
}

// LeaderboardEntry is one ranked profile. Rank starts at 1. Emails are left
// out since boards are visible to every signed-in user.
type LeaderboardEntry struct {
	Rank     int                `json:"rank"`
	ID       primitive.ObjectID `json:"id"`
	Name     string             `json:"name"`
	Type     models.ProfileType `json:"type"`
	XPPoints int                `json:"xpPoints"`
}

type LeaderboardService struct {
	users RankingReader
}

func NewLeaderboardService(users RankingReader) *LeaderboardService {
	return &LeaderboardService{users: users}
}

// Top ranks profiles of typ by XP, highest first. limit falls back to the
// default when non-positive and is capped at MaxLeaderboardSize.
func (s *LeaderboardService) Top(ctx context.Context, typ models.ProfileType, limit int) ([]LeaderboardEntry, error) {
	if !typ.Valid() {
		return nil, apperr.Validation("type must be citizen or ngo")
	}
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	users, err := s.users.TopByXP(ctx, typ, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:     i + 1,
			ID:       users[i].ID,
			Name:     users[i].Name,
			Type:     users[i].Type,
			XPPoints: users[i].XPPoints,
		})
	}
	return entries, nil
}
