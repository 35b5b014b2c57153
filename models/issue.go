package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Severity enum
type Severity string

const (
	Low    Severity = "low"
	Medium Severity = "medium"
	High   Severity = "high"
)

// Rank orders severities high > medium > low. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

// IssueStatus enum
type IssueStatus string

const (
	Pending IssueStatus = "pending"
	Solved  IssueStatus = "solved"
)

// IssueSort selects the ordering of issue listings.
type IssueSort string

const (
	SortRecent   IssueSort = "recent"
	SortSeverity IssueSort = "severity"
)

// Location is a latitude/longitude pair in decimal degrees.
type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title            string              `bson:"title" json:"title"`
	Description      string              `bson:"description" json:"description"`
	Severity         Severity            `bson:"severity" json:"severity"`
	SeverityRank     int                 `bson:"severityRank" json:"-"`
	Status           IssueStatus         `bson:"status" json:"status"`
	Location         Location            `bson:"location" json:"location"`
	ImageURL         *string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	ReporterID       primitive.ObjectID  `bson:"reporterId" json:"reporterId"`
	SolverID         *primitive.ObjectID `bson:"solverId,omitempty" json:"solverId,omitempty"`
	SolutionImageURL *string             `bson:"solutionImageUrl,omitempty" json:"solutionImageUrl,omitempty"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
	SolvedAt         *time.Time          `bson:"solvedAt,omitempty" json:"solvedAt,omitempty"`
}
