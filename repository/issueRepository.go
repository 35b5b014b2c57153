package repository

import (
	"context"
	"errors"
	"time"

	"civichero-be/apperr"
	"civichero-be/lifecycle"
	"civichero-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrIssueNotFound = apperr.NotFound("Issue not found")

// IssueRepository stores reports in the issues collection.
type IssueRepository struct {
	coll *mongo.Collection
}

func NewIssueRepository(db *mongo.Database) *IssueRepository {
	return &IssueRepository{coll: db.Collection("issues")}
}

// EnsureIndexes creates the indexes backing the reporter and queue listings
func (r *IssueRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reporterId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "severityRank", Value: -1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

func (r *IssueRepository) Insert(ctx context.Context, issue *models.Issue) error {
	if _, err := r.coll.InsertOne(ctx, issue); err != nil {
		return apperr.Network("Failed to create issue", err)
	}
	return nil
}

func (r *IssueRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&issue); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrIssueNotFound
		}
		return nil, apperr.Network("Failed to retrieve issue", err)
	}
	return &issue, nil
}

// FindByReporter returns a citizen's issues, newest first
func (r *IssueRepository) FindByReporter(ctx context.Context, reporterID primitive.ObjectID) ([]models.Issue, error) {
	return r.find(ctx, bson.M{"reporterId": reporterID}, sortOptions(models.SortRecent))
}

// FindAll returns every issue in the requested order
func (r *IssueRepository) FindAll(ctx context.Context, sort models.IssueSort) ([]models.Issue, error) {
	return r.find(ctx, bson.M{}, sortOptions(sort))
}

func (r *IssueRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]models.Issue, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, apperr.Network("Failed to retrieve issues", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, apperr.Network("Failed to decode issues", err)
	}
	return issues, nil
}

func sortOptions(sort models.IssueSort) bson.D {
	switch sort {
	case models.SortSeverity:
		return bson.D{{Key: "severityRank", Value: -1}, {Key: "createdAt", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}

// MarkSolved moves a pending issue to solved in a single conditional
// update. Only the first resolver matches the pending filter; later ones
// get lifecycle.ErrAlreadySolved.
func (r *IssueRepository) MarkSolved(ctx context.Context, id, solverID primitive.ObjectID, solutionImageURL string, at time.Time) (*models.Issue, error) {
	filter := bson.M{"_id": id, "status": models.Pending}
	update := bson.M{"$set": bson.M{
		"status":           models.Solved,
		"solverId":         solverID,
		"solutionImageUrl": solutionImageURL,
		"solvedAt":         at,
		"updatedAt":        at,
	}}

	var issue models.Issue
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&issue)
	if err == nil {
		return &issue, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Network("Failed to resolve issue", err)
	}

	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, apperr.Network("Failed to resolve issue", err)
	}
	if count == 0 {
		return nil, ErrIssueNotFound
	}
	return nil, lifecycle.ErrAlreadySolved
}

// Reopen undoes MarkSolved for solverID. It is only used to compensate a
// resolution whose follow-up steps failed.
func (r *IssueRepository) Reopen(ctx context.Context, id, solverID primitive.ObjectID) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.Solved, "solverId": solverID},
		bson.M{
			"$set":   bson.M{"status": models.Pending, "updatedAt": time.Now()},
			"$unset": bson.M{"solverId": "", "solutionImageUrl": "", "solvedAt": ""},
		},
	)
	if err != nil {
		return apperr.Network("Failed to reopen issue", err)
	}
	return nil
}

// CountByStatus counts a reporter's issues per status
func (r *IssueRepository) CountByStatus(ctx context.Context, reporterID primitive.ObjectID) (map[models.IssueStatus]int64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"reporterId": reporterID}},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Network("Failed to count issues", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.IssueStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, apperr.Network("Failed to decode issue counts", err)
	}

	counts := map[models.IssueStatus]int64{models.Pending: 0, models.Solved: 0}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
