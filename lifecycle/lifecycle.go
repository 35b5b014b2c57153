// Package lifecycle holds the issue state machine: an issue starts pending
// and becomes solved exactly once. Solved is terminal.
package lifecycle

import (
	"strings"

	"civichero-be/apperr"
	"civichero-be/models"
)

// DefaultResolveAward is the XP an NGO earns for resolving an issue.
// Deployments override it with XP_RESOLVE_AWARD.
const DefaultResolveAward = 200

var (
	ErrAlreadySolved         = apperr.Conflict("issue is already solved")
	ErrSolutionImageRequired = apperr.Validation("a solution image is required to resolve an issue")
	ErrNGORequired           = apperr.Forbidden("only NGOs can resolve issues")
)

// CanTransition reports whether an issue may move from one status to another.
func CanTransition(from, to models.IssueStatus) bool {
	return from == models.Pending && to == models.Solved
}

// CanResolve checks the pending -> solved guard for the given resolver.
func CanResolve(issue *models.Issue, resolver models.ProfileType, solutionImageURL string) error {
	if resolver != models.NGO {
		return ErrNGORequired
	}
	if !CanTransition(issue.Status, models.Solved) {
		return ErrAlreadySolved
	}
	if strings.TrimSpace(solutionImageURL) == "" {
		return ErrSolutionImageRequired
	}
	return nil
}
