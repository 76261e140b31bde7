package auth

import (
	"context"
	"strconv"
	"strings"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/logging"
	"github.com/clynamic/tagem/src/models"
)

/*
Reports whether user owns the resource with resourceID. An error that
classifies as NotFound means the resource does not exist, or that user is not
allowed to see it.
*/
type OwnershipCheck func(ctx context.Context, user *models.User, resourceID int) (bool, error)

type Rule struct {
	Rank     models.Rank
	OrHigher bool
	// Optional.
	Owns OwnershipCheck
}

func Ranked(rank models.Rank, owns OwnershipCheck) Rule {
	return Rule{Rank: rank, Owns: owns}
}

func RankedOrHigher(rank models.Rank, owns OwnershipCheck) Rule {
	return Rule{Rank: rank, OrHigher: true, Owns: owns}
}

// Like "Janitor+?", where + means or higher and ? means an ownership check.
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString(string(r.Rank))
	if r.OrHigher {
		b.WriteString("+")
	}
	if r.Owns != nil {
		b.WriteString("?")
	}
	return b.String()
}

func (r Rule) rankMatches(rank models.Rank) bool {
	return rank == r.Rank || (r.OrHigher && rank.AtLeast(r.Rank))
}

/*
Authorize admits user if any rule passes. A rule passes when the rank matches
and, if the rule has an ownership check, the user owns the resource named by
rawID.

Every rule is evaluated. If any ownership check finds that the resource does
not exist, the result is NotFound no matter which other rules passed.
*/
func Authorize(ctx context.Context, user *models.User, rawID string, rules ...Rule) error {
	logger := logging.ExtractLogger(ctx)

	if user == nil {
		return apierr.Unauthorized("Missing or invalid token")
	}

	var resourceID int
	for _, rule := range rules {
		if rule.Owns != nil {
			id, err := strconv.Atoi(rawID)
			if err != nil {
				logger.Trace().Str("id", rawID).Msg("authorization cancelled, missing ID parameter")
				return apierr.BadRequest(err, "Missing ID parameter")
			}
			resourceID = id
			break
		}
	}

	permitted := false
	for _, rule := range rules {
		rankOK := rule.rankMatches(user.Rank)
		owns := true
		if rule.Owns != nil {
			var err error
			owns, err = rule.Owns(ctx, user, resourceID)
			if apierr.Is(err, apierr.KindNotFound) {
				logger.Trace().Int("id", resourceID).Msg("authorization cancelled, resource does not exist")
				return apierr.NotFound("Resource not found")
			} else if err != nil {
				return err
			}
		}

		passed := rankOK && owns
		switch {
		case passed:
			logger.Trace().Stringer("rule", rule).Msg("authorization rule passed")
		case !rankOK:
			logger.Trace().Stringer("rule", rule).Msg("authorization rule failed, insufficient rank")
		default:
			logger.Trace().Stringer("rule", rule).Msg("authorization rule failed, not the owner")
		}
		permitted = permitted || passed
	}

	if !permitted {
		return apierr.Forbidden("Insufficient permissions")
	}
	return nil
}
