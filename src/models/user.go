package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

var UserType = reflect.TypeOf(User{})

// Rank is stored and serialized by name.
type Rank string

const (
	RankMember     Rank = "Member"
	RankPrivileged Rank = "Privileged"
	RankJanitor    Rank = "Janitor"
	RankAdmin      Rank = "Admin"
)

var AllRanks = []Rank{RankMember, RankPrivileged, RankJanitor, RankAdmin}

// Position of the rank in the hierarchy, starting at 1. Unknown ranks are 0
// and therefore below everything.
func (r Rank) Level() int {
	for i, rank := range AllRanks {
		if rank == r {
			return i + 1
		}
	}
	return 0
}

func (r Rank) IsValid() bool {
	return r.Level() > 0
}

func (r Rank) AtLeast(other Rank) bool {
	return r.IsValid() && r.Level() >= other.Level()
}

// Parses a rank name, ignoring case.
func ParseRank(s string) (Rank, error) {
	for _, rank := range AllRanks {
		if strings.EqualFold(string(rank), strings.TrimSpace(s)) {
			return rank, nil
		}
	}
	return "", fmt.Errorf("unknown rank %q", s)
}

func (r *Rank) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRank(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type User struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Rank      Rank      `db:"rank" json:"rank"`
	Strikes   int       `db:"strikes" json:"strikes"`
	IsBanned  bool      `db:"is_banned" json:"isBanned"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (u *User) IsStaff() bool {
	return u.Rank.AtLeast(RankJanitor)
}

// Contribution thresholds for automatic registration.
const (
	PrivilegedContributions = 1000
	MemberContributions     = 100
)

// The rank a user earns from their contribution count on the identity
// provider. ok is false when they have too few to register at all.
func RankForContributions(count int) (rank Rank, ok bool) {
	switch {
	case count >= PrivilegedContributions:
		return RankPrivileged, true
	case count >= MemberContributions:
		return RankMember, true
	default:
		return "", false
	}
}
