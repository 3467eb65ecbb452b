// Package student contains the domain model of a tracked Codeforces student.
// This is the core of the business logic - no infrastructure dependencies.
package student

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Handle represents a Codeforces handle.
type Handle string

// IsValid checks that the handle looks like a real Codeforces handle.
func (h Handle) IsValid() bool {
	s := string(h)
	if len(s) < 3 || len(s) > 24 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}

// String returns the handle as a string.
func (h Handle) String() string {
	return string(h)
}

// Normalized returns the handle in its canonical lowercase form.
// Codeforces treats handles case-insensitively, cache and lookup keys
// must do the same.
func (h Handle) Normalized() Handle {
	return Handle(strings.ToLower(string(h)))
}

// Rating represents a Codeforces rating value.
type Rating int

// IsValid checks that the rating is non-negative.
func (r Rating) IsValid() bool {
	return r >= 0
}

// Diff computes the difference between two ratings.
func (r Rating) Diff(other Rating) int {
	return int(r) - int(other)
}

// RankTitle represents a Codeforces rank title ("newbie", "expert", ...).
type RankTitle string

// RankUnrated is the title used for students with no rated contests yet.
const RankUnrated RankTitle = "unrated"

// String returns the rank title as a string.
func (r RankTitle) String() string {
	return string(r)
}

// OrUnrated substitutes the unrated title for an empty value.
func (r RankTitle) OrUnrated() RankTitle {
	if r == "" {
		return RankUnrated
	}
	return r
}

// ProblemKey uniquely identifies a problem as contestId+index, e.g. "1750A".
type ProblemKey string

// MakeProblemKey builds the canonical problem key.
func MakeProblemKey(contestID int, index string) ProblemKey {
	return ProblemKey(fmt.Sprintf("%d%s", contestID, index))
}

// Verdict represents a submission verdict.
type Verdict string

// VerdictAccepted is the only verdict that counts as a solve.
const VerdictAccepted Verdict = "OK"

// IsAccepted reports whether the verdict counts as a solve.
func (v Verdict) IsAccepted() bool {
	return v == VerdictAccepted
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

// Identity is the profile snapshot fetched from the upstream API.
type Identity struct {
	Handle    Handle
	Rating    Rating
	MaxRating Rating
	Rank      RankTitle
	MaxRank   RankTitle
}

// ContestResult is one rated contest participation.
type ContestResult struct {
	ContestID   int       `json:"contest_id"`
	ContestName string    `json:"contest_name"`
	Rank        int       `json:"rank"`
	OldRating   int       `json:"old_rating"`
	NewRating   int       `json:"new_rating"`
	RatedAt     time.Time `json:"rated_at"`
}

// Submission is one submission as reported by the upstream API.
type Submission struct {
	ID            int64
	ContestID     int
	Index         string
	ProblemName   string
	ProblemRating *int // nil for unrated problems
	Verdict       Verdict
	Language      string
	SubmittedAt   time.Time
}

// Key returns the problem key of the submitted problem.
func (s Submission) Key() ProblemKey {
	return MakeProblemKey(s.ContestID, s.Index)
}

// SolvedProblem records the first accepted solution of a problem.
// FirstSolvedAt never changes once the problem is recorded.
type SolvedProblem struct {
	Key           ProblemKey `json:"key"`
	Name          string     `json:"name"`
	Rating        *int       `json:"rating,omitempty"`
	FirstSolvedAt time.Time  `json:"first_solved_at"`
}

// Baseline is the progress snapshot the weekly report diffs against.
// It rolls forward after each report.
type Baseline struct {
	Rating      int       `json:"rating"`
	TotalSolved int       `json:"total_solved"`
	Contests    int       `json:"contests"`
	TakenAt     time.Time `json:"taken_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidHandle is returned when a handle fails validation.
	ErrInvalidHandle = errors.New("invalid codeforces handle")

	// ErrInvalidEmail is returned when an email fails validation.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidName is returned when a student name fails validation.
	ErrInvalidName = errors.New("invalid student name")
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is the aggregate tracked per student: identity, accumulated
// progress, derived statistics and reminder state.
type Record struct {
	ID    string
	Name  string
	Email string
	Phone string

	Handle    Handle
	Rating    Rating
	MaxRating Rating
	Rank      RankTitle
	MaxRank   RankTitle

	LastSyncedAt   time.Time
	LastActivityAt time.Time

	ContestHistory []ContestResult
	SolvedProblems []SolvedProblem
	Stats          Stats

	// Reminder state. ReminderEmailsSent is a lifetime counter and only
	// increases. ReminderCount is the counter the cap applies to, reset
	// whenever new activity is observed.
	EmailRemindersEnabled bool
	ReminderEmailsSent    int
	ReminderCount         int
	LastReminderSentAt    time.Time // zero = never

	WeeklyBaseline Baseline

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecordParams holds parameters for enrolling a student.
type NewRecordParams struct {
	Handle Handle
	Name   string
	Email  string
	Phone  string
}

// NewRecord enrolls a new student with a freshly minted ID.
// Reminders are enabled by default, matching the enrollment form.
func NewRecord(params NewRecordParams, now time.Time) (*Record, error) {
	if !params.Handle.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandle, params.Handle)
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, ErrInvalidName
	}
	if !isValidEmail(params.Email) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, params.Email)
	}

	return &Record{
		ID:                    uuid.NewString(),
		Name:                  params.Name,
		Email:                 strings.ToLower(params.Email),
		Phone:                 params.Phone,
		Handle:                params.Handle,
		Rank:                  RankUnrated,
		MaxRank:               RankUnrated,
		EmailRemindersEnabled: true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// isValidEmail does a minimal structural check. Deliverability is the
// mail relay's problem.
func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t\n\r")
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILIATION
// ══════════════════════════════════════════════════════════════════════════════

// ApplyIdentity overwrites the identity snapshot fields and stamps the
// sync time. Snapshot fields always reflect the latest fetch.
func (r *Record) ApplyIdentity(id Identity, now time.Time) {
	r.Rating = id.Rating
	r.MaxRating = id.MaxRating
	r.Rank = id.Rank.OrUnrated()
	r.MaxRank = id.MaxRank.OrUnrated()
	r.LastSyncedAt = now
	r.UpdatedAt = now
}

// MergeContests inserts contests that are not yet in the history,
// keyed by contest ID. Existing entries are never mutated. Returns the
// number of contests added.
func (r *Record) MergeContests(contests []ContestResult) int {
	seen := make(map[int]bool, len(r.ContestHistory))
	for _, c := range r.ContestHistory {
		seen[c.ContestID] = true
	}

	added := 0
	for _, c := range contests {
		if seen[c.ContestID] {
			continue
		}
		seen[c.ContestID] = true
		r.ContestHistory = append(r.ContestHistory, c)
		added++
	}

	if added > 0 {
		sortContestsByTime(r.ContestHistory)
	}
	return added
}

// sortContestsByTime keeps the history in chronological order.
// Insertion sort: the history is already sorted and additions are few.
func sortContestsByTime(contests []ContestResult) {
	for i := 1; i < len(contests); i++ {
		for j := i; j > 0 && contests[j].RatedAt.Before(contests[j-1].RatedAt); j-- {
			contests[j], contests[j-1] = contests[j-1], contests[j]
		}
	}
}

// MergeSolves inserts solved problems that are not yet recorded, keyed
// by problem key. A problem already present keeps its original
// FirstSolvedAt no matter what the candidate says. Returns the number
// of problems added.
func (r *Record) MergeSolves(solves []SolvedProblem) int {
	seen := make(map[ProblemKey]bool, len(r.SolvedProblems))
	for _, p := range r.SolvedProblems {
		seen[p.Key] = true
	}

	added := 0
	for _, p := range solves {
		if seen[p.Key] {
			continue
		}
		seen[p.Key] = true
		r.SolvedProblems = append(r.SolvedProblems, p)
		added++
	}
	return added
}

// AdvanceActivity moves LastActivityAt forward to t if t is later.
// New activity resets the capped reminder counter so a returning
// student gets a fresh reminder window. Returns true if the timestamp
// moved.
func (r *Record) AdvanceActivity(t time.Time) bool {
	if !t.After(r.LastActivityAt) {
		return false
	}
	r.LastActivityAt = t
	r.ReminderCount = 0
	return true
}

// RecomputeStats rebuilds the derived statistics from the full solved
// set. Called after every merge; the stats are never updated
// incrementally.
func (r *Record) RecomputeStats(now time.Time) {
	r.Stats = ComputeStats(r.SolvedProblems, now)
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDERS
// ══════════════════════════════════════════════════════════════════════════════

// RecordReminder registers a dispatched reminder. The lifetime counter
// only increases and the sent timestamp only moves forward.
func (r *Record) RecordReminder(now time.Time) {
	r.ReminderEmailsSent++
	r.ReminderCount++
	if now.After(r.LastReminderSentAt) {
		r.LastReminderSentAt = now
	}
	r.UpdatedAt = now
}

// InactiveFor returns how long the student has been inactive as of now.
// A student with no recorded activity counts as inactive since
// enrollment.
func (r *Record) InactiveFor(now time.Time) time.Duration {
	since := r.LastActivityAt
	if since.IsZero() {
		since = r.CreatedAt
	}
	return now.Sub(since)
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY BASELINE
// ══════════════════════════════════════════════════════════════════════════════

// RollBaseline snapshots the current progress as the new weekly
// baseline.
func (r *Record) RollBaseline(now time.Time) {
	r.WeeklyBaseline = Baseline{
		Rating:      int(r.Rating),
		TotalSolved: len(r.SolvedProblems),
		Contests:    len(r.ContestHistory),
		TakenAt:     now,
	}
	r.UpdatedAt = now
}

// String returns a short description for logging.
func (r *Record) String() string {
	return fmt.Sprintf("Record(%s, handle=%s, rating=%d)", r.ID, r.Handle, r.Rating)
}
