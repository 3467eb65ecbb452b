package codeforces

import (
	"github.com/cf-hub/progress-tracker/internal/domain/student"
	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

// Mapper converts API DTOs into domain types.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// IdentityFromDTO converts a user.info entry into an identity snapshot.
func (m *Mapper) IdentityFromDTO(dto UserDTO) student.Identity {
	return student.Identity{
		Handle:    student.Handle(dto.Handle),
		Rating:    student.Rating(dto.Rating),
		MaxRating: student.Rating(dto.MaxRating),
		Rank:      student.RankTitle(dto.Rank).OrUnrated(),
		MaxRank:   student.RankTitle(dto.MaxRank).OrUnrated(),
	}
}

// ContestsFromDTO converts user.rating entries into contest results.
func (m *Mapper) ContestsFromDTO(dtos []RatingChangeDTO) []student.ContestResult {
	contests := make([]student.ContestResult, 0, len(dtos))
	for _, dto := range dtos {
		contests = append(contests, student.ContestResult{
			ContestID:   dto.ContestID,
			ContestName: dto.ContestName,
			Rank:        dto.Rank,
			OldRating:   dto.OldRating,
			NewRating:   dto.NewRating,
			RatedAt:     timeutil.UnixSeconds(dto.RatingUpdateTimeSeconds),
		})
	}
	return contests
}

// SubmissionsFromDTO converts user.status entries into submissions.
func (m *Mapper) SubmissionsFromDTO(dtos []SubmissionDTO) []student.Submission {
	subs := make([]student.Submission, 0, len(dtos))
	for _, dto := range dtos {
		contestID := dto.Problem.ContestID
		if contestID == 0 {
			contestID = dto.ContestID
		}
		subs = append(subs, student.Submission{
			ID:            dto.ID,
			ContestID:     contestID,
			Index:         dto.Problem.Index,
			ProblemName:   dto.Problem.Name,
			ProblemRating: dto.Problem.Rating,
			Verdict:       student.Verdict(dto.Verdict),
			Language:      dto.ProgrammingLanguage,
			SubmittedAt:   timeutil.UnixSeconds(dto.CreationTimeSeconds),
		})
	}
	return subs
}
