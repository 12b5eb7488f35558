package services

import (
	"strings"

	"synapse_server/models"
)

// ScoreConfig holds the scoring weights. Zero values are legal; use
// DefaultScoreConfig for the standard weights.
type ScoreConfig struct {
	KnowledgeTagWeight int
	CuriosityTagWeight int
	FacultyBonus       int
	SameProgramPenalty int
}

// DefaultScoreConfig returns the standard scoring weights.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		KnowledgeTagWeight: 15,
		CuriosityTagWeight: 5,
		FacultyBonus:       25,
		SameProgramPenalty: 50,
	}
}

// Scorer computes a compatibility score between a request and a candidate
// profile. Pure and deterministic; tag order never affects the sum.
type Scorer struct {
	cfg ScoreConfig
}

func NewScorer(cfg ScoreConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the compatibility score for the candidate against the
// request text. Knowledge and curiosity tags are matched as case-insensitive
// substrings; a different faculty earns the interdisciplinary bonus and the
// same program is penalized. Never negative.
func (s *Scorer) Score(requestText, requesterFaculty, requesterProgram string, candidate *models.Profile) int {
	text := strings.ToLower(requestText)
	score := 0

	for _, tag := range candidate.KnowledgeTags {
		if tag != "" && strings.Contains(text, strings.ToLower(tag)) {
			score += s.cfg.KnowledgeTagWeight
		}
	}

	for _, tag := range candidate.CuriosityTags {
		if tag != "" && strings.Contains(text, strings.ToLower(tag)) {
			score += s.cfg.CuriosityTagWeight
		}
	}

	if candidate.Faculty != requesterFaculty {
		score += s.cfg.FacultyBonus
	}

	if candidate.Program == requesterProgram {
		score -= s.cfg.SameProgramPenalty
	}

	if score < 0 {
		score = 0
	}
	return score
}
