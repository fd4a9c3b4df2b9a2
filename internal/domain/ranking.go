package domain

// EvidenceLevel grades the strength of evidence a paper provides.
type EvidenceLevel string

const (
	EvidenceLevelHigh     EvidenceLevel = "high"
	EvidenceLevelModerate EvidenceLevel = "moderate"
	EvidenceLevelLow      EvidenceLevel = "low"
)

// ParseEvidenceLevel maps free text onto the closed set, defaulting to moderate.
func ParseEvidenceLevel(s string) EvidenceLevel {
	switch EvidenceLevel(s) {
	case EvidenceLevelHigh, EvidenceLevelModerate, EvidenceLevelLow:
		return EvidenceLevel(s)
	default:
		return EvidenceLevelModerate
	}
}

// StudyType classifies the design of a study.
type StudyType string

const (
	StudyTypeMetaAnalysis     StudyType = "meta-analysis"
	StudyTypeSystematicReview StudyType = "systematic-review"
	StudyTypeRCT              StudyType = "RCT"
	StudyTypeCohort           StudyType = "cohort"
	StudyTypeCaseSeries       StudyType = "case-series"
	StudyTypeCaseReport       StudyType = "case-report"
	StudyTypeBasicResearch    StudyType = "basic-research"
	StudyTypeReview           StudyType = "review"
	StudyTypeOther            StudyType = "other"
)

var studyTypes = map[StudyType]struct{}{
	StudyTypeMetaAnalysis:     {},
	StudyTypeSystematicReview: {},
	StudyTypeRCT:              {},
	StudyTypeCohort:           {},
	StudyTypeCaseSeries:       {},
	StudyTypeCaseReport:       {},
	StudyTypeBasicResearch:    {},
	StudyTypeReview:           {},
	StudyTypeOther:            {},
}

// ParseStudyType maps free text onto the closed set, defaulting to other.
func ParseStudyType(s string) StudyType {
	if _, ok := studyTypes[StudyType(s)]; ok {
		return StudyType(s)
	}
	return StudyTypeOther
}

// RankedPaper is the relevance judgement for one paper in a single ranking pass.
type RankedPaper struct {
	PaperID        string        `json:"paper_id"`
	RelevanceScore float64       `json:"relevance_score"`
	EvidenceLevel  EvidenceLevel `json:"evidence_level"`
	StudyType      StudyType     `json:"study_type"`
	Reason         string        `json:"reason"`
}

// ScoredPaper pairs a paper with its ranking, if it received one.
type ScoredPaper struct {
	Paper   *UnifiedPaper
	Ranking *RankedPaper
}

// Score returns the relevance score, or 0 for unranked papers.
func (s ScoredPaper) Score() float64 {
	if s.Ranking == nil {
		return 0
	}
	return s.Ranking.RelevanceScore
}
