package session

// PhaseData holds one typed record per phase. Each record carries the
// completion flag and the phase's working artifacts.
type PhaseData struct {
	Intake  IntakeRecord  `json:"intake"`
	Draft   DraftRecord   `json:"draft"`
	Refine  RefineRecord  `json:"refine"`
	Quality QualityRecord `json:"quality"`
}

type IntakeRecord struct {
	Complete bool       `json:"complete"`
	Data     IntakeData `json:"data"`
}

type DraftRecord struct {
	Complete bool      `json:"complete"`
	Data     DraftData `json:"data"`
}

type RefineRecord struct {
	Complete bool       `json:"complete"`
	Data     RefineData `json:"data"`
}

type QualityRecord struct {
	Complete bool        `json:"complete"`
	Data     QualityData `json:"data"`
}

// IntakeData is the intake phase's working state.
type IntakeData struct {
	InitialDescription string            `json:"initial_description,omitempty"`
	Research           map[string]string `json:"research,omitempty"`
	GapQuestions       []string          `json:"gap_questions,omitempty"`
	// ResearchSkipped records why research did not run or stopped early.
	ResearchSkipped string `json:"research_skipped,omitempty"`
	ResearchDone    bool   `json:"research_done,omitempty"`
	Iterations      int    `json:"iterations"`
}

// DraftData is the draft phase's working state.
type DraftData struct {
	Draft      string `json:"draft,omitempty"`
	Iterations int    `json:"iterations"`
}

// RefineData is the refine phase's working state.
type RefineData struct {
	Refined    string `json:"refined,omitempty"`
	Iterations int    `json:"iterations"`
}

// QualityData is the quality-control phase's working state.
type QualityData struct {
	FinalReview string             `json:"final_review,omitempty"`
	Scores      map[string]float64 `json:"scores,omitempty"`
	ReviewPath  string             `json:"review_path,omitempty"`
	Iterations  int                `json:"iterations"`
}

// IsComplete reports the completion flag of phase p.
func (d *PhaseData) IsComplete(p Phase) bool {
	switch p {
	case PhaseIntake:
		return d.Intake.Complete
	case PhaseDraft:
		return d.Draft.Complete
	case PhaseRefine:
		return d.Refine.Complete
	case PhaseQuality:
		return d.Quality.Complete
	}
	return false
}

// SetComplete sets the completion flag of phase p.
func (d *PhaseData) SetComplete(p Phase, complete bool) {
	switch p {
	case PhaseIntake:
		d.Intake.Complete = complete
	case PhaseDraft:
		d.Draft.Complete = complete
	case PhaseRefine:
		d.Refine.Complete = complete
	case PhaseQuality:
		d.Quality.Complete = complete
	}
}

// Iterate increments the model-round counter of phase p and returns it.
func (d *PhaseData) Iterate(p Phase) int {
	switch p {
	case PhaseIntake:
		d.Intake.Data.Iterations++
		return d.Intake.Data.Iterations
	case PhaseDraft:
		d.Draft.Data.Iterations++
		return d.Draft.Data.Iterations
	case PhaseRefine:
		d.Refine.Data.Iterations++
		return d.Refine.Data.Iterations
	case PhaseQuality:
		d.Quality.Data.Iterations++
		return d.Quality.Data.Iterations
	}
	return 0
}

// Iterations returns the model-round counter of phase p.
func (d *PhaseData) Iterations(p Phase) int {
	switch p {
	case PhaseIntake:
		return d.Intake.Data.Iterations
	case PhaseDraft:
		return d.Draft.Data.Iterations
	case PhaseRefine:
		return d.Refine.Data.Iterations
	case PhaseQuality:
		return d.Quality.Data.Iterations
	}
	return 0
}

// BestReviewText returns the most finished review text available: the
// final review, then the refined text, then the draft.
func (d *PhaseData) BestReviewText() string {
	switch {
	case d.Quality.Data.FinalReview != "":
		return d.Quality.Data.FinalReview
	case d.Refine.Data.Refined != "":
		return d.Refine.Data.Refined
	default:
		return d.Draft.Data.Draft
	}
}
