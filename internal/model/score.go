package model

// ScoreSummary is the immutable result of a submission: per-skill raw correct
// counts, per-skill scaled scores, and their totals.
type ScoreSummary struct {
	ListeningCorrect int `json:"listening_correct"`
	ReadingCorrect   int `json:"reading_correct"`
	ListeningScore   int `json:"listening_score"`
	ReadingScore     int `json:"reading_score"`
	TotalCorrect     int `json:"total_correct"`
	TotalScore       int `json:"total_score"`
}

// SubmittedAnswer is one entry of the persistence payload, keyed by the
// global question number the backend understands.
type SubmittedAnswer struct {
	QuestionNumber int    `json:"questionNumber"`
	UserAnswer     string `json:"userAnswer"`
}

// SubmissionPayload is the wire format of the best-effort persistence POST.
type SubmissionPayload struct {
	Answers           []SubmittedAnswer `json:"answers"`
	Mark              int               `json:"mark"`
	RightAnswerNumber int               `json:"rightAnswerNumber"`
}

// AnswerDetail records per-question correctness for the results view.
type AnswerDetail struct {
	QuestionNumber int    `json:"questionNumber"`
	QuestionID     string `json:"questionId,omitempty"`
	Skill          Skill  `json:"skill"`
	UserAnswer     string `json:"userAnswer,omitempty"`
	CorrectAnswer  string `json:"correctAnswer"`
	Correct        bool   `json:"correct"`
}

// HandoffValue is what the scoring pipeline writes to the result handoff
// store for the results view to pick up.
type HandoffValue struct {
	Summary         ScoreSummary   `json:"summary"`
	DetailedAnswers []AnswerDetail `json:"detailedAnswers"`
	Meta            HandoffMeta    `json:"meta"`
}

// HandoffMeta carries context the results view needs alongside the summary.
type HandoffMeta struct {
	ExamID         string `json:"examId"`
	AnsweredCount  int    `json:"answeredCount"`
	TotalQuestions int    `json:"totalQuestions"`
}
