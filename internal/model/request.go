package model

// SelectAnswerRequest records a single option choice for a question.
type SelectAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
	Answer     string `json:"answer" binding:"required,oneof=A B C D"`
}

// ToggleFlagRequest flips the marked-for-review state of a question.
type ToggleFlagRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
}

// GoToRequest moves the current position. Pointer so index 0 passes required.
type GoToRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}
