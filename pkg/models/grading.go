package models

// ScoringScheme holds the point deltas applied per question outcome.
type ScoringScheme struct {
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
}

// DefaultScoringScheme matches the common +4/-1/0 exam convention.
func DefaultScoringScheme() ScoringScheme {
	return ScoringScheme{Correct: 4, Incorrect: -1, Unanswered: 0}
}

// AnswerKey maps question number to the correct option.
type AnswerKey map[int]Option

// QuestionDetail is one graded question.
type QuestionDetail struct {
	QuestionNumber   int     `json:"question_number"`
	StudentAnswer    Option  `json:"student_answer,omitempty"`
	CorrectAnswer    Option  `json:"correct_answer"`
	IsCorrect        bool    `json:"is_correct"`
	PointsAwarded    int     `json:"points_awarded"`
	Confidence       float64 `json:"confidence"`
	IsMultipleMarked bool    `json:"is_multiple_marked"`
}

// ScoringResult summarises a graded sheet.
type ScoringResult struct {
	TotalScore       int     `json:"total_score"`
	MaxPossibleScore int     `json:"max_possible_score"`
	Percentage       float64 `json:"percentage"`
	CorrectAnswers   int     `json:"correct_answers"`
	IncorrectAnswers int     `json:"incorrect_answers"`
	Unanswered       int     `json:"unanswered"`
	InvalidMarks     int     `json:"invalid_marks"`
}

// SectionPerformance is the per-section breakdown in grading analytics.
type SectionPerformance struct {
	Section    int     `json:"section"`
	Questions  string  `json:"questions"`
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// GradingAnalytics is the optional detail block built when debug info is
// requested.
type GradingAnalytics struct {
	TotalQuestions     int                  `json:"total_questions"`
	AttemptedQuestions int                  `json:"attempted_questions"`
	AccuracyRate       float64              `json:"accuracy_rate"`
	AverageConfidence  float64              `json:"average_confidence"`
	AnswerDistribution map[Option]int       `json:"answer_distribution"`
	SectionPerformance []SectionPerformance `json:"section_performance"`
}
