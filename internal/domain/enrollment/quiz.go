package enrollment

import "github.com/yungbote/coursemarket-backend/internal/domain/catalog"

type QuizAnswerResult struct {
	QuestionIndex int  `json:"question_index"`
	UserAnswer    *int `json:"user_answer"`
	CorrectAnswer *int `json:"correct_answer"`
	IsCorrect     bool `json:"is_correct"`
}

type QuizGrade struct {
	Score      int                `json:"score"`
	Total      int                `json:"total_questions"`
	Percentage float64            `json:"percentage"`
	Passed     bool               `json:"is_passed"`
	Results    []QuizAnswerResult `json:"results"`
}

// GradeQuiz compares answers positionally against each question's correct
// option. The correct option is only disclosed for questions the learner
// actually answered.
func GradeQuiz(questions []catalog.QuizQuestion, answers []int, passPercent float64) QuizGrade {
	grade := QuizGrade{Total: len(questions), Results: make([]QuizAnswerResult, 0, len(questions))}
	for i, q := range questions {
		res := QuizAnswerResult{QuestionIndex: i}
		if i < len(answers) {
			answer := answers[i]
			res.UserAnswer = &answer
			if q.CorrectOption != nil {
				correct := *q.CorrectOption
				res.CorrectAnswer = &correct
				res.IsCorrect = answer == correct
			}
		}
		if res.IsCorrect {
			grade.Score++
		}
		grade.Results = append(grade.Results, res)
	}
	if grade.Total > 0 {
		grade.Percentage = float64(grade.Score) / float64(grade.Total) * 100
	}
	grade.Passed = grade.Total > 0 && grade.Percentage >= passPercent
	return grade
}
