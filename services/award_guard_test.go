package services

import (
	"testing"

	"warungsoal-progression/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAward(t *testing.T) {
	tests := []struct {
		name    string
		req     AwardRequest
		wantErr error
	}{
		{
			name: "asker earns question_asked",
			req:  AwardRequest{ActorID: "q", RecipientID: "q", QuestionAuthorID: "q", Action: models.ActionQuestionAsked, Difficulty: models.DifficultyEasy},
		},
		{
			name:    "question_asked for someone else",
			req:     AwardRequest{ActorID: "x", RecipientID: "q", QuestionAuthorID: "q", Action: models.ActionQuestionAsked, Difficulty: models.DifficultyEasy},
			wantErr: ErrForbiddenAward,
		},
		{
			name: "answerer earns answer_submitted",
			req:  AwardRequest{ActorID: "a", RecipientID: "a", QuestionAuthorID: "q", AnswerAuthorID: "a", Action: models.ActionAnswerSubmitted, Difficulty: models.DifficultyHard},
		},
		{
			name:    "answering own question",
			req:     AwardRequest{ActorID: "q", RecipientID: "q", QuestionAuthorID: "q", AnswerAuthorID: "q", Action: models.ActionAnswerSubmitted, Difficulty: models.DifficultyHard},
			wantErr: ErrSelfAward,
		},
		{
			name: "question author approves",
			req:  AwardRequest{ActorID: "q", RecipientID: "a", QuestionAuthorID: "q", AnswerAuthorID: "a", Action: models.ActionAnswerApprovedByAuthor, Difficulty: models.DifficultyMedium},
		},
		{
			name:    "approving own answer",
			req:     AwardRequest{ActorID: "a", RecipientID: "a", QuestionAuthorID: "a", AnswerAuthorID: "a", Action: models.ActionAnswerApprovedByAuthor, Difficulty: models.DifficultyMedium},
			wantErr: ErrSelfAward,
		},
		{
			name:    "stranger approves",
			req:     AwardRequest{ActorID: "x", RecipientID: "a", QuestionAuthorID: "q", AnswerAuthorID: "a", Action: models.ActionAnswerApprovedByAuthor, Difficulty: models.DifficultyMedium},
			wantErr: ErrForbiddenAward,
		},
		{
			name:    "approval paid to someone other than the answerer",
			req:     AwardRequest{ActorID: "q", RecipientID: "x", QuestionAuthorID: "q", AnswerAuthorID: "a", Action: models.ActionAnswerApprovedByAuthor, Difficulty: models.DifficultyMedium},
			wantErr: ErrForbiddenAward,
		},
		{
			name: "teacher approves",
			req:  AwardRequest{ActorID: "t", ActorRoles: []string{models.RoleTeacher}, RecipientID: "a", QuestionAuthorID: "q", AnswerAuthorID: "a", Action: models.ActionAnswerApprovedByTeacher, Difficulty: models.DifficultyEasy},
		},
		{
			name:    "non-teacher uses teacher approval",
			req:     AwardRequest{ActorID: "q", ActorRoles: []string{models.RoleUser}, RecipientID: "a", QuestionAuthorID: "q", AnswerAuthorID: "a", Action: models.ActionAnswerApprovedByTeacher, Difficulty: models.DifficultyEasy},
			wantErr: ErrForbiddenAward,
		},
		{
			name:    "teacher approves own answer",
			req:     AwardRequest{ActorID: "t", ActorRoles: []string{models.RoleTeacher}, RecipientID: "t", QuestionAuthorID: "q", AnswerAuthorID: "t", Action: models.ActionAnswerApprovedByTeacher, Difficulty: models.DifficultyEasy},
			wantErr: ErrSelfAward,
		},
		{
			name:    "unknown action",
			req:     AwardRequest{ActorID: "q", RecipientID: "q", Action: "question_liked", Difficulty: models.DifficultyEasy},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "missing actor",
			req:     AwardRequest{RecipientID: "q", QuestionAuthorID: "q", Action: models.ActionQuestionAsked, Difficulty: models.DifficultyEasy},
			wantErr: ErrForbiddenAward,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAward(tt.req)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAwardRequestEvent(t *testing.T) {
	ev := AwardRequest{
		EventID:     "e1",
		ActorID:     "q",
		RecipientID: "a",
		QuestionID:  "q1",
		AnswerID:    "a1",
		Action:      models.ActionAnswerApprovedByAuthor,
		Difficulty:  models.DifficultyHard,
	}.Event()
	assert.Equal(t, models.AwardEvent{
		EventID:    "e1",
		UserID:     "a",
		Action:     models.ActionAnswerApprovedByAuthor,
		Difficulty: models.DifficultyHard,
		QuestionID: "q1",
		AnswerID:   "a1",
	}, ev)
	assert.Equal(t, "answer_approved_by_author:q1:a1", ev.DedupeKey())
	assert.Equal(t, "question_asked:q1", models.AwardEvent{Action: models.ActionQuestionAsked, QuestionID: "q1", AnswerID: "ignored"}.DedupeKey())
}
