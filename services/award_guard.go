package services

import (
	"fmt"
	"slices"

	"warungsoal-progression/models"
)

// AwardRequest is an award as claimed by the caller, plus the Q&A facts needed to
// decide whether the actor may trigger it.
type AwardRequest struct {
	EventID          string
	ActorID          string
	ActorRoles       []string
	RecipientID      string
	QuestionID       string
	QuestionAuthorID string
	AnswerID         string
	AnswerAuthorID   string
	Action           models.Action
	Difficulty       models.Difficulty
}

// Event drops the authorisation facts.
func (r AwardRequest) Event() models.AwardEvent {
	return models.AwardEvent{
		EventID:    r.EventID,
		UserID:     r.RecipientID,
		Action:     r.Action,
		Difficulty: r.Difficulty,
		QuestionID: r.QuestionID,
		AnswerID:   r.AnswerID,
	}
}

// ValidateAward rejects awards a user is not allowed to trigger. The reward table
// is checked first so unknown actions surface as ErrInvalidAction.
func ValidateAward(req AwardRequest) error {
	if _, err := RewardFor(req.Action, req.Difficulty); err != nil {
		return err
	}
	if req.ActorID == "" || req.RecipientID == "" {
		return fmt.Errorf("actor and recipient are required: %w", ErrForbiddenAward)
	}

	switch req.Action {
	case models.ActionQuestionAsked:
		if req.ActorID != req.RecipientID || req.QuestionAuthorID != req.RecipientID {
			return fmt.Errorf("only the question author earns question_asked: %w", ErrForbiddenAward)
		}

	case models.ActionAnswerSubmitted:
		if req.ActorID != req.RecipientID || req.AnswerAuthorID != req.RecipientID {
			return fmt.Errorf("only the answer author earns answer_submitted: %w", ErrForbiddenAward)
		}
		if req.QuestionAuthorID == req.RecipientID {
			return fmt.Errorf("answering your own question: %w", ErrSelfAward)
		}

	case models.ActionAnswerApprovedByAuthor:
		if req.ActorID == req.RecipientID {
			return fmt.Errorf("approving your own answer: %w", ErrSelfAward)
		}
		if req.ActorID != req.QuestionAuthorID {
			return fmt.Errorf("only the question author may approve: %w", ErrForbiddenAward)
		}
		if req.RecipientID != req.AnswerAuthorID {
			return fmt.Errorf("recipient is not the answer author: %w", ErrForbiddenAward)
		}

	case models.ActionAnswerApprovedByTeacher:
		if req.ActorID == req.RecipientID {
			return fmt.Errorf("approving your own answer: %w", ErrSelfAward)
		}
		if !slices.Contains(req.ActorRoles, models.RoleTeacher) {
			return fmt.Errorf("teacher role required: %w", ErrForbiddenAward)
		}
		if req.RecipientID != req.AnswerAuthorID {
			return fmt.Errorf("recipient is not the answer author: %w", ErrForbiddenAward)
		}
	}
	return nil
}
