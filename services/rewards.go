package services

import (
	"fmt"

	"warungsoal-progression/models"
)

// RewardTable is the single source of truth for EXP granted per action and difficulty.
var RewardTable = map[models.Action]map[models.Difficulty]int64{
	models.ActionQuestionAsked: {
		models.DifficultyEasy:   50,
		models.DifficultyMedium: 100,
		models.DifficultyHard:   150,
	},
	models.ActionAnswerSubmitted: {
		models.DifficultyEasy:   50,
		models.DifficultyMedium: 75,
		models.DifficultyHard:   100,
	},
	models.ActionAnswerApprovedByAuthor: {
		models.DifficultyEasy:   100,
		models.DifficultyMedium: 150,
		models.DifficultyHard:   200,
	},
	models.ActionAnswerApprovedByTeacher: {
		models.DifficultyEasy:   100,
		models.DifficultyMedium: 150,
		models.DifficultyHard:   200,
	},
}

// RewardFor returns the EXP delta for an action at a difficulty.
func RewardFor(action models.Action, difficulty models.Difficulty) (int64, error) {
	byDifficulty, ok := RewardTable[action]
	if !ok {
		return 0, fmt.Errorf("unknown action %q: %w", action, ErrInvalidAction)
	}
	xp, ok := byDifficulty[difficulty]
	if !ok {
		return 0, fmt.Errorf("unknown difficulty %q for %s: %w", difficulty, action, ErrInvalidAction)
	}
	return xp, nil
}

// counterFor picks the activity counter an action increments.
func counterFor(action models.Action) models.CounterField {
	if action == models.ActionQuestionAsked {
		return models.CounterQuestionsAsked
	}
	return models.CounterQuestionsAnswered
}
