package models

// Action is the kind of activity an experience award is granted for.
type Action string

const (
	ActionQuestionAsked           Action = "question_asked"
	ActionAnswerSubmitted         Action = "answer_submitted"
	ActionAnswerApprovedByAuthor  Action = "answer_approved_by_author"
	ActionAnswerApprovedByTeacher Action = "answer_approved_by_teacher"
)

// Difficulty is the difficulty of the question an award relates to.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TrophyRank is the seasonal trophy tier. Values are stored as text.
type TrophyRank string

const (
	TrophyBronze   TrophyRank = "bronze"
	TrophySilver   TrophyRank = "silver"
	TrophyGold     TrophyRank = "gold"
	TrophyPlatinum TrophyRank = "platinum"
	TrophyDiamond  TrophyRank = "diamond"
	TrophyRadiant  TrophyRank = "radiant"
)

// TrophyOrder lists the tiers from lowest to highest.
var TrophyOrder = []TrophyRank{
	TrophyBronze,
	TrophySilver,
	TrophyGold,
	TrophyPlatinum,
	TrophyDiamond,
	TrophyRadiant,
}

// Ordinal returns the tier's position in TrophyOrder, or -1 if unknown.
func (t TrophyRank) Ordinal() int {
	for i, r := range TrophyOrder {
		if r == t {
			return i
		}
	}
	return -1
}

// AwardEvent is the input to the progression service. EventID, QuestionID and
// AnswerID are set by the Q&A workflow; an event carrying an EventID is recorded
// in the award ledger and applied at most once.
type AwardEvent struct {
	EventID    string     `json:"event_id,omitempty"`
	UserID     string     `json:"user_id"`
	Action     Action     `json:"action"`
	Difficulty Difficulty `json:"difficulty"`
	QuestionID string     `json:"question_id,omitempty"`
	AnswerID   string     `json:"answer_id,omitempty"`
}

// DedupeKey identifies the Q&A fact an award pays for: one question_asked per
// question, one answer_submitted and one of each approval per answer.
func (e AwardEvent) DedupeKey() string {
	if e.Action == ActionQuestionAsked {
		return string(e.Action) + ":" + e.QuestionID
	}
	return string(e.Action) + ":" + e.QuestionID + ":" + e.AnswerID
}
