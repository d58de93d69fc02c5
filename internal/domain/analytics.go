package domain

import "time"

// MasteryEventType enumerates the interaction events accepted from clients.
type MasteryEventType string

const (
	EventInteractionAttempt MasteryEventType = "interaction_attempt"
	EventHintInteraction    MasteryEventType = "hint_interaction"
	EventLevelCompleted     MasteryEventType = "level_completed"
	EventLanguageSwitch     MasteryEventType = "language_switch"
	EventGameCompleted      MasteryEventType = "game_completed"
	EventGameStarted        MasteryEventType = "game_started"
)

func (t MasteryEventType) Valid() bool {
	switch t {
	case EventInteractionAttempt, EventHintInteraction, EventLevelCompleted,
		EventLanguageSwitch, EventGameCompleted, EventGameStarted:
		return true
	}
	return false
}

// Level sequences used by mastery events.
const (
	LevelSequenceMatching = 1
	LevelSequenceQuiz     = 2
)

// MasteryEvent is one append-only interaction record keyed by user, language
// and timestamp.
type MasteryEvent struct {
	ID              string           `json:"id" bson:"_id"`
	Type            MasteryEventType `json:"eventType" bson:"event_type"`
	UserID          string           `json:"userId" bson:"user_id"`
	SessionID       string           `json:"sessionId,omitempty" bson:"session_id,omitempty"`
	GameInstanceID  string           `json:"gameInstanceId,omitempty" bson:"game_instance_id,omitempty"`
	Mode            string           `json:"mode,omitempty" bson:"mode,omitempty"`
	Language        string           `json:"language" bson:"language"`
	LevelSequence   int              `json:"levelSequence" bson:"level_sequence"`
	Timestamp       time.Time        `json:"timestamp" bson:"timestamp"`
	TranslationID   string           `json:"translationId,omitempty" bson:"translation_id,omitempty"`
	Correct         bool             `json:"isCorrect" bson:"is_correct"`
	DifficultyLevel string           `json:"difficultyLevel,omitempty" bson:"difficulty_level,omitempty"`
	HintFlips       int              `json:"hintFlips,omitempty" bson:"hint_flips,omitempty"`
	ResponseTimeMs  int              `json:"responseTimeMs,omitempty" bson:"response_time_ms,omitempty"`
}

// TallyQuery selects the events counted toward a mastery tally. A zero
// Before means no upper bound.
type TallyQuery struct {
	UserID   string
	Language string
	Before   time.Time
}

// MasteryTally is the aggregated input of the mastery formula.
type MasteryTally struct {
	MatchingTotal   int
	MatchingCorrect int
	HintFlips       int
	QuizTotal       int
	QuizWeightTotal float64

	// QuizWeightCorrect sums the difficulty weight of correct quiz attempts.
	QuizWeightCorrect float64

	// TranslationIDs lists the distinct words the user interacted with.
	TranslationIDs []string
}

// MasteryScore is the result of GetMasteryScore.
type MasteryScore struct {
	UserID       string    `json:"userId"`
	Language     string    `json:"language"`
	Score        int       `json:"masteryScore"`
	WordsExposed int       `json:"wordsExposed"`
	TotalWords   int       `json:"totalWords"`
	Coverage     int       `json:"coveragePercent"`
	Trend        int       `json:"trendVsSevenDaysAgo"`
	Period       string    `json:"period"`
	AsOf         time.Time `json:"asOf"`
}

// ContentItem is opaque to the core except for its identity and difficulty tag.
type ContentItem struct {
	ID         string         `json:"id" bson:"_id"`
	Difficulty string         `json:"difficultyLevel,omitempty" bson:"difficulty_level,omitempty"`
	Payload    map[string]any `json:"payload,omitempty" bson:"payload,omitempty"`
}

// ContentFilters narrow the content pool.
type ContentFilters struct {
	Category string `json:"category,omitempty"`
	Subject  string `json:"subject,omitempty"`
	OrgID    string `json:"orgId,omitempty"`
}

// ContentRequest asks a ContentProvider for playable items.
type ContentRequest struct {
	ContestID string
	Segment   Segment
	GameType  GameType

	// Count is the number of items wanted for matching; for quiz it is the
	// minimum pool size the caller would like to sample from.
	Count     int
	HintsUsed string
	Filters   ContentFilters
}

// RoundContent is the playable payload for one segment.
type RoundContent struct {
	ContestID        string           `json:"contestId"`
	Segment          Segment          `json:"segment"`
	GameType         GameType         `json:"gameType"`
	TimeLimitSeconds int              `json:"timeLimitSeconds"`
	Allocation       DifficultyCounts `json:"allocation"`
	Items            []ContentItem    `json:"items"`
}
