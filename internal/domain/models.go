package domain

import (
	"fmt"
	"time"
)

// GameType selects the kind of content a level plays.
type GameType string

const (
	GameTypeMatching GameType = "matching"
	GameTypeQuiz     GameType = "quiz"
)

// ContestStatus is the lifecycle state of a contest definition.
type ContestStatus string

const (
	ContestDraft     ContestStatus = "draft"
	ContestPublished ContestStatus = "published"
	ContestActive    ContestStatus = "active"
	ContestCompleted ContestStatus = "completed"
	ContestArchived  ContestStatus = "archived"
	ContestCancelled ContestStatus = "cancelled"
)

// DifficultyDistribution holds relative weights, not counts.
type DifficultyDistribution struct {
	Easy   float64 `json:"easy" yaml:"easy" bson:"easy"`
	Medium float64 `json:"medium" yaml:"medium" bson:"medium"`
	Hard   float64 `json:"hard" yaml:"hard" bson:"hard"`
}

// DifficultyCounts is a concrete question budget split across buckets.
type DifficultyCounts struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

func (c DifficultyCounts) Total() int {
	return c.Easy + c.Medium + c.Hard
}

// Round is one round inside a level.
type Round struct {
	Name                   string                 `json:"name" yaml:"name" bson:"round_name"`
	Seq                    int                    `json:"roundSeq" yaml:"round_seq" bson:"round_seq"`
	TimeLimitSeconds       int                    `json:"timeLimitSeconds" yaml:"time_limit_seconds" bson:"time_limit_seconds"`
	QuestionCount          int                    `json:"questionCount" yaml:"question_count" bson:"question_count"`
	ObjectCount            *int                   `json:"objectCount,omitempty" yaml:"object_count,omitempty" bson:"object_count,omitempty"`
	HintsUsed              string                 `json:"hintsUsed,omitempty" yaml:"hints_used,omitempty" bson:"hints_used,omitempty"`
	DifficultyDistribution DifficultyDistribution `json:"difficultyDistribution" yaml:"difficulty_distribution" bson:"difficulty_distribution"`
}

// Level groups rounds of a single game type.
type Level struct {
	Name     string   `json:"name" yaml:"name" bson:"level_name"`
	Seq      int      `json:"levelSeq" yaml:"level_seq" bson:"level_seq"`
	GameType GameType `json:"gameType" yaml:"game_type" bson:"game_type"`
	Rounds   []Round  `json:"rounds" yaml:"rounds" bson:"rounds"`
}

// EligibilityRules restrict who may register.
type EligibilityRules struct {
	MinAge           int      `json:"minAge" yaml:"min_age" bson:"min_age"`
	MaxAge           int      `json:"maxAge" yaml:"max_age" bson:"max_age"`
	AllowedCountries []string `json:"allowedCountries,omitempty" yaml:"allowed_countries,omitempty" bson:"allowed_countries,omitempty"`
	SchoolRequired   bool     `json:"schoolRequired" yaml:"school_required" bson:"school_required"`
}

// ContestDefinition is the per-contest configuration. Version moves only when
// the playable queue (levels, rounds, languages) changes, so stored pointers can
// be checked against the queue they were built from. Once LockedAt is set the
// queue may no longer change.
type ContestDefinition struct {
	ID                    string           `json:"id" yaml:"id" bson:"_id"`
	Name                  string           `json:"name" yaml:"name" bson:"name"`
	OrgID                 string           `json:"orgId,omitempty" yaml:"org_id,omitempty" bson:"org_id,omitempty"`
	Status                ContestStatus    `json:"status" yaml:"status" bson:"status"`
	Version               int              `json:"version" yaml:"version" bson:"version"`
	Levels                []Level          `json:"levels" yaml:"levels" bson:"levels"`
	SupportedLanguages    []string         `json:"supportedLanguages" yaml:"supported_languages" bson:"supported_languages"`
	MaxIncompleteAttempts int              `json:"maxIncompleteAttempts" yaml:"max_incomplete_attempts" bson:"max_incomplete_attempts"`
	MaxParticipants       int              `json:"maxParticipants" yaml:"max_participants" bson:"max_participants"`
	RegistrationStartAt   time.Time        `json:"registrationStartAt" yaml:"registration_start_at" bson:"registration_start_at"`
	RegistrationEndAt     time.Time        `json:"registrationEndAt" yaml:"registration_end_at" bson:"registration_end_at"`
	GracePeriodSeconds    int              `json:"gracePeriodSeconds" yaml:"grace_period_seconds" bson:"grace_period_seconds"`
	ContestStartAt        time.Time        `json:"contestStartAt" yaml:"contest_start_at" bson:"contest_start_at"`
	ContestEndAt          time.Time        `json:"contestEndAt" yaml:"contest_end_at" bson:"contest_end_at"`
	Eligibility           EligibilityRules `json:"eligibilityRules" yaml:"eligibility_rules" bson:"eligibility_rules"`
	LockedAt              time.Time        `json:"lockedAt,omitempty" yaml:"locked_at,omitempty" bson:"locked_at,omitempty"`
}

// FindRound returns the level and round addressed by their sequence numbers.
func (c ContestDefinition) FindRound(levelSeq, roundSeq int) (Level, Round, bool) {
	for _, lvl := range c.Levels {
		if lvl.Seq != levelSeq {
			continue
		}
		for _, rnd := range lvl.Rounds {
			if rnd.Seq == roundSeq {
				return lvl, rnd, true
			}
		}
		return lvl, Round{}, false
	}
	return Level{}, Round{}, false
}

// Locked reports whether the playable queue is frozen.
func (c ContestDefinition) Locked() bool {
	return !c.LockedAt.IsZero()
}

// Validate checks the structural rules a definition must satisfy before it is
// stored or played: level and round sequences are positive and strictly
// increasing, game types are known and languages are unique.
func (c ContestDefinition) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	}
	switch c.Status {
	case "", ContestDraft, ContestPublished, ContestActive, ContestCompleted, ContestArchived, ContestCancelled:
	default:
		return fmt.Errorf("%w: unknown contest status %q", ErrInvalidInput, c.Status)
	}

	prevLevel := 0
	for _, level := range c.Levels {
		if level.Seq < 1 {
			return fmt.Errorf("%w: level %q has no level_seq", ErrInvalidInput, level.Name)
		}
		if level.Seq <= prevLevel {
			return fmt.Errorf("%w: level_seq %d must be greater than %d", ErrInvalidInput, level.Seq, prevLevel)
		}
		prevLevel = level.Seq
		if level.GameType != GameTypeMatching && level.GameType != GameTypeQuiz {
			return fmt.Errorf("%w: level %d has unknown game type %q", ErrInvalidInput, level.Seq, level.GameType)
		}

		prevRound := 0
		for _, round := range level.Rounds {
			if round.Seq < 1 {
				return fmt.Errorf("%w: level %d has a round without round_seq", ErrInvalidInput, level.Seq)
			}
			if round.Seq <= prevRound {
				return fmt.Errorf("%w: level %d round_seq %d must be greater than %d", ErrInvalidInput, level.Seq, round.Seq, prevRound)
			}
			prevRound = round.Seq
			if round.QuestionCount < 0 || round.TimeLimitSeconds < 0 {
				return fmt.Errorf("%w: level %d round %d has a negative count or time limit", ErrInvalidInput, level.Seq, round.Seq)
			}
		}
	}

	seen := make(map[string]struct{}, len(c.SupportedLanguages))
	for _, lang := range c.SupportedLanguages {
		if lang == "" {
			return fmt.Errorf("%w: supported_languages contains an empty entry", ErrInvalidInput)
		}
		if _, dup := seen[lang]; dup {
			return fmt.Errorf("%w: language %q is listed twice", ErrInvalidInput, lang)
		}
		seen[lang] = struct{}{}
	}
	return nil
}

// SupportsLanguage reports whether lang is playable. A contest without a
// language list accepts any language.
func (c ContestDefinition) SupportsLanguage(lang string) bool {
	if len(c.SupportedLanguages) == 0 {
		return lang != ""
	}
	for _, l := range c.SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Segment is one playable unit: (level, round, language). It is derived from
// the contest definition and never stored on its own.
type Segment struct {
	Level    int    `json:"level" bson:"level"`
	Round    int    `json:"round" bson:"round"`
	Language string `json:"language" bson:"language"`
}

func (s Segment) IsZero() bool {
	return s.Level == 0 && s.Round == 0 && s.Language == ""
}

// ParticipationStatus is the progression state of one participant.
type ParticipationStatus string

const (
	StatusApplied      ParticipationStatus = "applied"
	StatusInProgress   ParticipationStatus = "in_progress"
	StatusCompleted    ParticipationStatus = "completed"
	StatusDisqualified ParticipationStatus = "disqualified"
)

// Terminal reports whether no further transition may leave this status.
func (s ParticipationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusDisqualified
}

// EntrySource describes how a participant reached the contest.
type EntrySource string

const (
	EntryOrganisation EntrySource = "organisation"
	EntryPublic       EntrySource = "public"
	EntryIndividual   EntrySource = "individual"
)

// RoundScoreRecord is immutable once appended; (Level, Round, Language) is
// unique within a participation.
type RoundScoreRecord struct {
	Level       int       `json:"level" bson:"level"`
	Round       int       `json:"round" bson:"round"`
	Language    string    `json:"language" bson:"language"`
	Score       int       `json:"score" bson:"score"`
	TimeTaken   float64   `json:"timeTaken" bson:"time_taken"`
	CompletedAt time.Time `json:"completedAt" bson:"completed_at"`
}

func (r RoundScoreRecord) Key() Segment {
	return Segment{Level: r.Level, Round: r.Round, Language: r.Language}
}

// ParticipationTimeline stamps lifecycle milestones. Zero means not reached.
type ParticipationTimeline struct {
	AppliedAt   time.Time `json:"appliedAt" bson:"applied_at"`
	ActivatedAt time.Time `json:"activatedAt,omitempty" bson:"activated_at,omitempty"`
	CompletedAt time.Time `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
}

// Participation is one participant's progress record for one contest.
// Revision increases by one on every stored update and guards conditional writes.
type Participation struct {
	ID                 string                `json:"id" bson:"_id"`
	ContestID          string                `json:"contestId" bson:"contest_id"`
	UserID             string                `json:"userId" bson:"user_id"`
	DisplayName        string                `json:"displayName" bson:"display_name"`
	Status             ParticipationStatus   `json:"status" bson:"status"`
	CurrentLevel       int                   `json:"currentLevel" bson:"current_level"`
	CurrentRound       int                   `json:"currentRound" bson:"current_round"`
	CurrentLanguage    string                `json:"currentLanguage" bson:"current_language"`
	DefinitionVersion  int                   `json:"definitionVersion" bson:"definition_version"`
	IncompleteAttempts int                   `json:"incompleteAttempts" bson:"incomplete_attempts"`
	RoundScores        []RoundScoreRecord    `json:"roundScores" bson:"round_scores"`
	TotalScore         int                   `json:"totalScore" bson:"total_score"`
	ContestCompleted   bool                  `json:"contestCompleted" bson:"contest_completed"`
	ContestCompletedAt time.Time             `json:"contestCompletedAt,omitempty" bson:"contest_completed_at,omitempty"`
	LastActiveAt       time.Time             `json:"lastActiveAt,omitempty" bson:"last_active_at,omitempty"`
	EntrySource        EntrySource           `json:"entrySource" bson:"entry_source"`
	SelectedLanguages  []string              `json:"selectedLanguages,omitempty" bson:"selected_languages,omitempty"`
	Timeline           ParticipationTimeline `json:"timeline" bson:"timeline"`
	RegisteredAt       time.Time             `json:"registeredAt" bson:"registered_at"`
	Revision           int64                 `json:"revision" bson:"revision"`
}

// Pointer is the segment the participant is expected to play next.
func (p Participation) Pointer() Segment {
	return Segment{Level: p.CurrentLevel, Round: p.CurrentRound, Language: p.CurrentLanguage}
}

func (p *Participation) setPointer(s Segment) {
	p.CurrentLevel = s.Level
	p.CurrentRound = s.Round
	p.CurrentLanguage = s.Language
}

// WithPointer returns a copy of p pointing at s.
func (p Participation) WithPointer(s Segment) Participation {
	p.setPointer(s)
	return p
}

// Clone returns a deep copy so transitions never alias the caller's slices.
func (p Participation) Clone() Participation {
	if p.RoundScores != nil {
		p.RoundScores = append([]RoundScoreRecord(nil), p.RoundScores...)
	}
	if p.SelectedLanguages != nil {
		p.SelectedLanguages = append([]string(nil), p.SelectedLanguages...)
	}
	return p
}

// Registration is the input for creating a participation.
type Registration struct {
	ContestID         string      `json:"contestId"`
	UserID            string      `json:"userId"`
	DisplayName       string      `json:"displayName"`
	Age               int         `json:"age"`
	Country           string      `json:"country"`
	EntrySource       EntrySource `json:"entrySource"`
	SelectedLanguages []string    `json:"selectedLanguages"`
}

// EnterResult is returned by a successful Enter.
// RemainingAttempts is -1 when the contest does not limit attempts.
type EnterResult struct {
	ParticipationID   string              `json:"participationId"`
	Status            ParticipationStatus `json:"status"`
	Segment           Segment             `json:"segment"`
	Resumed           bool                `json:"resumed"`
	RemainingAttempts int                 `json:"remainingAttempts"`
	RoundScores       []RoundScoreRecord  `json:"roundScores,omitempty"`
	TotalScore        int                 `json:"totalScore"`
}

// SegmentResult is the client-reported outcome of playing one segment.
type SegmentResult struct {
	Segment   Segment `json:"segment"`
	Score     int     `json:"score"`
	TimeTaken float64 `json:"timeTaken"`
}

// ProgressStatus tells whether a progress log changed anything.
type ProgressStatus string

const (
	ProgressAppended      ProgressStatus = "appended"
	ProgressAlreadyLogged ProgressStatus = "already_logged"
)

// ProgressResult is returned by LogProgress.
type ProgressResult struct {
	Status     ProgressStatus `json:"status"`
	TotalScore int            `json:"totalScore"`
	Next       *Segment       `json:"next,omitempty"`
	Completed  bool           `json:"completed"`
}

// RoundScoreEntry is one strongly typed item of a batch submission.
type RoundScoreEntry struct {
	Level     int     `json:"level"`
	Round     int     `json:"round"`
	Language  string  `json:"language"`
	Score     int     `json:"score"`
	TimeTaken float64 `json:"timeTaken"`
}

// RoundScoreBatch replaces a participant's recorded scores in one call.
type RoundScoreBatch struct {
	Entries []RoundScoreEntry `json:"roundScores"`
	Final   bool              `json:"isFinal"`
}

// FinalizeResult is returned by SubmitFinalScores.
type FinalizeResult struct {
	Status          ParticipationStatus `json:"status"`
	TotalScore      int                 `json:"totalScore"`
	RoundsCompleted int                 `json:"roundsCompleted"`
}

// LanguageTotals aggregates records of a single language.
type LanguageTotals struct {
	Score     int     `json:"score"`
	TimeTaken float64 `json:"timeTaken"`
	Rounds    int     `json:"rounds"`
}

// ParticipantSummary is the ledger view of one participation.
type ParticipantSummary struct {
	ParticipationID string                    `json:"participationId"`
	Status          ParticipationStatus       `json:"status"`
	TotalScore      int                       `json:"totalScore"`
	Completed       bool                      `json:"completed"`
	Breakdown       []RoundScoreRecord        `json:"breakdown"`
	PerLanguage     map[string]LanguageTotals `json:"perLanguage"`
}

// LeaderboardRow is the raw per-participant input of the ranking, in the
// store's insertion order.
type LeaderboardRow struct {
	ParticipationID string             `bson:"_id"`
	UserID          string             `bson:"user_id"`
	DisplayName     string             `bson:"display_name"`
	TotalScore      int                `bson:"total_score"`
	Completed       bool               `bson:"contest_completed"`
	RoundScores     []RoundScoreRecord `bson:"round_scores"`
}

// LeaderboardEntry is one ranked participant.
type LeaderboardEntry struct {
	Rank             int                `json:"rank"`
	ParticipationID  string             `json:"participationId"`
	UserID           string             `json:"userId"`
	DisplayName      string             `json:"displayName"`
	TotalScore       int                `json:"totalScore"`
	Completed        bool               `json:"completed"`
	PerLanguageScore map[string]int     `json:"perLanguageScore"`
	PerLanguageTime  map[string]float64 `json:"perLanguageTime"`
	IsCurrentUser    bool               `json:"isCurrentUser"`
}

// Leaderboard captures the ordered standings for a contest.
type Leaderboard struct {
	ContestID         string             `json:"contestId"`
	Entries           []LeaderboardEntry `json:"entries"`
	GlobalAverageTime float64            `json:"globalAverageTime"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// ProgressEventType names the progression events published to subscribers.
type ProgressEventType string

const (
	EventParticipantEntered      ProgressEventType = "participant.entered"
	EventProgressLogged          ProgressEventType = "progress.logged"
	EventContestCompleted        ProgressEventType = "contest.completed"
	EventParticipantDisqualified ProgressEventType = "participant.disqualified"
)

// ProgressEvent is emitted after a progression write has been stored.
type ProgressEvent struct {
	ID              string            `json:"id"`
	Type            ProgressEventType `json:"type"`
	ContestID       string            `json:"contestId"`
	ParticipationID string            `json:"participationId"`
	UserID          string            `json:"userId"`
	Segment         *Segment          `json:"segment,omitempty"`
	TotalScore      int               `json:"totalScore"`
	OccurredAt      time.Time         `json:"occurredAt"`
}
