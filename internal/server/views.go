package server

import (
	"encoding/json"
	"lp-tracker/internal/domain"
	"lp-tracker/internal/rank"
	"lp-tracker/internal/service"
	"time"
)

type jobView struct {
	ID          string          `json:"id"`
	Action      string          `json:"action"`
	GameID      string          `json:"gameId,omitempty"`
	Priority    int             `json:"priority"`
	Status      string          `json:"status"`
	RetryCount  int             `json:"retryCount"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	AvailableAt time.Time       `json:"availableAt"`
}

type snapshotView struct {
	ID           string    `json:"id"`
	GameID       string    `json:"gameId,omitempty"`
	Type         string    `json:"type"`
	QueueType    string    `json:"queueType"`
	Tier         string    `json:"tier"`
	Division     string    `json:"division,omitempty"`
	LeaguePoints int       `json:"leaguePoints"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	CreatedAt    time.Time `json:"createdAt"`
}

type snapshotResponse struct {
	Job     jobView     `json:"job"`
	Created bool        `json:"created"`
	Delta   *rank.Delta `json:"delta,omitempty"`
}

type gameResponse struct {
	GameID    string        `json:"gameId"`
	QueueType string        `json:"queueType"`
	Pre       *snapshotView `json:"pre"`
	Post      *snapshotView `json:"post"`
	Delta     rank.Delta    `json:"delta"`
}

type matchView struct {
	MatchID         string    `json:"matchId"`
	QueueID         int       `json:"queueId"`
	StartedAt       time.Time `json:"startedAt"`
	DurationSeconds int64     `json:"durationSeconds"`
	Win             bool      `json:"win"`
}

type bucketView struct {
	Games    int         `json:"games"`
	Wins     int         `json:"wins"`
	Losses   int         `json:"losses"`
	WinRate  float64     `json:"winRate"`
	LPChange int         `json:"lpChange"`
	LPGames  int         `json:"lpGames"`
	Matches  []matchView `json:"matches"`
}

type sessionResponse struct {
	Session    bucketView `json:"session"`
	Today      bucketView `json:"today"`
	WinStreak  int        `json:"winStreak"`
	LossStreak int        `json:"lossStreak"`
}

func toJobView(j *domain.Job) jobView {
	v := jobView{
		ID:          j.ID,
		Action:      string(j.Action),
		GameID:      j.GameID,
		Priority:    j.Priority,
		Status:      string(j.Status),
		RetryCount:  j.RetryCount,
		Error:       j.ErrorMessage,
		CreatedAt:   j.CreatedAt,
		AvailableAt: j.AvailableAt,
	}
	if j.Result != "" && json.Valid([]byte(j.Result)) {
		v.Result = json.RawMessage(j.Result)
	}
	return v
}

func toSnapshotView(s *domain.RankSnapshot) *snapshotView {
	if s == nil {
		return nil
	}
	return &snapshotView{
		ID:           s.ID,
		GameID:       s.GameID,
		Type:         string(s.SnapshotType),
		QueueType:    s.QueueType,
		Tier:         s.Tier,
		Division:     s.Division,
		LeaguePoints: s.LeaguePoints,
		Wins:         s.Wins,
		Losses:       s.Losses,
		CreatedAt:    s.CreatedAt,
	}
}

func toSnapshotResponse(r *service.SnapshotEnqueueResult) snapshotResponse {
	return snapshotResponse{
		Job:     toJobView(r.Job),
		Created: r.Created,
		Delta:   r.Delta,
	}
}

func toGameResponse(g *service.GameSnapshots) gameResponse {
	return gameResponse{
		GameID:    g.GameID,
		QueueType: g.QueueType,
		Pre:       toSnapshotView(g.Pre),
		Post:      toSnapshotView(g.Post),
		Delta:     g.Delta,
	}
}

func toBucketView(b service.Bucket) bucketView {
	matches := make([]matchView, len(b.Matches))
	for i, m := range b.Matches {
		matches[i] = matchView{
			MatchID:         m.MatchID,
			QueueID:         m.QueueID,
			StartedAt:       m.StartedAt,
			DurationSeconds: int64(m.Duration / time.Second),
			Win:             m.Win,
		}
	}
	return bucketView{
		Games:    b.Games,
		Wins:     b.Wins,
		Losses:   b.Losses,
		WinRate:  b.WinRate,
		LPChange: b.LPChange,
		LPGames:  b.LPGames,
		Matches:  matches,
	}
}

func toSessionResponse(s *service.SessionStats) sessionResponse {
	return sessionResponse{
		Session:    toBucketView(s.Session),
		Today:      toBucketView(s.Today),
		WinStreak:  s.WinStreak,
		LossStreak: s.LossStreak,
	}
}
