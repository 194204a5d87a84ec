package api

import "strconv"

const (
	QueueRankedSolo = "RANKED_SOLO_5x5"
	QueueRankedFlex = "RANKED_FLEX_SR"
)

// ActiveGame is the subset of spectator-v5 CurrentGameInfo the pipeline reads.
type ActiveGame struct {
	GameID            int64  `json:"gameId"`
	GameQueueConfigID int    `json:"gameQueueConfigId"`
	GameStartTime     int64  `json:"gameStartTime"`
	GameLength        int64  `json:"gameLength"`
	PlatformID        string `json:"platformId"`
}

func (g *ActiveGame) ID() string {
	return strconv.FormatInt(g.GameID, 10)
}

// LeagueEntry is one queue of /lol/league/v4/entries/by-puuid.
type LeagueEntry struct {
	LeagueID     string `json:"leagueId"`
	Puuid        string `json:"puuid"`
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"`
}

type MatchInfo struct {
	GameID             int64              `json:"gameId"`
	GameStartTimestamp int64              `json:"gameStartTimestamp"`
	GameDuration       int64              `json:"gameDuration"`
	QueueID            int                `json:"queueId"`
	Participants       []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	PUUID                     string `json:"puuid"`
	ChampionName              string `json:"championName"`
	Win                       bool   `json:"win"`
	GameEndedInEarlySurrender bool   `json:"gameEndedInEarlySurrender"`
}

func (m *MatchResponse) Participant(puuid string) (MatchParticipant, bool) {
	for _, p := range m.Info.Participants {
		if p.PUUID == puuid {
			return p, true
		}
	}
	return MatchParticipant{}, false
}
