package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// MatchRecord mirrors the match-v5 detail document. It is immutable once stored.
type MatchRecord struct {
	ID       primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Metadata MatchMetadata      `json:"metadata" bson:"metadata"`
	Info     MatchInfo          `json:"info" bson:"info"`
}

// MatchID is a shorthand for Metadata.MatchID.
func (m *MatchRecord) MatchID() string {
	return m.Metadata.MatchID
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId" bson:"matchId"`
	DataVersion  string   `json:"dataVersion" bson:"dataVersion"`
	Participants []string `json:"participants" bson:"participants"` // puuids
}

type MatchInfo struct {
	GameID             int64         `json:"gameId" bson:"gameId"`
	GameCreation       int64         `json:"gameCreation" bson:"gameCreation"` // unix millis
	GameStartTimestamp int64         `json:"gameStartTimestamp" bson:"gameStartTimestamp"`
	GameEndTimestamp   int64         `json:"gameEndTimestamp" bson:"gameEndTimestamp"`
	GameDuration       int64         `json:"gameDuration" bson:"gameDuration"` // seconds
	GameMode           string        `json:"gameMode" bson:"gameMode"`
	GameType           string        `json:"gameType" bson:"gameType"`
	GameVersion        string        `json:"gameVersion" bson:"gameVersion"`
	MapID              int           `json:"mapId" bson:"mapId"`
	PlatformID         string        `json:"platformId" bson:"platformId"`
	QueueID            int           `json:"queueId" bson:"queueId"`
	TournamentCode     string        `json:"tournamentCode,omitempty" bson:"tournamentCode,omitempty"`
	Participants       []Participant `json:"participants" bson:"participants"`
	Teams              []Team        `json:"teams" bson:"teams"`
}

type Participant struct {
	ParticipantID  int    `json:"participantId" bson:"participantId"`
	PUUID          string `json:"puuid" bson:"puuid"`
	SummonerName   string `json:"summonerName" bson:"summonerName"`
	RiotIDGameName string `json:"riotIdGameName" bson:"riotIdGameName"`
	RiotIDTagline  string `json:"riotIdTagline" bson:"riotIdTagline"`
	TeamID         int    `json:"teamId" bson:"teamId"`
	TeamPosition   string `json:"teamPosition" bson:"teamPosition"`
	ChampionID     int    `json:"championId" bson:"championId"`
	ChampionName   string `json:"championName" bson:"championName"`
	ChampLevel     int    `json:"champLevel" bson:"champLevel"`

	Kills   int `json:"kills" bson:"kills"`
	Deaths  int `json:"deaths" bson:"deaths"`
	Assists int `json:"assists" bson:"assists"`

	GoldEarned                  int `json:"goldEarned" bson:"goldEarned"`
	TotalMinionsKilled          int `json:"totalMinionsKilled" bson:"totalMinionsKilled"`
	NeutralMinionsKilled        int `json:"neutralMinionsKilled" bson:"neutralMinionsKilled"`
	TotalDamageDealtToChampions int `json:"totalDamageDealtToChampions" bson:"totalDamageDealtToChampions"`
	TotalDamageTaken            int `json:"totalDamageTaken" bson:"totalDamageTaken"`
	VisionScore                 int `json:"visionScore" bson:"visionScore"`
	WardsPlaced                 int `json:"wardsPlaced" bson:"wardsPlaced"`
	WardsKilled                 int `json:"wardsKilled" bson:"wardsKilled"`

	Item0 int `json:"item0" bson:"item0"`
	Item1 int `json:"item1" bson:"item1"`
	Item2 int `json:"item2" bson:"item2"`
	Item3 int `json:"item3" bson:"item3"`
	Item4 int `json:"item4" bson:"item4"`
	Item5 int `json:"item5" bson:"item5"`
	Item6 int `json:"item6" bson:"item6"` // trinket

	Summoner1ID int   `json:"summoner1Id" bson:"summoner1Id"`
	Summoner2ID int   `json:"summoner2Id" bson:"summoner2Id"`
	Perks       Perks `json:"perks" bson:"perks"`

	Win bool `json:"win" bson:"win"`
}

// Items returns the seven item slots in order.
func (p *Participant) Items() []int {
	return []int{p.Item0, p.Item1, p.Item2, p.Item3, p.Item4, p.Item5, p.Item6}
}

type Perks struct {
	StatPerks PerkStats   `json:"statPerks" bson:"statPerks"`
	Styles    []PerkStyle `json:"styles" bson:"styles"`
}

type PerkStats struct {
	Defense int `json:"defense" bson:"defense"`
	Flex    int `json:"flex" bson:"flex"`
	Offense int `json:"offense" bson:"offense"`
}

type PerkStyle struct {
	Description string          `json:"description" bson:"description"` // "primaryStyle" or "subStyle"
	Style       int             `json:"style" bson:"style"`
	Selections  []PerkSelection `json:"selections" bson:"selections"`
}

type PerkSelection struct {
	Perk int `json:"perk" bson:"perk"`
}

type Team struct {
	TeamID     int        `json:"teamId" bson:"teamId"`
	Win        bool       `json:"win" bson:"win"`
	Bans       []Ban      `json:"bans" bson:"bans"`
	Objectives Objectives `json:"objectives" bson:"objectives"`
}

type Ban struct {
	ChampionID int `json:"championId" bson:"championId"`
	PickTurn   int `json:"pickTurn" bson:"pickTurn"`
}

type Objectives struct {
	Baron      Objective `json:"baron" bson:"baron"`
	Champion   Objective `json:"champion" bson:"champion"`
	Dragon     Objective `json:"dragon" bson:"dragon"`
	Inhibitor  Objective `json:"inhibitor" bson:"inhibitor"`
	RiftHerald Objective `json:"riftHerald" bson:"riftHerald"`
	Tower      Objective `json:"tower" bson:"tower"`
}

type Objective struct {
	First bool `json:"first" bson:"first"`
	Kills int  `json:"kills" bson:"kills"`
}

// Ranked queue ids (solo/duo and flex).
const (
	QueueRankedSolo = 420
	QueueRankedFlex = 440
)

// IsRanked reports whether the match was played in a ranked queue.
func (i *MatchInfo) IsRanked() bool {
	return i.QueueID == QueueRankedSolo || i.QueueID == QueueRankedFlex
}

// FindParticipant returns the participant entry for puuid, or nil.
func (i *MatchInfo) FindParticipant(puuid string) *Participant {
	for idx := range i.Participants {
		if i.Participants[idx].PUUID == puuid {
			return &i.Participants[idx]
		}
	}
	return nil
}
