// Package stats derives per-player aggregates from stored match records.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"lol-tracker/internal/errs"
	"lol-tracker/internal/models"
)

// PerfectKDA stands in for the ratio of a deathless game when sorting.
const PerfectKDA = 999.0

type Filter string

const (
	FilterAll    Filter = "all"
	FilterWins   Filter = "wins"
	FilterLosses Filter = "losses"
	FilterRanked Filter = "ranked"
	FilterNormal Filter = "normal"
)

type Sort string

const (
	SortRecent   Sort = "recent"
	SortOldest   Sort = "oldest"
	SortKDA      Sort = "kda"
	SortDamage   Sort = "damage"
	SortDuration Sort = "duration"
)

// ParseFilter accepts an empty string as FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterWins, FilterLosses, FilterRanked, FilterNormal:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q: %w", s, errs.ErrMalformedInput)
	}
}

// ParseSort accepts an empty string as SortRecent.
func ParseSort(s string) (Sort, error) {
	switch o := Sort(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortRecent, nil
	case SortRecent, SortOldest, SortKDA, SortDamage, SortDuration:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort %q: %w", s, errs.ErrMalformedInput)
	}
}

type Summary struct {
	Games       int     `json:"games"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"winRate"`
	Kills       int     `json:"kills"`
	Deaths      int     `json:"deaths"`
	Assists     int     `json:"assists"`
	AvgKDA      string  `json:"avgKda"`
	RankedGames int     `json:"rankedGames"`
}

// Summarize totals the games puuid played in matches. Matches without the
// player are ignored.
func Summarize(puuid string, matches []models.MatchRecord) Summary {
	var s Summary
	for i := range matches {
		p := matches[i].Info.FindParticipant(puuid)
		if p == nil {
			continue
		}
		s.Games++
		if p.Win {
			s.Wins++
		} else {
			s.Losses++
		}
		s.Kills += p.Kills
		s.Deaths += p.Deaths
		s.Assists += p.Assists
		if matches[i].Info.IsRanked() {
			s.RankedGames++
		}
	}

	if s.Games > 0 {
		s.WinRate = round1(float64(s.Wins) * 100 / float64(s.Games))
	}
	s.AvgKDA = FormatKDA(s.Kills, s.Deaths, s.Assists)
	return s
}

// KDA is (kills+assists)/deaths, or PerfectKDA when deaths is zero.
func KDA(kills, deaths, assists int) float64 {
	if deaths == 0 {
		return PerfectKDA
	}
	return float64(kills+assists) / float64(deaths)
}

func FormatKDA(kills, deaths, assists int) string {
	if deaths == 0 {
		return "Perfect"
	}
	return fmt.Sprintf("%.2f", KDA(kills, deaths, assists))
}

// Apply filters matches to the ones puuid played that satisfy filter and
// orders them by order. The input slice is not modified.
func Apply(puuid string, matches []models.MatchRecord, filter Filter, order Sort) []models.MatchRecord {
	out := make([]models.MatchRecord, 0, len(matches))
	for i := range matches {
		p := matches[i].Info.FindParticipant(puuid)
		if p == nil || !keep(&matches[i], p, filter) {
			continue
		}
		out = append(out, matches[i])
	}

	less := lessFunc(puuid, out, order)
	if less != nil {
		sort.SliceStable(out, less)
	}
	return out
}

func keep(m *models.MatchRecord, p *models.Participant, filter Filter) bool {
	switch filter {
	case FilterWins:
		return p.Win
	case FilterLosses:
		return !p.Win
	case FilterRanked:
		return m.Info.IsRanked()
	case FilterNormal:
		return !m.Info.IsRanked()
	default:
		return true
	}
}

func lessFunc(puuid string, ms []models.MatchRecord, order Sort) func(i, j int) bool {
	switch order {
	case SortRecent:
		return func(i, j int) bool { return ms[i].Info.GameCreation > ms[j].Info.GameCreation }
	case SortOldest:
		return func(i, j int) bool { return ms[i].Info.GameCreation < ms[j].Info.GameCreation }
	case SortKDA:
		return func(i, j int) bool { return participantKDA(&ms[i], puuid) > participantKDA(&ms[j], puuid) }
	case SortDamage:
		return func(i, j int) bool { return damage(&ms[i], puuid) > damage(&ms[j], puuid) }
	case SortDuration:
		return func(i, j int) bool { return ms[i].Info.GameDuration > ms[j].Info.GameDuration }
	default:
		return nil
	}
}

func participantKDA(m *models.MatchRecord, puuid string) float64 {
	p := m.Info.FindParticipant(puuid)
	if p == nil {
		return 0
	}
	return KDA(p.Kills, p.Deaths, p.Assists)
}

func damage(m *models.MatchRecord, puuid string) int {
	p := m.Info.FindParticipant(puuid)
	if p == nil {
		return 0
	}
	return p.TotalDamageDealtToChampions
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
