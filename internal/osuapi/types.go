package osuapi

import "time"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Country   struct {
		Code string `json:"code"`
	} `json:"country"`
	Statistics UserStatistics `json:"statistics"`
}

type UserStatistics struct {
	GlobalRank  int64   `json:"global_rank"`
	CountryRank int64   `json:"country_rank"`
	PP          float64 `json:"pp"`
}

// Score is one play as reported by the scores endpoints.
type Score struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Accuracy   float64    `json:"accuracy"`
	Mods       []string   `json:"mods"`
	Score      int64      `json:"score"`
	MaxCombo   int        `json:"max_combo"`
	Perfect    bool       `json:"perfect"`
	Rank       string     `json:"rank"`
	PP         *float64   `json:"pp"`
	CreatedAt  time.Time  `json:"created_at"`
	Statistics Statistics `json:"statistics"`
	Beatmap    Beatmap    `json:"beatmap"`
	Beatmapset Beatmapset `json:"beatmapset"`
}

type Statistics struct {
	CountGeki int `json:"count_geki"`
	Count300  int `json:"count_300"`
	CountKatu int `json:"count_katu"`
	Count100  int `json:"count_100"`
	Count50   int `json:"count_50"`
	CountMiss int `json:"count_miss"`
}

type Beatmap struct {
	ID               int64   `json:"id"`
	Version          string  `json:"version"`
	DifficultyRating float64 `json:"difficulty_rating"`
	// Ranked is the status code: 1 ranked, 2 approved, 3 qualified,
	// 4 loved, everything else unranked.
	Ranked        int     `json:"ranked"`
	CS            float64 `json:"cs"`
	CountCircles  int     `json:"count_circles"`
	CountSliders  int     `json:"count_sliders"`
	CountSpinners int     `json:"count_spinners"`
	MaxCombo      int     `json:"max_combo"`
}

type Beatmapset struct {
	Title   string `json:"title"`
	Creator string `json:"creator"`
	Covers  struct {
		Card string `json:"card"`
	} `json:"covers"`
}

type BeatmapAttributes struct {
	StarRating float64 `json:"star_rating"`
	MaxCombo   int     `json:"max_combo"`
}

type attributesResponse struct {
	Attributes BeatmapAttributes `json:"attributes"`
}

type Rankings struct {
	Ranking []RankingEntry `json:"ranking"`
}

type RankingEntry struct {
	User       User           `json:"user"`
	Statistics UserStatistics `json:"statistics"`
	GlobalRank int64          `json:"global_rank"`
}
