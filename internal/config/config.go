// Package config defines readnext's configuration, loaded by viper from
// config.yaml, READNEXT_* environment variables and flags.
package config

import (
	"github.com/Bitlatte/readnext/internal/analytics"
	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/prefs"
	"github.com/Bitlatte/readnext/internal/relevance"
)

type Config struct {
	SiteTitle  string `mapstructure:"siteTitle"`
	OutputDir  string `mapstructure:"outputDir"`
	BaseURL    string `mapstructure:"baseURL"`
	ContentDir string `mapstructure:"contentDir"`
	LayoutsDir string `mapstructure:"layoutsDir"`
	StaticDir  string `mapstructure:"staticDir"`

	Log       logger.Config    `mapstructure:"log"`
	Store     prefs.Config     `mapstructure:"store"`
	Analytics analytics.Config `mapstructure:"analytics"`
	Ranking   Ranking          `mapstructure:"ranking"`
	Server    Server           `mapstructure:"server"`
}

// Ranking tunes related-post ranking.
type Ranking struct {
	Limit int `mapstructure:"limit"`
	// Weights override the default weights field by field; unset fields keep
	// the default and an explicit 0 disables a signal.
	Weights relevance.WeightOverrides `mapstructure:"weights"`
}

// Server configures `readnext serve`.
type Server struct {
	Port          int    `mapstructure:"port"`
	VisitorCookie string `mapstructure:"visitorCookie"`
	// VisitorCache bounds the per-visitor state kept in memory: profile
	// stores and scroll milestone trackers.
	VisitorCache  int    `mapstructure:"visitorCache"`
}

// RankingWeights returns the configured weights merged over the defaults.
func (c Config) RankingWeights() relevance.Weights {
	return c.Ranking.Weights.Apply(relevance.DefaultWeights())
}

// SetDefaults registers the default value of every key with set, which is
// normally (*viper.Viper).SetDefault.
func SetDefaults(set func(key string, value any)) {
	set("siteTitle", "My readnext Blog")
	set("outputDir", "public")
	set("baseURL", "")
	set("contentDir", "content")
	set("layoutsDir", "layouts")
	set("staticDir", "static")

	set("log.level", "info")
	set("log.development", false)

	set("store.driver", prefs.DriverFile)
	set("store.path", ".readnext/prefs")
	set("store.redis.address", "localhost:6379")
	set("store.redis.channel", prefs.DefaultRedisChannel)

	set("analytics.sink", analytics.KindLog)
	set("analytics.bufferSize", 1024)
	set("analytics.redis.channel", analytics.DefaultRedisChannel)

	set("ranking.limit", relevance.DefaultLimit)

	set("server.port", 1313)
	set("server.visitorCookie", "readnext_visitor")
	set("server.visitorCache", 1024)
}
