package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the resolved settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("DocQA", GetVersion())

	logger.Info().
		Str("version", GetVersion()).
		Str("environment", config.Environment).
		Str("chat_provider", config.LLM.Provider).
		Str("embed_provider", config.EmbedProvider()).
		Str("collection", config.Index.Collection).
		Str("store", config.Storage.Badger.Path).
		Msg("DocQA starting")
}
