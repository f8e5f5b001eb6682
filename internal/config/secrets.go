package config

import "slices"

const redacted = "***"

// RedactedConfig returns a copy of cfg with every secret masked, for
// logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	for _, s := range []*string{
		&out.OddsAPI.APIKey,
		&out.Sentiment.Token,
		&out.Prediction.APIKey,
		&out.Telegram.Token,
		&out.Telegram.WebhookSecret,
		&out.Database.DSN,
		&out.Database.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.APIKey,
		&out.Notify.DiscordWebhookURL,
	} {
		if *s != "" {
			*s = redacted
		}
	}

	out.Arbitrage.PopularSports = slices.Clone(cfg.Arbitrage.PopularSports)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	return out
}
