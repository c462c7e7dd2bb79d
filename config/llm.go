package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM provider settings. Both the conversational model and the vision
// model speak the OpenAI chat-completions dialect; the base URL can point
// at any compatible gateway.
//
// Env:
// - LLM_API_KEY (required in production)
// - LLM_BASE_URL (default https://api.openai.com/v1)
// - CONVERSATIONAL_MODEL (default gpt-4o-mini)
// - VISION_MODEL (default gpt-4o)
// - LLM_TIMEOUT_SECONDS (default 60)
// - AGENT_MAX_TOOL_ROUNDS (default 10)

func GetLLMAPIKey() string {
	return strings.TrimSpace(os.Getenv("LLM_API_KEY"))
}

func GetLLMBaseURL() string {
	if v := strings.TrimSpace(os.Getenv("LLM_BASE_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "https://api.openai.com/v1"
}

func GetConversationalModel() string {
	if v := strings.TrimSpace(os.Getenv("CONVERSATIONAL_MODEL")); v != "" {
		return v
	}
	return "gpt-4o-mini"
}

func GetVisionModel() string {
	if v := strings.TrimSpace(os.Getenv("VISION_MODEL")); v != "" {
		return v
	}
	return "gpt-4o"
}

func GetLLMTimeout() time.Duration {
	return time.Duration(intFromEnv("LLM_TIMEOUT_SECONDS", 60)) * time.Second
}

func GetMaxToolRounds() int {
	return intFromEnv("AGENT_MAX_TOOL_ROUNDS", 10)
}

// Product matching thresholds. The banding is policy, not geometry, so
// it stays tunable without a deploy.
//
// Env:
// - MATCH_AUTO_THRESHOLD (default 0.80): auto-link at or above
// - MATCH_REJECT_THRESHOLD (default 0.40): below this is a clean no-match
// - MATCH_AMBIGUITY_BAND (default 0.05): near-ties within this of the top
//   score force a user decision

func GetMatchAutoThreshold() float64 {
	return floatFromEnv("MATCH_AUTO_THRESHOLD", 0.80)
}

func GetMatchRejectThreshold() float64 {
	return floatFromEnv("MATCH_REJECT_THRESHOLD", 0.40)
}

func GetMatchAmbiguityBand() float64 {
	return floatFromEnv("MATCH_AMBIGUITY_BAND", 0.05)
}

// GetDraftTTL bounds how long an unconfirmed draft stays offered in the
// redis holding cache. The DB row is kept until explicitly discarded.
func GetDraftTTL() time.Duration {
	return time.Duration(intFromEnv("DRAFT_TTL_HOURS", 24)) * time.Hour
}

func GetRateLimitPerMinute() int64 {
	return int64(intFromEnv("RATE_LIMIT_PER_MINUTE", 20))
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
