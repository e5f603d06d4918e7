// Package config loads and holds all tunable parameters for the
// Truco FDP server: transport, snapshot persistence, timers, chat and
// the fixed room set.
package config

import (
	"crypto/rand"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
)

// RoomDef is a single fixed room identity.
type RoomDef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// HostSettingsDefaults mirrors the per-room host-configurable settings
// (spec.md §3, Room.host-settings) at their initial values.
type HostSettingsDefaults struct {
	StartingLives          int  `json:"starting_lives"`
	TurnTimerSeconds       int  `json:"turn_timer_seconds"`
	AllowSpectatorChat     bool `json:"allow_spectator_chat"`
	RoundTransitionDelayMS int  `json:"round_transition_delay_ms"`
}

// Config holds all configurable server parameters.
type Config struct {
	WSPort      int      `json:"ws_port"`
	CORSOrigins []string `json:"cors_origins"`

	SnapshotPath        string `json:"snapshot_path"`
	SnapshotIntervalSec int    `json:"snapshot_interval_sec"`

	Rooms []RoomDef `json:"rooms"`

	TrickStartDelayMS int `json:"trick_start_delay_ms"`

	HostSettingsDefaults HostSettingsDefaults `json:"host_settings_defaults"`

	TurnTimerMinSec int `json:"turn_timer_min_sec"`
	TurnTimerMaxSec int `json:"turn_timer_max_sec"`

	GameTimeLimitMS     int64 `json:"game_time_limit_ms"`
	GameTickIntervalSec int   `json:"game_tick_interval_sec"`
	GameWarningMS       int64 `json:"game_warning_ms"`

	SessionGraceSec         int `json:"session_grace_sec"`
	SessionSweepIntervalSec int `json:"session_sweep_interval_sec"`

	ChatThrottleMS  int `json:"chat_throttle_ms"`
	ChatMaxLen      int `json:"chat_max_len"`
	ChatHistorySize int `json:"chat_history_size"`

	ActionSyncTTLSec int `json:"action_sync_ttl_sec"`

	MinDisplayNameLen int `json:"min_display_name_len"`
	MaxDisplayNameLen int `json:"max_display_name_len"`
	MaxSeatedPlayers  int `json:"max_seated_players"`

	// JWTSigningKey signs session tokens (see the session package). When
	// unset, Load generates a random one: fine for a single process, but
	// it means sessions do not survive a restart without a persisted key.
	JWTSigningKey []byte `json:"-"`
}

// Defaults returns a Config with every value from spec.md's defaults.
func Defaults() *Config {
	return &Config{
		WSPort:      8080,
		CORSOrigins: []string{"*"},

		SnapshotPath:        "data/snapshot.json",
		SnapshotIntervalSec: 30,

		Rooms: []RoomDef{
			{ID: "itajuba", DisplayName: "Itajubá"},
			{ID: "pouso-alegre", DisplayName: "Pouso Alegre"},
			{ID: "santa-rita", DisplayName: "Santa Rita"},
			{ID: "brazopolis", DisplayName: "Brazópolis"},
			{ID: "wenceslau-braz", DisplayName: "Wenceslau Braz"},
		},

		TrickStartDelayMS: 10000,

		HostSettingsDefaults: HostSettingsDefaults{
			StartingLives:          5,
			TurnTimerSeconds:       20,
			AllowSpectatorChat:     true,
			RoundTransitionDelayMS: 200,
		},

		TurnTimerMinSec: 5,
		TurnTimerMaxSec: 30,

		GameTimeLimitMS:     3_600_000,
		GameTickIntervalSec: 60,
		GameWarningMS:       5 * 60 * 1000,

		SessionGraceSec:         300,
		SessionSweepIntervalSec: 30,

		ChatThrottleMS:  750,
		ChatMaxLen:      200,
		ChatHistorySize: 100,

		ActionSyncTTLSec: 60,

		MinDisplayNameLen: 3,
		MaxDisplayNameLen: 20,
		MaxSeatedPlayers:  10,
	}
}

// Load reads configuration from an optional config.json file, then
// applies environment variable overrides; fields set in neither source
// retain their default values. A signing key is read from
// TRUCOFDP_SESSION_SECRET, or generated at random if unset.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	overrideInt(&cfg.WSPort, "WS_PORT")
	overrideString(&cfg.SnapshotPath, "SNAPSHOT_PATH")
	overrideInt(&cfg.SnapshotIntervalSec, "SNAPSHOT_INTERVAL_SEC")
	overrideInt(&cfg.TrickStartDelayMS, "TRICK_START_DELAY_MS")
	overrideInt(&cfg.HostSettingsDefaults.StartingLives, "STARTING_LIVES")
	overrideInt(&cfg.HostSettingsDefaults.TurnTimerSeconds, "TURN_TIMER_SECONDS")
	overrideInt(&cfg.HostSettingsDefaults.RoundTransitionDelayMS, "ROUND_TRANSITION_DELAY_MS")
	overrideInt64(&cfg.GameTimeLimitMS, "GAME_TIME_LIMIT_MS")
	overrideInt(&cfg.GameTickIntervalSec, "GAME_TICK_INTERVAL_SEC")
	overrideInt(&cfg.SessionGraceSec, "SESSION_GRACE_SEC")
	overrideInt(&cfg.SessionSweepIntervalSec, "SESSION_SWEEP_INTERVAL_SEC")
	overrideInt(&cfg.ChatThrottleMS, "CHAT_THROTTLE_MS")
	overrideInt(&cfg.ChatMaxLen, "CHAT_MAX_LEN")
	overrideInt(&cfg.ChatHistorySize, "CHAT_HISTORY_SIZE")
	overrideInt(&cfg.ActionSyncTTLSec, "ACTION_SYNC_TTL_SEC")

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}

	if secret := os.Getenv("TRUCOFDP_SESSION_SECRET"); secret != "" {
		cfg.JWTSigningKey = []byte(secret)
	} else {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			log.Fatalf("config: failed to generate session signing key: %v", err)
		}
		cfg.JWTSigningKey = key
	}

	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideInt64(field *int64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// ClampTurnTimer clamps seconds into [TurnTimerMinSec, TurnTimerMaxSec].
func (c *Config) ClampTurnTimer(seconds int) int {
	if seconds < c.TurnTimerMinSec {
		return c.TurnTimerMinSec
	}
	if seconds > c.TurnTimerMaxSec {
		return c.TurnTimerMaxSec
	}
	return seconds
}

// IsKnownRoom reports whether roomID is one of the fixed configured rooms.
func (c *Config) IsKnownRoom(roomID string) bool {
	for _, r := range c.Rooms {
		if r.ID == roomID {
			return true
		}
	}
	return false
}
