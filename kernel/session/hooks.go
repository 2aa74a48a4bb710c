// Package session implements the five replayable session-lifecycle hooks
// and the metrics collector that observes every session hook point (C13).
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
	"github.com/flowforge/kernel/kernel/hooks"
)

const hookVersion = "1.0.0"

// replayableHook implements hooks.Replayable by round-tripping Context
// through JSON, which is deterministic for the map[string]interface{}
// payloads every session hook operates on.
type replayableHook struct {
	name string
}

func (r replayableHook) ReplayID() string { return hooks.ReplayID(r.name, hookVersion) }

func (r replayableHook) SerializeContext(ctx *hooks.Context) ([]byte, error) {
	return json.Marshal(ctx)
}

func (r replayableHook) DeserializeContext(data []byte) (*hooks.Context, error) {
	var ctx hooks.Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, kerrors.Wrap(kerrors.KindValidation, "invalid replayed session context", err)
	}
	return &ctx, nil
}

// Lifecycle bundles the five session hooks plus their shared Replayable
// metadata, ready for registration on a hooks.Registry.
type Lifecycle struct {
	Start      hooks.Hook
	End        hooks.Hook
	Checkpoint hooks.Hook
	Restore    hooks.Hook
	Save       hooks.Hook
}

// NewLifecycle builds the five session-lifecycle hooks described in §4.6.
// Each stamps a timestamp key and computes derived values where applicable.
func NewLifecycle() Lifecycle {
	return Lifecycle{
		Start: hooks.Hook{
			Metadata: hooks.Metadata{Name: "session.start", Version: hookVersion, Priority: hooks.NORMAL, Language: hooks.LanguageNative},
			Run: func(ctx *hooks.Context) (hooks.Result, error) {
				now := time.Now()
				ctx.Data["start_timestamp"] = now
				ctx.Data["created_at"] = now
				return hooks.Continue(), nil
			},
		},
		End: hooks.Hook{
			Metadata: hooks.Metadata{Name: "session.end", Version: hookVersion, Priority: hooks.NORMAL, Language: hooks.LanguageNative},
			Run: func(ctx *hooks.Context) (hooks.Result, error) {
				now := time.Now()
				ctx.Data["end_timestamp"] = now
				if created, ok := ctx.Data["created_at"].(time.Time); ok {
					ctx.Data["session_duration_ms"] = now.Sub(created).Milliseconds()
				}
				return hooks.Continue(), nil
			},
		},
		Checkpoint: hooks.Hook{
			Metadata: hooks.Metadata{Name: "session.checkpoint", Version: hookVersion, Priority: hooks.NORMAL, Language: hooks.LanguageNative},
			Run: func(ctx *hooks.Context) (hooks.Result, error) {
				ctx.Data["checkpoint_timestamp"] = time.Now()
				return hooks.Continue(), nil
			},
		},
		Restore: hooks.Hook{
			Metadata: hooks.Metadata{Name: "session.restore", Version: hookVersion, Priority: hooks.NORMAL, Language: hooks.LanguageNative},
			Run: func(ctx *hooks.Context) (hooks.Result, error) {
				ctx.Data["restore_timestamp"] = time.Now()
				return hooks.Continue(), nil
			},
		},
		Save: hooks.Hook{
			Metadata: hooks.Metadata{Name: "session.save", Version: hookVersion, Priority: hooks.NORMAL, Language: hooks.LanguageNative},
			Run: func(ctx *hooks.Context) (hooks.Result, error) {
				ctx.Data["save_timestamp"] = time.Now()
				return hooks.Continue(), nil
			},
		},
	}
}

// ReplayableFor returns the Replayable view of one of the lifecycle hooks,
// identified by its registered name.
func ReplayableFor(name string) hooks.Replayable {
	return replayableHook{name: name}
}

// HashSessionID derives the stable, privacy-mode identifier for a session
// id: a hex-encoded SHA-256 digest, so logs and metrics never carry the raw
// session id when privacy_mode is enabled.
func HashSessionID(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}

// Status is the session lifecycle status persisted to storage.
type Status string

const (
	StatusCreated  Status = "created"
	StatusActive   Status = "active"
	StatusArchived Status = "archived" // serialization of logical "completed" (Open Question 4)
	StatusExpired  Status = "expired"
)

// Completed reports whether status represents the logical "completed" state
// (Open Question 4: the SQL check constraint only knows "archived").
func (s Status) Completed() bool { return s == StatusArchived }

// ID generates a fresh opaque session identifier.
func ID() string {
	return fmt.Sprintf("session-%d", time.Now().UnixNano())
}
