// Package formstore persists the onboarding snapshot in session-scoped Redis keys.
package formstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"profitpilot/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Keys owned by the onboarding flow.
const (
	KeyFormData          = "form_data"
	KeyUserIdentity      = "user_identity"
	KeyVerificationToken = "verification_token"
	KeySelectedPlanID    = "selected_plan_id"
	KeyReferralCode      = "referral_code"
)

// OwnedKeys lists every key ClearAll removes.
var OwnedKeys = []string{
	KeyFormData,
	KeyUserIdentity,
	KeyVerificationToken,
	KeySelectedPlanID,
	KeyReferralCode,
}

const keyPrefix = "onboarding:"

// Store reads and writes one session's snapshot. Storage failures are logged and never
// returned: the wizard keeps working without reload resilience.
type Store struct {
	client    redis.Cmdable
	sessionID string
	ttl       time.Duration
	logger    *zap.Logger
}

// New returns a store scoped to sessionID. A zero ttl keeps keys until ClearAll.
func New(client redis.Cmdable, sessionID string, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, sessionID: sessionID, ttl: ttl, logger: logger}
}

// SessionID returns the session the store is scoped to.
func (s *Store) SessionID() string {
	return s.sessionID
}

func (s *Store) key(name string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, s.sessionID, name)
}

// Save serializes value under key. The previous value is left untouched on failure.
func (s *Store) Save(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("formstore: failed to serialize value", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		s.logger.Warn("formstore: failed to save value",
			zap.String("sessionID", s.sessionID), zap.String("key", key), zap.Error(err))
	}
}

// Load returns the value stored under key, or def when it is absent or unreadable.
func Load[T any](ctx context.Context, s *Store, key string, def T) T {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("formstore: failed to read value",
				zap.String("sessionID", s.sessionID), zap.String("key", key), zap.Error(err))
		}
		return def
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("formstore: failed to parse stored value", zap.String("key", key), zap.Error(err))
		return def
	}
	return out
}

// ClearAll removes every key owned by the session.
func (s *Store) ClearAll(ctx context.Context) {
	keys := make([]string, 0, len(OwnedKeys))
	for _, k := range OwnedKeys {
		keys = append(keys, s.key(k))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("formstore: failed to clear session", zap.String("sessionID", s.sessionID), zap.Error(err))
	}
}

// LoadFormState decodes the form blob field by field so that one corrupted field does
// not discard the rest. CategoryIDs always decodes as a slice.
func (s *Store) LoadFormState(ctx context.Context) models.WizardFormState {
	raw := Load[map[string]json.RawMessage](ctx, s, KeyFormData, nil)
	form := models.WizardFormState{CategoryIDs: []string{}}
	if raw == nil {
		return form
	}
	form.FullName = s.stringField(raw, "fullName")
	form.Email = s.stringField(raw, "email")
	form.ExperienceLevelID = s.stringField(raw, "experienceLevelId")
	form.CountryID = s.stringField(raw, "countryId")

	if data, ok := raw["categoryIds"]; ok {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			s.logger.Warn("formstore: categoryIds is not a list, resetting", zap.Error(err))
		} else if ids != nil {
			form.CategoryIDs = ids
		}
	}
	return form
}

func (s *Store) stringField(raw map[string]json.RawMessage, name string) string {
	data, ok := raw[name]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("formstore: ignoring malformed field", zap.String("field", name), zap.Error(err))
		return ""
	}
	return v
}

// LoadSnapshot reads the whole snapshot once, as done when a wizard is mounted.
func (s *Store) LoadSnapshot(ctx context.Context) models.SessionSnapshot {
	return models.SessionSnapshot{
		FormData:          s.LoadFormState(ctx),
		UserIdentity:      Load[*models.UserIdentity](ctx, s, KeyUserIdentity, nil),
		VerificationToken: Load(ctx, s, KeyVerificationToken, ""),
		SelectedPlanID:    Load(ctx, s, KeySelectedPlanID, ""),
		ReferralCode:      Load(ctx, s, KeyReferralCode, ""),
	}
}
