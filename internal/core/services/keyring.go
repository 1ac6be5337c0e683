package services

import (
	"context"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/logger"
	"go.uber.org/zap"
)

// Keyring selects one usable credential per call. Pool precedence:
// the bot's preference tags in order, then the vendor's untagged
// default pool, then any non-deleted key of the vendor. Within a pool
// the pick is round-robin.
type Keyring struct {
	keys      ports.KeyStore
	decrypter ports.Decrypter
	rr        ports.RoundRobin
}

func NewKeyring(keys ports.KeyStore, decrypter ports.Decrypter, rr ports.RoundRobin) *Keyring {
	return &Keyring{keys: keys, decrypter: decrypter, rr: rr}
}

// SelectKeyForBot picks a key for the vendor honoring the bot's tag
// preferences and returns it with the decrypted secret. A key whose
// secret fails to decrypt is skipped in favor of the next round-robin
// candidate, up to the full candidate-set size. Returns nil when no
// usable key exists at any pool stage.
func (k *Keyring) SelectKeyForBot(ctx context.Context, vendor string, botTags []string) (*domain.KeySelection, error) {
	for _, tag := range botTags {
		keys, err := k.keys.ListByVendorTag(ctx, vendor, tag)
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			return k.pick(keys, vendor+":"+tag), nil
		}
	}

	keys, err := k.keys.ListByVendorTag(ctx, vendor, "")
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		return k.pick(keys, vendor+":default"), nil
	}

	keys, err = k.keys.ListByVendor(ctx, vendor)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		return k.pick(keys, vendor), nil
	}

	return nil, nil
}

// PeekKeyForBot mirrors SelectKeyForBot without advancing round-robin
// counters or decrypting anything. Used by dry-run resolution.
func (k *Keyring) PeekKeyForBot(ctx context.Context, vendor string, botTags []string) (*domain.ProviderKey, error) {
	for _, tag := range botTags {
		keys, err := k.keys.ListByVendorTag(ctx, vendor, tag)
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			return &keys[k.rr.Peek(vendor+":"+tag, len(keys))], nil
		}
	}

	keys, err := k.keys.ListByVendorTag(ctx, vendor, "")
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		return &keys[k.rr.Peek(vendor+":default", len(keys))], nil
	}

	keys, err = k.keys.ListByVendor(ctx, vendor)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		return &keys[k.rr.Peek(vendor, len(keys))], nil
	}

	return nil, nil
}

// SelectByID fetches and decrypts a specific key, for targets that pin
// their credential. A missing or deleted key is a configuration error.
func (k *Keyring) SelectByID(ctx context.Context, keyID string) (*domain.KeySelection, error) {
	key, err := k.keys.Get(ctx, keyID)
	if err != nil {
		return nil, domain.TargetKeyMissingError(keyID, err)
	}
	secret, err := k.decrypter.Decrypt(key.SecretEncrypted)
	if err != nil {
		logger.Warn("provider key failed to decrypt",
			zap.String("key_id", key.ID),
			zap.String("vendor", key.Vendor),
			zap.Error(err),
		)
		return nil, domain.TargetKeyMissingError(keyID, err)
	}
	return &domain.KeySelection{Key: *key, Secret: secret}, nil
}

// pick round-robins within a candidate pool, skipping keys whose
// secrets fail to decrypt. At most len(keys) candidates are tried
// before giving up on the pool.
func (k *Keyring) pick(keys []domain.ProviderKey, cacheKey string) *domain.KeySelection {
	for attempt := 0; attempt < len(keys); attempt++ {
		idx := k.rr.Next(cacheKey, len(keys))
		key := keys[idx]
		secret, err := k.decrypter.Decrypt(key.SecretEncrypted)
		if err != nil {
			logger.Warn("provider key failed to decrypt, trying next candidate",
				zap.String("key_id", key.ID),
				zap.String("vendor", key.Vendor),
				zap.Error(err),
			)
			continue
		}
		return &domain.KeySelection{Key: key, Secret: secret}
	}
	return nil
}
