package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/store"
	"github.com/arbiterlabs/arbiter/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Bots() store.BotRepository {
	return &botRepo{db: r.executor}
}

func (r *SqliteRepository) RoutingConfigs() store.RoutingConfigRepository {
	return &routingConfigRepo{db: r.executor}
}

func (r *SqliteRepository) ProviderKeys() store.ProviderKeyRepository {
	return &providerKeyRepo{db: r.executor}
}

func (r *SqliteRepository) FallbackChains() store.FallbackChainRepository {
	return &fallbackChainRepo{db: r.executor}
}

func (r *SqliteRepository) CapabilityTags() store.CapabilityTagRepository {
	return &capabilityTagRepo{db: r.executor}
}

func (r *SqliteRepository) Catalog() store.CatalogRepository {
	return &catalogRepo{db: r.executor}
}

func (r *SqliteRepository) Complexity() store.ComplexityRepository {
	return &complexityRepo{db: r.executor}
}

type botRepo struct {
	db DB
}

func (r *botRepo) Get(ctx context.Context, id string) (*domain.Bot, error) {
	var row model.Bot
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM bots WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return row.ToDomain()
}

func (r *botRepo) Create(ctx context.Context, bot *domain.Bot) error {
	row, err := model.BotFromDomain(bot)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO bots (id, name, tags_json, fallback_chain_id, complexity_enabled, created_at, updated_at)
	VALUES (:id, :name, :tags_json, :fallback_chain_id, :complexity_enabled, :created_at, :updated_at)`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *botRepo) List(ctx context.Context) ([]domain.Bot, error) {
	var rows []model.Bot
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM bots ORDER BY created_at`); err != nil {
		return nil, err
	}
	bots := make([]domain.Bot, 0, len(rows))
	for _, row := range rows {
		b, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		bots = append(bots, *b)
	}
	return bots, nil
}

type routingConfigRepo struct {
	db DB
}

func (r *routingConfigRepo) EnabledForBot(ctx context.Context, botID string) ([]domain.RoutingConfig, error) {
	var rows []model.RoutingConfig
	query := `SELECT * FROM routing_configs WHERE bot_id = ? AND is_enabled = 1 ORDER BY priority ASC, created_at ASC`
	if err := r.db.SelectContext(ctx, &rows, query, botID); err != nil {
		return nil, err
	}
	return decodeConfigs(rows)
}

func (r *routingConfigRepo) ListForBot(ctx context.Context, botID string) ([]domain.RoutingConfig, error) {
	var rows []model.RoutingConfig
	query := `SELECT * FROM routing_configs WHERE bot_id = ? ORDER BY priority ASC, created_at ASC`
	if err := r.db.SelectContext(ctx, &rows, query, botID); err != nil {
		return nil, err
	}
	return decodeConfigs(rows)
}

func decodeConfigs(rows []model.RoutingConfig) ([]domain.RoutingConfig, error) {
	configs := make([]domain.RoutingConfig, 0, len(rows))
	for _, row := range rows {
		c, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		configs = append(configs, *c)
	}
	return configs, nil
}

func (r *routingConfigRepo) Create(ctx context.Context, cfg *domain.RoutingConfig) error {
	row, err := model.RoutingConfigFromDomain(cfg)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO routing_configs (id, bot_id, kind, priority, is_enabled, params_json, created_at, updated_at)
	VALUES (:id, :bot_id, :kind, :priority, :is_enabled, :params_json, :created_at, :updated_at)`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *routingConfigRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE routing_configs SET is_enabled = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, enabled, time.Now(), id)
	return err
}

type providerKeyRepo struct {
	db DB
}

func (r *providerKeyRepo) Get(ctx context.Context, id string) (*domain.ProviderKey, error) {
	var row model.ProviderKey
	// deleted check is part of the query: a soft-deleted key must
	// read as missing everywhere
	query := `SELECT * FROM provider_keys WHERE id = ? AND is_deleted = 0`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.ToDomain()
}

func (r *providerKeyRepo) ListByVendor(ctx context.Context, vendor string) ([]domain.ProviderKey, error) {
	var rows []model.ProviderKey
	query := `SELECT * FROM provider_keys WHERE vendor = ? AND is_deleted = 0 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &rows, query, vendor); err != nil {
		return nil, err
	}
	return decodeKeys(rows)
}

func (r *providerKeyRepo) ListByVendorTag(ctx context.Context, vendor, tag string) ([]domain.ProviderKey, error) {
	var rows []model.ProviderKey
	var err error
	if tag == "" {
		query := `SELECT * FROM provider_keys WHERE vendor = ? AND tag IS NULL AND is_deleted = 0 ORDER BY created_at ASC`
		err = r.db.SelectContext(ctx, &rows, query, vendor)
	} else {
		query := `SELECT * FROM provider_keys WHERE vendor = ? AND tag = ? AND is_deleted = 0 ORDER BY created_at ASC`
		err = r.db.SelectContext(ctx, &rows, query, vendor, tag)
	}
	if err != nil {
		return nil, err
	}
	return decodeKeys(rows)
}

func decodeKeys(rows []model.ProviderKey) ([]domain.ProviderKey, error) {
	keys := make([]domain.ProviderKey, 0, len(rows))
	for _, row := range rows {
		k, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}
	return keys, nil
}

func (r *providerKeyRepo) Create(ctx context.Context, key *domain.ProviderKey) error {
	row, err := model.ProviderKeyFromDomain(key)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO provider_keys (id, vendor, secret_enc, base_url, tag, metadata_json, is_deleted, created_at, updated_at)
	VALUES (:id, :vendor, :secret_enc, :base_url, :tag, :metadata_json, :is_deleted, :created_at, :updated_at)`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *providerKeyRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE provider_keys SET is_deleted = 1, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	return err
}

type fallbackChainRepo struct {
	db DB
}

func (r *fallbackChainRepo) Get(ctx context.Context, chainID string) (*domain.FallbackChain, error) {
	var row model.FallbackChain
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM fallback_chains WHERE chain_id = ?`, chainID); err != nil {
		return nil, err
	}
	return row.ToDomain()
}

func (r *fallbackChainRepo) Create(ctx context.Context, chain *domain.FallbackChain) error {
	if len(chain.Models) == 0 {
		return fmt.Errorf("fallback chain must have at least one model")
	}
	row, err := model.FallbackChainFromDomain(chain)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO fallback_chains (
		chain_id, models_json, trigger_status_codes_json, trigger_error_types_json,
		trigger_timeout_ms, max_retries, retry_delay_ms, preserve_protocol, created_at, updated_at
	) VALUES (
		:chain_id, :models_json, :trigger_status_codes_json, :trigger_error_types_json,
		:trigger_timeout_ms, :max_retries, :retry_delay_ms, :preserve_protocol, :created_at, :updated_at
	)`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

type capabilityTagRepo struct {
	db DB
}

func (r *capabilityTagRepo) ActiveTags(ctx context.Context) ([]domain.CapabilityTag, error) {
	var rows []model.CapabilityTag
	query := `SELECT * FROM capability_tags WHERE is_active = 1 ORDER BY priority ASC`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	tags := make([]domain.CapabilityTag, 0, len(rows))
	for _, row := range rows {
		t, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	return tags, nil
}

func (r *capabilityTagRepo) Create(ctx context.Context, tag *domain.CapabilityTag) error {
	patterns := "[]"
	if len(tag.RequiredModels) > 0 {
		raw, err := json.Marshal(tag.RequiredModels)
		if err != nil {
			return err
		}
		patterns = string(raw)
	}
	query := `
	INSERT INTO capability_tags (tag_id, required_models_json, requires_extended_thinking, requires_cache_control, requires_vision, priority, is_active)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, tag.TagID, patterns,
		tag.RequiresExtendedThinking, tag.RequiresCacheControl, tag.RequiresVision, tag.Priority, tag.Active)
	return err
}

func (r *capabilityTagRepo) AssignmentsForModel(ctx context.Context, modelID string) ([]domain.TagMatch, error) {
	var rows []model.TagAssignment
	query := `SELECT * FROM model_tag_assignments WHERE model_id = ? ORDER BY confidence DESC, tag_id ASC`
	if err := r.db.SelectContext(ctx, &rows, query, modelID); err != nil {
		return nil, err
	}
	matches := make([]domain.TagMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, domain.TagMatch{
			TagID:       row.TagID,
			ModelID:     row.ModelID,
			MatchSource: domain.MatchSource(row.MatchSource),
			Confidence:  row.Confidence,
		})
	}
	return matches, nil
}

func (r *capabilityTagRepo) ReplaceAssignments(ctx context.Context, modelID string, matches []domain.TagMatch) error {
	// Manual rows are authoritative and survive re-tagging.
	del := `DELETE FROM model_tag_assignments WHERE model_id = ? AND match_source != 'manual'`
	if _, err := r.db.ExecContext(ctx, del, modelID); err != nil {
		return err
	}

	ins := `
	INSERT INTO model_tag_assignments (id, model_id, tag_id, match_source, confidence, created_at)
	VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(model_id, tag_id) DO NOTHING`
	for _, m := range matches {
		if _, err := r.db.ExecContext(ctx, ins, uuid.New().String(), modelID, m.TagID, string(m.MatchSource), m.Confidence); err != nil {
			return err
		}
	}
	return nil
}

func (r *capabilityTagRepo) AssignManual(ctx context.Context, modelID, tagID string) error {
	query := `
	INSERT INTO model_tag_assignments (id, model_id, tag_id, match_source, confidence, created_at)
	VALUES (?, ?, ?, 'manual', 100, CURRENT_TIMESTAMP)
	ON CONFLICT(model_id, tag_id) DO UPDATE SET match_source = 'manual'`
	_, err := r.db.ExecContext(ctx, query, uuid.New().String(), modelID, tagID)
	return err
}

type catalogRepo struct {
	db DB
}

func (r *catalogRepo) Get(ctx context.Context, modelID string) (*domain.CatalogEntry, error) {
	var row model.CatalogEntry
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM model_catalog WHERE model_id = ?`, modelID); err != nil {
		return nil, err
	}
	return row.ToDomain()
}

func (r *catalogRepo) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	var rows []model.CatalogEntry
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM model_catalog ORDER BY model_id`); err != nil {
		return nil, err
	}
	entries := make([]domain.CatalogEntry, 0, len(rows))
	for _, row := range rows {
		e, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

func (r *catalogRepo) Upsert(ctx context.Context, entry *domain.CatalogEntry) error {
	row, err := model.CatalogEntryFromDomain(entry)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO model_catalog (
		model_id, vendor, supports_extended_thinking, supports_cache_control, supports_vision,
		recommended_scenarios_json, context_window, input_cost_micros_per_1k, output_cost_micros_per_1k,
		created_at, updated_at
	) VALUES (
		:model_id, :vendor, :supports_extended_thinking, :supports_cache_control, :supports_vision,
		:recommended_scenarios_json, :context_window, :input_cost_micros_per_1k, :output_cost_micros_per_1k,
		CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
	)
	ON CONFLICT(model_id) DO UPDATE SET
		vendor = excluded.vendor,
		supports_extended_thinking = excluded.supports_extended_thinking,
		supports_cache_control = excluded.supports_cache_control,
		supports_vision = excluded.supports_vision,
		recommended_scenarios_json = excluded.recommended_scenarios_json,
		context_window = excluded.context_window,
		input_cost_micros_per_1k = excluded.input_cost_micros_per_1k,
		output_cost_micros_per_1k = excluded.output_cost_micros_per_1k,
		updated_at = CURRENT_TIMESTAMP`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

type complexityRepo struct {
	db DB
}

func (r *complexityRepo) ForBot(ctx context.Context, botID string) (*domain.ComplexityRoutingConfig, error) {
	var row model.ComplexityConfig
	err := r.db.GetContext(ctx, &row, `SELECT * FROM complexity_configs WHERE bot_id = ?`, botID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain()
}

func (r *complexityRepo) Create(ctx context.Context, cfg *domain.ComplexityRoutingConfig) error {
	row, err := model.ComplexityConfigFromDomain(cfg)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO complexity_configs (id, bot_id, classifier_vendor, classifier_model, tool_min_complexity, targets_json)
	VALUES (:id, :bot_id, :classifier_vendor, :classifier_model, :tool_min_complexity, :targets_json)`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}
