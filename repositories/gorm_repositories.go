package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}

// RevocationOptions sizes the in-process revocation store used when no
// Redis client is configured.
type RevocationOptions struct {
	Capacity int
	TTL      time.Duration
}

type GormRepositories struct {
	db         *gorm.DB
	redis      *redis.Client
	revocation RevocationOptions
}

func NewGormRepositories(db *gorm.DB, redisClient *redis.Client, revocation RevocationOptions) *GormRepositories {
	return &GormRepositories{db: db, redis: redisClient, revocation: revocation}
}

func (r *GormRepositories) BuildContainer() Container {
	var revocations TokenRevocationRepository
	if r.redis != nil {
		revocations = NewRedisTokenRevocationRepository(r.redis)
	} else {
		revocations = NewLRUTokenRevocationRepository(r.revocation.Capacity, r.revocation.TTL)
	}
	return Container{
		TxManager:   NewGormTxManager(r.db),
		Users:       NewGormUserRepository(r.db),
		Files:       NewGormFileRepository(r.db),
		Notes:       NewGormNoteRepository(r.db),
		Revocations: revocations,
	}
}

func useTx(ctx context.Context, db *gorm.DB, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a LIKE pattern for a literal, lower-cased substring
// match. It pairs with ESCAPE '!'.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}
