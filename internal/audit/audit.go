// Package audit persists who-did-what records for every create, update,
// delete and sign action. Recording is fire-and-forget: a failed audit
// write is logged but never fails the originating request.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionSign   = "SIGN"
)

type Entry struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	ActorID     uuid.UUID      `json:"actor_id" gorm:"type:uuid;not null;index"`
	Action      string         `json:"action" gorm:"not null"`
	EntityType  string         `json:"entity_type" gorm:"not null;index"`
	EntityID    uuid.UUID      `json:"entity_id" gorm:"type:uuid;not null;index"`
	Before      datatypes.JSON `json:"before,omitempty" gorm:"type:jsonb"`
	After       datatypes.JSON `json:"after,omitempty" gorm:"type:jsonb"`
	IPAddress   string         `json:"ip_address"`
	UserAgent   string         `json:"user_agent"`
	PerformedAt time.Time      `json:"performed_at" gorm:"autoCreateTime"`
}

func (Entry) TableName() string {
	return "audit_entries"
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Record writes an audit entry in the background. Request metadata is
// captured synchronously, the insert is not.
func (s *Service) Record(c *gin.Context, actorID uuid.UUID, action, entityType string, entityID uuid.UUID, before, after interface{}) {
	entry := Entry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
	entry.Before = marshalSnapshot(before)
	entry.After = marshalSnapshot(after)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
			s.logger.Error("Failed to write audit entry",
				zap.String("action", action),
				zap.String("entity_type", entityType),
				zap.String("entity_id", entityID.String()),
				zap.Error(err),
			)
		}
	}()
}

func marshalSnapshot(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
