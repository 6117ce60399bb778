package services

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"teymia/internal/logger"
	"teymia/internal/models"
)

// auditService journals ledger mutations next to the balance changes they
// caused.
type auditService struct {
	log *zap.SugaredLogger
}

// NewAuditService creates a new AuditServicer.
func NewAuditService() AuditServicer {
	return &auditService{log: logger.Named("audit")}
}

// Record writes entry on db. When db is an open transaction the entry sits
// behind a savepoint, so it commits with the mutation and a failed insert
// is logged without aborting it.
func (s *auditService) Record(db *gorm.DB, entry AuditEntry) {
	row := &models.AuditLog{
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Effects:      s.encode(entry.Action, effectStrings(entry.Effects)),
		Changes:      s.encode(entry.Action, entry.Changes),
	}

	err := db.Transaction(func(sp *gorm.DB) error {
		return sp.Create(row).Error
	})
	if err != nil {
		s.log.Errorw("failed to create audit log entry",
			"error", err,
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
		)
	}
}

// encode marshals an audit field. Empty maps are stored as an empty string.
func (s *auditService) encode(action string, v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Errorw("failed to marshal audit log field", "error", err, "action", action)
		return ""
	}
	if out := string(data); out != "{}" && out != "null" {
		return out
	}
	return ""
}

func effectStrings(effects map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(effects))
	for accountID, delta := range effects {
		out[accountID] = delta.String()
	}
	return out
}
