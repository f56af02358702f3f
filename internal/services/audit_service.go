package services

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pocketbook/internal/logger"
	"pocketbook/internal/models"
)

// auditService appends to the audit trail.
type auditService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db, log: logger.Named("audit")}
}

// Log appends an entry to the audit trail. An empty ledgerID records an
// entry outside any ledger. Failures are logged and never returned, so a
// committed mutation is not reported as failed.
func (s *auditService) Log(ledgerID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	entry := &models.AuditLog{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      s.encodeChanges(action, changes),
	}
	if ledgerID != "" {
		entry.LedgerID = &ledgerID
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.log.Errorw("Failed to write audit entry",
			"error", err,
			"ledger_id", ledgerID,
			"action", action,
			"resource", resourceType+"/"+resourceID,
		)
	}
}

func (s *auditService) encodeChanges(action string, changes map[string]interface{}) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		s.log.Warnw("Audit changes are not JSON encodable", "action", action, "error", err)
		return "{}"
	}
	return string(data)
}
