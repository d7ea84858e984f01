package store

import (
	"basicsos.app/automation/core/db"
)

// Stores hands out tenant-scoped stores bound to one connection or transaction.
type Stores struct {
	conn db.DBTX
}

func NewStores(conn db.DBTX) *Stores {
	return &Stores{conn: conn}
}

func (s *Stores) Automations() AutomationStore {
	return newAutomationStore(s.conn)
}

func (s *Stores) Runs() RunStore {
	return newRunStore(s.conn)
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.conn)
}

func (s *Stores) Tasks() TaskStore {
	return newTaskStore(s.conn)
}

func (s *Stores) CRM() CRMStore {
	return newCRMStore(s.conn)
}

func (s *Stores) AuditLogs() AuditStore {
	return newAuditStore(s.conn)
}

func (s *Stores) Notifications() NotificationStore {
	return newNotificationStore(s.conn)
}
