// Package normalize turns loosely typed store documents into the canonical models.
// It is the only package that looks at raw field names; everything downstream works
// on models.Report, models.User and models.Company.
//
// Normalization never fails. Fields that cannot be interpreted are replaced by a
// default and counted as anomalies.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"workscope/db"
	"workscope/logger"
	"workscope/models"
)

// Normalizer converts raw records. The zero value is not usable; call New.
type Normalizer struct {
	now       func() time.Time
	anomalies *Anomalies
	log       *logrus.Entry
}

// New returns a Normalizer. now supplies the fallback for unparseable timestamps; nil
// means time.Now.
func New(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{
		now:       now,
		anomalies: NewAnomalies(),
		log:       logger.WithModule("normalize"),
	}
}

// Anomalies returns the counter shared by every call on n.
func (n *Normalizer) Anomalies() *Anomalies {
	return n.anomalies
}

func (n *Normalizer) flag(kind, id, field string) {
	n.anomalies.Add(kind)
	n.log.WithFields(logrus.Fields{
		"anomaly": kind,
		"doc":     id,
		"field":   field,
	}).Debug("normalization anomaly")
}

// Report normalizes a work order document.
func (n *Normalizer) Report(rec db.Record) models.Report {
	d := rec.Data
	r := models.Report{
		ID:          rec.ID,
		WorkerID:    str(d, models.FieldWorkerID, "workerId"),
		CompanyID:   str(d, models.FieldCompanyID, "companyId"),
		Department:  Department(d),
		WorkType:    str(d, models.FieldWorkType, "workType"),
		Description: str(d, models.FieldDescription, "description"),
		Location:    str(d, models.FieldLocation, "location"),
		Status:      Status(first(d, models.FieldStatus, "status")),
		Evidence:    []string{},
	}

	rawPriority := str(d, models.FieldPriority, "priority")
	r.Priority = Priority(rawPriority)
	if r.Priority == models.PriorityUnset && rawPriority != "" {
		n.flag(AnomalyUnknownPriority, rec.ID, models.FieldPriority)
	}

	r.CreatedAt = n.time(rec.ID, models.FieldCreatedAt, first(d, models.FieldCreatedAt, "createdAt"))

	if !r.IsCompleted() {
		return r
	}

	raw := first(d, models.FieldCompletedAt, "completedAt")
	if raw == nil {
		n.flag(AnomalyMissingCompletion, rec.ID, models.FieldCompletedAt)
	} else {
		completed := n.time(rec.ID, models.FieldCompletedAt, raw)
		r.CompletedAt = &completed
		if completed.Before(r.CreatedAt) {
			n.flag(AnomalyCompletionBeforeCr, rec.ID, models.FieldCompletedAt)
		}
	}
	r.ResolutionNotes = str(d, models.FieldResolutionNotes, "resolutionNotes")
	r.MaterialsUsed = str(d, models.FieldMaterialsUsed, "materialsUsed")
	r.Evidence = stringList(first(d, models.FieldEvidence, "evidence"))
	r.Signature = str(d, models.FieldSignature, "signature")
	return r
}

// Reports normalizes a batch of work order documents.
func (n *Normalizer) Reports(recs []db.Record) []models.Report {
	out := make([]models.Report, 0, len(recs))
	for _, rec := range recs {
		out = append(out, n.Report(rec))
	}
	return out
}

// User normalizes a worker or admin identity. Admins without a level default to
// level 1. Out of range levels are kept so the hierarchy resolver can reject them.
func (n *Normalizer) User(rec db.Record) models.User {
	d := rec.Data
	u := models.User{
		ID:         rec.ID,
		Username:   str(d, models.FieldUsername, "username"),
		Name:       str(d, models.FieldName, "name", "displayName"),
		Department: Department(d),
		Role:       Role(str(d, models.FieldRole, "role")),
		CreatorID:  str(d, models.FieldCreatorID, "createdBy"),
	}
	if !u.IsAdmin() {
		return u
	}

	raw := first(d, models.FieldAdminLevel, "adminLevel")
	if raw == nil {
		u.AdminLevel = models.AdminLevelGlobal
		return u
	}
	level, ok := integer(raw)
	if !ok || level < models.AdminLevelGlobal || level > models.AdminLevelTop {
		n.flag(AnomalyInvalidAdminLevel, rec.ID, models.FieldAdminLevel)
	}
	u.AdminLevel = level
	return u
}

// Users normalizes a batch of identities.
func (n *Normalizer) Users(recs []db.Record) []models.User {
	out := make([]models.User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, n.User(rec))
	}
	return out
}

// Company normalizes a company document.
func (n *Normalizer) Company(rec db.Record) models.Company {
	d := rec.Data
	return models.Company{
		ID:      rec.ID,
		Name:    str(d, models.FieldName, "name"),
		Contact: str(d, models.FieldContact, "contact"),
		Address: str(d, models.FieldAddress, "address"),
		Phone:   str(d, models.FieldPhone, "phone"),
		Email:   str(d, models.FieldEmail),
	}
}

func (n *Normalizer) time(id, field string, raw interface{}) time.Time {
	if raw == nil {
		n.flag(AnomalyMissingTimestamp, id, field)
		return n.now()
	}
	t, ok := Timestamp(raw)
	if !ok {
		n.flag(AnomalyBadTimestamp, id, field)
		return n.now()
	}
	return t
}

// Department reads the department label from either casing used by the apps.
func Department(d map[string]interface{}) string {
	return str(d, models.FieldDepartment, models.FieldDepartmentAlt, "department")
}

// Status maps the stored status onto Pending or Completed.
func Status(v interface{}) models.Status {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completado", "completada", "completed", "complete", "finalizado", "terminado", "done":
		return models.StatusCompleted
	}
	return models.StatusPending
}

// Priority maps the stored priority onto High, Medium or Low. Anything else is unset.
func Priority(s string) models.Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alta", "high", "urgente", "urgent":
		return models.PriorityHigh
	case "media", "medium", "normal":
		return models.PriorityMedium
	case "baja", "low":
		return models.PriorityLow
	}
	return models.PriorityUnset
}

// Role maps the stored role onto admin or worker.
func Role(s string) models.UserRole {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "administrador", "administrator":
		return models.RoleAdmin
	}
	return models.RoleWorker
}

func first(d map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := d[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func str(d map[string]interface{}, keys ...string) string {
	switch v := first(d, keys...).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func stringList(v interface{}) []string {
	out := []string{}
	switch lv := v.(type) {
	case []string:
		for _, s := range lv {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []interface{}:
		for _, item := range lv {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if s := strings.TrimSpace(lv); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func integer(v interface{}) (int, bool) {
	if f, ok := number(v); ok {
		return int(f), f == float64(int(f))
	}
	if s, ok := v.(string); ok {
		i, err := strconv.Atoi(strings.TrimSpace(s))
		return i, err == nil
	}
	return 0, false
}
