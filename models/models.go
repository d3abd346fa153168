// models.go
// Defines the canonical data structures shared by the store layer, the report pipeline and the API.

package models

import (
	"time"
)

// Collection names in the document store.
const (
	CollectionReports   = "reportes"
	CollectionUsers     = "usuarios"
	CollectionCompanies = "empresas"
	CollectionPasswords = "passwords"
)

// Raw field names as written by the field apps. Several legacy casings exist; the
// normalize package reconciles them.
const (
	FieldWorkerID        = "trabajadorId"
	FieldCompanyID       = "empresaId"
	FieldDepartment      = "departamento"
	FieldDepartmentAlt   = "Departamento"
	FieldWorkType        = "tipoTrabajo"
	FieldDescription     = "descripcion"
	FieldLocation        = "ubicacion"
	FieldPriority        = "prioridad"
	FieldStatus          = "estado"
	FieldCreatedAt       = "fecha"
	FieldCompletedAt     = "fechaCompletado"
	FieldResolutionNotes = "notasResolucion"
	FieldMaterialsUsed   = "materialesUtilizados"
	FieldEvidence        = "evidencias"
	FieldSignature       = "firma"

	FieldName       = "nombre"
	FieldUsername   = "usuario"
	FieldRole       = "rol"
	FieldAdminLevel = "nivelAdmin"
	FieldCreatorID  = "creadoPor"

	FieldContact = "contacto"
	FieldAddress = "direccion"
	FieldPhone   = "telefono"
	FieldEmail   = "email"
)

// Priority of a report.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
	PriorityUnset  Priority = ""
)

// Status of a report. Reports move from Pending to Completed.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

// View selects which report bucket is being browsed.
type View string

const (
	ViewPending   View = "pending"
	ViewCompleted View = "completed"
)

// Status returns the report status a view shows.
func (v View) Status() Status {
	if v == ViewCompleted {
		return StatusCompleted
	}
	return StatusPending
}

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	return v == ViewPending || v == ViewCompleted
}

// ParseView maps a query value onto a view, defaulting to pending.
func ParseView(s string) View {
	if View(s) == ViewCompleted {
		return ViewCompleted
	}
	return ViewPending
}

// Report is a work order assigned to a field worker.
// CompletedAt is nil unless Status is Completed.
type Report struct {
	ID              string     `json:"id"`
	WorkerID        string     `json:"worker_id"`
	CompanyID       string     `json:"company_id"`
	Department      string     `json:"department"`
	WorkType        string     `json:"work_type"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	Priority        Priority   `json:"priority"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes"`
	MaterialsUsed   string     `json:"materials_used"`
	Evidence        []string   `json:"evidence"`
	Signature       string     `json:"signature"`
}

// IsCompleted reports whether the report has been closed by its worker.
func (r Report) IsCompleted() bool {
	return r.Status == StatusCompleted
}

// ResolutionTime returns how long the report took to complete. ok is false when the
// report is not completed or its timestamps are out of order.
func (r Report) ResolutionTime() (d time.Duration, ok bool) {
	if !r.IsCompleted() || r.CompletedAt == nil || r.CreatedAt.IsZero() {
		return 0, false
	}
	if r.CompletedAt.Before(r.CreatedAt) {
		return 0, false
	}
	return r.CompletedAt.Sub(r.CreatedAt), true
}

// Fields encodes the report into the store's field layout.
func (r Report) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		FieldWorkerID:    r.WorkerID,
		FieldCompanyID:   r.CompanyID,
		FieldDepartment:  r.Department,
		FieldWorkType:    r.WorkType,
		FieldDescription: r.Description,
		FieldLocation:    r.Location,
		FieldPriority:    string(r.Priority),
		FieldStatus:      string(r.Status),
		FieldCreatedAt:   r.CreatedAt,
	}
	if r.IsCompleted() && r.CompletedAt != nil {
		fields[FieldCompletedAt] = *r.CompletedAt
		fields[FieldResolutionNotes] = r.ResolutionNotes
		fields[FieldMaterialsUsed] = r.MaterialsUsed
		fields[FieldEvidence] = r.Evidence
		fields[FieldSignature] = r.Signature
	}
	return fields
}

// UserRole defines the access level of a user.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleWorker UserRole = "worker"
)

// Admin levels. Level 1 sees every worker; levels 2 and 3 see the workers below them in
// the creation hierarchy.
const (
	AdminLevelGlobal = 1
	AdminLevelPeer   = 2
	AdminLevelTop    = 3
)

// User is a worker or administrator identity.
type User struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	Name       string   `json:"name"`
	Department string   `json:"department,omitempty"`
	Role       UserRole `json:"role"`
	AdminLevel int      `json:"admin_level,omitempty"` // 1, 2 or 3 for admins, 0 for workers
	CreatorID  string   `json:"creator_id,omitempty"`  // admin that created this identity
}

// IsAdmin reports whether the user is an administrator.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName returns the name, falling back to the username and then the id.
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.ID
	}
}

// Fields encodes the user into the store's field layout.
func (u User) Fields() map[string]interface{} {
	role := "trabajador"
	if u.IsAdmin() {
		role = string(RoleAdmin)
	}
	fields := map[string]interface{}{
		FieldUsername: u.Username,
		FieldName:     u.Name,
		FieldRole:     role,
	}
	if u.Department != "" {
		fields[FieldDepartment] = u.Department
	}
	if u.IsAdmin() {
		fields[FieldAdminLevel] = u.AdminLevel
	}
	if u.CreatorID != "" {
		fields[FieldCreatorID] = u.CreatorID
	}
	return fields
}

// Company is a client whose sites the work orders are executed at.
type Company struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// Fields encodes the company into the store's field layout.
func (c Company) Fields() map[string]interface{} {
	return map[string]interface{}{
		FieldName:    c.Name,
		FieldContact: c.Contact,
		FieldAddress: c.Address,
		FieldPhone:   c.Phone,
		FieldEmail:   c.Email,
	}
}
