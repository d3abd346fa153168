package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workscope/auth"
	"workscope/cache"
	"workscope/db"
	"workscope/logger"
	"workscope/middleware"
	"workscope/models"
	"workscope/normalize"
	"workscope/reports"
)

type AdminHandler struct {
	store    db.Store
	service  *reports.Service
	hasher   *auth.Hasher
	sessions *cache.Registry
	log      *logrus.Entry
}

func NewAdminHandler(store db.Store, service *reports.Service, hasher *auth.Hasher, sessions *cache.Registry) *AdminHandler {
	return &AdminHandler{
		store:    store,
		service:  service,
		hasher:   hasher,
		sessions: sessions,
		log:      logger.WithModule("handlers.admin"),
	}
}

// --- User Management ---

type CreateUserRequest struct {
	Username   string          `json:"username" validate:"required,min=3,max=64"`
	Password   string          `json:"password" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	Department string          `json:"department"`
	Role       models.UserRole `json:"role" validate:"required,oneof=admin worker"`
	AdminLevel int             `json:"admin_level" validate:"omitempty,min=1,max=3"`
}

// canCreateAdmin reports whether an admin of creatorLevel may create an admin of level.
// Global admins create any level; top admins create peer admins below them.
func canCreateAdmin(creatorLevel, level int) bool {
	switch creatorLevel {
	case models.AdminLevelGlobal:
		return level >= models.AdminLevelGlobal && level <= models.AdminLevelTop
	case models.AdminLevelTop:
		return level == models.AdminLevelPeer
	default:
		return false
	}
}

// CreateUser creates a worker or admin owned by the caller
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	var req CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Role == models.RoleAdmin && !canCreateAdmin(adminUser.AdminLevel, req.AdminLevel) {
		writeError(w, "Insufficient permissions to create this admin level", http.StatusForbidden)
		return
	}

	existing, err := h.store.Query(r.Context(), models.CollectionUsers,
		[]db.Predicate{db.Eq(models.FieldUsername, req.Username)}, 1)
	if err != nil {
		h.log.WithError(err).Error("failed to check username")
		writeError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	if len(existing) > 0 {
		writeError(w, "Username already exists", http.StatusConflict)
		return
	}

	passwordHash, err := h.hasher.Hash(req.Password)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user := models.User{
		ID:         uuid.NewString(),
		Username:   req.Username,
		Name:       req.Name,
		Department: req.Department,
		Role:       req.Role,
		CreatorID:  adminUser.ID,
	}
	if user.IsAdmin() {
		user.AdminLevel = req.AdminLevel
	}

	// The hash goes first so a user document never exists without a way to log in.
	if err := db.StorePasswordHash(r.Context(), h.store, user.ID, passwordHash); err != nil {
		h.log.WithError(err).Error("failed to store password")
		writeError(w, "Failed to store password", http.StatusInternalServerError)
		return
	}
	if err := h.store.Set(r.Context(), models.CollectionUsers, user.ID, user.Fields()); err != nil {
		h.log.WithError(err).Error("failed to create user")
		if derr := h.store.Delete(r.Context(), models.CollectionPasswords, user.ID); derr != nil {
			h.log.WithError(derr).WithField("user_id", user.ID).Warn("orphaned password hash left behind")
		}
		writeError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	// The caller's visible set just grew.
	h.service.Refresh(h.sessions.Get(adminUser.ID))

	logger.Audit(adminUser.ID, "create_user",
		fmt.Sprintf("created %s %s (%s, level %d)", user.Role, user.Username, user.ID, user.AdminLevel))

	writeJSON(w, http.StatusCreated, user)
}

// --- Report Management ---

type CreateReportRequest struct {
	WorkerID    string `json:"worker_id" validate:"required"`
	CompanyID   string `json:"company_id" validate:"required"`
	WorkType    string `json:"work_type" validate:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Priority    string `json:"priority" validate:"required"`
}

type DeleteReportRequest struct {
	ReportID string `json:"report_id" validate:"required"`
}

var errNotVisible = errors.New("worker not visible")

// CreateReport assigns a new pending work order to a visible worker
func (h *AdminHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	var req CreateReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	priority := normalize.Priority(req.Priority)
	if priority == models.PriorityUnset {
		writeError(w, "Invalid field: Priority", http.StatusBadRequest)
		return
	}

	c := h.sessions.Get(adminUser.ID)
	if err := h.requireVisible(r, adminUser, c, req.WorkerID); err != nil {
		h.writeVisibilityError(w, err)
		return
	}

	worker, _ := c.Worker(req.WorkerID)
	report := models.Report{
		ID:          uuid.NewString(),
		WorkerID:    req.WorkerID,
		CompanyID:   req.CompanyID,
		Department:  worker.Department,
		WorkType:    req.WorkType,
		Description: req.Description,
		Location:    req.Location,
		Priority:    priority,
		Status:      models.StatusPending,
		CreatedAt:   h.service.Now(),
	}

	if err := h.store.Set(r.Context(), models.CollectionReports, report.ID, report.Fields()); err != nil {
		h.log.WithError(err).Error("failed to create report")
		writeError(w, "Failed to create report", http.StatusInternalServerError)
		return
	}
	h.service.Refresh(c)

	logger.Audit(adminUser.ID, "create_report",
		fmt.Sprintf("assigned report %s to worker %s", report.ID, report.WorkerID))

	writeJSON(w, http.StatusCreated, report)
}

// DeleteReport removes a report assigned to a visible worker
func (h *AdminHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	var req DeleteReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.store.GetByID(r.Context(), models.CollectionReports, req.ReportID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "Report not found", http.StatusNotFound)
			return
		}
		h.log.WithError(err).Error("failed to load report")
		writeError(w, "Failed to delete report", http.StatusInternalServerError)
		return
	}
	report := h.service.Normalizer().Report(*rec)

	c := h.sessions.Get(adminUser.ID)
	if err := h.requireVisible(r, adminUser, c, report.WorkerID); err != nil {
		h.writeVisibilityError(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), models.CollectionReports, report.ID); err != nil {
		h.log.WithError(err).Error("failed to delete report")
		writeError(w, "Failed to delete report", http.StatusInternalServerError)
		return
	}
	h.service.Refresh(c)

	logger.Audit(adminUser.ID, "delete_report",
		fmt.Sprintf("deleted report %s of worker %s", report.ID, report.WorkerID))

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Report deleted successfully",
	})
}

func (h *AdminHandler) requireVisible(r *http.Request, admin models.User, c *cache.Cache, workerID string) error {
	visible, err := h.service.CanSee(r.Context(), admin, c, workerID)
	if err != nil {
		return err
	}
	if !visible {
		return errNotVisible
	}
	return nil
}

func (h *AdminHandler) writeVisibilityError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNotVisible) {
		writeError(w, "Worker not found", http.StatusNotFound)
		return
	}
	writeServiceError(w, h.log, err)
}
