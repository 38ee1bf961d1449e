package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/faceattend/faceattend/internal/attendance"
)

// AttendanceHandler serves the admin reporting endpoints.
type AttendanceHandler struct {
	records attendance.Store
}

// NewAttendanceHandler creates a new attendance reporting handler.
func NewAttendanceHandler(store attendance.Store) *AttendanceHandler {
	return &AttendanceHandler{records: store}
}

// List handles GET /api/admin/attendancelist?date=YYYY-MM-DD&department=CSE.
// The date defaults to today. A department of "All" or empty returns every
// department.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = attendance.DateOf(time.Now())
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	department := r.URL.Query().Get("department")

	var records []attendance.Record
	var err error
	if department == "" || strings.EqualFold(department, "All") {
		records, err = h.records.ListByDate(r.Context(), date)
	} else {
		records, err = h.records.ListByDateAndDepartment(r.Context(), date, department)
	}
	if err != nil {
		log.Printf("Attendance list failed for %s: %v", sanitizeForLog(date), err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}
