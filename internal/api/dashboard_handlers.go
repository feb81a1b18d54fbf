package api

import (
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

type DashboardOutput struct {
	PatientsTotal        int64            `json:"patients_total"`
	AppointmentsToday    map[string]int64 `json:"appointments_today"`
	UpcomingAppointments int64            `json:"upcoming_appointments_7d"`
	ExamsPending         int64            `json:"exams_pending"`
	UnreadMessages       int64            `json:"unread_messages"`
	BlockLevel           string           `json:"block_level"`
}

// Dashboard agrega os contadores da tela inicial. "Hoje" é o dia no fuso da clínica.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, _ := tenant.FromContext(ctx)
	clinicID, userID := info.ID, currentUserID(r)
	loc := h.billingLocation()
	y, m, d := h.clock().In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)

	out := DashboardOutput{BlockLevel: info.BlockLevel}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.PatientsTotal, err = repo.PatientsCountByClinic(gctx, h.DB, clinicID)
		return err
	})
	g.Go(func() (err error) {
		out.AppointmentsToday, err = repo.CountAppointmentsByStatus(gctx, h.DB, clinicID, today, tomorrow)
		return err
	})
	g.Go(func() (err error) {
		out.UpcomingAppointments, err = repo.CountOpenAppointments(gctx, h.DB, clinicID, today, today.AddDate(0, 0, 7))
		return err
	})
	g.Go(func() (err error) {
		out.ExamsPending, err = repo.CountPendingExams(gctx, h.DB, clinicID)
		return err
	})
	g.Go(func() (err error) {
		out.UnreadMessages, err = repo.CountUnreadChat(gctx, h.DB, clinicID, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		h.storeError(w, r, err)
		return
	}
	if out.AppointmentsToday == nil {
		out.AppointmentsToday = map[string]int64{}
	}
	if out.BlockLevel == "" {
		out.BlockLevel = "NONE"
	}
	writeJSON(w, http.StatusOK, out)
}
