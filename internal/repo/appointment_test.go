package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var appointmentStatuses = []string{
	AppointmentScheduled, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow,
}

func TestCanTransitionAppointment(t *testing.T) {
	allowed := map[[2]string]bool{
		{AppointmentScheduled, AppointmentConfirmed}: true,
		{AppointmentScheduled, AppointmentCancelled}: true,
		{AppointmentScheduled, AppointmentNoShow}:    true,
		{AppointmentConfirmed, AppointmentCompleted}: true,
		{AppointmentConfirmed, AppointmentCancelled}: true,
		{AppointmentConfirmed, AppointmentNoShow}:    true,
	}
	// todos os pares, inclusive o próprio status e a saída de estados terminais
	for _, from := range appointmentStatuses {
		for _, to := range appointmentStatuses {
			want := allowed[[2]string{from, to}]
			assert.Equal(t, want, CanTransitionAppointment(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransitionAppointment("", AppointmentConfirmed))
	assert.False(t, CanTransitionAppointment(AppointmentScheduled, "DONE"))
}

func TestAppointmentStatusHelpers(t *testing.T) {
	for _, s := range appointmentStatuses {
		assert.True(t, IsAppointmentStatus(s), s)
	}
	assert.False(t, IsAppointmentStatus("scheduled"))
	assert.False(t, IsAppointmentStatus(""))

	assert.True(t, IsAppointmentOpen(AppointmentScheduled))
	assert.True(t, IsAppointmentOpen(AppointmentConfirmed))
	assert.False(t, IsAppointmentOpen(AppointmentCompleted))
	assert.False(t, IsAppointmentOpen(AppointmentCancelled))
	assert.False(t, IsAppointmentOpen(AppointmentNoShow))
}
