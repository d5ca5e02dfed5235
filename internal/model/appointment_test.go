package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentState_Transitions(t *testing.T) {
	all := []AppointmentState{
		AppointmentStatePending,
		AppointmentStateConfirmed,
		AppointmentStateCompleted,
		AppointmentStateCancelled,
	}
	allowed := map[AppointmentState][]AppointmentState{
		AppointmentStatePending:   {AppointmentStateConfirmed, AppointmentStateCompleted, AppointmentStateCancelled},
		AppointmentStateConfirmed: {AppointmentStateCompleted, AppointmentStateCancelled},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestAppointmentState_TerminalAndInitial(t *testing.T) {
	assert.True(t, AppointmentStateCompleted.Terminal())
	assert.True(t, AppointmentStateCancelled.Terminal())
	assert.False(t, AppointmentStatePending.Terminal())
	assert.False(t, AppointmentStateConfirmed.Terminal())

	assert.True(t, AppointmentStatePending.InitialAllowed())
	assert.True(t, AppointmentStateConfirmed.InitialAllowed())
	assert.True(t, AppointmentStateCancelled.InitialAllowed())
	assert.False(t, AppointmentStateCompleted.InitialAllowed())
	assert.False(t, AppointmentState("archived").InitialAllowed())
}

func TestParseAppointmentState(t *testing.T) {
	st, err := ParseAppointmentState("confirmed")
	require.NoError(t, err)
	assert.Equal(t, AppointmentStateConfirmed, st)

	_, err = ParseAppointmentState("Confirmed")
	assert.Error(t, err)
	_, err = ParseAppointmentState("")
	assert.Error(t, err)
}

func TestUserRole(t *testing.T) {
	r, err := ParseUserRole("receptionist")
	require.NoError(t, err)
	assert.False(t, r.CanRecordConsultation())
	assert.True(t, UserRoleDoctor.CanRecordConsultation())
	assert.True(t, UserRoleAdmin.CanRecordConsultation())

	_, err = ParseUserRole("nurse")
	assert.Error(t, err)

	var nobody *User
	assert.False(t, nobody.IsDoctor())
	assert.True(t, (&User{Role: UserRoleDoctor}).IsDoctor())
}
