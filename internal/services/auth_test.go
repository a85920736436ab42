package services

import (
	"testing"

	"github.com/FelipeVergaraChico/ping-presenca/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret")

	token, err := svc.Register("Dr. Silva", "silva@anima.edu.br", "secret123", models.RoleProfessor)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, role, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleProfessor, role)
	assert.NotZero(t, userID)

	_, err = svc.Register("Dr. Silva", "silva@anima.edu.br", "other", models.RoleProfessor)
	require.Error(t, err, "duplicate email must be rejected")

	login, err := svc.Login("silva@anima.edu.br", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, login)

	_, err = svc.Login("silva@anima.edu.br", "wrong")
	require.Error(t, err)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret")

	_, err := svc.Register("Eve", "eve@anima.edu.br", "secret123", "admin")
	require.Error(t, err)
}

func TestValidateTokenRejectsForgery(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret")
	other := NewAuthService(db, "different-secret")

	token, err := other.GenerateToken(1, models.RoleProfessor)
	require.NoError(t, err)

	_, _, err = svc.ValidateToken(token)
	require.Error(t, err)

	_, _, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
