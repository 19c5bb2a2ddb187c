package identity

import (
	"context"
	"testing"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/stretchr/testify/assert"
)

func TestFromClaims(t *testing.T) {
	id := fromClaims("g-1", map[string]interface{}{
		"email": "  Ana@Example.com ",
		"name":  " Ana Souza ",
	})
	assert.Equal(t, &Identity{UID: "g-1", Email: "ana@example.com", Name: "Ana Souza"}, id)

	bare := fromClaims("g-2", map[string]interface{}{"email": 42})
	assert.Empty(t, bare.Email)
	assert.Empty(t, bare.Name)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Verify(context.Background(), "tok")
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
}
