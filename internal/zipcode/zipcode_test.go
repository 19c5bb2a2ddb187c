package zipcode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/ws/01310100/json/":
			_, _ = w.Write([]byte(`{"cep":"01310-100","logradouro":"Avenida Paulista","localidade":"São Paulo","uf":"SP"}`))
		case "/ws/99999999/json/":
			_, _ = w.Write([]byte(`{"erro": true}`))
		case "/ws/88888888/json/":
			_, _ = w.Write([]byte(`{"erro": "true"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL)

	addr, err := c.Lookup(context.Background(), "01310-100")
	require.NoError(t, err)
	assert.Equal(t, &Address{
		ZipCode: "01310-100",
		City:    "São Paulo",
		State:   "SP",
		Country: "Brasil",
		Street:  "Avenida Paulista",
	}, addr)
	assert.Equal(t, "/ws/01310100/json/", paths[0])

	_, err = c.Lookup(context.Background(), "99999-999")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = c.Lookup(context.Background(), "88888888")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = c.Lookup(context.Background(), "12345678")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestLookup_WrongDigitCount(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	for _, zip := range []string{"", "1234567", "123456789", "abc"} {
		_, err := c.Lookup(context.Background(), zip)
		assert.True(t, apperror.Is(err, apperror.KindBadRequest), zip)
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "01310100", Digits(" 01310-100 "))
}
