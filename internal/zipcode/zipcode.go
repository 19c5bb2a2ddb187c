// Package zipcode looks up Brazilian postal codes (CEP) on ViaCEP.
package zipcode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/diagnosis/reservou/internal/apperror"
)

type Address struct {
	ZipCode string `json:"zip_code"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Street  string `json:"street"`
}

type Lookup interface {
	Lookup(ctx context.Context, zip string) (*Address, error)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	Erro       any    `json:"erro"`
}

// Digits strips everything but digits from zip.
func Digits(zip string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, zip)
}

func (c *Client) Lookup(ctx context.Context, zip string) (*Address, error) {
	digits := Digits(zip)
	if len(digits) != 8 {
		return nil, apperror.BadRequest("zip code must have 8 digits")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/ws/%s/json/", c.baseURL, digits), nil)
	if err != nil {
		return nil, apperror.Internal(err, "build zip code request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Internal(err, "zip code request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.NotFound("could not fetch zip code details")
	}

	var body viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperror.Internal(err, "decode zip code response")
	}
	if body.Erro != nil && body.Erro != false {
		return nil, apperror.NotFound("zip code not found")
	}

	return &Address{
		ZipCode: body.CEP,
		City:    body.Localidade,
		State:   body.UF,
		Country: "Brasil",
		Street:  body.Logradouro,
	}, nil
}
