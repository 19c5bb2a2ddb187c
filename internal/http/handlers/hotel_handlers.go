package handlers

import (
	"net/http"
	"strconv"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/diagnosis/reservou/internal/http/response"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) SetupHotel(w http.ResponseWriter, r *http.Request) {
	var req domain.HotelSetupRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	res, err := h.hotelService.SetupHotel(r.Context(), auth.FromContext(r.Context()), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.codec.SetCookie(w, res.Token)
	response.OK(w, http.StatusCreated, res.Hotel, "hotel created")
}

func (h *Handlers) CurrentHotel(w http.ResponseWriter, r *http.Request) {
	hotel, err := h.hotelService.CurrentHotel(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, hotel, "")
}

func (h *Handlers) PublicHotel(w http.ResponseWriter, r *http.Request) {
	hotel, err := h.hotelService.PublicHotel(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, hotel, "")
}

func (h *Handlers) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		response.Error(w, r, apperror.BadRequest("lat and lng must be numbers"))
		return
	}

	var precision uint64
	if v := q.Get("precision"); v != "" {
		p, err := strconv.ParseUint(v, 10, 8)
		if err != nil || p == 0 {
			response.Error(w, r, apperror.BadRequest("precision must be between 1 and 9"))
			return
		}
		precision = p
	}

	hotels, err := h.hotelService.Nearby(r.Context(), lat, lng, uint(precision))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, hotels, "")
}

func (h *Handlers) UpdateGeneralInfo(w http.ResponseWriter, r *http.Request) {
	var req domain.GeneralInfoRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	hotel, err := h.hotelService.UpdateGeneralInfo(r.Context(), auth.FromContext(r.Context()), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, hotel, "general info updated")
}

func (h *Handlers) UpdateAmenities(w http.ResponseWriter, r *http.Request) {
	var req domain.AmenitiesRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	hotel, err := h.hotelService.UpdateAmenities(r.Context(), auth.FromContext(r.Context()), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, hotel, "amenities updated")
}

func (h *Handlers) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req domain.LocationRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	hotel, err := h.hotelService.UpdateLocation(r.Context(), auth.FromContext(r.Context()), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, hotel, "location updated")
}

func (h *Handlers) UpdateLandingPage(w http.ResponseWriter, r *http.Request) {
	var req domain.LandingPageRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	hotel, err := h.hotelService.UpdateLandingPage(r.Context(), auth.FromContext(r.Context()), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, hotel, "landing page updated")
}

func (h *Handlers) ZipCode(w http.ResponseWriter, r *http.Request) {
	addr, err := h.hotelService.ZipCode(r.Context(), chi.URLParam(r, "zip"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, addr, "")
}
