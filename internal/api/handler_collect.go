package api

import (
	"net/http"
)

func (h *Handler) startCollection(w http.ResponseWriter, r *http.Request) {
	message, err := h.Collector.StartCollection(r.URL.Query().Get("mode"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, map[string]string{"message": message})
}

func (h *Handler) stopCollection(w http.ResponseWriter, r *http.Request) {
	message, err := h.Collector.StopCollection()
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"message": message})
}

func (h *Handler) getCollectionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Collector.GetRunStats()
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, r, http.StatusOK, stats)
}
