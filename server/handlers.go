package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/s0up4200/requestarr/requests"
	"github.com/s0up4200/requestarr/store"
)

// showResponse is a created show plus the outcome of the season search
type showResponse struct {
	*store.Record
	SeasonSearch       string          `json:"seasonSearch,omitempty"`
	SeasonSearchDetail json.RawMessage `json:"seasonSearchDetail,omitempty"`
}

func (s *Server) createMovie(c *gin.Context) {
	var req movieRequest
	if err := bindAndValidate(c, &req, s.validate); err != nil {
		return
	}

	rec, err := s.svc.CreateMovie(c.Request.Context(), s.token(c), requests.MovieInput{
		Title:       req.Title,
		ReleaseDate: req.ReleaseDate,
		ExternalID:  req.ImdbID,
	})
	if err != nil {
		s.writeError(c, err, http.StatusServiceUnavailable)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) createShow(c *gin.Context) {
	var req showRequest
	if err := bindAndValidate(c, &req, s.validate); err != nil {
		return
	}

	result, err := s.svc.CreateShow(c.Request.Context(), s.token(c), requests.ShowInput{
		Title:       req.Title,
		ReleaseDate: req.ReleaseDate,
		ExternalID:  req.TvdbID,
		PosterURL:   req.Poster,
		Seasons:     req.Seasons,
	})
	if err != nil {
		s.writeError(c, err, http.StatusServiceUnavailable)
		return
	}

	resp := showResponse{Record: result.Record}
	if len(req.Seasons) > 0 {
		resp.SeasonSearch = "queued"
	}
	if result.SeasonSearchErr != nil {
		resp.SeasonSearch = "failed"
		resp.SeasonSearchDetail = result.SeasonSearchReply
		if len(resp.SeasonSearchDetail) == 0 {
			resp.SeasonSearchDetail, _ = json.Marshal(result.SeasonSearchErr.Error())
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) list(kind store.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownOnly := c.Query("useronly") == "y"
		records, err := s.svc.List(c.Request.Context(), s.token(c), kind, ownOnly)
		if err != nil {
			s.writeError(c, err, http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func (s *Server) get(kind store.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		rec, err := s.svc.Get(c.Request.Context(), s.token(c), kind, id)
		if err != nil {
			s.writeError(c, err, http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func (s *Server) delete(kind store.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := s.svc.Delete(c.Request.Context(), s.token(c), kind, id); err != nil {
			s.writeError(c, err, http.StatusBadRequest)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return 0, false
	}
	return id, true
}

// writeError maps orchestrator errors to responses. A rejection relays the
// acquisition service's reply verbatim with rejectedStatus.
func (s *Server) writeError(c *gin.Context, err error, rejectedStatus int) {
	var (
		rejected *requests.RejectedError
		conflict *requests.ConflictError
	)

	switch {
	case errors.Is(err, requests.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, requests.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "msg": conflict.Reason})
	case errors.As(err, &rejected):
		if len(rejected.Reply) > 0 {
			c.Data(rejectedStatus, "application/json; charset=utf-8", rejected.Reply)
			return
		}
		c.JSON(rejectedStatus, gin.H{"error": "rejected", "msg": rejected.Error()})
	case errors.Is(err, requests.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "msg": err.Error()})
	case errors.Is(err, requests.ErrDependencyUnavailable):
		s.logger.Warn().Err(err).Str("request_id", c.GetString("request_id")).Msg("Dependency unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service_unavailable", "msg": err.Error()})
	default:
		s.logger.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
