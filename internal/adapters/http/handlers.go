package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dkeye/Membership/internal/app"
	"github.com/dkeye/Membership/internal/core"
	"github.com/dkeye/Membership/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AppendRequest struct {
	Membership string          `json:"membership"`
	Content    json.RawMessage `json:"content"`
}

type AppendResponse struct {
	SequenceID uint64 `json:"sequence_id"`
}

type Handlers struct {
	Svc *app.Service
}

func (h *Handlers) appendMembership(c *gin.Context) {
	var req AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	membership, err := domain.ParseMembership(req.Membership)
	if err != nil {
		writeError(c, err)
		return
	}
	seq, err := h.Svc.AppendMembership(c.Request.Context(),
		domain.RoomID(c.Param("room")), domain.MemberID(c.Param("member")), membership, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, AppendResponse{SequenceID: seq})
}

func (h *Handlers) getMembership(c *gin.Context) {
	e, ok, err := h.Svc.GetMembership(c.Request.Context(), domain.RoomID(c.Param("room")), domain.MemberID(c.Param("member")))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no membership recorded"})
		return
	}
	c.JSON(http.StatusOK, core.NewEventDTO(e))
}

func (h *Handlers) listMembers(c *gin.Context) {
	filter, err := membershipFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	events, err := h.Svc.ListMembers(c.Request.Context(), domain.RoomID(c.Param("room")), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": toDTOs(events)})
}

func (h *Handlers) listJoinedDomains(c *gin.Context) {
	domains, err := h.Svc.ListJoinedDomains(c.Request.Context(), domain.RoomID(c.Param("room")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

func (h *Handlers) listMemberRooms(c *gin.Context) {
	filter, err := membershipFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	events, err := h.Svc.ListMemberRooms(c.Request.Context(), domain.MemberID(c.Param("member")), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": toDTOs(events)})
}

func membershipFilter(c *gin.Context) (*domain.Membership, error) {
	raw, ok := c.GetQuery("membership")
	if !ok || raw == "" {
		return nil, nil
	}
	m, err := domain.ParseMembership(raw)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func toDTOs(events []domain.MembershipEvent) []core.EventDTO {
	out := make([]core.EventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, core.NewEventDTO(e))
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrStorageFailure):
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusBadRequest {
		log.Error().Err(err).Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
