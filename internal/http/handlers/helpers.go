package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/apierr"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return false
	}
	return true
}

// fail writes the mapped error envelope and logs server side failures.
func fail(c *gin.Context, log *logger.Logger, op string, err error) {
	if ae := apierr.FromError(err); ae != nil && ae.Status >= http.StatusInternalServerError {
		log.Error(op+" failed", "error", err, "path", c.Request.URL.Path)
	}
	response.RespondAPIError(c, err)
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryFloat(c *gin.Context, name string) *float64 {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_query", errors.New("invalid "+name))
		return nil, false
	}
	return &id, true
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts, true
		}
	}
	response.RespondError(c, http.StatusBadRequest, "invalid_query", errors.New("invalid "+name))
	return nil, false
}
