package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/middleware"
	"github.com/noah-isme/civic-portal-api/internal/models"
)

func principalFromContext(c *gin.Context) *models.Principal {
	return middleware.PrincipalFromContext(c)
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func pageParams(c *gin.Context) (page, size int) {
	return parseQueryInt(c, "page", 1), parseQueryInt(c, "page_size", 20)
}
