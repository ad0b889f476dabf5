package api

import (
	"net/http"

	"frontline/coaching-app/internal/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

var kindStatus = map[service.ErrorKind]int{
	service.KindNotFound:     http.StatusNotFound,
	service.KindInvalidInput: http.StatusBadRequest,
	service.KindInvalidState: http.StatusUnprocessableEntity,
	service.KindConflict:     http.StatusConflict,
}

// abortWithServiceError maps a service failure to its HTTP status. Internal
// errors are logged and answered with fallback so details do not leak.
func abortWithServiceError(c *gin.Context, err error, fallback string) {
	kind := service.KindOf(err)
	if code, ok := kindStatus[kind]; ok {
		c.AbortWithStatusJSON(code, gin.H{"error": err.Error(), "kind": kind})
		return
	}

	_ = c.Error(err)
	log.WithField("request_id", c.GetString(ContextRequestIDKey)).Errorf("%s: %v", fallback, err)
	abortWithError(c, http.StatusInternalServerError, fallback)
}
