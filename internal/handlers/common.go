package handlers

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

// paramID parses a numeric path parameter and answers 400 when it is not one.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// optionalState reads {"<key>": true|false} from the body. A missing body or
// key returns nil, which the services treat as a toggle.
func optionalState(c *gin.Context, key string) (*bool, bool) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil, true
	}
	var body map[string]*bool
	if err := c.ShouldBindJSON(&body); err != nil {
		if err == io.EOF {
			return nil, true
		}
		response.BadRequest(c, err.Error())
		return nil, false
	}
	return body[key], true
}

// openFormFile opens the named multipart file. The caller closes it.
func openFormFile(c *gin.Context, field string) (*multipart.FileHeader, multipart.File, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		response.BadRequest(c, field+" is required")
		return nil, nil, false
	}
	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, "cannot read uploaded file")
		return nil, nil, false
	}
	return header, file, true
}
