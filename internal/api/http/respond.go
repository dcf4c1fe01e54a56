// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"note-platform/pkg/errors"
)

func okBody(data any) utils.H {
	return utils.H{"success": true, "data": data}
}

func errorBody(msg string) utils.H {
	return utils.H{"success": false, "error": msg}
}

// statusFor 错误类别到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrValidation), errors.Is(err, errors.ErrInvalidArg):
		return consts.StatusBadRequest
	case errors.Is(err, errors.ErrAuthFailed):
		return consts.StatusUnauthorized
	case errors.Is(err, errors.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, errors.ErrConfigMissing):
		return consts.StatusPreconditionFailed
	case errors.Is(err, errors.ErrCapabilityUnsupported):
		return consts.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrUpstreamTransient), errors.Is(err, errors.ErrUpstreamPermanent):
		return consts.StatusBadGateway
	default:
		return consts.StatusInternalServerError
	}
}

func (s *Server) fail(c *app.RequestContext, err error) {
	status := statusFor(err)
	if status == consts.StatusInternalServerError {
		s.log.Error("request failed", "path", string(c.Path()), "error", err)
	}
	c.JSON(status, errorBody(err.Error()))
}

func ok(c *app.RequestContext, data any) {
	c.JSON(consts.StatusOK, okBody(data))
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, errorBody(msg))
}
