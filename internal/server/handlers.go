package server

import (
	"errors"
	"net/http"

	"github.com/dgnsrekt/kitten-tts-server/internal/audio"
	"github.com/dgnsrekt/kitten-tts-server/internal/catalog"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts"
	"github.com/gin-gonic/gin"
)

const (
	attachmentName      = "output.wav"
	internalErrorDetail = "Internal Server Error"
)

type modelsResponse struct {
	Models []string `json:"models"`
}

type voicesResponse struct {
	Voices []string `json:"voices"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, modelsResponse{Models: catalog.Models()})
}

func (s *Server) listVoices(c *gin.Context) {
	c.JSON(http.StatusOK, voicesResponse{Voices: catalog.Voices()})
}

// synthesize validates the query, runs the model and streams the result
// back from a temp file that is removed once the body has been written.
func (s *Server) synthesize(c *gin.Context) {
	req := catalog.Request{
		Text:  c.Query("text"),
		Voice: c.DefaultQuery("voice", catalog.DefaultVoice),
		Model: c.DefaultQuery("model", catalog.DefaultModel()),
	}
	if err := req.Validate(s.config.MaxTextLength); err != nil {
		s.abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	model, err := s.models.Get(ctx, req.Model)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	samples, err := model.Generate(ctx, req.Text, req.Voice)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	f, err := createTempFile(s.config.TempDir)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	path := f.Name()
	defer removeTempFile(path)

	if err := audio.Encode(f, samples, catalog.SampleRate); err != nil {
		_ = f.Close()
		s.abortWithError(c, err)
		return
	}
	if err := f.Close(); err != nil {
		s.abortWithError(c, err)
		return
	}

	c.Header("Content-Type", "audio/wav")
	c.FileAttachment(path, attachmentName)
}

// abortWithError maps validation failures to 400 and everything else to an
// opaque 500. Engine diagnostics such as runtime stderr are logged here since
// they never reach the client.
func (s *Server) abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	var argErr *catalog.InvalidArgumentError
	if errors.As(err, &argErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: argErr.Detail})
		return
	}

	var ttsErr *tts.TTSError
	if errors.As(err, &ttsErr) {
		fields := append([]interface{}{"code", ttsErr.Code, "err", err}, ttsErr.Fields()...)
		if ttsErr.IsFatal() {
			s.logger.Error("Engine unavailable", fields...)
		} else {
			s.logger.Warn("Synthesis failed", fields...)
		}
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: internalErrorDetail})
}
