package monitoring

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// AbortRecord is the last record sent to viewers when the server stops.
const AbortRecord = "event: abort\ndata: {\"reason\": \"shutdown\"}\n\n"

// FormatEvent frames a payload as a server-sent event. Each line of the
// payload becomes a data line.
func FormatEvent(payload []byte) []byte {
	var buf bytes.Buffer

	for _, line := range bytes.Split(payload, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')

	return buf.Bytes()
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	header.Set("Server", "ProgressServer")
	header.Set("X-Accel-Buffering", "no")
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	logger := s.logger.WithFields(logrus.Fields{
		"viewer": xid.New().String(),
		"remote": r.RemoteAddr,
	})
	logger.Debug("viewer connected")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		logger.WithError(err).Debug("viewer left")
		return
	}

	if err := s.follow(r.Context(), w, rc, logger); err != nil {
		logger.WithError(err).Debug("viewer left")
		return
	}

	logger.Debug("viewer disconnected")
}

// follow replays the event log from the start, then sends new events as
// they arrive, until the server stops or the viewer goes away.
func (s *Server) follow(
	ctx context.Context,
	w io.Writer,
	rc *http.ResponseController,
	logger logrus.FieldLogger,
) error {
	pos := 0

	for {
		entries, next, clamped := s.log.Read(pos)
		if clamped && pos > 0 {
			logger.WithField("cursor", pos).
				Warn("viewer fell behind, evicted events skipped")
		}

		for _, e := range entries {
			if _, err := w.Write(FormatEvent(e.Payload)); err != nil {
				return err
			}
		}

		if len(entries) > 0 {
			if err := rc.Flush(); err != nil {
				return err
			}
		}

		pos = next

		if !s.running.Load() {
			if _, err := io.WriteString(w, AbortRecord); err != nil {
				return err
			}

			return rc.Flush()
		}

		if ctx.Err() != nil {
			return nil
		}

		s.log.Wait(ctx, pos, s.waitInterval)
	}
}
