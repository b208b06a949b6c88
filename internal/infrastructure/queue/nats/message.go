package nats

import (
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	headerAssetID    = "Media-Asset-Id"
	headerEnqueuedAt = "Media-Enqueued-At"
)

// ExtractionRequest is one extraction job on the wire. The body is the job
// id; asset id and enqueue time travel as headers.
type ExtractionRequest struct {
	JobID      string
	AssetID    string
	EnqueuedAt time.Time
}

func (r ExtractionRequest) message(subject string) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = []byte(r.JobID)
	msg.Header.Set(nats.MsgIdHdr, r.JobID)
	if r.AssetID != "" {
		msg.Header.Set(headerAssetID, r.AssetID)
	}
	if !r.EnqueuedAt.IsZero() {
		msg.Header.Set(headerEnqueuedAt, r.EnqueuedAt.UTC().Format(time.RFC3339Nano))
	}
	return msg
}

// parseExtractionRequest also accepts bare job-id messages without headers.
func parseExtractionRequest(msg *nats.Msg) (ExtractionRequest, error) {
	req := ExtractionRequest{JobID: strings.TrimSpace(string(msg.Data))}
	if req.JobID == "" {
		return ExtractionRequest{}, errors.New("empty job id")
	}
	if msg.Header == nil {
		return req, nil
	}
	req.AssetID = msg.Header.Get(headerAssetID)
	if raw := msg.Header.Get(headerEnqueuedAt); raw != "" {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			req.EnqueuedAt = at
		}
	}
	return req, nil
}
