package share

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/transport"
	"telemetry-dashboard/pkg/logger"
)

const createTimeout = 10 * time.Second

type filters struct {
	DateFrom string `json:"dateFrom,omitempty"`
	DateTo   string `json:"dateTo,omitempty"`
}

// createRequest is the body of POST /api/share/create.
type createRequest struct {
	Workspaces       []string `json:"workspaces"`
	AbstractionLevel int      `json:"abstractionLevel"`
	ExpirationDays   int      `json:"expirationDays"`
	Filters          filters  `json:"filters"`
	Name             string   `json:"name,omitempty"`
}

// Link is a created share.
type Link struct {
	ShareID   string `json:"shareId"`
	ExpiresAt string `json:"expiresAt,omitempty"`
	Level     Level  `json:"abstractionLevel"`
	RequestID string `json:"requestId"`
}

type Client struct {
	transport transport.Transport
	logger    logger.Logger
}

func NewClient(t transport.Transport, logger logger.Logger) *Client {
	return &Client{transport: t, logger: logger}
}

// Create validates the intent and asks the activity source for a link.
func (c *Client) Create(ctx context.Context, in Intent) (*Link, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	const op = "share.create"
	reqID := uuid.NewString()
	body := createRequest{
		Workspaces:       in.Workspaces,
		AbstractionLevel: int(in.AbstractionLevel),
		ExpirationDays:   in.ExpirationDays,
		Filters:          filters{DateFrom: in.DateFrom, DateTo: in.DateTo},
		Name:             in.Name,
	}
	data, err := c.transport.Post(ctx, transport.PathShareCreate, body, transport.Options{Timeout: createTimeout})
	if err != nil {
		c.logger.Warn("share %s: create failed: %v", reqID, err)
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, errs.Parse(op, errors.New("response is not JSON"))
	}
	res := gjson.ParseBytes(data)
	if !res.Get("success").Bool() {
		msg := res.Get("error").String()
		if msg == "" {
			msg = "share creation was rejected"
		}
		return nil, errs.New(errs.KindHTTP, op, errors.New(msg))
	}
	id := res.Get("shareId").String()
	if id == "" {
		return nil, errs.Malformed(op, "response has no shareId")
	}
	link := &Link{ShareID: id, ExpiresAt: res.Get("expiresAt").String(), Level: in.AbstractionLevel, RequestID: reqID}
	c.logger.Info("share %s: created %s at level %d for %d workspaces", reqID, id, in.AbstractionLevel, len(in.Workspaces))
	return link, nil
}
