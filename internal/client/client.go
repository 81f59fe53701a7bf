package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/errs"
	"kiosk-sync/internal/models"
)

// ExhibitionAPI is the remote exhibition-management API consumed by the
// sync engine, the outbox drain and the session poller.
type ExhibitionAPI interface {
	ListLayouts(ctx context.Context, exhibitionID uuid.UUID) ([]models.Layout, error)
	FindLayout(ctx context.Context, exhibitionID, layoutID uuid.UUID) (*models.Layout, error)
	ListPages(ctx context.Context, exhibitionID uuid.UUID, deviceID, contentVersionID *uuid.UUID) ([]models.Page, error)
	FindPage(ctx context.Context, exhibitionID, pageID uuid.UUID) (*models.Page, error)
	FindContentVersion(ctx context.Context, exhibitionID, contentVersionID uuid.UUID) (*models.ContentVersion, error)
	FindDevice(ctx context.Context, exhibitionID, deviceID uuid.UUID) (*models.Device, error)
	CreateVisitorSession(ctx context.Context, exhibitionID uuid.UUID, session *models.VisitorSession) (*models.VisitorSession, error)
	UpdateVisitorSession(ctx context.Context, exhibitionID uuid.UUID, session *models.VisitorSession) (*models.VisitorSession, error)
	FindVisitorSession(ctx context.Context, exhibitionID, sessionID uuid.UUID) (*models.VisitorSession, error)
	ListVisitorSessions(ctx context.Context, exhibitionID uuid.UUID, modifiedAfter *time.Time) ([]models.VisitorSession, error)
	ListVisitors(ctx context.Context, exhibitionID uuid.UUID) ([]models.Visitor, error)
	ListRfidAntennas(ctx context.Context, exhibitionID uuid.UUID) ([]models.RfidAntenna, error)
}

// Client is the resty-backed ExhibitionAPI implementation. Every call waits
// for a valid bearer token before issuing the request.
type Client struct {
	httpClient *resty.Client
	tokens     TokenSource
	tokenWait  time.Duration
	logger     *zap.Logger
}

// Options for the API client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	TokenWait  time.Duration
}

func NewClient(opts Options, tokens TokenSource, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		tokens:     tokens,
		tokenWait:  opts.TokenWait,
		logger:     logger,
	}
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := WaitForToken(ctx, c.tokens, c.tokenWait)
	if err != nil {
		return nil, err
	}
	return c.httpClient.R().SetContext(ctx).SetAuthToken(token), nil
}

// mapResponse translates transport and HTTP failures into the error
// taxonomy. A 404 becomes ErrNotFound so callers can turn it into a local
// delete.
func mapResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return errs.Transport(errs.TransportTimeout, 0, fmt.Errorf("%s: %w", op, err))
	}
	status := resp.StatusCode()
	switch {
	case status < 400:
		return nil
	case status == 404:
		return errs.ErrNotFound
	case status < 500:
		return errs.Transport(errs.TransportClient, status, fmt.Errorf("%s: %s", op, resp.Status()))
	default:
		return errs.Transport(errs.TransportServer, status, fmt.Errorf("%s: %s", op, resp.Status()))
	}
}

func (c *Client) ListLayouts(ctx context.Context, exhibitionID uuid.UUID) ([]models.Layout, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var layouts []models.Layout
	resp, err := req.
		SetResult(&layouts).
		Get(fmt.Sprintf("/exhibitions/%s/pageLayouts", exhibitionID))
	if err := mapResponse(resp, err, "listLayouts"); err != nil {
		return nil, err
	}
	return layouts, nil
}

func (c *Client) FindLayout(ctx context.Context, exhibitionID, layoutID uuid.UUID) (*models.Layout, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var layout models.Layout
	resp, err := req.
		SetResult(&layout).
		Get(fmt.Sprintf("/exhibitions/%s/pageLayouts/%s", exhibitionID, layoutID))
	if err := mapResponse(resp, err, "findLayout"); err != nil {
		return nil, err
	}
	return &layout, nil
}

func (c *Client) ListPages(ctx context.Context, exhibitionID uuid.UUID, deviceID, contentVersionID *uuid.UUID) ([]models.Page, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	if deviceID != nil {
		params.Set("exhibitionDeviceId", deviceID.String())
	}
	if contentVersionID != nil {
		params.Set("contentVersionId", contentVersionID.String())
	}

	var pages []models.Page
	resp, err := req.
		SetQueryParamsFromValues(params).
		SetResult(&pages).
		Get(fmt.Sprintf("/exhibitions/%s/pages", exhibitionID))
	if err := mapResponse(resp, err, "listPages"); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *Client) FindPage(ctx context.Context, exhibitionID, pageID uuid.UUID) (*models.Page, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var page models.Page
	resp, err := req.
		SetResult(&page).
		Get(fmt.Sprintf("/exhibitions/%s/pages/%s", exhibitionID, pageID))
	if err := mapResponse(resp, err, "findPage"); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) FindContentVersion(ctx context.Context, exhibitionID, contentVersionID uuid.UUID) (*models.ContentVersion, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var version models.ContentVersion
	resp, err := req.
		SetResult(&version).
		Get(fmt.Sprintf("/exhibitions/%s/contentVersions/%s", exhibitionID, contentVersionID))
	if err := mapResponse(resp, err, "findContentVersion"); err != nil {
		return nil, err
	}
	return &version, nil
}

func (c *Client) FindDevice(ctx context.Context, exhibitionID, deviceID uuid.UUID) (*models.Device, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var device models.Device
	resp, err := req.
		SetResult(&device).
		Get(fmt.Sprintf("/exhibitions/%s/devices/%s", exhibitionID, deviceID))
	if err := mapResponse(resp, err, "findDevice"); err != nil {
		return nil, err
	}
	return &device, nil
}

func (c *Client) CreateVisitorSession(ctx context.Context, exhibitionID uuid.UUID, session *models.VisitorSession) (*models.VisitorSession, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var created models.VisitorSession
	resp, err := req.
		SetBody(session).
		SetResult(&created).
		Post(fmt.Sprintf("/exhibitions/%s/visitorSessions", exhibitionID))
	if err := mapResponse(resp, err, "createVisitorSession"); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateVisitorSession(ctx context.Context, exhibitionID uuid.UUID, session *models.VisitorSession) (*models.VisitorSession, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var updated models.VisitorSession
	resp, err := req.
		SetBody(session).
		SetResult(&updated).
		Put(fmt.Sprintf("/exhibitions/%s/visitorSessions/%s", exhibitionID, session.ID))
	if err := mapResponse(resp, err, "updateVisitorSession"); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) FindVisitorSession(ctx context.Context, exhibitionID, sessionID uuid.UUID) (*models.VisitorSession, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var session models.VisitorSession
	resp, err := req.
		SetResult(&session).
		Get(fmt.Sprintf("/exhibitions/%s/visitorSessions/%s", exhibitionID, sessionID))
	if err := mapResponse(resp, err, "findVisitorSession"); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) ListVisitorSessions(ctx context.Context, exhibitionID uuid.UUID, modifiedAfter *time.Time) ([]models.VisitorSession, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	if modifiedAfter != nil {
		req.SetQueryParam("modifiedAfter", modifiedAfter.UTC().Format(time.RFC3339))
	}

	var sessions []models.VisitorSession
	resp, err := req.
		SetResult(&sessions).
		Get(fmt.Sprintf("/exhibitions/%s/visitorSessions", exhibitionID))
	if err := mapResponse(resp, err, "listVisitorSessions"); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) ListVisitors(ctx context.Context, exhibitionID uuid.UUID) ([]models.Visitor, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var visitors []models.Visitor
	resp, err := req.
		SetResult(&visitors).
		Get(fmt.Sprintf("/exhibitions/%s/visitors", exhibitionID))
	if err := mapResponse(resp, err, "listVisitors"); err != nil {
		return nil, err
	}
	return visitors, nil
}

func (c *Client) ListRfidAntennas(ctx context.Context, exhibitionID uuid.UUID) ([]models.RfidAntenna, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var antennas []models.RfidAntenna
	resp, err := req.
		SetResult(&antennas).
		Get(fmt.Sprintf("/exhibitions/%s/rfidAntennas", exhibitionID))
	if err := mapResponse(resp, err, "listRfidAntennas"); err != nil {
		return nil, err
	}
	return antennas, nil
}
