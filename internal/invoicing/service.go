package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

// Invoice is the provider-side record created for a completed order.
type Invoice struct {
	Reference string        `json:"reference"`
	OrderID   int64         `json:"order_id"`
	Contact   string        `json:"contact"`
	Total     string        `json:"total"`
	Lines     []InvoiceLine `json:"line_items"`
}

// InvoiceLine is one provider invoice line.
type InvoiceLine struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitAmount  string `json:"unit_amount"`
	LineAmount  string `json:"line_amount"`
}

// Service drives the OAuth2 accounting integration.
type Service interface {
	// AuthURL starts the authorization-code flow.
	AuthURL(state string) string
	// Exchange trades the callback code for a token set and persists it.
	Exchange(ctx context.Context, code string) error
	// Connected reports whether a token set is on file.
	Connected(ctx context.Context) (bool, error)
	// Disconnect drops the stored token set.
	Disconnect(ctx context.Context) error
	// CreateInvoice pushes the order to the accounting provider and returns
	// the provider invoice reference.
	CreateInvoice(ctx context.Context, order *models.Order) (string, error)
}

type service struct {
	oauth  *oauth2.Config
	store  TokenStore
	apiURL string
	logg   *logger.Logger

	// httpClient overrides the oauth2-authed client in tests.
	httpClient *http.Client
}

// NewService builds the accounting service from the provider configuration.
func NewService(cfg config.AccountingConfig, store TokenStore, logg *logger.Logger) (Service, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("accounting client credentials required")
	}
	if store == nil {
		return nil, fmt.Errorf("token store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"accounting.transactions"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		store:  store,
		apiURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		logg:   logg,
	}, nil
}

func (s *service) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (s *service) Exchange(ctx context.Context, code string) error {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "exchange authorization code")
	}
	if err := s.store.Save(ctx, token); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist accounting token")
	}
	return nil
}

func (s *service) Connected(ctx context.Context) (bool, error) {
	_, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoToken) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accounting token")
	}
	return true, nil
}

func (s *service) Disconnect(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear accounting token")
	}
	return nil
}

func (s *service) CreateInvoice(ctx context.Context, order *models.Order) (string, error) {
	if order == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if len(order.Items) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
	}

	client, err := s.authedClient(ctx)
	if err != nil {
		return "", err
	}

	invoice := buildInvoice(order)
	body, err := json.Marshal(invoice)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode invoice")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/Invoices", bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build invoice request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send invoice")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("accounting provider returned %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": string(snippet)})
	}

	var created struct {
		InvoiceID string `json:"invoice_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode invoice response")
	}
	if created.InvoiceID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "accounting provider returned no invoice id")
	}
	return created.InvoiceID, nil
}

// authedClient wraps the stored token in a refreshing source and writes any
// rotated token back to the store.
func (s *service) authedClient(ctx context.Context) (*http.Client, error) {
	if s.httpClient != nil {
		return s.httpClient, nil
	}

	token, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "accounting integration not connected")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accounting token")
	}

	source := &persistingTokenSource{
		ctx:      ctx,
		delegate: s.oauth.TokenSource(ctx, token),
		store:    s.store,
		current:  token,
		logg:     s.logg,
	}
	return oauth2.NewClient(ctx, source), nil
}

type persistingTokenSource struct {
	ctx      context.Context
	delegate oauth2.TokenSource
	store    TokenStore
	current  *oauth2.Token
	logg     *logger.Logger
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.delegate.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != p.current.AccessToken {
		if err := p.store.Save(p.ctx, token); err != nil {
			p.logg.Warn(p.ctx, "failed to persist refreshed accounting token")
		}
		p.current = token
	}
	return token, nil
}

func buildInvoice(order *models.Order) Invoice {
	contact := "archived client"
	if order.Client != nil {
		contact = order.Client.Name
	}

	lines := make([]InvoiceLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, InvoiceLine{
			Description: item.CoralName,
			Quantity:    item.Quantity,
			UnitAmount:  item.PriceAtOrder.StringFixed(2),
			LineAmount:  item.Subtotal.StringFixed(2),
		})
	}
	return Invoice{
		Reference: fmt.Sprintf("CORAL-%d", order.ID),
		OrderID:   order.ID,
		Contact:   contact,
		Total:     order.TotalAmount.StringFixed(2),
		Lines:     lines,
	}
}
