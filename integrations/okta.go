package integrations

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/krshsl/staffline/models"
)

// OktaProvider manages users through the Okta management API with an SSWS
// API token.
type OktaProvider struct {
	client *Client
}

func newOkta(ctx context.Context, in *models.Integration, opts ClientOptions) (Provider, error) {
	base := in.Config.String("base_url")
	if base == "" {
		domain := in.Config.String("domain")
		if domain == "" {
			return nil, fmt.Errorf("okta: domain: %w", ErrMissingConfig)
		}
		base = "https://" + strings.TrimPrefix(domain, "https://")
	}
	ts, err := TokenSource(ctx, in.Credentials, "SSWS")
	if err != nil {
		return nil, fmt.Errorf("okta: %w", err)
	}
	return NewOkta(NewClient(ProviderOkta, base, ts, opts)), nil
}

func NewOkta(client *Client) *OktaProvider {
	return &OktaProvider{client: client}
}

func (o *OktaProvider) Name() string { return ProviderOkta }
func (o *OktaProvider) Type() string { return TypeIdentity }

func (o *OktaProvider) TestConnection(ctx context.Context) error {
	_, err := o.ListUsers(NoCache(ctx), 1)
	return err
}

type oktaUser struct {
	ID      string      `json:"id,omitempty"`
	Status  string      `json:"status,omitempty"`
	Profile oktaProfile `json:"profile"`
}

type oktaProfile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Login     string `json:"login"`
}

func (u oktaUser) directory() DirectoryUser {
	return DirectoryUser{
		ID:        u.ID,
		Status:    u.Status,
		Email:     u.Profile.Email,
		Login:     u.Profile.Login,
		FirstName: u.Profile.FirstName,
		LastName:  u.Profile.LastName,
	}
}

func (o *OktaProvider) GetUser(ctx context.Context, id string) (*DirectoryUser, error) {
	var out oktaUser
	if err := o.client.Get(ctx, "get_user", "/api/v1/users/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	u := out.directory()
	return &u, nil
}

func (o *OktaProvider) CreateUser(ctx context.Context, u DirectoryUser, activate bool) (*DirectoryUser, error) {
	login := u.Login
	if login == "" {
		login = u.Email
	}
	body := oktaUser{Profile: oktaProfile{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Login: login}}
	var out oktaUser
	p := "/api/v1/users?activate=" + strconv.FormatBool(activate)
	if err := o.client.Post(ctx, "create_user", p, body, &out); err != nil {
		return nil, err
	}
	created := out.directory()
	return &created, nil
}

func (o *OktaProvider) DeactivateUser(ctx context.Context, id string) error {
	return o.client.Post(ctx, "deactivate_user", "/api/v1/users/"+url.PathEscape(id)+"/lifecycle/deactivate", nil, nil)
}

func (o *OktaProvider) ListUsers(ctx context.Context, limit int) ([]DirectoryUser, error) {
	if limit <= 0 {
		limit = 200
	}
	var out []oktaUser
	if err := o.client.Get(ctx, "list_users", "/api/v1/users?limit="+strconv.Itoa(limit), &out); err != nil {
		return nil, err
	}
	users := make([]DirectoryUser, len(out))
	for i, u := range out {
		users[i] = u.directory()
	}
	return users, nil
}
